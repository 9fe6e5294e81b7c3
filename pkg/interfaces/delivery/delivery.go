// Package delivery 定义可靠投递服务接口
//
// 投递服务在一条不可靠链路上提供：
// - 按键替换：同一 messageKey 只保留最新的一条待发送消息
// - 单飞发送：任意时刻链路上最多一条未确认的消息
// - 截止时间：过期消息在成为队首时被丢弃，不会发送
// - 回执推进：收到回执后出队并发送下一条
package delivery

import (
	"time"

	"github.com/dep2p/go-asap/pkg/types"
)

// DefaultTimeout 消息默认有效期（24 小时）
const DefaultTimeout = 24 * time.Hour

// ============================================================================
//                              Handler 入站处理器
// ============================================================================

// Handler 入站应用消息处理器
//
// 返回的错误（以及 panic）只会被记录，不影响回执发送。
type Handler interface {
	HandleMessage(messageKey string, payload any) error
}

// HandlerFunc 函数形式的 Handler
type HandlerFunc func(messageKey string, payload any) error

// HandleMessage 实现 Handler
func (f HandlerFunc) HandleMessage(messageKey string, payload any) error {
	return f(messageKey, payload)
}

// ============================================================================
//                              Messenger 接口
// ============================================================================

// Messenger 可靠投递服务接口
type Messenger interface {
	// Send 以默认有效期入队消息，替换同键的待发送消息
	Send(messageKey string, payload any) error

	// SendWithTimeout 以指定有效期入队消息
	SendWithTimeout(messageKey string, payload any, timeout time.Duration) error

	// SetHandler 替换入站处理器，nil 恢复默认（仅记录日志）
	SetHandler(handler Handler)

	// Pending 返回当前待发送队列的快照
	Pending() []types.QueuedMessage
}
