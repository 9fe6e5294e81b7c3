// Package link 定义点对点链路接口
//
// 链路是两个端点之间不可靠、间歇可用的双向通道：
// - 可查询的就绪状态（打开 / 关闭）
// - 可能失败的发送操作
// - 事件流：opened / closed / error / inbound
//
// 链路的建立与重连属于传输实现的职责，投递层只消费事件。
package link

import (
	"context"
	"errors"
)

// ============================================================================
//                              EventType 事件类型
// ============================================================================

// EventType 链路事件类型
type EventType int

const (
	// EventOpened 链路已打开
	EventOpened EventType = iota + 1
	// EventClosed 链路已关闭
	EventClosed
	// EventError 链路出错
	EventError
	// EventInbound 收到入站帧
	EventInbound
)

// String 返回事件类型的字符串表示
func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	case EventInbound:
		return "inbound"
	default:
		return "unknown"
	}
}

// Event 链路事件
type Event struct {
	// Type 事件类型
	Type EventType

	// Data 入站帧的原始字节（仅 EventInbound）
	Data []byte

	// Err 错误原因（EventError，EventClosed 可选）
	Err error
}

// ============================================================================
//                              Link 接口
// ============================================================================

// Link 点对点链路接口
//
// 同一时刻最多只有一个调用方在 Send，实现无需支持并发发送，
// 但 IsOpen 可能与 Send 并发调用。
type Link interface {
	// IsOpen 链路是否处于可发送状态
	IsOpen() bool

	// Send 发送一帧
	//
	// 链路未打开时返回 ErrLinkClosed；其他传输错误原样返回。
	Send(ctx context.Context, frame []byte) error

	// Events 返回链路事件流
	//
	// 通道在链路生命周期内不会被关闭，Close 之后不再产生事件；
	// 消费方应通过自己的 context 退出。
	Events() <-chan Event

	// Close 关闭链路并释放资源
	Close() error
}

// 链路错误
var (
	// ErrLinkClosed 链路未打开
	ErrLinkClosed = errors.New("link: not open")

	// ErrLinkShutdown 链路已被 Close
	ErrLinkShutdown = errors.New("link: shut down")
)

//go:generate mockgen -destination=mock/link_mock.go -package=mock github.com/dep2p/go-asap/pkg/interfaces/link Link
