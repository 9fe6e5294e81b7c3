package asap

import (
	"errors"

	protoasap "github.com/dep2p/go-asap/internal/protocol/asap"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 端点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 端点未启动
	ErrNotStarted = errors.New("endpoint not started")

	// ErrAlreadyStarted 端点已启动
	ErrAlreadyStarted = errors.New("endpoint already started")

	// ErrEndpointClosed 端点已关闭
	ErrEndpointClosed = errors.New("endpoint closed")

	// ErrNilLink 未提供链路
	ErrNilLink = protoasap.ErrNilLink

	// ────────────────────────────────────────────────────────────────────────
	// Send 参数错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrEmptyMessageKey 消息键为空
	ErrEmptyMessageKey = protoasap.ErrEmptyMessageKey

	// ErrInvalidTimeout 有效期不是正数
	ErrInvalidTimeout = protoasap.ErrInvalidTimeout

	// ErrInvalidPayload 负载无法编码
	ErrInvalidPayload = protoasap.ErrInvalidPayload

	// ErrServiceClosed 投递服务已停止
	ErrServiceClosed = protoasap.ErrServiceClosed
)
