package asap

import "errors"

// 错误定义
//
// 这些错误只表示 API 误用；投递过程中的失败（链路不可用、发送失败、
// 过期、处理器失败）只记录日志和指标，从不返回给调用方。
var (
	// ErrNilLink Link 为 nil
	ErrNilLink = errors.New("asap: link is nil")

	// ErrEmptyMessageKey 消息键为空
	ErrEmptyMessageKey = errors.New("asap: empty message key")

	// ErrInvalidTimeout 有效期不是正数
	ErrInvalidTimeout = errors.New("asap: timeout must be positive")

	// ErrInvalidPayload 负载无法编码为帧
	ErrInvalidPayload = errors.New("asap: payload cannot be encoded")

	// ErrServiceClosed 服务已停止
	ErrServiceClosed = errors.New("asap: service closed")

	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("asap: service already started")

	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("asap: service not started")

	// ErrHandlerPanic 入站处理器 panic
	ErrHandlerPanic = errors.New("asap: handler panicked")
)
