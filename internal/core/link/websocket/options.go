package websocket

import (
	"time"

	"github.com/dep2p/go-asap/config"
)

// 默认值
const (
	DefaultRedialInterval   = 2 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultMaxMessageSize   = 1 << 20
	DefaultEventBuffer      = 128
)

type options struct {
	redialInterval   time.Duration
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	maxMessageSize   int64
	eventBuffer      int
}

func defaultOptions() options {
	return options{
		redialInterval:   DefaultRedialInterval,
		handshakeTimeout: DefaultHandshakeTimeout,
		writeTimeout:     DefaultWriteTimeout,
		maxMessageSize:   DefaultMaxMessageSize,
		eventBuffer:      DefaultEventBuffer,
	}
}

// Option 链路选项
type Option func(*options)

// WithRedialInterval 设置断开后的重拨间隔（仅拨号端）
func WithRedialInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.redialInterval = d
		}
	}
}

// WithHandshakeTimeout 设置握手超时
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.handshakeTimeout = d
		}
	}
}

// WithWriteTimeout 设置单帧写超时
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithMaxMessageSize 设置单帧最大字节数，超出时连接被断开
func WithMaxMessageSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessageSize = n
		}
	}
}

// WithEventBuffer 设置事件通道缓冲大小
func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// FromConfig 将链路配置转换为选项
func FromConfig(cfg config.LinkConfig) []Option {
	return []Option{
		WithRedialInterval(cfg.RedialInterval.Duration()),
		WithHandshakeTimeout(cfg.HandshakeTimeout.Duration()),
		WithWriteTimeout(cfg.WriteTimeout.Duration()),
		WithMaxMessageSize(cfg.MaxMessageSize),
	}
}
