package config

import (
	"errors"
	"fmt"
	"time"
)

// 链路模式
const (
	// LinkModeDial 主动拨号，断开后自动重拨
	LinkModeDial = "dial"
	// LinkModeListen 监听并接受一个对端
	LinkModeListen = "listen"
)

// LinkConfig WebSocket 链路配置
type LinkConfig struct {
	// Mode 链路模式：dial / listen
	Mode string `json:"mode"`

	// URL 拨号地址（dial 模式）
	URL string `json:"url,omitempty"`

	// ListenAddr 监听地址（listen 模式）
	ListenAddr string `json:"listen_addr,omitempty"`

	// Path WebSocket 路径（listen 模式）
	Path string `json:"path"`

	// RedialInterval 断开后重拨间隔（dial 模式）
	RedialInterval Duration `json:"redial_interval"`

	// HandshakeTimeout 握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// WriteTimeout 单帧写超时
	WriteTimeout Duration `json:"write_timeout"`

	// MaxMessageSize 单帧最大字节数
	MaxMessageSize int64 `json:"max_message_size"`
}

// DefaultLinkConfig 返回默认链路配置
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		Mode:             LinkModeDial,
		URL:              "ws://127.0.0.1:7777/asap",
		ListenAddr:       ":7777",
		Path:             "/asap",
		RedialInterval:   Duration(2 * time.Second),
		HandshakeTimeout: Duration(10 * time.Second),
		WriteTimeout:     Duration(10 * time.Second),
		MaxMessageSize:   1 << 20,
	}
}

// Validate 验证链路配置
func (c LinkConfig) Validate() error {
	switch c.Mode {
	case LinkModeDial:
		if c.URL == "" {
			return errors.New("url is required in dial mode")
		}
		if c.RedialInterval <= 0 {
			return errors.New("redial_interval must be positive")
		}
	case LinkModeListen:
		if c.ListenAddr == "" {
			return errors.New("listen_addr is required in listen mode")
		}
	default:
		return fmt.Errorf("unknown link mode %q", c.Mode)
	}
	if c.HandshakeTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("max_message_size must be positive")
	}
	return nil
}
