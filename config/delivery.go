package config

import (
	"errors"
	"fmt"
	"time"
)

// 支持的帧编解码器名称
const (
	CodecJSON  = "json"
	CodecProto = "proto"
	CodecCBOR  = "cbor"
)

// DeliveryConfig 投递队列配置
type DeliveryConfig struct {
	// RetryInterval 链路不可用或发送失败后的固定重试间隔
	RetryInterval Duration `json:"retry_interval"`

	// DefaultTimeout 未指定有效期时消息的默认有效期
	DefaultTimeout Duration `json:"default_timeout"`

	// SendTimeout 单次 Link.Send 调用的上限
	//
	// 只限制阻塞的传输调用，不是回执超时。
	SendTimeout Duration `json:"send_timeout"`

	// DedupCacheSize 入站去重缓存大小，0 表示关闭
	DedupCacheSize int `json:"dedup_cache_size"`

	// Codec 帧编解码器：json / proto / cbor
	Codec string `json:"codec"`
}

// DefaultDeliveryConfig 返回默认投递配置
func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		RetryInterval:  Duration(2500 * time.Millisecond),
		DefaultTimeout: Duration(24 * time.Hour),
		SendTimeout:    Duration(10 * time.Second),
		DedupCacheSize: 0,
		Codec:          CodecJSON,
	}
}

// Validate 验证投递配置
func (c DeliveryConfig) Validate() error {
	if c.RetryInterval <= 0 {
		return errors.New("retry_interval must be positive")
	}
	if c.DefaultTimeout <= 0 {
		return errors.New("default_timeout must be positive")
	}
	if c.SendTimeout <= 0 {
		return errors.New("send_timeout must be positive")
	}
	if c.DedupCacheSize < 0 {
		return errors.New("dedup_cache_size must not be negative")
	}
	switch c.Codec {
	case CodecJSON, CodecProto, CodecCBOR:
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	return nil
}
