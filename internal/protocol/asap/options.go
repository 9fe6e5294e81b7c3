package asap

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-asap/config"
	"github.com/dep2p/go-asap/internal/core/delivery"
	deliveryif "github.com/dep2p/go-asap/pkg/interfaces/delivery"
)

// Config 投递服务配置
type Config struct {
	// RetryInterval 固定重试间隔
	RetryInterval time.Duration

	// DefaultTimeout Send 使用的默认有效期
	DefaultTimeout time.Duration

	// SendTimeout 单次链路发送上限
	SendTimeout time.Duration

	// DedupCacheSize 入站去重缓存大小，0 关闭
	DedupCacheSize int

	// Codec 帧编解码器名称
	Codec string

	// Clock 时钟，测试中替换为 clock.NewMock()
	Clock clock.Clock

	// IDGenerator 消息 ID 生成器
	IDGenerator delivery.IDGenerator

	// Registerer 指标注册器，nil 表示不注册
	Registerer prometheus.Registerer

	// Handler 初始入站处理器，nil 使用默认处理器
	Handler deliveryif.Handler
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return FromDeliveryConfig(config.DefaultDeliveryConfig())
}

// FromDeliveryConfig 从配置文件的投递配置构造服务配置
func FromDeliveryConfig(dc config.DeliveryConfig) *Config {
	return &Config{
		RetryInterval:  dc.RetryInterval.Duration(),
		DefaultTimeout: dc.DefaultTimeout.Duration(),
		SendTimeout:    dc.SendTimeout.Duration(),
		DedupCacheSize: dc.DedupCacheSize,
		Codec:          dc.Codec,
		Clock:          clock.New(),
		IDGenerator:    delivery.UUIDGenerator,
	}
}

// Option 配置选项函数
type Option func(*Config)

// WithRetryInterval 设置重试间隔
func WithRetryInterval(d time.Duration) Option {
	return func(c *Config) {
		c.RetryInterval = d
	}
}

// WithDefaultTimeout 设置默认有效期
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.DefaultTimeout = d
	}
}

// WithSendTimeout 设置单次发送上限
func WithSendTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.SendTimeout = d
	}
}

// WithDedupCacheSize 设置入站去重缓存大小
func WithDedupCacheSize(size int) Option {
	return func(c *Config) {
		c.DedupCacheSize = size
	}
}

// WithCodec 设置帧编解码器
func WithCodec(name string) Option {
	return func(c *Config) {
		c.Codec = name
	}
}

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.Clock = clk
	}
}

// WithIDGenerator 设置消息 ID 生成器
func WithIDGenerator(gen delivery.IDGenerator) Option {
	return func(c *Config) {
		c.IDGenerator = gen
	}
}

// WithRegisterer 设置指标注册器
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registerer = reg
	}
}

// WithHandler 设置初始入站处理器
func WithHandler(h deliveryif.Handler) Option {
	return func(c *Config) {
		c.Handler = h
	}
}
