package asap

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-asap/config"
	"github.com/dep2p/go-asap/internal/core/delivery"
	deliveryif "github.com/dep2p/go-asap/pkg/interfaces/delivery"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 配置文件结构，其余选项在其上修改
	config *config.Config

	// 可注入的协作者，nil 表示使用默认值
	clock       clock.Clock
	registerer  prometheus.Registerer
	idGenerator delivery.IDGenerator
	handler     deliveryif.Handler

	// 用户自定义 Fx 选项
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{
		config: config.NewConfig(),
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置
//
// 替换之前的全部配置项，应放在其他配置选项之前。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithRetryInterval 设置链路不可用或发送失败后的重试间隔
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("retry interval must be positive")
		}
		o.config.Delivery.RetryInterval = config.Duration(d)
		return nil
	}
}

// WithDefaultTimeout 设置 Send 的默认有效期
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("default timeout must be positive")
		}
		o.config.Delivery.DefaultTimeout = config.Duration(d)
		return nil
	}
}

// WithCodec 设置帧编解码器：json / proto / cbor
//
// 两端必须使用相同的编解码器。
func WithCodec(name string) Option {
	return func(o *options) error {
		o.config.Delivery.Codec = name
		return nil
	}
}

// WithDedupCacheSize 启用入站去重，记住最近 size 个消息 ID
func WithDedupCacheSize(size int) Option {
	return func(o *options) error {
		if size < 0 {
			return errors.New("dedup cache size must not be negative")
		}
		o.config.Delivery.DedupCacheSize = size
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              协作者
// ════════════════════════════════════════════════════════════════════════════

// WithClock 设置时钟，测试中使用 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithRegisterer 将投递指标注册到 reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithIDGenerator 替换消息 ID 生成器
//
// 生成的 ID 在进程生命周期内必须唯一，默认为 messageKey + "_" + uuid。
func WithIDGenerator(gen func(messageKey string) string) Option {
	return func(o *options) error {
		if gen == nil {
			return errors.New("id generator is nil")
		}
		o.idGenerator = delivery.IDGenerator(gen)
		return nil
	}
}

// WithHandler 设置初始入站处理器
func WithHandler(h deliveryif.Handler) Option {
	return func(o *options) error {
		o.handler = h
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
