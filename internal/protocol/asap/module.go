package asap

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-asap/config"
	"github.com/dep2p/go-asap/internal/core/delivery"
	deliveryif "github.com/dep2p/go-asap/pkg/interfaces/delivery"
	linkif "github.com/dep2p/go-asap/pkg/interfaces/link"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 配置
	Config *config.Config

	// Link 点对点链路
	Link linkif.Link `name:"link"`

	// Clock 时钟（可选，默认真实时钟）
	Clock clock.Clock `optional:"true"`

	// Registerer 指标注册器（可选）
	Registerer prometheus.Registerer `optional:"true"`

	// IDGenerator 消息 ID 生成器（可选）
	IDGenerator delivery.IDGenerator `optional:"true"`

	// Handler 初始入站处理器（可选）
	Handler deliveryif.Handler `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Service 投递服务
	Service *Service

	// Messenger 投递服务接口
	Messenger deliveryif.Messenger `name:"messenger"`
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	opts := []Option{
		func(c *Config) {
			*c = *FromDeliveryConfig(input.Config.Delivery)
		},
	}
	if input.Clock != nil {
		opts = append(opts, WithClock(input.Clock))
	}
	if input.Registerer != nil {
		opts = append(opts, WithRegisterer(input.Registerer))
	}
	if input.IDGenerator != nil {
		opts = append(opts, WithIDGenerator(input.IDGenerator))
	}
	if input.Handler != nil {
		opts = append(opts, WithHandler(input.Handler))
	}

	svc, err := New(input.Link, opts...)
	if err != nil {
		return ModuleOutput{}, err
	}

	return ModuleOutput{
		Service:   svc,
		Messenger: svc,
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("asap",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Service *Service
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("投递模块启动")
			return input.Service.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("投递模块停止")
			return input.Service.Stop(ctx)
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "asap"
	// Description 模块描述
	Description = "单飞可靠投递模块，提供按键替换、截止时间与回执推进"
)
