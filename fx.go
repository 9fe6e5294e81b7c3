package asap

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-asap/internal/core/delivery"
	protoasap "github.com/dep2p/go-asap/internal/protocol/asap"
	"github.com/dep2p/go-asap/pkg/lib/log"
	deliveryif "github.com/dep2p/go-asap/pkg/interfaces/delivery"
	linkif "github.com/dep2p/go-asap/pkg/interfaces/link"
)

var fxLogger = log.Logger("asap/fx")

// buildFxApp 构建 Fx 应用
//
// 注入配置与链路，按需注入可选协作者，再加载投递模块。
// 投递服务在构建阶段即被创建，因此 Start 之前也可以 Send。
func buildFxApp(l linkif.Link, o *options, ep *Endpoint) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := o.config.Delivery.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 配置与链路
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(o.config),
		fx.Provide(fx.Annotate(
			func() linkif.Link { return l },
			fx.ResultTags(`name:"link"`),
		)),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 可选协作者
	// ════════════════════════════════════════════════════════════════════════
	if o.clock != nil {
		modules = append(modules, fx.Provide(func() clock.Clock { return o.clock }))
	}
	if o.registerer != nil {
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return o.registerer }))
	}
	if o.idGenerator != nil {
		modules = append(modules, fx.Provide(func() delivery.IDGenerator { return o.idGenerator }))
	}
	if o.handler != nil {
		modules = append(modules, fx.Provide(func() deliveryif.Handler { return o.handler }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 投递模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, protoasap.Module())

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户扩展与组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, o.fxOptions...)
	modules = append(modules,
		fx.Populate(&ep.service),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	fxLogger.Debug("构建 Fx 应用", "modules", len(modules), "codec", o.config.Delivery.Codec)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}
