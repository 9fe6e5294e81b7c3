package asap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-asap/config"
	protoasap "github.com/dep2p/go-asap/internal/protocol/asap"
	"github.com/dep2p/go-asap/pkg/lib/log"
	deliveryif "github.com/dep2p/go-asap/pkg/interfaces/delivery"
	linkif "github.com/dep2p/go-asap/pkg/interfaces/link"
	"github.com/dep2p/go-asap/pkg/types"
)

var logger = log.Logger("asap")

const (
	// startTimeout Fx App 启动超时
	startTimeout = 30 * time.Second

	// stopTimeout Fx App 停止超时
	stopTimeout = 10 * time.Second
)

// Endpoint 可靠投递端点，用户交互的主入口
//
// Endpoint 拥有传入的链路，Close 时一并关闭。
type Endpoint struct {
	opts *options
	link linkif.Link
	app  *fx.App

	// service 投递服务（由 Fx 注入）
	service *protoasap.Service

	mu      sync.Mutex
	started bool
	closed  bool
}

// 确保 Endpoint 实现了 deliveryif.Messenger 接口
var _ deliveryif.Messenger = (*Endpoint)(nil)

// New 创建端点但不启动
//
// 返回的端点已经可以入队消息，链路事件在 Start 之后才被处理。
func New(l linkif.Link, opts ...Option) (*Endpoint, error) {
	if l == nil {
		return nil, ErrNilLink
	}

	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	ep := &Endpoint{
		opts: o,
		link: l,
	}

	var err error
	ep.app, err = buildFxApp(l, o, ep)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return ep, nil
}

// Start 创建并启动端点
func Start(ctx context.Context, l linkif.Link, opts ...Option) (*Endpoint, error) {
	ep, err := New(l, opts...)
	if err != nil {
		return nil, err
	}
	if err := ep.Start(ctx); err != nil {
		_ = ep.Close()
		return nil, err
	}
	return ep, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期管理
// ════════════════════════════════════════════════════════════════════════════

// Start 启动端点，开始处理链路事件
func (e *Endpoint) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEndpointClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := e.app.Start(startCtx); err != nil {
		logger.Error("端点启动失败", "err", err)
		return fmt.Errorf("start failed: %w", err)
	}
	e.started = true

	logger.Info("端点已启动", "codec", e.opts.config.Delivery.Codec, "version", Version)
	return nil
}

// Close 停止投递服务并关闭链路
//
// 未投递的消息被丢弃。可重复调用。
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.started {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		err = multierr.Append(err, e.app.Stop(ctx))
		e.started = false
	}
	err = multierr.Append(err, e.link.Close())

	if err != nil {
		logger.Warn("端点关闭时出错", "err", err)
	} else {
		logger.Info("端点已关闭")
	}
	return err
}

// ════════════════════════════════════════════════════════════════════════════
//                              投递 API
// ════════════════════════════════════════════════════════════════════════════

// Send 以默认有效期发送消息，替换同键的待发送消息
func (e *Endpoint) Send(messageKey string, payload any) error {
	return e.service.Send(messageKey, payload)
}

// SendWithTimeout 以指定有效期发送消息
func (e *Endpoint) SendWithTimeout(messageKey string, payload any, timeout time.Duration) error {
	return e.service.SendWithTimeout(messageKey, payload, timeout)
}

// SetHandler 替换入站处理器，nil 恢复默认处理器（只记录日志）
func (e *Endpoint) SetHandler(h deliveryif.Handler) {
	e.service.SetHandler(h)
}

// SetHandlerFunc 以函数形式替换入站处理器
func (e *Endpoint) SetHandlerFunc(fn func(messageKey string, payload any) error) {
	if fn == nil {
		e.service.SetHandler(nil)
		return
	}
	e.service.SetHandler(deliveryif.HandlerFunc(fn))
}

// Pending 返回当前待发送队列的快照，队首在前
func (e *Endpoint) Pending() []types.QueuedMessage {
	return e.service.Pending()
}

// Config 返回端点使用的配置副本
func (e *Endpoint) Config() *config.Config {
	return e.opts.config.Clone()
}

// Link 返回端点持有的链路
func (e *Endpoint) Link() linkif.Link {
	return e.link
}
