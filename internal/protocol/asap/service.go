// Package asap 实现单飞可靠投递协议
//
// Service 是唯一的协调者，持有：
//   - 投递队列（按键替换、FIFO）
//   - 唯一的重试定时器
//   - 入站分发器
//
// 所有队列变更与链路发送都在同一把锁下完成，等价于单线程事件循环：
// Send、链路事件协程、重试定时器回调是仅有的三个入口。
//
// 状态机（队首）：
//
//	Absent ──enqueue──► Pending ──send ok──► AwaitingAck ──receipt──► Absent
//	                      │ deadline passed
//	                      ▼
//	                   Expired (dropped)
//	                      │ send fails / link not ready
//	                      ▼
//	               RetryScheduled ──backoff──► Pending
package asap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-asap/internal/core/codec"
	"github.com/dep2p/go-asap/internal/core/delivery"
	"github.com/dep2p/go-asap/internal/util/logger"
	deliveryif "github.com/dep2p/go-asap/pkg/interfaces/delivery"
	linkif "github.com/dep2p/go-asap/pkg/interfaces/link"
	"github.com/dep2p/go-asap/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("protocol/asap")

// Service 可靠投递服务
type Service struct {
	link       linkif.Link
	codec      codec.Codec
	config     *Config
	metrics    *Metrics
	dispatcher *Dispatcher
	dedup      *dedupCache

	// mu 保护 queue、retry、closed，并串行化所有 Link.Send
	mu     sync.Mutex
	queue  *delivery.Queue
	retry  retryTimer
	closed bool

	lifeMu  sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// 确保 Service 实现了 deliveryif.Messenger 接口
var _ deliveryif.Messenger = (*Service)(nil)

// New 创建投递服务
func New(link linkif.Link, opts ...Option) (*Service, error) {
	if link == nil {
		return nil, ErrNilLink
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.RetryInterval <= 0 || cfg.DefaultTimeout <= 0 || cfg.SendTimeout <= 0 {
		return nil, fmt.Errorf("%w: retry interval, default timeout and send timeout", ErrInvalidTimeout)
	}

	c, err := codec.New(cfg.Codec)
	if err != nil {
		return nil, err
	}
	metrics, err := NewMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	dedup, err := newDedupCache(cfg.DedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("dedup cache: %w", err)
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = delivery.UUIDGenerator
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &Service{
		link:       link,
		codec:      c,
		config:     cfg,
		metrics:    metrics,
		dispatcher: NewDispatcher(cfg.Handler),
		dedup:      dedup,
		queue:      delivery.NewQueue(),
	}, nil
}

// Start 启动链路事件处理
func (s *Service) Start(_ context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrServiceClosed
	}

	log.Info("正在启动投递服务", "codec", s.codec.Name(), "retryInterval", s.config.RetryInterval)

	// Fx OnStart 的 ctx 在返回后会被取消，后台协程使用独立的 ctx
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.run(ctx, s.link.Events())

	// 队列可能在启动前已有消息
	s.mu.Lock()
	if s.queue.Len() > 0 {
		s.process()
	}
	s.mu.Unlock()

	return nil
}

// Stop 停止服务，丢弃未投递的消息
func (s *Service) Stop(_ context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	s.cancel()
	<-s.done
	s.started = false

	s.mu.Lock()
	s.closed = true
	s.retry.cancel()
	dropped := s.queue.Clear()
	s.metrics.QueueLength.Set(0)
	s.mu.Unlock()

	log.Info("投递服务已停止", "dropped", dropped)
	return nil
}

// Send 以默认有效期入队消息
func (s *Service) Send(messageKey string, payload any) error {
	return s.SendWithTimeout(messageKey, payload, s.config.DefaultTimeout)
}

// SendWithTimeout 入队消息，替换同键的待发送消息
//
// 只在参数无效或服务已停止时返回错误；投递失败不会返回给调用方。
func (s *Service) SendWithTimeout(messageKey string, payload any, timeout time.Duration) error {
	if messageKey == "" {
		return ErrEmptyMessageKey
	}
	if timeout <= 0 {
		return ErrInvalidTimeout
	}

	now := s.config.Clock.Now()
	msg := &types.QueuedMessage{
		ID:         s.config.IDGenerator(messageKey),
		MessageKey: messageKey,
		Payload:    payload,
		Deadline:   now.Add(timeout),
		EnqueuedAt: now,
	}
	frame, err := s.codec.Encode(types.NewMessageFrame(msg))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	msg.Frame = frame

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}

	prevHead, _ := s.queue.Head()
	superseded, becameNonEmpty := s.queue.Enqueue(msg)
	if superseded > 0 {
		s.metrics.Superseded.Add(float64(superseded))
		log.Debug("替换同键消息", "key", messageKey, "count", superseded)
	}
	s.metrics.Enqueued.Inc()
	s.metrics.QueueLength.Set(float64(s.queue.Len()))

	// 队列由空变为非空，或在途的队首被替换：新的队首还没有发送过
	head, _ := s.queue.Head()
	if becameNonEmpty || (prevHead != nil && prevHead != head) {
		s.process()
	}

	log.Debug("消息入队", "id", msg.ID, "key", messageKey, "queueSize", s.queue.Len())
	return nil
}

// SetHandler 替换入站处理器
func (s *Service) SetHandler(handler deliveryif.Handler) {
	s.dispatcher.Set(handler)
}

// Pending 返回当前待发送队列的快照
func (s *Service) Pending() []types.QueuedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Snapshot()
}

// Metrics 返回服务指标
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// run 消费链路事件直到 ctx 取消（或实现方关闭了事件流）
func (s *Service) run(ctx context.Context, events <-chan linkif.Event) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				log.Info("链路事件流已关闭")
				return
			}
			s.handleEvent(ev)
		}
	}
}

// handleEvent 处理一个链路事件
func (s *Service) handleEvent(ev linkif.Event) {
	switch ev.Type {
	case linkif.EventOpened:
		log.Info("链路已打开")
		s.mu.Lock()
		if !s.closed {
			s.process()
		}
		s.mu.Unlock()
	case linkif.EventClosed:
		// 重连由链路实现负责
		log.Info("链路已关闭", "err", ev.Err)
	case linkif.EventError:
		log.Warn("链路错误", "err", ev.Err)
	case linkif.EventInbound:
		s.handleInbound(ev.Data)
	default:
		log.Debug("忽略未知链路事件", "type", int(ev.Type))
	}
}
