package asap

import (
	"context"

	"github.com/dep2p/go-asap/pkg/types"
)

// process 推进队首
//
// 调用时机：队列由空变为非空、链路打开、收到回执、重试定时器到期。
// 必须持有 s.mu。
func (s *Service) process() {
	// 任何时刻最多一个重试定时器
	s.retry.cancel()

	// 过期检查不依赖链路状态：过期消息永远不会被发送
	head, ok := s.evictExpired()
	if !ok {
		return
	}

	if !s.link.IsOpen() {
		log.Debug("链路未打开，稍后重试", "retryIn", s.config.RetryInterval, "queueSize", s.queue.Len())
		s.metrics.LinkUnavailable.Inc()
		s.scheduleRetry()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.SendTimeout)
	defer cancel()

	log.Debug("发送消息", "id", head.ID, "key", head.MessageKey, "payload", head.Payload)
	if err := s.link.Send(ctx, head.Frame); err != nil {
		log.Warn("发送消息失败，稍后重试", "id", head.ID, "err", err, "retryIn", s.config.RetryInterval)
		s.metrics.SendFailures.Inc()
		s.scheduleRetry()
		return
	}

	// 发送成功后条目保留在队首，等待回执
	s.metrics.Sent.Inc()
}

// evictExpired 丢弃所有已过期的队首，返回第一个未过期的队首
func (s *Service) evictExpired() (head *types.QueuedMessage, ok bool) {
	now := s.config.Clock.Now()
	for {
		head, ok = s.queue.Head()
		if !ok {
			s.metrics.QueueLength.Set(0)
			return nil, false
		}
		if !head.Expired(now) {
			return head, true
		}
		s.queue.PopHead()
		s.metrics.Expired.Inc()
		s.metrics.QueueLength.Set(float64(s.queue.Len()))
		log.Info("消息已过期，丢弃", "id", head.ID, "key", head.MessageKey, "deadline", head.Deadline)
	}
}

// scheduleRetry 在固定间隔后重新调用 process
func (s *Service) scheduleRetry() {
	s.retry.schedule(s.config.Clock, s.config.RetryInterval, s.onRetry)
}

// onRetry 重试定时器回调
func (s *Service) onRetry(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.retry.fire(gen) {
		return
	}
	s.process()
}
