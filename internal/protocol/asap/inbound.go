package asap

import (
	"context"

	"github.com/dep2p/go-asap/pkg/types"
)

// handleInbound 解码入站帧并按类型处理
func (s *Service) handleInbound(data []byte) {
	f, err := s.codec.Decode(data)
	if err != nil {
		log.Warn("无法解码入站帧，丢弃", "err", err, "size", len(data))
		s.metrics.DecodeFailures.Inc()
		return
	}

	switch f.Type {
	case types.FrameMessage:
		s.handleDelivery(f)
	case types.FrameReceipt:
		s.handleReceipt(f.ID)
	}
}

// handleDelivery 分发投递帧，然后无条件回执
//
// 处理器在锁外调用，因此处理器内部可以再次调用 Send。
func (s *Service) handleDelivery(f *types.Frame) {
	s.metrics.Received.Inc()
	log.Debug("收到消息", "id", f.ID, "key", f.MessageKey, "payload", f.Payload)

	if s.dedup.seen(f.ID) {
		s.metrics.Duplicates.Inc()
		log.Debug("重复消息，跳过分发", "id", f.ID)
	} else if err := s.dispatcher.Dispatch(f.MessageKey, f.Payload); err != nil {
		s.metrics.HandlerFailures.Inc()
		log.Warn("处理器执行失败", "id", f.ID, "key", f.MessageKey, "err", err)
	}

	s.sendReceipt(f.ID)
}

// sendReceipt 尽力发送回执，失败只记录，不重试
func (s *Service) sendReceipt(id string) {
	data, err := s.codec.Encode(types.NewReceiptFrame(id))
	if err != nil {
		s.metrics.ReceiptFailures.Inc()
		log.Warn("回执编码失败", "id", id, "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.SendTimeout)
	defer cancel()

	log.Debug("发送回执", "id", id)
	if err := s.link.Send(ctx, data); err != nil {
		s.metrics.ReceiptFailures.Inc()
		log.Warn("发送回执失败", "id", id, "err", err)
	}
}

// handleReceipt 回执出队并推进队首
//
// 未知 ID 的回执（迟到、重复、已过期）不产生任何可观察效果。
func (s *Service) handleReceipt(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if !s.queue.RemoveByID(id) {
		s.metrics.StaleReceipts.Inc()
		log.Debug("回执对应的消息不在队列中", "id", id, "queueSize", s.queue.Len())
		return
	}

	s.metrics.Acked.Inc()
	s.metrics.QueueLength.Set(float64(s.queue.Len()))
	log.Debug("消息已确认出队", "id", id, "queueSize", s.queue.Len())

	s.process()
}
