package types

import "time"

// QueuedMessage 投递队列中的一条待发送消息
//
// 同一 MessageKey 在队列中最多只有一条（新消息替换旧消息）。
type QueuedMessage struct {
	// ID 全局唯一的消息 ID，格式为 "<MessageKey>_<uuid>"
	ID string

	// MessageKey 逻辑通道，决定替换关系
	MessageKey string

	// Payload 应用负载
	Payload any

	// Deadline 截止时间，过期后不再发送
	Deadline time.Time

	// EnqueuedAt 入队时间
	EnqueuedAt time.Time

	// Frame 入队时编码好的投递帧
	Frame []byte
}

// Expired 检查消息在 now 时刻是否已过期
func (m *QueuedMessage) Expired(now time.Time) bool {
	return now.After(m.Deadline)
}
