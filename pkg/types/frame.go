package types

import (
	"fmt"
	"time"
)

// ============================================================================
//                              FrameType - 帧类型
// ============================================================================

// FrameType 链路帧类型
type FrameType int

const (
	// FrameUnknown 未知帧
	FrameUnknown FrameType = iota
	// FrameMessage 投递帧，携带完整的 QueuedMessage
	FrameMessage
	// FrameReceipt 回执帧，只携带 ID
	FrameReceipt
)

// 帧类型的线上名称
const (
	FrameTypeMessageName = "message"
	FrameTypeReceiptName = "receipt"
)

// String 返回帧类型的线上名称
func (t FrameType) String() string {
	switch t {
	case FrameMessage:
		return FrameTypeMessageName
	case FrameReceipt:
		return FrameTypeReceiptName
	default:
		return "unknown"
	}
}

// ParseFrameType 解析帧类型名称
func ParseFrameType(name string) (FrameType, error) {
	switch name {
	case FrameTypeMessageName:
		return FrameMessage, nil
	case FrameTypeReceiptName:
		return FrameReceipt, nil
	default:
		return FrameUnknown, fmt.Errorf("%w: %q", ErrUnknownFrameType, name)
	}
}

// ============================================================================
//                              Frame - 链路帧
// ============================================================================

// Frame 在链路上传输的逻辑帧
//
// 投递帧（FrameMessage）携带 ID、Deadline、MessageKey、Payload；
// 回执帧（FrameReceipt）只携带 ID，其余字段为零值。
type Frame struct {
	// Type 帧类型
	Type FrameType

	// ID 消息 ID，用于回执关联
	ID string

	// Deadline 消息截止时间（仅投递帧）
	Deadline time.Time

	// MessageKey 消息键（仅投递帧）
	MessageKey string

	// Payload 应用负载（仅投递帧）
	Payload any
}

// NewMessageFrame 从队列条目构造投递帧
func NewMessageFrame(msg *QueuedMessage) *Frame {
	return &Frame{
		Type:       FrameMessage,
		ID:         msg.ID,
		Deadline:   msg.Deadline,
		MessageKey: msg.MessageKey,
		Payload:    msg.Payload,
	}
}

// NewReceiptFrame 构造回执帧
func NewReceiptFrame(id string) *Frame {
	return &Frame{
		Type: FrameReceipt,
		ID:   id,
	}
}

// Validate 检查帧的必填字段
func (f *Frame) Validate() error {
	if f == nil {
		return ErrNilFrame
	}
	switch f.Type {
	case FrameMessage:
		if f.ID == "" {
			return fmt.Errorf("%w: message frame without id", ErrInvalidFrame)
		}
		if f.MessageKey == "" {
			return fmt.Errorf("%w: message frame without key", ErrInvalidFrame)
		}
	case FrameReceipt:
		if f.ID == "" {
			return fmt.Errorf("%w: receipt frame without id", ErrInvalidFrame)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFrameType, int(f.Type))
	}
	return nil
}
