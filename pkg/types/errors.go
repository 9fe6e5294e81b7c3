package types

import "errors"

// 帧相关错误
var (
	// ErrNilFrame 帧为 nil
	ErrNilFrame = errors.New("types: frame is nil")

	// ErrInvalidFrame 帧缺少必填字段
	ErrInvalidFrame = errors.New("types: invalid frame")

	// ErrUnknownFrameType 未知的帧类型
	ErrUnknownFrameType = errors.New("types: unknown frame type")
)
