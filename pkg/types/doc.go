// Package types 定义 go-asap 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 职能
//
// pkg/types 定义 **Go 内部数据结构**：
//   - 队列条目（QueuedMessage）
//   - 链路帧（Frame：投递帧 / 回执帧）
//
// 帧的线格式由 internal/core/codec 决定（json / proto / cbor），
// 本包只描述帧的逻辑形状。
//
// # 文件组织
//
//   - frame.go   - FrameType, Frame
//   - message.go - QueuedMessage
package types
