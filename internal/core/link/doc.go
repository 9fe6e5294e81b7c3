// Package link 收纳 pkg/interfaces/link 的具体实现
//
//   - mem:       进程内链路对，用于测试与演示，可注入断开和发送失败
//   - websocket: 基于 gorilla/websocket 的链路，拨号端自动重拨，监听端接受单个对端
//
// 两种实现都只负责连接与事件，投递语义由 protocol/asap 负责。
package link
