// Package interfaces 定义 go-asap 的公共接口
//
// 每个子包一个接口面：
//   - link:     点对点链路（就绪状态、发送、事件流），由传输实现
//   - delivery: 投递服务（Send / SetHandler / Pending）与入站处理器
//
// # 依赖方向
//
//	delivery → types
//	link     （无依赖）
//
// 本包仅包含纯接口定义，数据结构定义在 pkg/types 包中。
package interfaces
