// Package asap 提供单飞可靠投递
//
// 两个端点通过一条不可靠、间歇可用的点对点链路相连，asap 保证：
//
//   - 同一个键只投递最新的消息，旧消息在发送前被替换
//   - 任意时刻最多一条消息在途，等待对端回执后才推进
//   - 超过截止时间的消息直接丢弃，不阻塞后续消息
//   - 链路断开或发送失败时按固定间隔重试，无需调用方介入
//
// # 快速开始
//
//	// l 是任意 link.Link 实现，例如 WebSocket 链路
//	var l link.Link = newLink()
//
//	ep, err := asap.Start(ctx, l, asap.WithCodec("json"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ep.Close()
//
//	ep.SetHandlerFunc(func(key string, payload any) error {
//	    fmt.Println(key, payload)
//	    return nil
//	})
//	_ = ep.Send("alarm", map[string]any{"t": 1})
//
// # 错误语义
//
// Send 只在参数无效或端点已关闭时返回错误。投递过程中的失败
// （链路不可用、发送失败、过期、处理器失败）只记录日志和指标。
//
// # 文件组织
//
//   - asap.go:     版本信息
//   - endpoint.go: Endpoint 用户入口
//   - options.go:  配置选项
//   - fx.go:       Fx 模块组装
//   - errors.go:   公共错误
package asap
