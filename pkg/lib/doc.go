// Package lib 包含基础设施工具库
//
// 本目录包含与投递语义无关的通用工具库：
//
//   - log: 公共包使用的组件日志
package lib
