// Package interfaces 定义 multiselect 的公共接口
//
// 一个接口文件对应一个实现目录：
//   - protocol.go       - 协议注册与协商（internal/core/protocol）
//
// 接口只依赖 pkg/types 与 pkg/lib/multistream，实现位于 internal/。
package interfaces
