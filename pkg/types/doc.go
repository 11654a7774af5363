// Package types 定义跨包共享的基础类型
//
// 本包是最底层的包，不依赖模块内其他包。
package types
