// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - multistream: multistream-select 协商引擎（帧编解码、拨号方、监听方、WebRTC 单消息握手）
//   - log: 日志封装
//
// # 与 pkg/ 其他目录的关系
//
//   - interfaces/: 组件公共接口
//   - types/: 公共类型定义
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-multiselect/pkg/lib/log"
//	    "github.com/dep2p/go-multiselect/pkg/lib/multistream"
//	)
package lib
