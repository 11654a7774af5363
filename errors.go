package multiselect

import "errors"

// 公共错误定义
var (
	// ErrClosed 服务已关闭
	ErrClosed = errors.New("service closed")

	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("nil config")

	// ErrNilHandler 协议处理器为空
	ErrNilHandler = errors.New("nil protocol handler")
)
