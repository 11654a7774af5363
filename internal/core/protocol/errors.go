package protocol

import "errors"

// 协议模块错误定义
var (
	// ErrProtocolNotRegistered 协议未注册
	ErrProtocolNotRegistered = errors.New("protocol: protocol not registered")

	// ErrDuplicateProtocol 协议已注册
	ErrDuplicateProtocol = errors.New("protocol: protocol already registered")

	// ErrInvalidProtocolID 无效的协议 ID
	ErrInvalidProtocolID = errors.New("protocol: invalid protocol ID")

	// ErrNegotiationTimeout 协商超时或被取消
	ErrNegotiationTimeout = errors.New("protocol: negotiation timed out")

	// ErrNoHandler 没有处理器
	ErrNoHandler = errors.New("protocol: no handler for protocol")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("protocol: invalid config")
)
