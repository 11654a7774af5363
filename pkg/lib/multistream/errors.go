package multistream

import (
	"errors"
	"fmt"
)

// ErrorKind 协商错误分类
type ErrorKind int

const (
	// KindParse 帧或消息格式错误
	KindParse ErrorKind = iota
	// KindExhausted 所有候选协议均被拒绝
	KindExhausted
	// KindStateMismatch 当前状态下收到了错误类型的消息
	KindStateMismatch
	// KindIO 底层流读写失败或提前关闭
	KindIO
	// KindLazyRejected 乐观（0-RTT）协商的协议被远端拒绝
	KindLazyRejected
)

// String 返回错误分类名称
func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindExhausted:
		return "exhausted"
	case KindStateMismatch:
		return "state-mismatch"
	case KindIO:
		return "io"
	case KindLazyRejected:
		return "lazy-rejected"
	default:
		return "unknown"
	}
}

// 分类哨兵错误，用于 errors.Is 判断 NegotiationError 的类别
var (
	ErrParse              = errors.New("multistream: malformed message")
	ErrProtocolsExhausted = errors.New("multistream: no protocol could be agreed")
	ErrStateMismatch      = errors.New("multistream: unexpected message")
	ErrStreamIO           = errors.New("multistream: stream i/o failure")
	ErrLazyRejected       = errors.New("multistream: optimistic protocol rejected by remote")
)

// 具体原因
var (
	// ErrMissingNewline 消息缺少结尾换行符
	ErrMissingNewline = errors.New("multistream: missing trailing newline")

	// ErrInvalidHeader 头部不是 /multistream/1.0.0
	ErrInvalidHeader = errors.New("multistream: unsupported header line")

	// ErrCountMismatch 协议列表声明的数量与实际条目不符
	ErrCountMismatch = errors.New("multistream: protocol list count mismatch")

	// ErrInvalidLength 长度字段与可用字节不一致
	ErrInvalidLength = errors.New("multistream: inconsistent length field")

	// ErrInvalidProtocol 协议名非法
	ErrInvalidProtocol = errors.New("multistream: invalid protocol name")

	// ErrTooManyProtocols 协议列表条目过多
	ErrTooManyProtocols = errors.New("multistream: too many protocols")

	// ErrFrameTooLarge 长度前缀超过 MaxFrameSize
	ErrFrameTooLarge = errors.New("multistream: frame exceeds maximum size")

	// ErrTruncatedFrame 帧不完整
	ErrTruncatedFrame = errors.New("multistream: truncated frame")

	// ErrInvalidMessage 收到与当前状态不符的消息
	ErrInvalidMessage = errors.New("multistream: invalid message for current state")

	// ErrNoProtocols 候选协议列表为空
	ErrNoProtocols = errors.New("multistream: no protocols to propose")
)

// NegotiationError 协商失败的最终结果
//
// Kind 区分错误类别，Err 为具体原因（解析错误或底层 I/O 错误）。
type NegotiationError struct {
	Kind ErrorKind
	Err  error
}

// Error 实现 error 接口
func (e *NegotiationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("multistream: negotiation failed (%s)", e.Kind)
	}
	return fmt.Sprintf("multistream: negotiation failed (%s): %v", e.Kind, e.Err)
}

// Unwrap 返回具体原因
func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// Is 使分类哨兵错误可被 errors.Is 匹配
func (e *NegotiationError) Is(target error) bool {
	switch target {
	case ErrParse:
		return e.Kind == KindParse
	case ErrProtocolsExhausted:
		return e.Kind == KindExhausted
	case ErrStateMismatch:
		return e.Kind == KindStateMismatch
	case ErrStreamIO:
		return e.Kind == KindIO
	case ErrLazyRejected:
		return e.Kind == KindLazyRejected
	}
	return false
}

func parseError(err error) error {
	return &NegotiationError{Kind: KindParse, Err: err}
}

func ioError(err error) error {
	return &NegotiationError{Kind: KindIO, Err: err}
}

func exhaustedError() error {
	return &NegotiationError{Kind: KindExhausted, Err: ErrProtocolsExhausted}
}

func stateError(format string, args ...any) error {
	return &NegotiationError{
		Kind: KindStateMismatch,
		Err:  fmt.Errorf("%w: "+format, append([]any{ErrInvalidMessage}, args...)...),
	}
}
