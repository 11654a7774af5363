package multistream

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-multiselect/pkg/types"
)

const (
	// ProtocolID multistream-select 1.0.0 协议标识（头部内容）
	ProtocolID = "/multistream/1.0.0"

	// ProtocolNA 不支持该协议
	ProtocolNA types.ProtocolID = "na"

	// ProtocolLS 请求对方列出支持的协议
	ProtocolLS types.ProtocolID = "ls"

	// MaxProtocols 单条 Protocols 消息允许的最大条目数
	MaxProtocols = 1000

	headerPrefix = "/multistream/"
)

// msgHeaderV1 头部消息的完整负载
var msgHeaderV1 = []byte(ProtocolID + "\n")

// HeaderLine multistream 头部
type HeaderLine int

const (
	// HeaderV1 /multistream/1.0.0
	HeaderV1 HeaderLine = iota
)

// String 返回头部文本（不含换行）
func (h HeaderLine) String() string {
	return ProtocolID
}

// Message 线路消息，仅有 Header、Protocol、Protocols 三种
type Message interface {
	isMessage()
}

// Header 头部消息
type Header struct {
	Line HeaderLine
}

// Protocol 单个协议提议 / 确认，也用于承载 na 与 ls
type Protocol struct {
	ID types.ProtocolID
}

// Protocols 监听方对 ls 的应答
type Protocols struct {
	IDs []types.ProtocolID
}

func (Header) isMessage()    {}
func (Protocol) isMessage()  {}
func (Protocols) isMessage() {}

// IsNA 是否为 na
func (p Protocol) IsNA() bool { return p.ID == ProtocolNA }

// IsLS 是否为 ls
func (p Protocol) IsLS() bool { return p.ID == ProtocolLS }

// ValidateProtocol 校验协议名
//
// 协议名必须以 '/' 开头且不含换行；na 与 ls 作为保留值同样合法。
// 真实协议恰好叫 "na" 或 "ls" 时无法与控制值区分，这是线路格式固有的歧义。
func ValidateProtocol(p types.ProtocolID) error {
	if p == ProtocolNA || p == ProtocolLS {
		return nil
	}
	s := string(p)
	if !strings.HasPrefix(s, "/") {
		return fmt.Errorf("%w: %q must start with '/'", ErrInvalidProtocol, s)
	}
	if strings.HasPrefix(s, headerPrefix) {
		return fmt.Errorf("%w: %q uses the reserved header prefix", ErrInvalidProtocol, s)
	}
	if strings.IndexByte(s, '\n') >= 0 {
		return fmt.Errorf("%w: %q contains a newline", ErrInvalidProtocol, s)
	}
	if len(s)+1 > MaxFrameSize {
		return fmt.Errorf("%w: %q is too long", ErrInvalidProtocol, s)
	}
	return nil
}

// Encode 编码消息负载（不含外层长度前缀）
func Encode(msg Message) ([]byte, error) {
	return AppendMessage(nil, msg)
}

// AppendMessage 将消息负载追加到 dst
func AppendMessage(dst []byte, msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case Header:
		return append(dst, msgHeaderV1...), nil

	case Protocol:
		if err := ValidateProtocol(m.ID); err != nil {
			return dst, err
		}
		dst = append(dst, m.ID...)
		return append(dst, '\n'), nil

	case Protocols:
		if len(m.IDs) > MaxProtocols {
			return dst, ErrTooManyProtocols
		}
		dst = appendUvarint(dst, uint64(len(m.IDs)))
		for _, id := range m.IDs {
			if err := ValidateProtocol(id); err != nil {
				return dst, err
			}
			dst = appendUvarint(dst, uint64(len(id)+1))
			dst = append(dst, id...)
			dst = append(dst, '\n')
		}
		return dst, nil

	default:
		return dst, fmt.Errorf("multistream: unknown message type %T", msg)
	}
}

// Decode 解码消息负载
func Decode(buf []byte) (Message, error) {
	if bytes.Equal(buf, msgHeaderV1) {
		return Header{Line: HeaderV1}, nil
	}

	if len(buf) > 0 && (buf[0] == '/' || isSentinel(buf)) {
		nl := bytes.IndexByte(buf, '\n')
		switch {
		case nl < 0:
			return nil, ErrMissingNewline
		case nl == len(buf)-1:
			body := buf[:nl]
			if bytes.HasPrefix(body, []byte(headerPrefix)) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, body)
			}
			return Protocol{ID: types.ProtocolID(body)}, nil
		}
		// 多行且以 '/' 开头：计数恰好为 0x2f 的协议列表
	}

	return decodeProtocols(buf)
}

// isSentinel 判断负载是否为 na / ls（可能缺少换行）
func isSentinel(buf []byte) bool {
	body := bytes.TrimSuffix(buf, []byte{'\n'})
	return string(body) == string(ProtocolNA) || string(body) == string(ProtocolLS)
}

func decodeProtocols(buf []byte) (Message, error) {
	count, n, err := varint.FromUvarint(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: list count: %v", ErrInvalidLength, err)
	}
	if count > MaxProtocols {
		return nil, ErrTooManyProtocols
	}
	rest := buf[n:]

	ids := make([]types.ProtocolID, 0, count)
	for len(rest) > 0 {
		if uint64(len(ids)) == count {
			return nil, fmt.Errorf("%w: declared %d, found trailing data", ErrCountMismatch, count)
		}
		size, n, err := varint.FromUvarint(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: entry length: %v", ErrInvalidLength, err)
		}
		rest = rest[n:]
		if size == 0 || size > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: entry declares %d bytes, %d available", ErrInvalidLength, size, len(rest))
		}
		line := rest[:size]
		if line[size-1] != '\n' {
			return nil, ErrMissingNewline
		}
		id := types.ProtocolID(line[:size-1])
		if err := ValidateProtocol(id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
		rest = rest[size:]
	}
	if uint64(len(ids)) != count {
		return nil, fmt.Errorf("%w: declared %d, found %d", ErrCountMismatch, count, len(ids))
	}
	if len(ids) == 0 {
		return Protocols{}, nil
	}
	return Protocols{IDs: ids}, nil
}

func appendUvarint(dst []byte, x uint64) []byte {
	return append(dst, varint.ToUvarint(x)...)
}
