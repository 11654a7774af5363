package multistream

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

const (
	// MaxFrameSize 单帧负载的最大字节数
	//
	// 足以容纳常见的协议列表，同时限制恶意对端可触发的内存分配。
	MaxFrameSize = 4096

	// readBufferSize 协商阶段读缓冲大小
	readBufferSize = 512
)

// flusher 可选的底层刷新接口
type flusher interface {
	Flush() error
}

// MessageIO 在原始字节流上提供长度前缀分帧
//
// 写入的帧先进入自有缓冲区，直到 Flush 才一次性写出；
// 读取通过自有的 bufio.Reader 进行，跨多次底层读取的半帧会被保留。
// 协商结束后缓冲区内多读的字节由 Negotiated 继续交付给应用。
type MessageIO struct {
	rw   io.ReadWriter
	r    *bufio.Reader
	wbuf []byte
}

// NewMessageIO 创建分帧读写器
func NewMessageIO(rw io.ReadWriter) *MessageIO {
	return &MessageIO{
		rw: rw,
		r:  bufio.NewReaderSize(rw, readBufferSize),
	}
}

// WriteMessage 编码消息并追加到写缓冲区，不触发底层写入
func (m *MessageIO) WriteMessage(msg Message) error {
	buf, err := appendFrame(m.wbuf, msg)
	if err != nil {
		return err
	}
	m.wbuf = buf
	return nil
}

// Pending 返回尚未写出的字节数
func (m *MessageIO) Pending() int {
	return len(m.wbuf)
}

// Flush 将缓冲区内所有帧一次写出
func (m *MessageIO) Flush() error {
	if len(m.wbuf) > 0 {
		if _, err := m.rw.Write(m.wbuf); err != nil {
			return ioError(err)
		}
		m.wbuf = m.wbuf[:0]
	}
	if f, ok := m.rw.(flusher); ok {
		if err := f.Flush(); err != nil {
			return ioError(err)
		}
	}
	return nil
}

// ReadMessage 读取并解码一帧
//
// 在帧边界遇到 EOF 视为流已关闭（KindIO），帧内 EOF 视为截断（KindParse）。
// 长度前缀超过 MaxFrameSize 时立即失败，不读取也不分配负载。
func (m *MessageIO) ReadMessage() (Message, error) {
	size, err := varint.ReadUvarint(m.r)
	if err != nil {
		switch {
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, parseError(fmt.Errorf("%w: length prefix: %w", ErrTruncatedFrame, err))
		case errors.Is(err, varint.ErrOverflow), errors.Is(err, varint.ErrNotMinimal):
			return nil, parseError(fmt.Errorf("%w: %w", ErrInvalidLength, err))
		default:
			return nil, ioError(err)
		}
	}
	if size > MaxFrameSize {
		return nil, parseError(fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, MaxFrameSize))
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(m.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, parseError(fmt.Errorf("%w: payload: %w", ErrTruncatedFrame, io.ErrUnexpectedEOF))
		}
		return nil, ioError(err)
	}

	msg, err := Decode(payload)
	if err != nil {
		return nil, parseError(err)
	}
	return msg, nil
}

// appendFrame 将带长度前缀的消息追加到 dst
func appendFrame(dst []byte, msg Message) ([]byte, error) {
	payload, err := Encode(msg)
	if err != nil {
		return dst, parseError(err)
	}
	if len(payload) > MaxFrameSize {
		return dst, parseError(fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), MaxFrameSize))
	}
	dst = appendUvarint(dst, uint64(len(payload)))
	return append(dst, payload...), nil
}
