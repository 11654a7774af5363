package multistream

import (
	"errors"
	"fmt"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-multiselect/pkg/types"
)

// HeaderProtocol 头部在协议列表中的表示
const HeaderProtocol types.ProtocolID = ProtocolID

// DrainTrailingProtocols 解析 buf 中首尾相接的全部长度前缀消息
//
// Header 输出为 HeaderProtocol，Protocol 输出其协议名，Protocols 在此位置非法。
// 声明长度超出剩余字节时返回截断错误，不返回部分结果。
func DrainTrailingProtocols(buf []byte) ([]types.ProtocolID, error) {
	msgs, err := splitFrames(buf)
	if err != nil {
		return nil, err
	}

	protocols := make([]types.ProtocolID, 0, len(msgs))
	for _, msg := range msgs {
		switch m := msg.(type) {
		case Header:
			protocols = append(protocols, HeaderProtocol)
		case Protocol:
			protocols = append(protocols, m.ID)
		case Protocols:
			return nil, parseError(fmt.Errorf("%w: protocol list in trailing position", ErrInvalidMessage))
		}
	}
	return protocols, nil
}

// splitFrames 将 buf 拆分并解码为消息序列
func splitFrames(buf []byte) ([]Message, error) {
	var msgs []Message
	for len(buf) > 0 {
		size, n, err := varint.FromUvarint(buf)
		if err != nil {
			if errors.Is(err, varint.ErrUnderflow) {
				return nil, parseError(fmt.Errorf("%w: length prefix", ErrTruncatedFrame))
			}
			return nil, parseError(fmt.Errorf("%w: %w", ErrInvalidLength, err))
		}
		buf = buf[n:]
		if size > MaxFrameSize {
			return nil, parseError(fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, MaxFrameSize))
		}
		if size > uint64(len(buf)) {
			return nil, parseError(fmt.Errorf("%w: declared %d bytes, %d remaining", ErrTruncatedFrame, size, len(buf)))
		}

		msg, err := Decode(buf[:size])
		if err != nil {
			return nil, parseError(err)
		}
		msgs = append(msgs, msg)
		buf = buf[size:]
	}
	return msgs, nil
}
