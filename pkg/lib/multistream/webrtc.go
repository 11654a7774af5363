package multistream

import (
	"fmt"

	"github.com/dep2p/go-multiselect/pkg/types"
)

// WebRTC 数据通道按消息交付，协商帧总是完整地出现在同一个负载中，
// 因此这一路径不经过 MessageIO，而是直接在单个缓冲区上拆帧。

// EncodeWebRTCMessage 编码头部以及 msgs，每条消息都带长度前缀
func EncodeWebRTCMessage(msgs ...Message) ([]byte, error) {
	buf, err := appendFrame(nil, Header{Line: HeaderV1})
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		if buf, err = appendFrame(buf, msg); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// WebRTCListenResult 监听方处理一次数据通道负载的结果
type WebRTCListenResult struct {
	// Accepted 是否接受了某个提议
	Accepted bool

	// Protocol 接受的协议，未接受时为空
	Protocol types.ProtocolID

	// Response 需要发回给拨号方的负载（头部 + 回显，或头部 + na）
	Response []byte
}

// WebRTCListenerNegotiate 处理拨号方在一个负载中发送的头部与提议
//
// 第一条消息必须是头部，随后的提议按顺序与 supported 匹配，接受第一个受支持的协议。
// 没有受支持的协议时返回 Accepted 为 false 的结果，Response 为 na 应答。
func WebRTCListenerNegotiate(payload []byte, supported ProtocolSet) (*WebRTCListenResult, error) {
	protocols, err := DrainTrailingProtocols(payload)
	if err != nil {
		return nil, err
	}
	if len(protocols) == 0 || protocols[0] != HeaderProtocol {
		return nil, parseError(fmt.Errorf("%w: payload does not start with header", ErrInvalidHeader))
	}

	for _, p := range protocols[1:] {
		if p == HeaderProtocol || p == ProtocolNA || p == ProtocolLS {
			continue
		}
		if supported.Supports(p) {
			resp, err := EncodeWebRTCMessage(Protocol{ID: p})
			if err != nil {
				return nil, err
			}
			log.Debug("WebRTC 监听方接受协议", "protocol", string(p))
			return &WebRTCListenResult{Accepted: true, Protocol: p, Response: resp}, nil
		}
	}

	resp, err := EncodeWebRTCMessage(Protocol{ID: ProtocolNA})
	if err != nil {
		return nil, err
	}
	log.Debug("WebRTC 监听方拒绝全部提议", "proposed", protocols[1:])
	return &WebRTCListenResult{Response: resp}, nil
}

// webrtcDialerState WebRTC 拨号方握手状态
type webrtcDialerState int

const (
	webrtcWaitingResponse webrtcDialerState = iota
	webrtcWaitingProtocol
)

// WebRTCDialer WebRTC 拨号方握手
//
// 主协议与备选协议在一个负载中一次性提议，随后通过 RegisterResponse 处理应答。
type WebRTCDialer struct {
	protocol  types.ProtocolID
	fallbacks []types.ProtocolID
	state     webrtcDialerState
}

// ProposeWebRTC 创建拨号方握手并返回需要发送的提议负载
func ProposeWebRTC(protocol types.ProtocolID, fallbacks ...types.ProtocolID) (*WebRTCDialer, []byte, error) {
	msgs := make([]Message, 0, 1+len(fallbacks))
	for _, p := range append([]types.ProtocolID{protocol}, fallbacks...) {
		if err := ValidateProtocol(p); err != nil {
			return nil, nil, parseError(err)
		}
		msgs = append(msgs, Protocol{ID: p})
	}
	payload, err := EncodeWebRTCMessage(msgs...)
	if err != nil {
		return nil, nil, err
	}
	return &WebRTCDialer{
		protocol:  protocol,
		fallbacks: fallbacks,
		state:     webrtcWaitingResponse,
	}, payload, nil
}

// RegisterResponse 处理监听方的应答负载
//
// 只收到头部时返回 ready 为 false，需要等待下一个负载；
// 收到主协议或任一备选协议的回显时返回该协议。
func (d *WebRTCDialer) RegisterResponse(payload []byte) (protocol types.ProtocolID, ready bool, err error) {
	msgs, err := splitFrames(payload)
	if err != nil {
		return "", false, err
	}

	var protocols []types.ProtocolID
	for i, msg := range msgs {
		switch m := msg.(type) {
		case Header:
			protocols = append(protocols, HeaderProtocol)
		case Protocol:
			if m.IsLS() {
				return "", false, stateError("unexpected ls")
			}
			if m.IsNA() && d.state == webrtcWaitingResponse && i == 0 {
				return "", false, stateError("na before header")
			}
			protocols = append(protocols, m.ID)
		case Protocols:
			if i != 0 {
				return "", false, parseError(fmt.Errorf("%w: protocol list in trailing position", ErrInvalidMessage))
			}
			protocols = append(protocols, m.IDs...)
		}
	}

	for _, p := range protocols {
		switch d.state {
		case webrtcWaitingResponse:
			if p != HeaderProtocol {
				return "", false, exhaustedError()
			}
			d.state = webrtcWaitingProtocol

		case webrtcWaitingProtocol:
			if p == HeaderProtocol {
				return "", false, stateError("duplicate header")
			}
			if p == d.protocol {
				return d.protocol, true, nil
			}
			for _, fallback := range d.fallbacks {
				if p == fallback {
					return fallback, true, nil
				}
			}
			return "", false, exhaustedError()
		}
	}

	if d.state == webrtcWaitingResponse {
		return "", false, stateError("empty response")
	}
	return "", false, nil
}
