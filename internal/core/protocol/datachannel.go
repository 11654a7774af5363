package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/datachannel"

	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
	"github.com/dep2p/go-multiselect/pkg/types"
)

// dataChannelBufferSize 单条数据通道消息的读缓冲
//
// 一条协商消息包含头部与若干提议，每帧不超过 MaxFrameSize。
const dataChannelBufferSize = 4 * multistream.MaxFrameSize

// NegotiateDataChannel 以监听方身份在 WebRTC 数据通道上协商
//
// 读取拨号方的一条提议消息，按注册表选择协议并发回一条应答消息。
// 没有受支持的协议时仍发回 na 应答，并返回协议耗尽错误。
func (n *Negotiator) NegotiateDataChannel(ctx context.Context, dc datachannel.ReadWriteCloser) (types.ProtocolID, error) {
	start := time.Now()
	proto, _, err := n.bound(ctx, dc, func() (types.ProtocolID, *multistream.Negotiated, error) {
		payload, err := readDataChannel(dc)
		if err != nil {
			return "", nil, err
		}

		res, err := multistream.WebRTCListenerNegotiate(payload, n.registry)
		if err != nil {
			return "", nil, err
		}
		if _, err := dc.WriteDataChannel(res.Response, false); err != nil {
			return "", nil, &multistream.NegotiationError{Kind: multistream.KindIO, Err: err}
		}
		if !res.Accepted {
			return "", nil, &multistream.NegotiationError{
				Kind: multistream.KindExhausted,
				Err:  multistream.ErrProtocolsExhausted,
			}
		}
		return res.Protocol, nil, nil
	})
	n.metrics.observe(RoleDataListen, start, err)

	if err != nil {
		logger.Debug("数据通道协商失败", "err", err)
		return "", err
	}
	logger.Debug("数据通道接受协议", "protocol", string(proto))
	return proto, nil
}

// SelectDataChannel 以拨号方身份在 WebRTC 数据通道上协商
//
// 主协议与备选协议在一条消息中提议，随后读取应答直到握手完成。
func (n *Negotiator) SelectDataChannel(ctx context.Context, dc datachannel.ReadWriteCloser, protocol types.ProtocolID, fallbacks ...types.ProtocolID) (types.ProtocolID, error) {
	start := time.Now()
	proto, _, err := n.bound(ctx, dc, func() (types.ProtocolID, *multistream.Negotiated, error) {
		dialer, proposal, err := multistream.ProposeWebRTC(protocol, fallbacks...)
		if err != nil {
			return "", nil, err
		}
		if _, err := dc.WriteDataChannel(proposal, false); err != nil {
			return "", nil, &multistream.NegotiationError{Kind: multistream.KindIO, Err: err}
		}

		for {
			payload, err := readDataChannel(dc)
			if err != nil {
				return "", nil, err
			}
			proto, ready, err := dialer.RegisterResponse(payload)
			if err != nil {
				return "", nil, err
			}
			if ready {
				return proto, nil, nil
			}
		}
	})
	n.metrics.observe(RoleDataDialer, start, err)

	if err != nil {
		logger.Debug("数据通道协商失败", "protocol", string(protocol), "err", err)
		return "", err
	}
	return proto, nil
}

// readDataChannel 读取一条完整的数据通道消息
func readDataChannel(dc datachannel.Reader) ([]byte, error) {
	buf := make([]byte, dataChannelBufferSize)
	n, isString, err := dc.ReadDataChannel(buf)
	if err != nil {
		return nil, &multistream.NegotiationError{Kind: multistream.KindIO, Err: err}
	}
	if isString {
		return nil, &multistream.NegotiationError{
			Kind: multistream.KindParse,
			Err:  fmt.Errorf("%w: text message on negotiation channel", multistream.ErrInvalidMessage),
		}
	}
	return buf[:n], nil
}
