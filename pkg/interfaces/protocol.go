package interfaces

import (
	"context"
	"io"

	"github.com/pion/datachannel"

	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
	"github.com/dep2p/go-multiselect/pkg/types"
)

// StreamHandler 协商完成后的流处理器，处理器负责关闭流
type StreamHandler func(stream *multistream.Negotiated)

// ProtocolRegistry 定义协议注册表接口
//
// 注册表同时作为监听方的协议集合参与协商。
type ProtocolRegistry interface {
	multistream.ProtocolSet

	// Register 注册协议处理器
	Register(protocolID types.ProtocolID, handler StreamHandler) error

	// Unregister 注销协议处理器
	Unregister(protocolID types.ProtocolID) error

	// Handler 获取协议处理器
	Handler(protocolID types.ProtocolID) (StreamHandler, bool)
}

// ProtocolNegotiator 定义协议协商器接口
type ProtocolNegotiator interface {
	// Select 以拨号方身份协商
	Select(ctx context.Context, stream io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *multistream.Negotiated, error)

	// SelectWithPeer 优先提议上次与该节点协商成功的协议
	SelectWithPeer(ctx context.Context, peer string, stream io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *multistream.Negotiated, error)

	// Handle 处理入站协议协商
	Handle(ctx context.Context, stream io.ReadWriter) (types.ProtocolID, *multistream.Negotiated, error)

	// Serve 协商入站流并交给协议处理器
	Serve(ctx context.Context, stream io.ReadWriteCloser) error
}

// DataChannelNegotiator 定义 WebRTC 数据通道协商接口
type DataChannelNegotiator interface {
	// NegotiateDataChannel 以监听方身份协商
	NegotiateDataChannel(ctx context.Context, dc datachannel.ReadWriteCloser) (types.ProtocolID, error)

	// SelectDataChannel 以拨号方身份协商
	SelectDataChannel(ctx context.Context, dc datachannel.ReadWriteCloser, protocol types.ProtocolID, fallbacks ...types.ProtocolID) (types.ProtocolID, error)
}
