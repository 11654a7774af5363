package multiselect

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/pion/datachannel"
	"go.uber.org/fx"

	"github.com/dep2p/go-multiselect/internal/core/protocol"
	"github.com/dep2p/go-multiselect/pkg/interfaces"
	"github.com/dep2p/go-multiselect/pkg/lib/log"
	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
	"github.com/dep2p/go-multiselect/pkg/types"
)

var logger = log.Logger("multiselect")

const (
	startTimeout = 15 * time.Second
	stopTimeout  = 10 * time.Second
)

// Service 协议协商服务
type Service struct {
	app *fx.App

	registry   *protocol.Registry
	negotiator *protocol.Negotiator

	closed atomic.Bool
}

var (
	_ interfaces.ProtocolNegotiator    = (*Service)(nil)
	_ interfaces.DataChannelNegotiator = (*Service)(nil)
)

// New 创建并启动协商服务
func New(opts ...Option) (*Service, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	svc := &Service{}
	svc.app = buildFxApp(o, svc)
	if err := svc.app.Err(); err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := svc.app.Start(ctx); err != nil {
		logger.Error("服务启动失败", "error", err)
		return nil, fmt.Errorf("start failed: %w", err)
	}

	logger.Info("协商服务已启动", "protocols", types.ProtocolStrings(svc.registry.Protocols()))
	return svc, nil
}

// Registry 返回协议注册表
func (s *Service) Registry() *protocol.Registry {
	return s.registry
}

// Negotiator 返回协议协商器
func (s *Service) Negotiator() *protocol.Negotiator {
	return s.negotiator
}

// Select 以拨号方身份协商 protocols 中的一个协议
func (s *Service) Select(ctx context.Context, stream io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *multistream.Negotiated, error) {
	if s.closed.Load() {
		return "", nil, ErrClosed
	}
	return s.negotiator.Select(ctx, stream, protocols)
}

// SelectWithPeer 与 Select 相同，优先提议上次与 peer 协商成功的协议
func (s *Service) SelectWithPeer(ctx context.Context, peer string, stream io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *multistream.Negotiated, error) {
	if s.closed.Load() {
		return "", nil, ErrClosed
	}
	return s.negotiator.SelectWithPeer(ctx, peer, stream, protocols)
}

// Handle 以监听方身份协商，不分发处理器
func (s *Service) Handle(ctx context.Context, stream io.ReadWriter) (types.ProtocolID, *multistream.Negotiated, error) {
	if s.closed.Load() {
		return "", nil, ErrClosed
	}
	return s.negotiator.Handle(ctx, stream)
}

// Serve 协商入站流并交给已注册的处理器
func (s *Service) Serve(ctx context.Context, stream io.ReadWriteCloser) error {
	if s.closed.Load() {
		_ = stream.Close()
		return ErrClosed
	}
	return s.negotiator.Serve(ctx, stream)
}

// NegotiateDataChannel 以监听方身份在 WebRTC 数据通道上协商
func (s *Service) NegotiateDataChannel(ctx context.Context, dc datachannel.ReadWriteCloser) (types.ProtocolID, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	return s.negotiator.NegotiateDataChannel(ctx, dc)
}

// SelectDataChannel 以拨号方身份在 WebRTC 数据通道上协商
func (s *Service) SelectDataChannel(ctx context.Context, dc datachannel.ReadWriteCloser, proto types.ProtocolID, fallbacks ...types.ProtocolID) (types.ProtocolID, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	return s.negotiator.SelectDataChannel(ctx, dc, proto, fallbacks...)
}

// Close 停止服务，重复调用返回 nil
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := s.app.Stop(ctx); err != nil {
		return fmt.Errorf("stop failed: %w", err)
	}
	logger.Info("协商服务已关闭")
	return nil
}
