package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	"github.com/dep2p/go-multiselect/pkg/interfaces"
	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
	"github.com/dep2p/go-multiselect/pkg/types"
)

// deadliner 支持截止时间的流（net.Conn 等）
type deadliner interface {
	SetDeadline(t time.Time) error
}

// pastDeadline 用于立即中断阻塞中的读写
var pastDeadline = time.Unix(1, 0)

// Negotiator 协议协商器
//
// 在 multistream 引擎外围提供超时与取消、节点协议偏好缓存以及指标。
type Negotiator struct {
	cfg      Config
	registry *Registry
	metrics  *Metrics

	// 节点 -> 上次协商成功的协议
	peers *lru.Cache[string, types.ProtocolID]
}

var (
	_ interfaces.ProtocolNegotiator    = (*Negotiator)(nil)
	_ interfaces.DataChannelNegotiator = (*Negotiator)(nil)
)

// NewNegotiator 创建协商器
func NewNegotiator(cfg Config, registry *Registry, metrics *Metrics) (*Negotiator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}

	n := &Negotiator{
		cfg:      cfg,
		registry: registry,
		metrics:  metrics,
	}
	if cfg.PeerCacheSize > 0 {
		cache, err := lru.New[string, types.ProtocolID](cfg.PeerCacheSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		n.peers = cache
	}
	return n, nil
}

// Registry 返回监听方使用的协议注册表
func (n *Negotiator) Registry() *Registry {
	return n.registry
}

// ============================================================================
//                              拨号方
// ============================================================================

// Select 以拨号方身份协商 protocols 中的一个协议
//
// 超时取 ctx 截止时间与配置超时中较早者。流实现 SetDeadline 时通过截止时间中断阻塞，
// 否则在取消时关闭流（如果可关闭）。协商失败时流由调用方关闭。
func (n *Negotiator) Select(ctx context.Context, stream io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *multistream.Negotiated, error) {
	start := time.Now()
	proto, ns, err := n.bound(ctx, stream, func() (types.ProtocolID, *multistream.Negotiated, error) {
		if n.cfg.UseListRequest {
			return multistream.DialerSelectLS(stream, protocols)
		}
		version := multistream.V1
		if n.cfg.LazyDial {
			version = multistream.V1Lazy
		}
		return multistream.DialerSelect(stream, protocols, version)
	})
	n.metrics.observe(RoleDialer, start, err)

	if err != nil {
		logger.Debug("协议协商失败", "protocols", types.ProtocolStrings(protocols), "err", err)
		return "", nil, err
	}
	logger.Debug("协议协商成功", "protocol", string(proto), "confirmed", ns.IsConfirmed())
	return proto, ns, nil
}

// SelectWithPeer 与 Select 相同，但优先提议上次与该节点协商成功的协议
func (n *Negotiator) SelectWithPeer(ctx context.Context, peer string, stream io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *multistream.Negotiated, error) {
	ordered := protocols
	preferred, cached := n.PreferredProtocol(peer)
	if cached {
		ordered = preferFirst(protocols, preferred)
	}

	proto, ns, err := n.Select(ctx, stream, ordered)
	if err != nil {
		if cached {
			n.ForgetPeer(peer)
		}
		return "", nil, err
	}

	// 乐观协商尚未确认，远端可能在 Read 时才拒绝
	if n.peers != nil && ns.IsConfirmed() {
		n.peers.Add(peer, proto)
	}
	return proto, ns, nil
}

// PreferredProtocol 返回缓存的节点协议偏好
func (n *Negotiator) PreferredProtocol(peer string) (types.ProtocolID, bool) {
	if n.peers == nil {
		return "", false
	}
	return n.peers.Get(peer)
}

// ForgetPeer 清除节点的协议偏好
func (n *Negotiator) ForgetPeer(peer string) {
	if n.peers != nil {
		n.peers.Remove(peer)
	}
}

// ClearCache 清空节点协议偏好
func (n *Negotiator) ClearCache() {
	if n.peers != nil {
		n.peers.Purge()
	}
}

// preferFirst 将 preferred 移到列表最前，preferred 不在列表中时原样返回
func preferFirst(protocols []types.ProtocolID, preferred types.ProtocolID) []types.ProtocolID {
	idx := -1
	for i, p := range protocols {
		if p == preferred {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return protocols
	}

	ordered := make([]types.ProtocolID, 0, len(protocols))
	ordered = append(ordered, preferred)
	ordered = append(ordered, protocols[:idx]...)
	return append(ordered, protocols[idx+1:]...)
}

// ============================================================================
//                              监听方
// ============================================================================

// Handle 以监听方身份针对注册表协商协议
func (n *Negotiator) Handle(ctx context.Context, stream io.ReadWriter) (types.ProtocolID, *multistream.Negotiated, error) {
	start := time.Now()
	proto, ns, err := n.bound(ctx, stream, func() (types.ProtocolID, *multistream.Negotiated, error) {
		return multistream.ListenerNegotiate(stream, n.registry)
	})
	n.metrics.observe(RoleListener, start, err)

	if err != nil {
		logger.Debug("入站协商失败", "err", err)
		return "", nil, err
	}
	logger.Debug("接受入站协议", "protocol", string(proto))
	return proto, ns, nil
}

// Serve 协商入站流并交给协议处理器
//
// 协商失败或协议没有处理器时关闭流；否则流的所有权转交给处理器。
func (n *Negotiator) Serve(ctx context.Context, stream io.ReadWriteCloser) error {
	proto, ns, err := n.Handle(ctx, stream)
	if err != nil {
		return multierr.Append(err, stream.Close())
	}

	handler, ok := n.registry.Handler(proto)
	if !ok || handler == nil {
		logger.Warn("协议没有处理器", "protocol", string(proto))
		return multierr.Append(fmt.Errorf("%w: %s", ErrNoHandler, proto), ns.Close())
	}

	handler(ns)
	return nil
}

// ============================================================================
//                              超时与取消
// ============================================================================

// bound 在 ctx 与配置超时的约束下执行一次协商
func (n *Negotiator) bound(ctx context.Context, stream any, negotiate func() (types.ProtocolID, *multistream.Negotiated, error)) (types.ProtocolID, *multistream.Negotiated, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.NegotiationTimeout)
	defer cancel()

	if ctx.Err() != nil {
		return "", nil, timeoutError(ctx, nil)
	}

	release := bindContext(ctx, stream)
	proto, ns, err := negotiate()
	interrupted := release()

	if err != nil {
		if expired(ctx) {
			return "", nil, timeoutError(ctx, err)
		}
		return "", nil, err
	}
	if interrupted {
		// 取消与协商完成同时发生，流已被关闭
		return "", nil, timeoutError(ctx, nil)
	}
	return proto, ns, nil
}

// expired 上下文已取消或已过截止时间
//
// 截止时间到达时流的读写可能先于 ctx 计时器返回。
func expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	d, ok := ctx.Deadline()
	return ok && !time.Now().Before(d)
}

// timeoutError 包装超时错误，保留取消原因与底层错误
func timeoutError(ctx context.Context, err error) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.DeadlineExceeded
	}
	if err == nil {
		return fmt.Errorf("%w: %w", ErrNegotiationTimeout, cause)
	}
	return fmt.Errorf("%w: %w: %w", ErrNegotiationTimeout, cause, err)
}

// bindContext 将 ctx 的截止与取消作用到流上
//
// 返回的 release 撤销绑定；流因取消而被关闭时 release 返回 true。
func bindContext(ctx context.Context, stream any) (release func() bool) {
	switch s := stream.(type) {
	case deadliner:
		if d, ok := ctx.Deadline(); ok {
			_ = s.SetDeadline(d)
		}
		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			_ = s.SetDeadline(pastDeadline)
			close(fired)
		})
		return func() bool {
			if !stop() {
				<-fired
			}
			_ = s.SetDeadline(time.Time{})
			return false
		}

	case io.Closer:
		stop := context.AfterFunc(ctx, func() { _ = s.Close() })
		return func() bool {
			return !stop()
		}

	default:
		return func() bool { return false }
	}
}

// IsTimeout 错误是否由超时或取消导致
func IsTimeout(err error) bool {
	return errors.Is(err, ErrNegotiationTimeout)
}
