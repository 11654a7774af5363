package protocol

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
	"github.com/dep2p/go-multiselect/pkg/types"
)

type handled struct {
	protocol types.ProtocolID
	stream   *multistream.Negotiated
	err      error
}

func newTestNegotiator(t *testing.T, cfg Config, protocols ...types.ProtocolID) (*Negotiator, *Metrics) {
	t.Helper()
	registry := NewRegistry()
	for _, p := range protocols {
		require.NoError(t, registry.Register(p, nil))
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	n, err := NewNegotiator(cfg, registry, metrics)
	require.NoError(t, err)
	return n, metrics
}

func pipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func handleAsync(ctx context.Context, n *Negotiator, stream io.ReadWriter) <-chan handled {
	ch := make(chan handled, 1)
	go func() {
		p, s, err := n.Handle(ctx, stream)
		ch <- handled{protocol: p, stream: s, err: err}
	}()
	return ch
}

// TestNegotiator_SelectAndHandle 测试拨号方与监听方协商
func TestNegotiator_SelectAndHandle(t *testing.T) {
	ctx := context.Background()
	listener, lm := newTestNegotiator(t, DefaultConfig(), "/b", "/c")
	dialer, dm := newTestNegotiator(t, DefaultConfig())

	client, server := pipe(t)
	hch := handleAsync(ctx, listener, server)

	proto, stream, err := dialer.Select(ctx, client, []types.ProtocolID{"/a", "/c"})
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolID("/c"), proto)
	assert.True(t, stream.IsConfirmed())

	h := <-hch
	require.NoError(t, h.err)
	assert.Equal(t, types.ProtocolID("/c"), h.protocol)

	assert.Equal(t, 1.0, testutil.ToFloat64(dm.negotiations.WithLabelValues(RoleDialer, ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(lm.negotiations.WithLabelValues(RoleListener, ResultSuccess)))
}

// TestNegotiator_Exhausted 测试协商失败的指标
func TestNegotiator_Exhausted(t *testing.T) {
	ctx := context.Background()
	listener, _ := newTestNegotiator(t, DefaultConfig(), "/z")
	dialer, dm := newTestNegotiator(t, DefaultConfig())

	client, server := pipe(t)
	hch := handleAsync(ctx, listener, server)

	_, _, err := dialer.Select(ctx, client, []types.ProtocolID{"/a"})
	assert.ErrorIs(t, err, multistream.ErrProtocolsExhausted)
	assert.False(t, IsTimeout(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.negotiations.WithLabelValues(RoleDialer, ResultExhausted)))

	client.Close()
	h := <-hch
	assert.ErrorIs(t, h.err, multistream.ErrStreamIO)
}

// TestNegotiator_Timeout 测试监听方等待超时
func TestNegotiator_Timeout(t *testing.T) {
	cfg := DefaultConfig().WithNegotiationTimeout(50 * time.Millisecond)
	listener, lm := newTestNegotiator(t, cfg, "/a")

	_, server := pipe(t)

	start := time.Now()
	_, _, err := listener.Handle(context.Background(), server)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, multistream.ErrStreamIO)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(lm.negotiations.WithLabelValues(RoleListener, ResultTimeout)))

	// 截止时间在协商结束后被清除
	require.NoError(t, server.SetDeadline(time.Time{}))
}

// TestNegotiator_CancelClosesStream 测试不支持截止时间的流在取消时被关闭
func TestNegotiator_CancelClosesStream(t *testing.T) {
	listener, _ := newTestNegotiator(t, DefaultConfig(), "/a")
	_, server := pipe(t)

	// 只暴露 Read/Write/Close
	stream := struct{ io.ReadWriteCloser }{server}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, _, err := listener.Handle(ctx, stream)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
}

// TestNegotiator_CancelledContext 测试已取消的上下文不触达流
func TestNegotiator_CancelledContext(t *testing.T) {
	dialer, dm := newTestNegotiator(t, DefaultConfig())
	client, _ := pipe(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := dialer.Select(ctx, client, []types.ProtocolID{"/a"})
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.negotiations.WithLabelValues(RoleDialer, ResultTimeout)))
}

// TestNegotiator_LazyDial 测试配置乐观协商
func TestNegotiator_LazyDial(t *testing.T) {
	ctx := context.Background()
	listener, _ := newTestNegotiator(t, DefaultConfig(), "/a")
	dialer, _ := newTestNegotiator(t, DefaultConfig().WithLazyDial(true))

	client, server := pipe(t)
	hch := handleAsync(ctx, listener, server)

	proto, stream, err := dialer.Select(ctx, client, []types.ProtocolID{"/a"})
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolID("/a"), proto)
	assert.False(t, stream.IsConfirmed())

	done := make(chan error, 1)
	go func() { done <- stream.Complete() }()

	h := <-hch
	require.NoError(t, h.err)
	require.NoError(t, <-done)
	assert.True(t, stream.IsConfirmed())
}

// TestNegotiator_ListRequest 测试先 ls 再提议
func TestNegotiator_ListRequest(t *testing.T) {
	ctx := context.Background()
	listener, _ := newTestNegotiator(t, DefaultConfig(), "/b", "/c")
	dialer, _ := newTestNegotiator(t, DefaultConfig().WithListRequest(true))

	client, server := pipe(t)
	hch := handleAsync(ctx, listener, server)

	proto, _, err := dialer.Select(ctx, client, []types.ProtocolID{"/a", "/c", "/b"})
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolID("/c"), proto)

	h := <-hch
	require.NoError(t, h.err)
	assert.Equal(t, types.ProtocolID("/c"), h.protocol)
}

// TestNegotiator_SelectWithPeer 测试节点协议偏好
func TestNegotiator_SelectWithPeer(t *testing.T) {
	ctx := context.Background()
	dialer, _ := newTestNegotiator(t, DefaultConfig())
	candidates := []types.ProtocolID{"/a", "/b"}

	// 第一次：对方只支持 /b
	onlyB, _ := newTestNegotiator(t, DefaultConfig(), "/b")
	client, server := pipe(t)
	hch := handleAsync(ctx, onlyB, server)

	proto, _, err := dialer.SelectWithPeer(ctx, "peer-1", client, candidates)
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolID("/b"), proto)
	require.NoError(t, (<-hch).err)

	preferred, ok := dialer.PreferredProtocol("peer-1")
	require.True(t, ok)
	assert.Equal(t, types.ProtocolID("/b"), preferred)

	// 第二次：对方两者都支持，缓存的 /b 先被提议
	both, _ := newTestNegotiator(t, DefaultConfig(), "/a", "/b")
	client, server = pipe(t)
	hch = handleAsync(ctx, both, server)

	proto, _, err = dialer.SelectWithPeer(ctx, "peer-1", client, candidates)
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolID("/b"), proto)
	require.NoError(t, (<-hch).err)

	// 其他节点不受影响
	client, server = pipe(t)
	hch = handleAsync(ctx, both, server)
	proto, _, err = dialer.SelectWithPeer(ctx, "peer-2", client, candidates)
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolID("/a"), proto)
	require.NoError(t, (<-hch).err)

	dialer.ForgetPeer("peer-1")
	_, ok = dialer.PreferredProtocol("peer-1")
	assert.False(t, ok)

	dialer.ClearCache()
	_, ok = dialer.PreferredProtocol("peer-2")
	assert.False(t, ok)
}

// TestNegotiator_SelectWithPeerLazyNotCached 测试未确认的乐观协商不写入偏好缓存
func TestNegotiator_SelectWithPeerLazyNotCached(t *testing.T) {
	ctx := context.Background()
	dialer, _ := newTestNegotiator(t, DefaultConfig().WithLazyDial(true))
	client, _ := pipe(t)

	proto, stream, err := dialer.SelectWithPeer(ctx, "peer-1", client, []types.ProtocolID{"/a"})
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolID("/a"), proto)
	assert.False(t, stream.IsConfirmed())

	_, ok := dialer.PreferredProtocol("peer-1")
	assert.False(t, ok)
}

// TestNegotiator_SelectWithPeerFailureForgets 测试失败时清除偏好
func TestNegotiator_SelectWithPeerFailureForgets(t *testing.T) {
	ctx := context.Background()
	dialer, _ := newTestNegotiator(t, DefaultConfig())
	dialer.peers.Add("peer-1", "/b")

	none, _ := newTestNegotiator(t, DefaultConfig(), "/z")
	client, server := pipe(t)
	hch := handleAsync(ctx, none, server)

	_, _, err := dialer.SelectWithPeer(ctx, "peer-1", client, []types.ProtocolID{"/a", "/b"})
	assert.ErrorIs(t, err, multistream.ErrProtocolsExhausted)

	_, ok := dialer.PreferredProtocol("peer-1")
	assert.False(t, ok)

	client.Close()
	<-hch
}

// TestNegotiator_CacheDisabled 测试禁用节点缓存
func TestNegotiator_CacheDisabled(t *testing.T) {
	n, _ := newTestNegotiator(t, DefaultConfig().WithPeerCacheSize(0))
	assert.Nil(t, n.peers)

	_, ok := n.PreferredProtocol("peer")
	assert.False(t, ok)
	n.ForgetPeer("peer")
	n.ClearCache()
}

// TestNewNegotiator_InvalidConfig 测试无效配置
func TestNewNegotiator_InvalidConfig(t *testing.T) {
	_, err := NewNegotiator(Config{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	n, err := NewNegotiator(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, n.Registry())
}

// TestNegotiator_Serve 测试协商后分发给处理器
func TestNegotiator_Serve(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	require.NoError(t, registry.Register("/echo/1.0.0", func(s *multistream.Negotiated) {
		defer s.Close()
		buf := make([]byte, 4)
		if _, err := io.ReadFull(s, buf); err == nil {
			_, _ = s.Write(buf)
		}
	}))
	listener, err := NewNegotiator(DefaultConfig(), registry, nil)
	require.NoError(t, err)
	dialer, _ := newTestNegotiator(t, DefaultConfig())

	client, server := pipe(t)
	served := make(chan error, 1)
	go func() { served <- listener.Serve(ctx, server) }()

	_, stream, err := dialer.Select(ctx, client, []types.ProtocolID{"/echo/1.0.0"})
	require.NoError(t, err)

	_, err = stream.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), buf)

	assert.NoError(t, <-served)
}

// TestNegotiator_ServeNoHandler 测试没有处理器时关闭流
func TestNegotiator_ServeNoHandler(t *testing.T) {
	ctx := context.Background()
	listener, _ := newTestNegotiator(t, DefaultConfig(), "/silent")
	dialer, _ := newTestNegotiator(t, DefaultConfig())

	client, server := pipe(t)
	served := make(chan error, 1)
	go func() { served <- listener.Serve(ctx, server) }()

	_, stream, err := dialer.Select(ctx, client, []types.ProtocolID{"/silent"})
	require.NoError(t, err)

	assert.ErrorIs(t, <-served, ErrNoHandler)
	_, err = stream.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

// TestNegotiator_ServeFailureCloses 测试协商失败时关闭流
func TestNegotiator_ServeFailureCloses(t *testing.T) {
	listener, _ := newTestNegotiator(t, DefaultConfig(), "/a")

	client, server := pipe(t)
	served := make(chan error, 1)
	go func() { served <- listener.Serve(context.Background(), server) }()

	// 未发送头部就提议
	_, err := client.Write([]byte("\x03/a\n"))
	require.NoError(t, err)

	assert.ErrorIs(t, <-served, multistream.ErrStateMismatch)
	_, err = client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

// TestPreferFirst 测试偏好排序
func TestPreferFirst(t *testing.T) {
	list := []types.ProtocolID{"/a", "/b", "/c"}

	tests := []struct {
		name      string
		preferred types.ProtocolID
		want      []types.ProtocolID
	}{
		{"已在最前", "/a", []types.ProtocolID{"/a", "/b", "/c"}},
		{"中间", "/b", []types.ProtocolID{"/b", "/a", "/c"}},
		{"末尾", "/c", []types.ProtocolID{"/c", "/a", "/b"}},
		{"不在列表", "/x", []types.ProtocolID{"/a", "/b", "/c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preferFirst(list, tt.preferred))
		})
	}
	assert.Equal(t, []types.ProtocolID{"/a", "/b", "/c"}, list)
}

// TestResultLabel 测试错误归类
func TestResultLabel(t *testing.T) {
	assert.Equal(t, ResultSuccess, resultLabel(nil))
	assert.Equal(t, ResultTimeout, resultLabel(ErrNegotiationTimeout))
	assert.Equal(t, ResultParse, resultLabel(&multistream.NegotiationError{Kind: multistream.KindParse}))
	assert.Equal(t, ResultStateMismatch, resultLabel(&multistream.NegotiationError{Kind: multistream.KindStateMismatch}))
	assert.Equal(t, ResultLazyRejected, resultLabel(&multistream.NegotiationError{Kind: multistream.KindLazyRejected}))
	assert.Equal(t, ResultIO, resultLabel(&multistream.NegotiationError{Kind: multistream.KindIO}))
	assert.Equal(t, ResultOther, resultLabel(io.ErrShortWrite))
}
