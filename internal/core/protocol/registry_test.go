package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
	"github.com/dep2p/go-multiselect/pkg/types"
)

// TestRegistry_Register 测试注册与查询
func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	called := false
	handler := func(*multistream.Negotiated) { called = true }

	require.NoError(t, r.Register("/b/1.0.0", handler))
	require.NoError(t, r.Register("/a/1.0.0", nil))

	assert.True(t, r.Supports("/a/1.0.0"))
	assert.False(t, r.Supports("/c/1.0.0"))
	// 按注册顺序
	assert.Equal(t, []types.ProtocolID{"/b/1.0.0", "/a/1.0.0"}, r.Protocols())

	h, ok := r.Handler("/b/1.0.0")
	require.True(t, ok)
	h(nil)
	assert.True(t, called)

	h, ok = r.Handler("/a/1.0.0")
	assert.True(t, ok)
	assert.Nil(t, h)

	_, ok = r.Handler("/c/1.0.0")
	assert.False(t, ok)
}

// TestRegistry_RegisterErrors 测试非法注册
func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("/a", nil))

	tests := []struct {
		name string
		id   types.ProtocolID
		want error
	}{
		{"重复", "/a", ErrDuplicateProtocol},
		{"空", "", ErrInvalidProtocolID},
		{"缺少斜杠", "a", ErrInvalidProtocolID},
		{"保留 na", "na", ErrInvalidProtocolID},
		{"保留 ls", "ls", ErrInvalidProtocolID},
		{"头部前缀", "/multistream/1.0.0", ErrInvalidProtocolID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.Register(tt.id, nil), tt.want)
		})
	}
}

// TestRegistry_Unregister 测试注销
func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	for _, p := range []types.ProtocolID{"/a", "/b", "/c"} {
		require.NoError(t, r.Register(p, nil))
	}

	require.NoError(t, r.Unregister("/b"))
	assert.False(t, r.Supports("/b"))
	assert.Equal(t, []types.ProtocolID{"/a", "/c"}, r.Protocols())

	assert.ErrorIs(t, r.Unregister("/b"), ErrProtocolNotRegistered)

	// 注销后可以重新注册
	require.NoError(t, r.Register("/b", nil))
	assert.Equal(t, []types.ProtocolID{"/a", "/c", "/b"}, r.Protocols())

	r.Clear()
	assert.Empty(t, r.Protocols())
}

// TestRegistry_ProtocolsCopy 测试返回的列表与内部状态隔离
func TestRegistry_ProtocolsCopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("/a", nil))

	list := r.Protocols()
	list[0] = "/mutated"
	assert.Equal(t, []types.ProtocolID{"/a"}, r.Protocols())
}
