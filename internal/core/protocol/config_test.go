package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-multiselect/config"
)

// TestDefaultConfig 测试默认配置
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10*time.Second, cfg.NegotiationTimeout)
	assert.False(t, cfg.LazyDial)
	assert.Equal(t, 256, cfg.PeerCacheSize)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, cfg, NewConfig())
}

// TestConfig_Validate 测试配置验证
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"有效配置", Config{NegotiationTimeout: time.Second}, false},
		{"超时为 0", Config{}, true},
		{"超时为负数", Config{NegotiationTimeout: -time.Second}, true},
		{"缓存为负数", Config{NegotiationTimeout: time.Second, PeerCacheSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestConfig_With 测试链式设置
func TestConfig_With(t *testing.T) {
	cfg := DefaultConfig().
		WithNegotiationTimeout(time.Second).
		WithLazyDial(true).
		WithListRequest(true).
		WithPeerCacheSize(0)

	assert.Equal(t, time.Second, cfg.NegotiationTimeout)
	assert.True(t, cfg.LazyDial)
	assert.True(t, cfg.UseListRequest)
	assert.Zero(t, cfg.PeerCacheSize)
}

// TestConfigFromUnified 测试从统一配置转换
func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))

	unified := config.NewConfig()
	unified.Negotiation = unified.Negotiation.WithNegotiateTimeout(3 * time.Second).WithLazyDial(true)
	unified.Negotiation.PeerCacheSize = 8

	cfg := ConfigFromUnified(unified)
	assert.Equal(t, 3*time.Second, cfg.NegotiationTimeout)
	assert.True(t, cfg.LazyDial)
	assert.Equal(t, 8, cfg.PeerCacheSize)
}
