package protocol

import (
	"fmt"
	"time"
)

// Config 协议模块配置
type Config struct {
	// NegotiationTimeout 协议协商超时时间
	NegotiationTimeout time.Duration

	// LazyDial 单个候选协议时使用乐观协商
	LazyDial bool

	// UseListRequest 拨号前先通过 ls 获取对方协议列表
	UseListRequest bool

	// PeerCacheSize 节点协议偏好缓存容量，0 表示禁用
	PeerCacheSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		NegotiationTimeout: 10 * time.Second,
		PeerCacheSize:      256,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.NegotiationTimeout <= 0 {
		return fmt.Errorf("%w: negotiation timeout %s", ErrInvalidConfig, c.NegotiationTimeout)
	}
	if c.PeerCacheSize < 0 {
		return fmt.Errorf("%w: peer cache size %d", ErrInvalidConfig, c.PeerCacheSize)
	}
	return nil
}

// WithNegotiationTimeout 设置协商超时
func (c Config) WithNegotiationTimeout(timeout time.Duration) Config {
	c.NegotiationTimeout = timeout
	return c
}

// WithLazyDial 设置乐观协商
func (c Config) WithLazyDial(lazy bool) Config {
	c.LazyDial = lazy
	return c
}

// WithListRequest 设置是否先发送 ls
func (c Config) WithListRequest(enable bool) Config {
	c.UseListRequest = enable
	return c
}

// WithPeerCacheSize 设置节点偏好缓存容量
func (c Config) WithPeerCacheSize(size int) Config {
	c.PeerCacheSize = size
	return c
}
