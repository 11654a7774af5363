package config

import (
	"errors"
	"fmt"
	"time"
)

// 协商配置错误
var (
	ErrInvalidNegotiateTimeout = errors.New("config: negotiate_timeout must be positive")
	ErrInvalidPeerCacheSize    = errors.New("config: peer_cache_size must not be negative")
)

// NegotiationConfig 协议协商配置
type NegotiationConfig struct {
	// NegotiateTimeout 单次协商的超时，包括多轮提议与确认
	NegotiateTimeout Duration `json:"negotiate_timeout"`

	// LazyDial 只有一个候选协议时使用乐观（0-RTT）协商
	LazyDial bool `json:"lazy_dial"`

	// UseListRequest 拨号方先发送 ls，只提议对方列出的协议
	UseListRequest bool `json:"use_list_request"`

	// PeerCacheSize 记忆每个节点上次协商成功的协议，0 表示禁用
	PeerCacheSize int `json:"peer_cache_size"`
}

// DefaultNegotiationConfig 返回默认协商配置
func DefaultNegotiationConfig() NegotiationConfig {
	return NegotiationConfig{
		NegotiateTimeout: Duration(10 * time.Second),
		LazyDial:         false,
		UseListRequest:   false,
		PeerCacheSize:    256,
	}
}

// Validate 验证协商配置
func (c NegotiationConfig) Validate() error {
	if c.NegotiateTimeout <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidNegotiateTimeout, c.NegotiateTimeout)
	}
	if c.PeerCacheSize < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPeerCacheSize, c.PeerCacheSize)
	}
	return nil
}

// WithNegotiateTimeout 设置协商超时
func (c NegotiationConfig) WithNegotiateTimeout(timeout time.Duration) NegotiationConfig {
	c.NegotiateTimeout = Duration(timeout)
	return c
}

// WithLazyDial 设置是否乐观协商
func (c NegotiationConfig) WithLazyDial(lazy bool) NegotiationConfig {
	c.LazyDial = lazy
	return c
}
