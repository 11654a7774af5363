package config

import "errors"

// ValidateAll 验证整个配置，nil 视为错误
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config: config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 修复可自动修复的问题后再验证
//
//   - 超时非正 -> 默认超时
//   - 缓存大小为负 -> 禁用缓存
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.Negotiation.NegotiateTimeout <= 0 {
		c.Negotiation.NegotiateTimeout = DefaultNegotiationConfig().NegotiateTimeout
	}
	if c.Negotiation.PeerCacheSize < 0 {
		c.Negotiation.PeerCacheSize = 0
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
