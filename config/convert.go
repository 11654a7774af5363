package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FromJSON 从 JSON 数据创建配置，未出现的字段保留默认值
//
//	{
//	  "negotiation": {"negotiate_timeout": "5s", "lazy_dial": true}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	return cfg, nil
}

// ToJSON 将配置序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "default": 默认值
//   - "lowlatency": 单协议乐观协商，缩短超时
//   - "conservative": 先 ls 再提议，延长超时
func ApplyPreset(cfg *Config, name string) error {
	if cfg == nil {
		return errors.New("config: config is nil")
	}

	switch name {
	case "", "default":
		cfg.Negotiation = DefaultNegotiationConfig()
	case "lowlatency":
		cfg.Negotiation.LazyDial = true
		cfg.Negotiation.UseListRequest = false
		cfg.Negotiation.NegotiateTimeout = Duration(5 * time.Second)
	case "conservative":
		cfg.Negotiation.LazyDial = false
		cfg.Negotiation.UseListRequest = true
		cfg.Negotiation.NegotiateTimeout = Duration(30 * time.Second)
	default:
		return fmt.Errorf("config: unknown preset %q", name)
	}
	return nil
}
