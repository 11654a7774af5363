// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，支持从 JSON 加载与保存，
// 以及针对不同场景的预设（default/lowlatency/conservative）。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Negotiation.LazyDial = true
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
//
//	// 应用预设
//	config.ApplyPreset(cfg, "lowlatency")
package config

// Config 完整配置
type Config struct {
	// Negotiation 协议协商配置
	Negotiation NegotiationConfig `json:"negotiation"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Negotiation: DefaultNegotiationConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Negotiation.Validate(); err != nil {
		return err
	}
	return nil
}
