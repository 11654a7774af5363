package protocol

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-multiselect/config"
	"github.com/dep2p/go-multiselect/pkg/lib/log"
	"github.com/dep2p/go-multiselect/pkg/types"
)

var logger = log.Logger("core/protocol")

// Entry 通过 fx 组 "protocols" 注册的协议
type Entry struct {
	ID      types.ProtocolID
	Handler StreamHandler
}

// Params Protocol 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// metricsParams 指标依赖参数
type metricsParams struct {
	fx.In

	Registerer prometheus.Registerer `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("protocol",
		fx.Provide(
			ProvideConfig,
			ProvideRegistry,
			ProvideMetrics,
			ProvideNegotiator,
		),
		fx.Invoke(registerProtocols),
	)
}

// ConfigFromUnified 从统一配置创建协议配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		NegotiationTimeout: cfg.Negotiation.NegotiateTimeout.Duration(),
		LazyDial:           cfg.Negotiation.LazyDial,
		UseListRequest:     cfg.Negotiation.UseListRequest,
		PeerCacheSize:      cfg.Negotiation.PeerCacheSize,
	}
}

// NewConfig 创建默认配置（用于测试和直接调用）
func NewConfig() Config {
	return DefaultConfig()
}

// ProvideConfig 从统一配置提供协议配置
func ProvideConfig(p Params) (Config, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ProvideRegistry 提供协议注册表
func ProvideRegistry() *Registry {
	return NewRegistry()
}

// ProvideMetrics 提供协商指标
func ProvideMetrics(p metricsParams) *Metrics {
	return NewMetrics(p.Registerer)
}

// ProvideNegotiator 提供协议协商器，停止时清空节点偏好缓存
func ProvideNegotiator(lc fx.Lifecycle, cfg Config, registry *Registry, metrics *Metrics) (*Negotiator, error) {
	n, err := NewNegotiator(cfg, registry, metrics)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			n.ClearCache()
			return nil
		},
	})
	return n, nil
}

// registerInput 协议注册输入
type registerInput struct {
	fx.In

	Registry *Registry
	Entries  []Entry `group:"protocols"`
}

// registerProtocols 注册通过 fx 组提供的协议
func registerProtocols(in registerInput) error {
	for _, e := range in.Entries {
		if err := in.Registry.Register(e.ID, e.Handler); err != nil {
			return err
		}
		logger.Debug("协议已注册", "protocol", string(e.ID))
	}
	return nil
}
