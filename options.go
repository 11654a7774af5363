package multiselect

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-multiselect/config"
	"github.com/dep2p/go-multiselect/internal/core/protocol"
	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
	"github.com/dep2p/go-multiselect/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	// 通过 fx 组注册的协议
	protocols []protocol.Entry

	registerer prometheus.Registerer

	// 用户自定义 Fx 选项
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// WithConfig 使用完整配置
//
// 配置在 New 中校验。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return ErrNilConfig
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 使用预设配置（default、lowlatency、conservative）
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithProtocol 注册监听方支持的协议
func WithProtocol(id types.ProtocolID, handler func(*multistream.Negotiated)) Option {
	return func(o *options) error {
		if handler == nil {
			return fmt.Errorf("%w: %s", ErrNilHandler, id)
		}
		o.protocols = append(o.protocols, protocol.Entry{ID: id, Handler: handler})
		return nil
	}
}

// WithRegisterer 指定指标注册器，未指定时使用私有注册器
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
