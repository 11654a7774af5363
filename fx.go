package multiselect

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-multiselect/internal/core/protocol"
	"github.com/dep2p/go-multiselect/pkg/lib/log"
)

var fxLogger = log.Logger("multiselect/fx")

// buildFxApp 组装 Fx 应用，并将协议组件注入 svc
func buildFxApp(o *options, svc *Service) *fx.App {
	modules := []fx.Option{
		fx.Supply(o.config),
		protocol.Module(),
	}

	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}

	for _, e := range o.protocols {
		modules = append(modules, fx.Provide(fx.Annotated{
			Group:  "protocols",
			Target: func() protocol.Entry { return e },
		}))
	}

	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	modules = append(modules,
		fx.Populate(&svc.registry, &svc.negotiator),
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	fxLogger.Debug("Fx 应用已组装", "protocols", len(o.protocols), "userOptions", len(o.userFxOptions))
	return fx.New(modules...)
}
