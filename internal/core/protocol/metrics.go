package protocol

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
)

// 协商角色
const (
	RoleDialer     = "dialer"
	RoleListener   = "listener"
	RoleDataDialer = "datachannel_dialer"
	RoleDataListen = "datachannel_listener"
)

// 协商结果标签
const (
	ResultSuccess       = "success"
	ResultExhausted     = "exhausted"
	ResultLazyRejected  = "lazy_rejected"
	ResultParse         = "parse"
	ResultStateMismatch = "state_mismatch"
	ResultIO            = "io"
	ResultTimeout       = "timeout"
	ResultOther         = "other"
)

// Metrics 协商指标
type Metrics struct {
	negotiations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMetrics 在 reg 上注册协商指标，reg 为 nil 时使用私有注册表
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		negotiations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mss",
			Name:      "negotiations_total",
			Help:      "Total number of multistream-select negotiations by role and result",
		}, []string{"role", "result"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mss",
			Name:      "negotiation_duration_seconds",
			Help:      "Duration of multistream-select negotiations in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"role"}),
	}
}

// observe 记录一次协商
func (m *Metrics) observe(role string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.negotiations.WithLabelValues(role, resultLabel(err)).Inc()
	m.duration.WithLabelValues(role).Observe(time.Since(start).Seconds())
}

// resultLabel 将错误归类为结果标签
func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrNegotiationTimeout):
		return ResultTimeout
	case errors.Is(err, multistream.ErrProtocolsExhausted):
		return ResultExhausted
	case errors.Is(err, multistream.ErrLazyRejected):
		return ResultLazyRejected
	case errors.Is(err, multistream.ErrParse):
		return ResultParse
	case errors.Is(err, multistream.ErrStateMismatch):
		return ResultStateMismatch
	case errors.Is(err, multistream.ErrStreamIO):
		return ResultIO
	default:
		return ResultOther
	}
}
