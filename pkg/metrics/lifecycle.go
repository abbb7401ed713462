package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const Subsystem = "tenantmaster"

// Lifecycle records step latency and outcomes of workspace operations.
type Lifecycle struct {
	steps *prometheus.HistogramVec
	total *prometheus.CounterVec
}

// NewLifecycle registers the lifecycle collectors on reg. Collectors already
// registered by an earlier call are reused.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	return &Lifecycle{
		steps: register(reg, NewMetric(MetricsBusinessProcess, Subsystem)).(*prometheus.HistogramVec),
		total: register(reg, NewMetric(MetricsProvisionTotal, Subsystem)).(*prometheus.CounterVec),
	}
}

func NewDefaultLifecycle() *Lifecycle {
	return NewLifecycle(prometheus.DefaultRegisterer)
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
		panic(err)
	}
	return c
}

// ObserveStep records how long step of operation kind took.
func (l *Lifecycle) ObserveStep(kind, step string, elapsed time.Duration) {
	if l == nil {
		return
	}
	l.steps.WithLabelValues(kind, step).Observe(float64(elapsed.Milliseconds()))
}

// Done counts one finished operation; outcome is "success" or an error kind.
func (l *Lifecycle) Done(kind, outcome string) {
	if l == nil {
		return
	}
	l.total.WithLabelValues(kind, outcome).Inc()
}

var Module = fx.Options(
	fx.Provide(NewDefaultLifecycle),
)
