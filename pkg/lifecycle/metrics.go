package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for the lifecycle controller.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// OperationsTotal counts lifecycle operations by name and result
	// ("ok" or "error").
	OperationsTotal *prometheus.CounterVec

	// State is the current lifecycle state as its numeric value.
	State prometheus.Gauge

	// SpinnerRunning is 1 while the event-loop goroutine runs.
	SpinnerRunning prometheus.Gauge

	// ResourceRollbacks counts activations that released their resources
	// because the activate hook failed or supplied no master.
	ResourceRollbacks prometheus.Counter
}

// NewMetrics creates and registers lifecycle metrics with reg. If reg is
// nil, metrics are created but not registered. Collectors already
// registered by a previous controller are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canmaster",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Total number of lifecycle operations by operation and result",
		}, []string{"operation", "result"}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "canmaster",
			Subsystem: "lifecycle",
			Name:      "state",
			Help:      "Current lifecycle state (0=Uninitialized 1=Initialized 2=Configured 3=Activated)",
		}),
		SpinnerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "canmaster",
			Subsystem: "lifecycle",
			Name:      "spinner_running",
			Help:      "Whether the event loop goroutine is running",
		}),
		ResourceRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canmaster",
			Subsystem: "lifecycle",
			Name:      "resource_rollbacks_total",
			Help:      "Total number of activations whose resources were rolled back",
		}),
	}

	if reg != nil {
		m.OperationsTotal = registerOrReuse(reg, m.OperationsTotal).(*prometheus.CounterVec)
		m.State = registerOrReuse(reg, m.State).(prometheus.Gauge)
		m.SpinnerRunning = registerOrReuse(reg, m.SpinnerRunning).(prometheus.Gauge)
		m.ResourceRollbacks = registerOrReuse(reg, m.ResourceRollbacks).(prometheus.Counter)
	}

	return m
}

// RecordOperation counts one operation outcome.
func (m *Metrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OperationsTotal.WithLabelValues(op, result).Inc()
}

// SetState records the current state.
func (m *Metrics) SetState(s State) {
	if m == nil {
		return
	}
	m.State.Set(float64(s))
}

// SetSpinnerRunning records whether the spinner runs.
func (m *Metrics) SetSpinnerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.SpinnerRunning.Set(1)
	} else {
		m.SpinnerRunning.Set(0)
	}
}

// RecordRollback counts one rolled-back activation.
func (m *Metrics) RecordRollback() {
	if m == nil {
		return
	}
	m.ResourceRollbacks.Inc()
}

// registerOrReuse registers c, or returns the collector already registered
// under the same descriptor. Panics on any other registration error.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
