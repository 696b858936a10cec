package lifecycle

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/canmaster/internal/sigbridge"
	"github.com/bft-labs/canmaster/pkg/can"
	"github.com/bft-labs/canmaster/pkg/params"
)

// gathered returns the value of the named metric whose labels include want.
func gathered(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v != lp.GetValue() {
					continue metrics
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func opLabels(op, result string) map[string]string {
	return map[string]string{"operation": op, "result": result}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordOperation(OpInit, nil)
	m.SetState(StateActivated)
	m.SetSpinnerRunning(true)
	m.RecordRollback()
}

func TestMetrics_ReuseAcrossControllers(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)
	second := NewMetrics(reg)

	if first.OperationsTotal != second.OperationsTotal {
		t.Fatal("second Metrics should reuse the registered collector")
	}
	first.RecordOperation(OpInit, nil)
	second.RecordOperation(OpInit, errors.New("x"))

	if got := gathered(t, reg, "canmaster_lifecycle_operations_total", opLabels(OpInit, "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := gathered(t, reg, "canmaster_lifecycle_operations_total", opLabels(OpInit, "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestMetrics_TrackController(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hooks := newRecordingHooks()
	hooks.noMaster = true
	ctrl := New(params.NewStore(), hooks,
		WithBus(can.NewVirtualBus("vcan0")),
		WithSignalSource(sigbridge.NewFakeSource()),
		WithMetrics(m),
	)
	t.Cleanup(func() { _ = ctrl.Shutdown() })

	if err := ctrl.Init(); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Configure(); err != nil {
		t.Fatal(err)
	}
	if got := gathered(t, reg, "canmaster_lifecycle_state", nil); got != float64(StateConfigured) {
		t.Errorf("state gauge = %v, want %v", got, float64(StateConfigured))
	}

	_ = ctrl.Activate()
	if got := gathered(t, reg, "canmaster_lifecycle_resource_rollbacks_total", nil); got != 1 {
		t.Errorf("rollbacks = %v, want 1", got)
	}
	if got := gathered(t, reg, "canmaster_lifecycle_operations_total", opLabels(OpActivate, "error")); got != 1 {
		t.Errorf("activate errors = %v, want 1", got)
	}

	hooks.noMaster = false
	if err := ctrl.Activate(); err != nil {
		t.Fatal(err)
	}
	if got := gathered(t, reg, "canmaster_lifecycle_spinner_running", nil); got != 1 {
		t.Errorf("spinner gauge = %v, want 1", got)
	}
	if err := ctrl.Deactivate(); err != nil {
		t.Fatal(err)
	}
	if got := gathered(t, reg, "canmaster_lifecycle_spinner_running", nil); got != 0 {
		t.Errorf("spinner gauge = %v, want 0", got)
	}
}
