package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestCollector_ExportsSummaryCounters registers a Collector wrapping a
// hand-built Document on its own registry and checks a representative
// counter, gauge, and labeled metric round-trip through Gather, mirroring
// the retrieved r3e-network-service_layer metrics_test.go's
// gather-then-assert style.
func TestCollector_ExportsSummaryCounters(t *testing.T) {
	doc := &Document{
		Summary: Summary{
			JobsReleased:          4,
			JobsCompleted:         3,
			JobsAborted:           1,
			DeadlineMissRate:      0.25,
			SchedulerPreemptCount: 2,
			ForcedPreemptCount:    1,
			MigrationCount:        5,
			CoreUtilization:       map[string]float64{"c0": 0.75, "c1": 0.5},
		},
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(doc))

	if v, ok := gaugeOrCounterValue(t, reg, "rtschedsim_jobs_released_total", nil); !ok || v != 4 {
		t.Fatalf("expected jobs_released_total=4, got %v (found=%v)", v, ok)
	}
	if v, ok := gaugeOrCounterValue(t, reg, "rtschedsim_deadline_miss_rate", nil); !ok || v != 0.25 {
		t.Fatalf("expected deadline_miss_rate=0.25, got %v (found=%v)", v, ok)
	}
	if v, ok := gaugeOrCounterValue(t, reg, "rtschedsim_preempt_total", map[string]string{"kind": "forced"}); !ok || v != 1 {
		t.Fatalf("expected preempt_total{kind=forced}=1, got %v (found=%v)", v, ok)
	}
	if v, ok := gaugeOrCounterValue(t, reg, "rtschedsim_core_utilization", map[string]string{"core_id": "c0"}); !ok || v != 0.75 {
		t.Fatalf("expected core_utilization{core_id=c0}=0.75, got %v (found=%v)", v, ok)
	}
}

func gaugeOrCounterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue(), true
			}
			if g := metric.GetGauge(); g != nil {
				return g.GetValue(), true
			}
		}
	}
	return 0, false
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	if len(got) != len(want) {
		return false
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
