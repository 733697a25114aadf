package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector adapts a computed Document into a Prometheus collector (spec
// §10.7), so the §6 summary counters of one simulation run can be
// exported through the same client used for long-running services,
// grounded on the custom-registry pattern of
// internal/app/metrics in the retrieved r3e-network-service_layer example.
// Unlike a live server's counters, a Document is a closed, point-in-time
// summary, so Collect reports it as a set of const metrics rather than
// wrapping mutable prometheus.Counter/Gauge instances.
type Collector struct {
	doc *Document

	jobsReleased     *prometheus.Desc
	jobsCompleted    *prometheus.Desc
	jobsAborted      *prometheus.Desc
	deadlineMissRate *prometheus.Desc
	preemptTotal     *prometheus.Desc
	migrationTotal   *prometheus.Desc
	coreUtilization  *prometheus.Desc
}

// NewCollector builds a Collector exporting doc's Summary under the
// "rtschedsim" metric namespace. doc must not be mutated once registered.
func NewCollector(doc *Document) *Collector {
	return &Collector{
		doc: doc,
		jobsReleased: prometheus.NewDesc(
			"rtschedsim_jobs_released_total", "Total jobs released during the run.", nil, nil),
		jobsCompleted: prometheus.NewDesc(
			"rtschedsim_jobs_completed_total", "Total jobs that completed every subtask.", nil, nil),
		jobsAborted: prometheus.NewDesc(
			"rtschedsim_jobs_aborted_total", "Total jobs forcibly aborted on a deadline miss.", nil, nil),
		deadlineMissRate: prometheus.NewDesc(
			"rtschedsim_deadline_miss_rate", "Fraction of released jobs that missed their deadline.", nil, nil),
		preemptTotal: prometheus.NewDesc(
			"rtschedsim_preempt_total", "Total preemptions, partitioned by kind.", []string{"kind"}, nil),
		migrationTotal: prometheus.NewDesc(
			"rtschedsim_migration_total", "Total cross-core migrations of an unmapped segment.", nil, nil),
		coreUtilization: prometheus.NewDesc(
			"rtschedsim_core_utilization", "Fraction of sim.duration a core spent busy.", []string{"core_id"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsReleased
	ch <- c.jobsCompleted
	ch <- c.jobsAborted
	ch <- c.deadlineMissRate
	ch <- c.preemptTotal
	ch <- c.migrationTotal
	ch <- c.coreUtilization
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.doc.Summary
	ch <- prometheus.MustNewConstMetric(c.jobsReleased, prometheus.CounterValue, float64(s.JobsReleased))
	ch <- prometheus.MustNewConstMetric(c.jobsCompleted, prometheus.CounterValue, float64(s.JobsCompleted))
	ch <- prometheus.MustNewConstMetric(c.jobsAborted, prometheus.CounterValue, float64(s.JobsAborted))
	ch <- prometheus.MustNewConstMetric(c.deadlineMissRate, prometheus.GaugeValue, s.DeadlineMissRate)
	ch <- prometheus.MustNewConstMetric(c.preemptTotal, prometheus.CounterValue, float64(s.SchedulerPreemptCount), "scheduler")
	ch <- prometheus.MustNewConstMetric(c.preemptTotal, prometheus.CounterValue, float64(s.ForcedPreemptCount), "forced")
	ch <- prometheus.MustNewConstMetric(c.migrationTotal, prometheus.CounterValue, float64(s.MigrationCount))

	cores := make([]string, 0, len(s.CoreUtilization))
	for id := range s.CoreUtilization {
		cores = append(cores, id)
	}
	sort.Strings(cores)
	for _, id := range cores {
		ch <- prometheus.MustNewConstMetric(c.coreUtilization, prometheus.GaugeValue, s.CoreUtilization[id], id)
	}
}
