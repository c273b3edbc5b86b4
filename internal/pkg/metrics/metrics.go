// internal/pkg/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the chain engine collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gapClassifications *prometheus.CounterVec
	rejections         *prometheus.CounterVec
	deletions          *prometheus.CounterVec
	recalculations     *prometheus.CounterVec
	chainIssues        *prometheus.CounterVec
	sinkFailures       prometheus.Counter
	lockWait           prometheus.Histogram
	operationDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gapClassifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mileage_gap_classifications_total",
			Help: "Continuity checks by gap classification",
		}, []string{"classification"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mileage_write_rejections_total",
			Help: "Trip writes rejected by invariant kind",
		}, []string{"violation"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mileage_trip_deletions_total",
			Help: "Trip deletions by outcome",
		}, []string{"outcome"}),
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mileage_recalculations_total",
			Help: "Mileage recalculations by method and whether a value was written",
		}, []string{"method", "updated"}),
		chainIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mileage_chain_issues_total",
			Help: "Issues reported by the chain auditor",
		}, []string{"issue_type", "fixed"}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mileage_audit_sink_failures_total",
			Help: "Audit entries that could not be delivered",
		}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mileage_chain_lock_wait_seconds",
			Help:    "Time spent waiting for a vehicle chain lock",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mileage_operation_duration_seconds",
			Help:    "Chain operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.gapClassifications,
			m.rejections,
			m.deletions,
			m.recalculations,
			m.chainIssues,
			m.sinkFailures,
			m.lockWait,
			m.operationDuration,
		)
	}
	return m
}

func (m *Metrics) GapClassified(class string) {
	if m == nil {
		return
	}
	m.gapClassifications.WithLabelValues(class).Inc()
}

func (m *Metrics) WriteRejected(violation string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(violation).Inc()
}

func (m *Metrics) TripDeleted(outcome string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Recalculated(method string, updated bool) {
	if m == nil {
		return
	}
	label := "false"
	if updated {
		label = "true"
	}
	m.recalculations.WithLabelValues(method, label).Inc()
}

func (m *Metrics) IssueReported(issueType string, fixed bool) {
	if m == nil {
		return
	}
	label := "false"
	if fixed {
		label = "true"
	}
	m.chainIssues.WithLabelValues(issueType, label).Inc()
}

func (m *Metrics) SinkFailed() {
	if m == nil {
		return
	}
	m.sinkFailures.Inc()
}

func (m *Metrics) LockWaited(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// Time returns a func that records the elapsed time of operation when called.
func (m *Metrics) Time(operation string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
