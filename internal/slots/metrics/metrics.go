package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the slot workflow.
type Metrics struct {
	Uploads     prometheus.Counter
	Deletes     prometheus.Counter
	Moderations *prometheus.CounterVec
	Resets      *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
	// OperationDuration includes time spent waiting for the set lock.
	OperationDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Uploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hatchseed_slots_uploads_total",
			Help: "Media placed into a slot",
		}),
		Deletes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hatchseed_slots_deletes_total",
			Help: "Slots erased by their owner inside the grace window",
		}),
		Moderations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hatchseed_slots_moderations_total",
			Help: "Per-slot reviewer verdicts by action",
		}, []string{"action"}),
		Resets: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hatchseed_slots_set_resets_total",
			Help: "Sets cleared, by reason",
		}, []string{"reason"}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hatchseed_slots_rejected_total",
			Help: "Operations refused with a domain error, by operation and code",
		}, []string{"operation", "code"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hatchseed_slots_operation_duration_seconds",
			Help:    "Latency of slot set mutations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementUploads() {
	if m != nil {
		m.Uploads.Inc()
	}
}

func (m *Metrics) IncrementDeletes() {
	if m != nil {
		m.Deletes.Inc()
	}
}

func (m *Metrics) IncrementModerations(action string) {
	if m != nil {
		m.Moderations.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncrementResets(reason string) {
	if m != nil {
		m.Resets.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementRejected(operation, code string) {
	if m != nil {
		m.Rejected.WithLabelValues(operation, code).Inc()
	}
}

func (m *Metrics) ObserveOperation(operation string, seconds float64) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation).Observe(seconds)
	}
}
