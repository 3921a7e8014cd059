package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Published prometheus.Counter
	Failed    prometheus.Counter
	Pending   prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hatchseed_audit_outbox_published_total",
			Help: "Audit outbox rows acknowledged by Kafka",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hatchseed_audit_outbox_produce_failures_total",
			Help: "Audit batches rejected by Kafka and left for retry",
		}),
		Pending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hatchseed_audit_outbox_pending",
			Help: "Unpublished audit outbox rows",
		}),
	}
}

func (m *Metrics) AddPublished(n int) {
	if m != nil && n > 0 {
		m.Published.Add(float64(n))
	}
}

func (m *Metrics) IncrementFailed() {
	if m != nil {
		m.Failed.Inc()
	}
}

func (m *Metrics) SetPending(n int64) {
	if m != nil {
		m.Pending.Set(float64(n))
	}
}
