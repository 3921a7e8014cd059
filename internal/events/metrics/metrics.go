package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for push delivery.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	Delivered         *prometheus.CounterVec
	// Dropped counts events with no live connection, by event type.
	Dropped      *prometheus.CounterVec
	LaggedClosed prometheus.Counter
	RelayErrors  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hatchseed_events_active_connections",
			Help: "Number of open push connections on this instance",
		}),
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hatchseed_events_delivered_total",
			Help: "Events enqueued on a live connection, by event type",
		}, []string{"type"}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hatchseed_events_dropped_total",
			Help: "Events published to an identity with no live connection",
		}, []string{"type"}),
		LaggedClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hatchseed_events_lagged_connections_total",
			Help: "Connections closed because their buffer overflowed",
		}),
		RelayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hatchseed_events_relay_errors_total",
			Help: "Cross-instance relay failures by stage",
		}, []string{"stage"}), // stage: "encode", "publish", "decode", "overflow"
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.ActiveConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.ActiveConnections.Dec()
	}
}

func (m *Metrics) IncrementDelivered(eventType string) {
	if m != nil {
		m.Delivered.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncrementDropped(eventType string) {
	if m != nil {
		m.Dropped.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncrementLagged() {
	if m != nil {
		m.LaggedClosed.Inc()
	}
}

func (m *Metrics) IncrementRelayError(stage string) {
	if m != nil {
		m.RelayErrors.WithLabelValues(stage).Inc()
	}
}
