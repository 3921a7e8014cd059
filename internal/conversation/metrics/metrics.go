package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Started  prometheus.Counter
	Messages *prometheus.CounterVec
	Closed   prometheus.Counter
	Purged   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Started: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hatchseed_conversations_started_total",
			Help: "Conversations opened with a first message",
		}),
		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hatchseed_conversation_messages_total",
			Help: "Messages appended, by sender role",
		}, []string{"sender"}),
		Closed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hatchseed_conversations_closed_total",
			Help: "Conversations moved to the terminal closed state",
		}),
		Purged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hatchseed_conversations_purged_total",
			Help: "Inactive conversations removed by retention",
		}),
	}
}

func (m *Metrics) IncrementStarted() {
	if m != nil {
		m.Started.Inc()
	}
}

func (m *Metrics) IncrementMessages(sender string) {
	if m != nil {
		m.Messages.WithLabelValues(sender).Inc()
	}
}

func (m *Metrics) IncrementClosed() {
	if m != nil {
		m.Closed.Inc()
	}
}

func (m *Metrics) AddPurged(n int) {
	if m != nil {
		m.Purged.Add(float64(n))
	}
}
