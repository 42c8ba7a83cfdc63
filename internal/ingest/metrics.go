package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics jsou Prometheus čítače pipeline. Nil *Metrics je platný a nic neměří.
type Metrics struct {
	messages   *prometheus.CounterVec
	baselines  prometheus.Counter
	processing *prometheus.HistogramVec
}

// NewMetrics vytvoří metriky a zaregistruje je do reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tfg",
			Subsystem: "ingest",
			Name:      "messages_total",
			Help:      "Messages handled by topic and outcome.",
		}, []string{"topic", "outcome"}),
		baselines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tfg",
			Subsystem: "ingest",
			Name:      "baseline_flags_total",
			Help:      "Level readings flagged as a new baseline (T0).",
		}),
		processing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tfg",
			Subsystem: "ingest",
			Name:      "processing_seconds",
			Help:      "Time spent handling one message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}

	for _, c := range []prometheus.Collector{m.messages, m.baselines, m.processing} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(topic string, outcome Outcome, took time.Duration) {
	if m == nil {
		return
	}
	if outcome == OutcomeIgnored {
		// neznámé topicy by jinak nafukovaly kardinalitu labelů
		topic = "other"
	}
	m.messages.WithLabelValues(topic, outcome.String()).Inc()
	if took > 0 {
		m.processing.WithLabelValues(topic).Observe(took.Seconds())
	}
}

func (m *Metrics) baselineFlagged() {
	if m == nil {
		return
	}
	m.baselines.Inc()
}
