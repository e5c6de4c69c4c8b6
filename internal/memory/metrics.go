package memory

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	messages       *prometheus.CounterVec
	summarizations *prometheus.CounterVec
	truncations    prometheus.Counter
	removed        prometheus.Counter
	usage          prometheus.Histogram
	searchFailures prometheus.Counter
	exceeded       prometheus.Counter
	sessions       prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "messages_total",
			Help:      "Messages appended to sessions, by role.",
		}, []string{"role"}),
		summarizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "summarizations_total",
			Help:      "Summarization runs, by result and trigger.",
		}, []string{"result", "trigger"}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "truncations_total",
			Help:      "History truncations applied while building context.",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "removed_messages_total",
			Help:      "Messages dropped from session histories by trims and truncations.",
		}),
		usage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatmem",
			Name:      "context_usage_ratio",
			Help:      "Estimated context window usage after each append.",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.8, 0.9, 1, 1.25},
		}),
		searchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "search_failures_total",
			Help:      "Relevance searches that failed and degraded to no results.",
		}),
		exceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "context_window_exceeded_total",
			Help:      "Context requests that still overflowed after reduction.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatmem",
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.messages, m.summarizations, m.truncations, m.removed,
			m.usage, m.searchFailures, m.exceeded, m.sessions)
	}
	return m
}

func (m *Metrics) message(role string) {
	if m != nil {
		m.messages.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) summarization(result, trigger string) {
	if m != nil {
		m.summarizations.WithLabelValues(result, trigger).Inc()
	}
}

func (m *Metrics) truncation(removed int) {
	if m != nil {
		m.truncations.Inc()
		m.removed.Add(float64(removed))
	}
}

func (m *Metrics) trimmed(removed int) {
	if m != nil && removed > 0 {
		m.removed.Add(float64(removed))
	}
}

func (m *Metrics) observeUsage(ratio float64) {
	if m != nil {
		m.usage.Observe(ratio)
	}
}

func (m *Metrics) searchFailure() {
	if m != nil {
		m.searchFailures.Inc()
	}
}

func (m *Metrics) windowExceeded() {
	if m != nil {
		m.exceeded.Inc()
	}
}

func (m *Metrics) setSessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}
