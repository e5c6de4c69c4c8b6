package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks gateway request counters. Prometheus collectors back the
// /metrics endpoint; atomic counters back the /api/status snapshot.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	total        atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	overflows    atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
}

// NewMetrics creates the gateway collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmem",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatmem",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		return m, nil
	}
	if err := errors.Join(reg.Register(m.requests), reg.Register(m.duration)); err != nil {
		return nil, fmt.Errorf("gateway: registering metrics: %w", err)
	}
	return m, nil
}

// Middleware records one observation per request, labelled with the chi
// route pattern so that path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Record(r.Method, route, status, time.Since(start))
	})
}

// Record records a finished request.
func (m *Metrics) Record(method, route string, status int, latency time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(latency.Seconds())

	m.total.Add(1)
	m.totalLatency.Add(int64(latency))
	switch {
	case status == http.StatusRequestEntityTooLarge:
		m.overflows.Add(1)
		m.clientErrors.Add(1)
	case status >= 500:
		m.serverErrors.Add(1)
	case status >= 400:
		m.clientErrors.Add(1)
	}
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	total := m.total.Load()
	snap := MetricsSnapshot{
		Requests:     total,
		ClientErrors: m.clientErrors.Load(),
		ServerErrors: m.serverErrors.Load(),
		Overflows:    m.overflows.Load(),
	}
	if total > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / total)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests     int64         `json:"requests"`
	ClientErrors int64         `json:"client_errors"`
	ServerErrors int64         `json:"server_errors"`
	Overflows    int64         `json:"context_overflows"`
	AvgLatency   time.Duration `json:"avg_latency_ns"`
}
