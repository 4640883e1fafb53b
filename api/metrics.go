package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects client side request metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escala_api_requests_total",
			Help: "Requests sent to the escala API by route and status code.",
		}, []string{"method", "route", "status_code"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escala_api_transport_failures_total",
			Help: "Requests that never got a response.",
		}, []string{"method", "route"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "escala_api_request_duration_seconds",
			Help:    "Time until response headers were received.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.failures, m.latency)
	return m
}

// status 0 means the transport failed.
func (m *Metrics) observe(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(method, route).Observe(d.Seconds())
	if status == 0 {
		m.failures.WithLabelValues(method, route).Inc()
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
