package httpapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for outbound API requests.
type Metrics struct {
	requests        *prometheus.CounterVec
	transportErrors *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// NewMetrics creates a collector and registers it with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finboard_api_requests_total",
			Help: "Outbound API requests by method and status code",
		}, []string{"method", "status_code"}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finboard_api_transport_errors_total",
			Help: "Outbound API requests that failed before receiving a response",
		}, []string{"method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finboard_api_request_duration_seconds",
			Help:    "Outbound API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(m.requests, m.transportErrors, m.latency)

	return m
}

// RecordRequest records a completed request.
func (m *Metrics) RecordRequest(method string, statusCode int, duration time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTransportError records a request that never reached the backend.
func (m *Metrics) RecordTransportError(method string) {
	m.transportErrors.WithLabelValues(method).Inc()
}
