// Package observability provides Prometheus metrics for the protocol
// surface.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the custom Prometheus metrics the server exports.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	FallbackRequests *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers the server metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yggdrasil_requests_total",
				Help: "Total number of HTTP requests by route pattern and status",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yggdrasil_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		FallbackRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yggdrasil_fallback_requests_total",
				Help: "Total number of fallback lookups by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.FallbackRequests)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// ObserveFallback records one fallback lookup outcome.
func (m *Metrics) ObserveFallback(operation string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.FallbackRequests.WithLabelValues(operation, outcome).Inc()
}
