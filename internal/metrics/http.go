// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors for the daemon and client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saytube_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"method", "route", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "saytube_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served",
	})

	rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saytube_ratelimit_rejections_total",
		Help: "Requests rejected by the per-client rate limiter",
	}, []string{"route"})

	rateLimitStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saytube_ratelimit_store_errors_total",
		Help: "Window store failures (requests are admitted when the store fails)",
	}, []string{"store"})
)

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, route, status string, seconds float64) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// InFlightInc marks the start of a request.
func InFlightInc() { httpInFlight.Inc() }

// InFlightDec marks the end of a request.
func InFlightDec() { httpInFlight.Dec() }

// IncRateLimitRejection counts a 429 answer.
func IncRateLimitRejection(route string) {
	rateLimitRejections.WithLabelValues(route).Inc()
}

// IncRateLimitStoreError counts a failed window store round trip.
func IncRateLimitStoreError(store string) {
	rateLimitStoreErrors.WithLabelValues(store).Inc()
}
