// Package metrics holds the Prometheus collectors shared by the web front end.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "property_search"

var (
	// BackendRequests counts backend calls.
	// Labels: endpoint (properties, property, internet_provider, bike_parkings, ping), status (2xx, 4xx, 5xx, error)
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "requests_total",
		Help:      "Total requests sent to the property backend",
	}, []string{"endpoint", "status"})

	// BackendLatency measures backend round trips.
	// Labels: endpoint
	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "latency_seconds",
		Help:      "Backend request latency in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"endpoint"})

	// Degradations counts optional fetches that fell back to an empty value.
	// Labels: source (internet_provider, bike_parkings), reason (not_found, error, panic)
	Degradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "detail",
		Name:      "degradations_total",
		Help:      "Optional detail fetches degraded to an empty value",
	}, []string{"source", "reason"})

	// Retries counts scheduled retries.
	// Labels: endpoint
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "retries_total",
		Help:      "Backend requests retried after a transient failure",
	}, []string{"endpoint"})

	// SearchSubmits counts search submissions by outcome (success, error, superseded).
	SearchSubmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "submits_total",
		Help:      "Search form submissions by outcome",
	}, []string{"outcome"})

	// PageRequests counts rendered requests.
	// Labels: route, status
	PageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served by the front end",
	}, []string{"route", "status"})

	// PageLatency measures request handling time.
	PageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Front end request handling time in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// Panics counts recovered panics by scope (page, api, goroutine).
	Panics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "boundary",
		Name:      "panics_total",
		Help:      "Panics recovered by the error boundary",
	}, []string{"scope"})

	// BackendUp is 1 while the latest health probe succeeded.
	BackendUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "up",
		Help:      "Whether the last backend probe succeeded",
	})

	// ActiveSessions is the number of live view sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Live search view sessions",
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter",
	})
)

// StatusClass folds an HTTP status into 2xx/3xx/4xx/5xx. Zero means the request never got a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ObserveBackend records one backend round trip.
func ObserveBackend(endpoint string, status int, elapsed time.Duration) {
	BackendRequests.WithLabelValues(endpoint, StatusClass(status)).Inc()
	BackendLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
