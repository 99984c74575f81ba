package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userapi_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestsInFlight is the number of HTTP requests currently being served.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "userapi_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// CacheOperations counts cache facade calls by backend, operation and outcome (ok|miss|unavailable).
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userapi_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"backend", "op", "outcome"},
	)

	// ConnectionAttempts counts backing service dials by service and result (success|failure).
	ConnectionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userapi_connection_attempts_total",
			Help: "Total number of backing service connection attempts",
		},
		[]string{"service", "result"},
	)

	// DegradedRoutes is 1 when the degraded route set is mounted.
	DegradedRoutes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "userapi_degraded_routes",
			Help: "Whether the degraded route set is serving requests",
		},
	)
)
