// Package metrics holds the Prometheus collectors exposed at /metrics/prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walrus_provider_requests_total",
			Help: "Outbound provider API requests by endpoint and result",
		},
		[]string{"provider", "endpoint", "result"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walrus_provider_request_duration_seconds",
			Help:    "Latency of outbound provider API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	TokenLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walrus_token_lookups_total",
			Help: "Access token lookups by the layer that answered",
		},
		[]string{"owner_kind", "source"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walrus_token_refreshes_total",
			Help: "Refresh-token exchanges by result",
		},
		[]string{"owner_kind", "result"},
	)

	ProxyAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walrus_proxy_allocations_total",
			Help: "Proxy account acquire and release outcomes",
		},
		[]string{"operation", "result"},
	)

	IngestedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walrus_ingested_records_total",
			Help: "Rows created by the ingestion pipeline",
		},
		[]string{"kind"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walrus_jobs_processed_total",
			Help: "Background jobs by type and final status",
		},
		[]string{"type", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "walrus_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)
