// Package metrics holds the prometheus collectors for the retrieval pipeline.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docrag"

// Provider metrics
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total embedding and reranking backend requests",
		},
		[]string{"provider", "op", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Backend request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "op"},
	)

	RerankDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_degraded_total",
			Help:      "Rerank calls answered with identity ordering after a backend failure",
		},
		[]string{"provider"},
	)
)

// Cache and retrieval metrics
var (
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Bounded cache lookups",
		},
		[]string{"cache", "result"}, // "hit" / "miss"
	)

	SearchFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_fallback_total",
			Help:      "Searches served by keyword scoring after an embedding failure",
		},
		[]string{"domain"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end retriever latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"domain", "mode"},
	)
)

func all() []prometheus.Collector {
	return []prometheus.Collector{
		ProviderRequestsTotal,
		ProviderRequestDuration,
		RerankDegradedTotal,
		CacheRequestsTotal,
		SearchFallbackTotal,
		SearchDuration,
	}
}

// Register adds every collector to reg. Collectors already registered are ignored.
func Register(reg prometheus.Registerer) error {
	for _, c := range all() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
