// Package metrics exposes Prometheus counters for the cache engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits counts requests answered from the cache with a full response.
	Hits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_cache_hits_total",
			Help: "Total number of requests served from the cache",
		},
	)

	// NotModified counts 304 responses generated from the cache.
	NotModified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_cache_not_modified_total",
			Help: "Total number of 304 Not Modified responses generated from the cache",
		},
	)

	// Misses counts requests forwarded to the origin, by forward reason.
	Misses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replay_cache_misses_total",
			Help: "Total number of requests forwarded to the origin",
		},
		[]string{"reason"},
	)

	// Stored counts responses written to the store.
	Stored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_cache_stored_total",
			Help: "Total number of responses stored in the cache",
		},
	)

	// Revalidations counts stale entries refreshed by an origin 304.
	Revalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_cache_revalidations_total",
			Help: "Total number of stale entries successfully revalidated with the origin",
		},
	)

	// StoreErrors counts failed store operations.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replay_cache_store_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"operation"},
	)
)
