package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageCacheHits tracks page lookups served from memory
	PageCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_page_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	// PageCacheMisses tracks page lookups that found nothing
	PageCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_page_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	// PagesPruned tracks pages dropped by truncation or explicit pruning
	PagesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_pages_pruned_total",
			Help: "Total number of cached pages pruned",
		},
	)

	// SnapshotHits tracks successful warm-start loads from Redis
	SnapshotHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_snapshot_hits_total",
			Help: "Total number of page snapshots loaded from Redis",
		},
	)

	// SnapshotMisses tracks warm-start lookups that found nothing usable
	SnapshotMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_snapshot_misses_total",
			Help: "Total number of page snapshot misses",
		},
	)

	// SnapshotSize tracks encoded snapshot sizes
	SnapshotSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_snapshot_size_bytes",
			Help:    "Size of stored page snapshots in bytes",
			Buckets: prometheus.ExponentialBuckets(512, 4, 8),
		},
	)

	// SnapshotErrors tracks snapshot store failures
	SnapshotErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_snapshot_errors_total",
			Help: "Total number of snapshot store errors",
		},
		[]string{"operation"}, // "load", "save", "delete"
	)
)
