// Package metrics provides the Prometheus registry shared by the catalog client.
// All metrics are defined in their respective packages (client, cache, pagination)
// to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP handler and a reference of all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the catalog client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{operation, status} (Counter): Requests by operation and HTTP status
//   - catalog_request_duration_seconds{operation} (Histogram): Request duration by operation
//   - catalog_errors_total{class} (Counter): Errors by class (network, cancelled, upstream)
//
// Cache Metrics (pkg/cache):
//   - catalog_page_cache_hits_total (Counter): Page cache hits
//   - catalog_page_cache_misses_total (Counter): Page cache misses
//   - catalog_pages_pruned_total (Counter): Pages pruned by revalidation
//   - catalog_snapshot_hits_total (Counter): Snapshots found in Redis
//   - catalog_snapshot_misses_total (Counter): Snapshots missing or expired
//   - catalog_snapshot_size_bytes (Histogram): Stored snapshot size
//   - catalog_snapshot_errors_total{operation} (Counter): Snapshot store errors
//
// Pagination Metrics (pkg/pagination):
//   - catalog_page_fetches_total{kind, result} (Counter): Page fetches by kind
//     (initial, foreground, revalidation) and result (success, network, cancelled, upstream)
//   - catalog_revalidation_sessions_total{outcome} (Counter): Sessions by outcome
//     (started, joined, preempted, completed, cancelled, failed)
//   - catalog_page_divergences_total (Counter): Cached pages found stale
//   - catalog_initial_loads_total{result} (Counter): Initial loads (completed, cancelled, failed)
//
// Example Prometheus Queries:
//
//   # Page Cache Hit Rate
//   sum(rate(catalog_page_cache_hits_total[5m])) /
//   (sum(rate(catalog_page_cache_hits_total[5m])) + sum(rate(catalog_page_cache_misses_total[5m])))
//
//   # Share of revalidations that found stale pages
//   rate(catalog_page_divergences_total[5m]) /
//   rate(catalog_page_fetches_total{kind="revalidation"}[5m])
//
//   # Failed Revalidations
//   rate(catalog_revalidation_sessions_total{outcome="failed"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
