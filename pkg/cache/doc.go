// Package cache provides the page cache behind paginated listing queries.
//
// A listing query is identified by its Signature: a deterministic
// serialization of the Query with the page number left out. Every signature
// owns one Partition holding its initial-load state and its cached pages.
// The set of cached pages is the key set of the entries, so the two can
// never drift apart.
//
// # Basic Usage
//
//	pc := cache.NewPageCache()
//
//	q := cache.Query{
//		Operation: "fetchSourceManga",
//		Variables: map[string]any{"source": "2499283573021220255", "type": "POPULAR"},
//	}
//	sig := q.Signature()
//
//	pc.Put(sig, 1, cache.PageEntry{Result: result})
//	entry, ok := pc.Get(sig, 1)
//
// # Read-Modify-Write
//
// Decisions that read the page set and then change it must happen inside
// Update so no other writer can interleave:
//
//	pc.Update(sig, func(p *cache.Partition) {
//		if !fresh.HasNextPage {
//			p.TruncateAfter(page)
//		}
//	})
//
// # Snapshots
//
// Manager persists partition snapshots in Redis. A restarted process can
// restore a snapshot and serve those pages while they are revalidated.
//
//	manager := cache.NewManager(redisClient)
//	if err := manager.Save(ctx, pc.Snapshot(sig, time.Hour)); err != nil {
//		return err
//	}
//
// # Metrics
//
//   - catalog_page_cache_hits_total - Page cache hits
//   - catalog_page_cache_misses_total - Page cache misses
//   - catalog_pages_pruned_total - Pages dropped by truncation
//   - catalog_snapshot_hits_total / catalog_snapshot_misses_total - Warm starts
//   - catalog_snapshot_size_bytes - Encoded snapshot size
//   - catalog_snapshot_errors_total{operation} - Snapshot store errors
package cache
