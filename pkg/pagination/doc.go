// Package pagination serves paginated catalog listings from a page cache
// and keeps that cache consistent with the live upstream ordering.
//
// The engine combines four parts:
//   - Paginator loads pages 1..N of a new query one after another and
//     stops as soon as a page reports no next page.
//   - Revalidator re-fetches cached pages from page 1, overwrites pages
//     whose items moved and prunes pages past the end of the listing. It
//     stops at the first page that still matches the cache.
//   - SessionCoordinator runs at most one revalidation at a time.
//     Callers for the same query join it; callers for another query
//     cancel it.
//   - Engine ties them together behind RequestPage, View, Open, Abort
//     and Reset.
//
// Example usage:
//
//	fetcher, _ := client.NewListingFetcher(catalogClient, client.SourceMangasEndpoint)
//	engine, _ := pagination.New(fetcher, pagination.DefaultConfig())
//
//	q := cache.Query{Operation: "GET_SOURCE_MANGAS_FETCH", Variables: map[string]any{"source": "42"}}
//	first, err := engine.RequestPage(ctx, q, 1)
//	next, err := engine.RequestPage(ctx, q, 2) // revalidates page 1 first
//	view := engine.View(q)
//
// Failed fetches are returned to the caller and never cached. Failed
// revalidations are logged and leave the cached pages untouched.
package pagination
