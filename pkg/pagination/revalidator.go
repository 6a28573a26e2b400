package pagination

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/logging"
)

// Revalidator re-fetches cached pages from page 1 forward and repairs the
// cache where the upstream ordering moved.
type Revalidator struct {
	cache  *cache.PageCache
	exec   FetchExecutor
	notify func(cache.Signature)
	logger zerolog.Logger
}

// NewRevalidator creates a revalidator. notify may be nil.
func NewRevalidator(pc *cache.PageCache, exec FetchExecutor, notify func(cache.Signature), logger zerolog.Logger) *Revalidator {
	return &Revalidator{
		cache:  pc,
		exec:   exec,
		notify: notify,
		logger: logging.WithComponent(logger, "revalidator"),
	}
}

// Diverges reports whether a fresh page disagrees with the cached one.
// A page diverges when nothing usable is cached for it or when any cached
// item identity differs from the fresh item at the same position.
func Diverges(cached cache.PageEntry, ok bool, fresh *cache.PageResult) bool {
	if !ok || cached.Result == nil || len(cached.Result.ItemIDs) == 0 {
		return true
	}
	for i, id := range cached.Result.ItemIDs {
		if i >= len(fresh.ItemIDs) || fresh.ItemIDs[i] != id {
			return true
		}
	}
	return false
}

// Run walks pages 1..maxPage of q. Each fresh page overwrites a divergent
// cached page. A page reporting no next page prunes every cached page
// after it and ends the walk. The walk also ends at the first page that
// still matches the cache, or at maxPage.
//
// Nothing is written once ctx is cancelled, even for a fetch that already
// returned.
func (r *Revalidator) Run(ctx context.Context, q cache.Query, maxPage int) error {
	sig := q.Signature()
	start := time.Now()
	if maxPage < 1 {
		maxPage = 1
	}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return client.NewCancellationError(err)
		}

		fresh, err := r.exec.FetchPage(ctx, q, page)
		pageFetchesTotal.WithLabelValues(kindRevalidation, resultLabel(err)).Inc()
		if err != nil {
			return err
		}

		var (
			divergent bool
			pruned    []int
			cancelled bool
		)
		r.cache.Update(sig, func(p *cache.Partition) {
			if ctx.Err() != nil {
				cancelled = true
				return
			}
			cached, ok := p.Get(page)
			divergent = Diverges(cached, ok, fresh)
			if divergent {
				p.Put(page, cache.PageEntry{Result: fresh})
			}
			if !fresh.HasNextPage {
				pruned = p.TruncateAfter(page)
			}
		})
		if cancelled {
			return client.NewCancellationError(ctx.Err())
		}

		if divergent {
			pageDivergencesTotal.Inc()
		}
		if (divergent || len(pruned) > 0) && r.notify != nil {
			r.notify(sig)
		}

		r.logger.Debug().
			Str("signature", sig.String()).
			Int("page", page).
			Int("max_page", maxPage).
			Bool("divergent", divergent).
			Msg("Page revalidated")

		if !fresh.HasNextPage {
			if len(pruned) > 0 {
				r.logger.Info().
					Str("signature", sig.String()).
					Int("page", page).
					Ints("pruned", pruned).
					Msg("Listing ends early, pruned cached pages")
			}
			break
		}
		if !divergent || page >= maxPage {
			break
		}
	}

	r.logger.Debug().
		Str("signature", sig.String()).
		Dur("duration", time.Since(start)).
		Msg("Revalidation finished")
	return nil
}
