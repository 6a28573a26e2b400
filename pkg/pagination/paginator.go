package pagination

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/logging"
)

// Paginator drives the initial sequential load of pages 1..N for a new
// signature.
type Paginator struct {
	cache        *cache.PageCache
	exec         FetchExecutor
	initialPages int
	notify       func(cache.Signature)
	logger       zerolog.Logger
}

// NewPaginator creates a paginator loading up to initialPages pages.
// notify may be nil.
func NewPaginator(pc *cache.PageCache, exec FetchExecutor, initialPages int, notify func(cache.Signature), logger zerolog.Logger) *Paginator {
	if initialPages < 1 {
		initialPages = 1
	}
	return &Paginator{
		cache:        pc,
		exec:         exec,
		initialPages: initialPages,
		notify:       notify,
		logger:       logging.WithComponent(logger, "paginator"),
	}
}

// Load fetches pages 1..N in order, writing each page to the cache as soon
// as it arrives. It stops at the first page reporting no next page and
// aborts on the first failure, keeping the pages cached so far.
//
// The caller must have moved the signature into the loading state with
// cache.PageCache.BeginInitialLoad; Load always finishes that state.
//
// Load returns page 1 whenever it was fetched, together with the error of
// a later page if one failed. The error is returned as the executor
// produced it.
func (p *Paginator) Load(ctx context.Context, q cache.Query) (*cache.PageResult, error) {
	sig := q.Signature()
	start := time.Now()
	defer p.cache.FinishInitialLoad(sig)

	var first *cache.PageResult
	loaded := 0

	for page := 1; page <= p.initialPages; page++ {
		if err := ctx.Err(); err != nil {
			initialLoadsTotal.WithLabelValues(outcomeCancelled).Inc()
			return first, client.NewCancellationError(err)
		}

		res, err := p.exec.FetchPage(ctx, q, page)
		pageFetchesTotal.WithLabelValues(kindInitial, resultLabel(err)).Inc()
		if err != nil {
			event := p.logger.Warn()
			result := outcomeFailed
			if client.IsCancellation(err) {
				event = p.logger.Debug()
				result = outcomeCancelled
			}
			event.
				Err(err).
				Str("signature", sig.String()).
				Int("page", page).
				Int("loaded", loaded).
				Str("error_class", string(client.Classify(err))).
				Msg("Initial load aborted")
			initialLoadsTotal.WithLabelValues(result).Inc()
			return first, err
		}

		cancelled := false
		p.cache.Update(sig, func(part *cache.Partition) {
			if ctx.Err() != nil {
				cancelled = true
				return
			}
			part.Put(page, cache.PageEntry{Result: res})
		})
		if cancelled {
			initialLoadsTotal.WithLabelValues(outcomeCancelled).Inc()
			return first, client.NewCancellationError(ctx.Err())
		}
		loaded++
		if page == 1 {
			first = res
		}
		if p.notify != nil {
			p.notify(sig)
		}

		if !res.HasNextPage {
			break
		}
	}

	initialLoadsTotal.WithLabelValues(outcomeCompleted).Inc()
	p.logger.Info().
		Str("signature", sig.String()).
		Int("pages", loaded).
		Dur("duration", time.Since(start)).
		Msg("Initial load complete")

	return first, nil
}
