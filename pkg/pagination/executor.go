package pagination

import (
	"context"

	"github.com/Sternrassler/catalog-client/pkg/cache"
)

// FetchExecutor performs exactly one fetch of one page. It must not retry
// and must not cache; cancelling ctx must settle the call promptly with a
// cancellation error. *client.ListingFetcher implements it.
type FetchExecutor interface {
	FetchPage(ctx context.Context, q cache.Query, page int) (*cache.PageResult, error)
}

// FetchFunc adapts a function to FetchExecutor.
type FetchFunc func(ctx context.Context, q cache.Query, page int) (*cache.PageResult, error)

// FetchPage calls f.
func (f FetchFunc) FetchPage(ctx context.Context, q cache.Query, page int) (*cache.PageResult, error) {
	return f(ctx, q, page)
}
