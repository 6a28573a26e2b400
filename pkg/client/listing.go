package client

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/Sternrassler/catalog-client/pkg/cache"
)

// Executor performs one remote operation. *Client implements it.
type Executor interface {
	Execute(ctx context.Context, op Operation, variables map[string]any) (*Response, error)
}

// ListingEndpoint describes a paginated listing operation and where its
// payload keeps the item identities and the next-page flag.
type ListingEndpoint struct {
	Operation Operation

	// InputVariable wraps the query variables in one input object
	// ({"input": {..., "page": N}}). Empty sends them top-level.
	InputVariable string

	// ItemsPath is the gjson path of the item array in the payload
	ItemsPath string

	// IDField is the gjson path of the identity within one item
	IDField string

	// HasNextPath is the gjson path of the next-page flag
	HasNextPath string
}

// SourceMangasEndpoint is the source browse/search listing.
var SourceMangasEndpoint = ListingEndpoint{
	Operation: Operation{
		Name: "GET_SOURCE_MANGAS_FETCH",
		Document: `mutation GET_SOURCE_MANGAS_FETCH($input: FetchSourceMangaInput!) {
  fetchSourceManga(input: $input) {
    hasNextPage
    mangas { id title thumbnailUrl inLibrary }
  }
}`,
	},
	InputVariable: "input",
	ItemsPath:     "fetchSourceManga.mangas",
	IDField:       "id",
	HasNextPath:   "fetchSourceManga.hasNextPage",
}

// ListingFetcher fetches single pages of a listing endpoint. It makes
// exactly one call per page and never caches.
type ListingFetcher struct {
	exec     Executor
	endpoint ListingEndpoint
}

// NewListingFetcher creates a fetcher for endpoint.
func NewListingFetcher(exec Executor, endpoint ListingEndpoint) (*ListingFetcher, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if endpoint.Operation.Name == "" {
		return nil, fmt.Errorf("operation name is required")
	}
	if endpoint.ItemsPath == "" || endpoint.HasNextPath == "" {
		return nil, fmt.Errorf("items path and has-next path are required")
	}
	if endpoint.IDField == "" {
		endpoint.IDField = "id"
	}
	return &ListingFetcher{exec: exec, endpoint: endpoint}, nil
}

// FetchPage fetches one page of q.
func (f *ListingFetcher) FetchPage(ctx context.Context, q cache.Query, page int) (*cache.PageResult, error) {
	vars := q.WithPage(page)
	if f.endpoint.InputVariable != "" {
		vars = map[string]any{f.endpoint.InputVariable: vars}
	}

	resp, err := f.exec.Execute(ctx, f.endpoint.Operation, vars)
	if err != nil {
		return nil, err
	}

	return ExtractPage(resp.Data, f.endpoint)
}

// ExtractPage derives the page facts from a raw payload.
func ExtractPage(data []byte, endpoint ListingEndpoint) (*cache.PageResult, error) {
	if !gjson.ValidBytes(data) {
		return nil, &FetchError{Class: ErrorClassUpstream, Message: "payload is not valid JSON"}
	}

	items := gjson.GetBytes(data, endpoint.ItemsPath)
	if !items.Exists() || !items.IsArray() {
		return nil, &FetchError{
			Class:   ErrorClassUpstream,
			Message: fmt.Sprintf("payload has no item array at %q", endpoint.ItemsPath),
		}
	}

	idField := endpoint.IDField
	if idField == "" {
		idField = "id"
	}

	ids := make([]string, 0, len(items.Array()))
	items.ForEach(func(_, item gjson.Result) bool {
		ids = append(ids, item.Get(idField).String())
		return true
	})

	return &cache.PageResult{
		ItemIDs:     ids,
		HasNextPage: gjson.GetBytes(data, endpoint.HasNextPath).Bool(),
		Data:        append([]byte(nil), data...),
	}, nil
}
