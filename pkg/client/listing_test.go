package client

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/catalog-client/internal/testutil"
	"github.com/Sternrassler/catalog-client/pkg/cache"
)

type recordingExecutor struct {
	op        Operation
	variables map[string]any
	data      string
	err       error
}

func (r *recordingExecutor) Execute(_ context.Context, op Operation, variables map[string]any) (*Response, error) {
	r.op = op
	r.variables = variables
	if r.err != nil {
		return nil, r.err
	}
	return &Response{Data: []byte(r.data), StatusCode: 200}, nil
}

func TestNewListingFetcher_Validation(t *testing.T) {
	exec := &recordingExecutor{}

	if _, err := NewListingFetcher(nil, SourceMangasEndpoint); err == nil {
		t.Error("nil executor should fail")
	}
	if _, err := NewListingFetcher(exec, ListingEndpoint{ItemsPath: "a", HasNextPath: "b"}); err == nil {
		t.Error("missing operation name should fail")
	}
	if _, err := NewListingFetcher(exec, ListingEndpoint{Operation: Operation{Name: "x"}}); err == nil {
		t.Error("missing paths should fail")
	}

	f, err := NewListingFetcher(exec, ListingEndpoint{Operation: Operation{Name: "x"}, ItemsPath: "a", HasNextPath: "b"})
	if err != nil {
		t.Fatalf("NewListingFetcher() error = %v", err)
	}
	if f.endpoint.IDField != "id" {
		t.Errorf("IDField = %q, want id", f.endpoint.IDField)
	}
}

func TestListingFetcher_FetchPage_Variables(t *testing.T) {
	exec := &recordingExecutor{
		data: `{"fetchSourceManga":{"hasNextPage":true,"mangas":[{"id":7},{"id":9}]}}`,
	}
	f, err := NewListingFetcher(exec, SourceMangasEndpoint)
	if err != nil {
		t.Fatal(err)
	}

	q := cache.Query{Operation: "GET_SOURCE_MANGAS_FETCH", Variables: map[string]any{"source": "42", "type": "POPULAR"}}
	res, err := f.FetchPage(context.Background(), q, 3)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	input, ok := exec.variables["input"].(map[string]any)
	if !ok {
		t.Fatalf("variables = %v, want wrapped input", exec.variables)
	}
	if input["page"] != 3 || input["source"] != "42" {
		t.Errorf("input = %v, want source=42 page=3", input)
	}
	if _, leaked := q.Variables["page"]; leaked {
		t.Error("FetchPage must not mutate the query variables")
	}

	if len(res.ItemIDs) != 2 || res.ItemIDs[0] != "7" || res.ItemIDs[1] != "9" {
		t.Errorf("ItemIDs = %v, want [7 9]", res.ItemIDs)
	}
	if !res.HasNextPage {
		t.Error("HasNextPage = false, want true")
	}
}

func TestListingFetcher_FetchPage_TopLevelVariables(t *testing.T) {
	exec := &recordingExecutor{data: `{"list":{"more":false,"items":[]}}`}
	f, err := NewListingFetcher(exec, ListingEndpoint{
		Operation:   Operation{Name: "LIST"},
		ItemsPath:   "list.items",
		HasNextPath: "list.more",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.FetchPage(context.Background(), cache.Query{Operation: "LIST"}, 2); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if exec.variables["page"] != 2 {
		t.Errorf("variables = %v, want page=2 top-level", exec.variables)
	}
}

func TestListingFetcher_FetchPage_PropagatesError(t *testing.T) {
	exec := &recordingExecutor{err: NewCancellationError(nil)}
	f, _ := NewListingFetcher(exec, SourceMangasEndpoint)

	_, err := f.FetchPage(context.Background(), cache.Query{}, 1)
	if !IsCancellation(err) {
		t.Errorf("FetchPage() error = %v, want cancellation", err)
	}
}

func TestExtractPage(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantIDs   []string
		wantNext  bool
		wantError bool
	}{
		{
			name:     "items and next",
			data:     `{"fetchSourceManga":{"hasNextPage":true,"mangas":[{"id":"a"},{"id":"b"}]}}`,
			wantIDs:  []string{"a", "b"},
			wantNext: true,
		},
		{
			name:    "last page",
			data:    `{"fetchSourceManga":{"hasNextPage":false,"mangas":[{"id":"c"}]}}`,
			wantIDs: []string{"c"},
		},
		{
			name:    "empty page",
			data:    `{"fetchSourceManga":{"hasNextPage":false,"mangas":[]}}`,
			wantIDs: []string{},
		},
		{
			name:      "missing array",
			data:      `{"fetchSourceManga":{"hasNextPage":false}}`,
			wantError: true,
		},
		{
			name:      "invalid json",
			data:      `{"fetchSourceManga":`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ExtractPage([]byte(tt.data), SourceMangasEndpoint)
			if tt.wantError {
				var fe *FetchError
				if !errors.As(err, &fe) || fe.Class != ErrorClassUpstream {
					t.Fatalf("ExtractPage() error = %v, want upstream FetchError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractPage() error = %v", err)
			}
			if len(res.ItemIDs) != len(tt.wantIDs) {
				t.Fatalf("ItemIDs = %v, want %v", res.ItemIDs, tt.wantIDs)
			}
			for i := range tt.wantIDs {
				if res.ItemIDs[i] != tt.wantIDs[i] {
					t.Errorf("ItemIDs[%d] = %q, want %q", i, res.ItemIDs[i], tt.wantIDs[i])
				}
			}
			if res.HasNextPage != tt.wantNext {
				t.Errorf("HasNextPage = %v, want %v", res.HasNextPage, tt.wantNext)
			}
			if string(res.Data) != tt.data {
				t.Error("Data should keep the raw payload")
			}
		})
	}
}

func TestListingFetcher_AgainstMockCatalog(t *testing.T) {
	mock := testutil.NewMockCatalog(2, "a", "b", "c")
	defer mock.Close()

	c := newTestClient(t, mock.URL())
	f, err := NewListingFetcher(c, SourceMangasEndpoint)
	if err != nil {
		t.Fatal(err)
	}

	q := cache.Query{Operation: "GET_SOURCE_MANGAS_FETCH", Variables: map[string]any{"source": "1"}}
	res, err := f.FetchPage(context.Background(), q, 2)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(res.ItemIDs) != 1 || res.ItemIDs[0] != "c" {
		t.Errorf("ItemIDs = %v, want [c]", res.ItemIDs)
	}
	if res.HasNextPage {
		t.Error("last page should not report a next page")
	}
	if mock.GetPageRequests(2) != 1 {
		t.Errorf("page 2 requests = %d, want 1", mock.GetPageRequests(2))
	}
}
