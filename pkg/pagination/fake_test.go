package pagination

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/client"
)

// gate blocks a fetch until released. A stubborn gate ignores
// cancellation, so its fetch returns a result after the caller gave up.
type gate struct {
	release  chan struct{}
	stubborn bool
}

type call struct {
	op   string
	page int
}

// fakeExecutor serves scripted pages per operation and page number.
type fakeExecutor struct {
	mu      sync.Mutex
	pages   map[string]*cache.PageResult
	errs    map[string]error
	gates   map[string]*gate
	calls   []call
	started chan call
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		pages:   make(map[string]*cache.PageResult),
		errs:    make(map[string]error),
		gates:   make(map[string]*gate),
		started: make(chan call, 64),
	}
}

func fakeKey(op string, page int) string {
	return fmt.Sprintf("%s#%d", op, page)
}

func (f *fakeExecutor) set(op string, page int, hasNext bool, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[fakeKey(op, page)] = &cache.PageResult{ItemIDs: ids, HasNextPage: hasNext}
	delete(f.errs, fakeKey(op, page))
}

func (f *fakeExecutor) fail(op string, page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[fakeKey(op, page)] = err
}

// block gates the next fetches of a page until the returned func is called.
func (f *fakeExecutor) block(op string, page int, stubborn bool) func() {
	g := &gate{release: make(chan struct{}), stubborn: stubborn}
	f.mu.Lock()
	f.gates[fakeKey(op, page)] = g
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, fakeKey(op, page))
			f.mu.Unlock()
			close(g.release)
		})
	}
}

func (f *fakeExecutor) FetchPage(ctx context.Context, q cache.Query, page int) (*cache.PageResult, error) {
	key := fakeKey(q.Operation, page)

	f.mu.Lock()
	f.calls = append(f.calls, call{op: q.Operation, page: page})
	g := f.gates[key]
	f.mu.Unlock()

	select {
	case f.started <- call{op: q.Operation, page: page}:
	default:
	}

	if g != nil {
		if g.stubborn {
			<-g.release
		} else {
			select {
			case <-g.release:
			case <-ctx.Done():
				return nil, client.NewCancellationError(ctx.Err())
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	res, ok := f.pages[key]
	if !ok {
		return &cache.PageResult{ItemIDs: []string{}}, nil
	}
	copied := *res
	copied.ItemIDs = append([]string(nil), res.ItemIDs...)
	return &copied, nil
}

// pagesFetched returns the fetched page numbers of op in call order.
func (f *fakeExecutor) pagesFetched(op string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pages []int
	for _, c := range f.calls {
		if c.op == op {
			pages = append(pages, c.page)
		}
	}
	return pages
}

func (f *fakeExecutor) count(op string, page int) int {
	n := 0
	for _, p := range f.pagesFetched(op) {
		if p == page {
			n++
		}
	}
	return n
}

// waitStarted waits until a fetch of op/page has started.
func (f *fakeExecutor) waitStarted(t *testing.T, op string, page int) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c := <-f.started:
			if c.op == op && c.page == page {
				return
			}
		case <-timeout:
			t.Fatalf("fetch of %s page %d never started", op, page)
		}
	}
}

func listQuery(op string) cache.Query {
	return cache.Query{Operation: op, Variables: map[string]any{"source": "42", "type": "POPULAR"}}
}

func seed(pc *cache.PageCache, q cache.Query, pages ...[]string) {
	sig := q.Signature()
	for i, ids := range pages {
		pc.Put(sig, i+1, cache.PageEntry{Result: &cache.PageResult{ItemIDs: ids, HasNextPage: i < len(pages)-1}})
	}
}

func ids(pc *cache.PageCache, sig cache.Signature, page int) []string {
	entry, ok := pc.Get(sig, page)
	if !ok || entry.Result == nil {
		return nil
	}
	return entry.Result.ItemIDs
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background work")
	}
}

var testLogger = zerolog.Nop()
