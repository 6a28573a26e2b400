package pagination

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/logging"
)

// ErrInvalidPage is returned for page numbers below 1.
var ErrInvalidPage = errors.New("page must be >= 1")

// snapshotTimeout bounds a single snapshot load or save.
const snapshotTimeout = 2 * time.Second

// Config holds the engine configuration.
type Config struct {
	// InitialPages is how many pages the initial load fetches at most
	InitialPages int

	// MaxRevalidatePages caps how far one revalidation walks (0 = no cap)
	MaxRevalidatePages int

	// DedupForeground shares one fetch between concurrent foreground
	// requests for the same page of the same signature. The shared fetch
	// runs under the context of the first caller.
	DedupForeground bool

	// Snapshots enables warm starts and snapshot persistence (optional)
	Snapshots *cache.Manager

	// SnapshotTTL is how long persisted snapshots stay eligible
	SnapshotTTL time.Duration

	// Notify is called whenever the view of a signature may have changed
	Notify func(cache.Signature)

	// Logger overrides the global logger (optional)
	Logger *zerolog.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		InitialPages:       1,
		MaxRevalidatePages: 50,
		SnapshotTTL:        10 * time.Minute,
	}
}

// View is the aggregated state of one signature for rendering.
type View struct {
	Signature cache.Signature

	// Pages are the cached pages in ascending order, followed by the
	// placeholder of the requested page while it is loading or failed
	Pages []cache.PageEntry

	// Size is the most recently requested page
	Size int

	IsLoading        bool
	IsLoadingInitial bool
	IsLoadingMore    bool
	IsValidating     bool

	// Err is the failure of the latest request
	Err error
}

// viewState tracks the latest foreground request of a signature.
type viewState struct {
	seq     uint64
	page    int
	loading bool
	err     error
	cancel  context.CancelFunc
}

// Engine serves paginated listings from the page cache, loading,
// revalidating and repairing pages as needed.
type Engine struct {
	exec        FetchExecutor
	cache       *cache.PageCache
	paginator   *Paginator
	revalidator *Revalidator
	sessions    *SessionCoordinator
	group       singleflight.Group
	config      Config
	logger      zerolog.Logger

	// persistMu orders snapshot writes against Reset.
	persistMu sync.Mutex

	mu     sync.Mutex
	seq    uint64
	views  map[cache.Signature]*viewState
	warmed map[cache.Signature]struct{}
}

// New creates an engine fetching through exec.
func New(exec FetchExecutor, cfg Config) (*Engine, error) {
	if exec == nil {
		return nil, fmt.Errorf("fetch executor is required")
	}

	if cfg.InitialPages < 1 {
		return nil, fmt.Errorf("initial pages must be >= 1 (got %d)", cfg.InitialPages)
	}

	if cfg.MaxRevalidatePages < 0 {
		return nil, fmt.Errorf("max revalidate pages must be >= 0 (got %d)", cfg.MaxRevalidatePages)
	}

	if cfg.Snapshots != nil && cfg.SnapshotTTL <= 0 {
		return nil, fmt.Errorf("snapshot ttl must be > 0 when snapshots are enabled")
	}

	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}

	e := &Engine{
		exec:   exec,
		cache:  cache.NewPageCache(),
		config: cfg,
		logger: logging.WithComponent(base, "pagination-engine"),
		views:  make(map[cache.Signature]*viewState),
		warmed: make(map[cache.Signature]struct{}),
	}
	e.paginator = NewPaginator(e.cache, exec, cfg.InitialPages, e.notify, base)
	e.revalidator = NewRevalidator(e.cache, exec, e.notify, base)
	e.sessions = NewSessionCoordinator(e.notify, base)

	return e, nil
}

// Cache returns the page cache backing the engine.
func (e *Engine) Cache() *cache.PageCache {
	return e.cache
}

// Sessions returns the revalidation session coordinator.
func (e *Engine) Sessions() *SessionCoordinator {
	return e.sessions
}

// RequestPage returns page of q. The first request for page 1 of a new
// signature runs the initial load. A request for page N > 1 on a signature
// with cached pages first waits for a revalidation of the pages before N.
// Errors are returned as the executor produced them and never cached.
func (e *Engine) RequestPage(ctx context.Context, q cache.Query, page int) (*cache.PageResult, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPage, page)
	}

	sig := q.Signature()
	e.warmStart(ctx, sig)

	reqCtx, seq := e.begin(ctx, sig, page)
	res, err := e.requestPage(reqCtx, q, sig, page)
	e.settle(sig, seq, err)

	if res != nil {
		return res, nil
	}
	return nil, err
}

func (e *Engine) requestPage(ctx context.Context, q cache.Query, sig cache.Signature, page int) (*cache.PageResult, error) {
	if page == 1 && e.cache.BeginInitialLoad(sig) {
		return e.loadInitial(ctx, q, sig)
	}

	if page > 1 {
		if cached := e.cache.PageSet(sig); len(cached) > 0 {
			maxPage := min(page-1, cached[len(cached)-1])
			if err := e.sessions.Ensure(ctx, sig, e.revalidation(q, maxPage)); err != nil {
				return nil, err
			}
		}
	}

	return e.fetch(ctx, q, sig, page)
}

// loadInitial runs the paginator and persists what it cached.
func (e *Engine) loadInitial(ctx context.Context, q cache.Query, sig cache.Signature) (*cache.PageResult, error) {
	e.notify(sig)
	first, err := e.paginator.Load(ctx, q)
	if first != nil {
		e.persist(ctx, sig)
	}
	return first, err
}

// fetch performs one foreground fetch and caches it on success.
func (e *Engine) fetch(ctx context.Context, q cache.Query, sig cache.Signature, page int) (*cache.PageResult, error) {
	do := func(ctx context.Context) (*cache.PageResult, error) {
		res, err := e.exec.FetchPage(ctx, q, page)
		pageFetchesTotal.WithLabelValues(kindForeground, resultLabel(err)).Inc()
		if err != nil {
			return nil, err
		}

		// Abort and Reset cancel ctx before touching the partition.
		cancelled := false
		e.cache.Update(sig, func(p *cache.Partition) {
			if ctx.Err() != nil {
				cancelled = true
				return
			}
			p.Put(page, cache.PageEntry{Result: res})
		})
		if cancelled {
			return nil, client.NewCancellationError(ctx.Err())
		}
		e.persist(ctx, sig)
		return res, nil
	}

	if !e.config.DedupForeground {
		return do(ctx)
	}

	ch := e.group.DoChan(sig.StoreKey()+"#"+strconv.Itoa(page), func() (any, error) {
		return do(ctx)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			e.logger.Debug().Str("signature", sig.String()).Int("page", page).Msg("Shared foreground fetch")
		}
		return r.Val.(*cache.PageResult), nil
	case <-ctx.Done():
		return nil, client.NewCancellationError(ctx.Err())
	}
}

// revalidation returns the session work for q, persisting the repaired
// pages when the walk finishes.
func (e *Engine) revalidation(q cache.Query, maxPage int) RunFunc {
	if e.config.MaxRevalidatePages > 0 {
		maxPage = min(maxPage, e.config.MaxRevalidatePages)
	}
	return func(ctx context.Context) error {
		if err := e.revalidator.Run(ctx, q, maxPage); err != nil {
			return err
		}
		e.persist(ctx, q.Signature())
		return nil
	}
}

// Open is called when an observer starts watching q. A new signature gets
// its initial load; a signature with cached pages and no initial load in
// progress gets a background revalidation up to its highest cached page. The returned channel is
// closed when that work ends.
func (e *Engine) Open(ctx context.Context, q cache.Query) <-chan struct{} {
	sig := q.Signature()
	e.warmStart(ctx, sig)

	if e.cache.BeginInitialLoad(sig) {
		done := make(chan struct{})
		reqCtx, seq := e.begin(ctx, sig, 1)
		go func() {
			defer close(done)
			_, err := e.loadInitial(reqCtx, q, sig)
			e.settle(sig, seq, err)
		}()
		return done
	}

	// Pages cached by a running initial load are fresh; there is nothing
	// to revalidate until it finishes.
	loading := e.cache.State(sig) == cache.StateLoadingInitial
	if cached := e.cache.PageSet(sig); len(cached) > 0 && !loading {
		return e.sessions.Start(ctx, sig, e.revalidation(q, cached[len(cached)-1]))
	}

	done := make(chan struct{})
	close(done)
	return done
}

// Abort cancels the latest foreground request and the revalidation
// session of q. Aborting twice, or after everything settled, is a no-op.
func (e *Engine) Abort(q cache.Query) {
	sig := q.Signature()

	e.mu.Lock()
	if vs, ok := e.views[sig]; ok && vs.cancel != nil {
		vs.cancel()
	}
	e.mu.Unlock()

	e.sessions.Cancel(sig)
}

// Reset aborts all work for q and drops its cached pages and snapshot.
func (e *Engine) Reset(ctx context.Context, q cache.Query) error {
	sig := q.Signature()
	e.Abort(q)

	err := e.drop(ctx, sig)
	e.notify(sig)
	return err
}

// drop forgets everything held for sig. It runs under persistMu so a
// snapshot write that started before Abort cannot land after the delete.
func (e *Engine) drop(ctx context.Context, sig cache.Signature) error {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.cache.Reset(sig)
	e.mu.Lock()
	delete(e.views, sig)
	e.mu.Unlock()

	if e.config.Snapshots == nil {
		return nil
	}
	if err := e.config.Snapshots.Delete(ctx, sig); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// View returns the aggregated state of q.
func (e *Engine) View(q cache.Query) View {
	sig := q.Signature()
	entries := e.cache.Entries(sig)
	validating := e.sessions.IsValidating(sig)

	v := View{
		Signature:        sig,
		Pages:            entries,
		IsLoadingInitial: e.cache.State(sig) == cache.StateLoadingInitial,
		IsValidating:     validating,
	}
	if len(entries) > 0 {
		v.Size = entries[len(entries)-1].Page
	}

	e.mu.Lock()
	vs, ok := e.views[sig]
	if ok {
		v.Size = vs.page
		v.IsLoading = vs.loading
		v.Err = vs.err
	}
	e.mu.Unlock()

	v.IsLoading = v.IsLoading || v.IsLoadingInitial
	v.IsLoadingMore = v.IsLoading && v.Size > 1

	if !ok {
		return v
	}

	cached := false
	for _, entry := range entries {
		if entry.Page == v.Size {
			cached = true
			break
		}
	}
	switch {
	case !cached && (v.IsLoading || v.Err != nil):
		v.Pages = append(v.Pages, cache.PageEntry{Page: v.Size, Loading: v.IsLoading, Err: v.Err})
	case cached && validating && len(v.Pages) > 0:
		v.Pages[len(v.Pages)-1].Validating = true
	}
	return v
}

// begin registers a new latest request for sig and returns its context.
func (e *Engine) begin(ctx context.Context, sig cache.Signature, page int) (context.Context, uint64) {
	reqCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.seq++
	seq := e.seq
	vs, ok := e.views[sig]
	if !ok {
		vs = &viewState{}
		e.views[sig] = vs
	}
	vs.seq = seq
	vs.page = page
	vs.loading = true
	vs.err = nil
	vs.cancel = cancel
	e.mu.Unlock()

	e.notify(sig)
	return reqCtx, seq
}

// settle records the outcome of request seq if it is still the latest.
func (e *Engine) settle(sig cache.Signature, seq uint64, err error) {
	e.mu.Lock()
	vs, ok := e.views[sig]
	latest := ok && vs.seq == seq
	if latest {
		vs.cancel()
		vs.loading = false
		vs.err = err
		vs.cancel = nil
	}
	e.mu.Unlock()

	if !latest {
		return
	}
	if err != nil {
		e.logger.Debug().
			Err(err).
			Str("signature", sig.String()).
			Str("error_class", string(client.Classify(err))).
			Msg("Request settled with error")
	}
	e.notify(sig)
}

// warmStart restores a cold signature from its snapshot once.
func (e *Engine) warmStart(ctx context.Context, sig cache.Signature) {
	if e.config.Snapshots == nil {
		return
	}

	e.mu.Lock()
	_, done := e.warmed[sig]
	e.warmed[sig] = struct{}{}
	e.mu.Unlock()
	if done || e.cache.State(sig) != cache.StateIdle {
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	snap, err := e.config.Snapshots.Load(loadCtx, sig)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn().Err(err).Str("signature", sig.String()).Msg("Snapshot load failed")
		}
		return
	}

	if e.cache.Restore(snap) {
		e.logger.Info().
			Str("signature", sig.String()).
			Int("pages", len(snap.Pages)).
			Msg("Warm start from snapshot")
		e.notify(sig)
	}
}

// persist saves the snapshot of sig unless the work that produced it was
// cancelled. Failures are logged only.
func (e *Engine) persist(ctx context.Context, sig cache.Signature) {
	if e.config.Snapshots == nil {
		return
	}

	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	snap := e.cache.Snapshot(sig, e.config.SnapshotTTL)
	if snap == nil {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	if err := e.config.Snapshots.Save(saveCtx, snap); err != nil {
		e.logger.Warn().Err(err).Str("signature", sig.String()).Msg("Snapshot save failed")
	}
}

func (e *Engine) notify(sig cache.Signature) {
	if e.config.Notify != nil {
		e.config.Notify(sig)
	}
}
