package cache

import (
	"sort"
	"sync"
	"time"
)

// LoadState is the initial-load state of a partition.
type LoadState int

const (
	// StateIdle means the signature has never been loaded.
	StateIdle LoadState = iota

	// StateLoadingInitial means the initial page load is in progress.
	StateLoadingInitial

	// StateReady means the initial load has finished (or pages were restored).
	StateReady
)

// String returns the state name.
func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingInitial:
		return "loading_initial"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Partition holds everything cached for one signature: the load state and
// the page entries. The page set is the key set of the entries, so a page
// can never be recorded without its entry or the other way around.
type Partition struct {
	state LoadState
	pages map[int]PageEntry
}

func newPartition() *Partition {
	return &Partition{pages: make(map[int]PageEntry)}
}

// State returns the initial-load state.
func (p *Partition) State() LoadState {
	return p.state
}

// Get returns the cached entry for a page.
func (p *Partition) Get(page int) (PageEntry, bool) {
	entry, ok := p.pages[page]
	return entry, ok
}

// Put caches a successful page result. Entries without a result, or
// carrying an error, are not cached and Put returns false.
func (p *Partition) Put(page int, entry PageEntry) bool {
	if page < 1 || entry.Result == nil || entry.Err != nil {
		return false
	}
	entry.Page = page
	entry.Loading = false
	entry.Validating = false
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now()
	}
	p.pages[page] = entry
	return true
}

// Pages returns the cached page numbers in ascending order.
func (p *Partition) Pages() []int {
	pages := make([]int, 0, len(p.pages))
	for page := range p.pages {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// Len returns the number of cached pages.
func (p *Partition) Len() int {
	return len(p.pages)
}

// MaxPage returns the highest cached page, or 0 when nothing is cached.
func (p *Partition) MaxPage() int {
	maxPage := 0
	for page := range p.pages {
		if page > maxPage {
			maxPage = page
		}
	}
	return maxPage
}

// Entries returns the cached entries ordered by page.
func (p *Partition) Entries() []PageEntry {
	entries := make([]PageEntry, 0, len(p.pages))
	for _, page := range p.Pages() {
		entries = append(entries, p.pages[page])
	}
	return entries
}

// Prune removes exactly the given pages and returns the ones that were cached.
func (p *Partition) Prune(pages ...int) []int {
	removed := make([]int, 0, len(pages))
	for _, page := range pages {
		if _, ok := p.pages[page]; ok {
			delete(p.pages, page)
			removed = append(removed, page)
		}
	}
	sort.Ints(removed)
	PagesPruned.Add(float64(len(removed)))
	return removed
}

// Retain keeps only the given pages and returns the pruned ones.
func (p *Partition) Retain(pages []int) []int {
	keep := make(map[int]struct{}, len(pages))
	for _, page := range pages {
		keep[page] = struct{}{}
	}
	var drop []int
	for page := range p.pages {
		if _, ok := keep[page]; !ok {
			drop = append(drop, page)
		}
	}
	return p.Prune(drop...)
}

// TruncateAfter prunes every cached page above the given page.
func (p *Partition) TruncateAfter(page int) []int {
	var drop []int
	for cached := range p.pages {
		if cached > page {
			drop = append(drop, cached)
		}
	}
	return p.Prune(drop...)
}

// PageCache is a process-local, partitioned page cache keyed by Signature.
// There is no eviction beyond explicit pruning.
//
// All methods are safe for concurrent use. Read-modify-write sequences
// spanning several calls must go through Update so they run under one lock.
type PageCache struct {
	mu         sync.Mutex
	partitions map[Signature]*Partition
}

// NewPageCache creates an empty page cache.
func NewPageCache() *PageCache {
	return &PageCache{
		partitions: make(map[Signature]*Partition),
	}
}

// partition returns the partition for sig, creating it if needed.
// Caller must hold c.mu.
func (c *PageCache) partition(sig Signature) *Partition {
	p, ok := c.partitions[sig]
	if !ok {
		p = newPartition()
		c.partitions[sig] = p
	}
	return p
}

// Get returns the cached entry for a page of sig.
func (c *PageCache) Get(sig Signature, page int) (PageEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.partitions[sig]
	if !ok {
		PageCacheMisses.Inc()
		return PageEntry{}, false
	}
	entry, ok := p.Get(page)
	if !ok {
		PageCacheMisses.Inc()
		return PageEntry{}, false
	}
	PageCacheHits.Inc()
	return entry, true
}

// Put caches a successful page and records it in the page set.
func (c *PageCache) Put(sig Signature, page int, entry PageEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partition(sig).Put(page, entry)
}

// PageSet returns the cached page numbers of sig in ascending order.
func (c *PageCache) PageSet(sig Signature) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.partitions[sig]
	if !ok {
		return nil
	}
	return p.Pages()
}

// SetPageSet restricts the page set of sig to pages. Entries outside the
// set are pruned; pages in the set without an entry are ignored.
func (c *PageCache) SetPageSet(sig Signature, pages []int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.partitions[sig]; ok {
		p.Retain(pages)
	}
}

// Prune removes exactly the given pages of sig.
func (c *PageCache) Prune(sig Signature, pages ...int) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.partitions[sig]; ok {
		return p.Prune(pages...)
	}
	return nil
}

// Entries returns the cached entries of sig ordered by page.
func (c *PageCache) Entries(sig Signature) []PageEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.partitions[sig]; ok {
		return p.Entries()
	}
	return nil
}

// Update runs fn on the partition of sig while holding the cache lock.
// fn must not block.
func (c *PageCache) Update(sig Signature, fn func(p *Partition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.partition(sig))
}

// State returns the initial-load state of sig.
func (c *PageCache) State(sig Signature) LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.partitions[sig]; ok {
		return p.state
	}
	return StateIdle
}

// BeginInitialLoad moves sig from idle to loading. It returns false when
// the signature is already loading or loaded.
func (c *PageCache) BeginInitialLoad(sig Signature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.partition(sig)
	if p.state != StateIdle || p.Len() > 0 {
		return false
	}
	p.state = StateLoadingInitial
	return true
}

// FinishInitialLoad ends the initial load of sig. A load that cached
// nothing returns the partition to idle so the next observation retries.
func (c *PageCache) FinishInitialLoad(sig Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.partition(sig)
	if p.Len() == 0 {
		p.state = StateIdle
		return
	}
	p.state = StateReady
}

// Snapshot returns the persistable form of sig, or nil if nothing is cached.
func (c *PageCache) Snapshot(sig Signature, ttl time.Duration) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.partitions[sig]
	if !ok || p.Len() == 0 {
		return nil
	}
	now := time.Now()
	return &Snapshot{
		Signature: sig,
		Pages:     p.Entries(),
		SavedAt:   now,
		Expires:   now.Add(ttl),
	}
}

// Restore loads a snapshot into an empty, idle partition and marks it
// ready. It returns false if the partition already has state.
func (c *PageCache) Restore(snap *Snapshot) bool {
	if snap == nil || len(snap.Pages) == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.partition(snap.Signature)
	if p.state != StateIdle || p.Len() > 0 {
		return false
	}
	for _, entry := range snap.Pages {
		p.Put(entry.Page, entry)
	}
	if p.Len() == 0 {
		return false
	}
	p.state = StateReady
	return true
}

// Reset drops the whole partition of sig.
func (c *PageCache) Reset(sig Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.partitions, sig)
}
