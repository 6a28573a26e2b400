package cache

import (
	"encoding/json"
	"time"
)

// PageResult is the payload of one successfully fetched page.
type PageResult struct {
	// ItemIDs are the identities of the items on the page, in upstream order
	ItemIDs []string `json:"item_ids"`

	// HasNextPage reports whether the upstream has a page after this one
	HasNextPage bool `json:"has_next_page"`

	// Data is the raw operation payload
	Data json.RawMessage `json:"data,omitempty"`
}

// PageEntry is the last known state of one page within one partition.
type PageEntry struct {
	Page   int         `json:"page"`
	Result *PageResult `json:"result,omitempty"`

	// Err is the failure of the latest attempt. Never persisted.
	Err error `json:"-"`

	Loading    bool `json:"-"`
	Validating bool `json:"-"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Settled returns true if the entry holds a terminal state.
func (e PageEntry) Settled() bool {
	return !e.Loading && (e.Result != nil || e.Err != nil)
}

// Snapshot is the persisted form of a partition's cached pages.
type Snapshot struct {
	Signature Signature   `json:"signature"`
	Pages     []PageEntry `json:"pages"`

	// SavedAt is when the snapshot was written
	SavedAt time.Time `json:"saved_at"`

	// Expires is when the snapshot stops being eligible for warm starts
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the snapshot has expired.
func (s *Snapshot) IsExpired() bool {
	return time.Now().After(s.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (s *Snapshot) TTL() time.Duration {
	ttl := time.Until(s.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
