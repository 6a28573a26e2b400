package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates no snapshot exists for the signature
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored snapshot is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager persists page-cache snapshots in Redis so a restarted process
// can serve cached pages while it revalidates them.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new snapshot manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Load retrieves the snapshot for a signature.
// Returns ErrCacheMiss if the key doesn't exist or the snapshot is expired.
func (m *Manager) Load(ctx context.Context, sig Signature) (*Snapshot, error) {
	data, err := m.redis.Get(ctx, sig.StoreKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			SnapshotMisses.Inc()
			return nil, ErrCacheMiss
		}
		SnapshotErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		SnapshotErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Hash collisions surface as a foreign signature
	if snap.Signature != sig {
		SnapshotMisses.Inc()
		return nil, ErrCacheMiss
	}

	if snap.IsExpired() {
		_ = m.Delete(ctx, sig)
		SnapshotMisses.Inc()
		return nil, ErrCacheMiss
	}

	SnapshotHits.Inc()
	return &snap, nil
}

// Save stores a snapshot with TTL based on its Expires field.
func (m *Manager) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	ttl := snap.TTL()
	if ttl <= 0 {
		// Already expired, don't store
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		SnapshotErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := m.redis.Set(ctx, snap.Signature.StoreKey(), data, ttl).Err(); err != nil {
		SnapshotErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	SnapshotSize.Observe(float64(len(data)))
	return nil
}

// Delete removes the snapshot of a signature.
func (m *Manager) Delete(ctx context.Context, sig Signature) error {
	if err := m.redis.Del(ctx, sig.StoreKey()).Err(); err != nil {
		SnapshotErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
