// Package cache serves payloads from three storage tiers (process memory,
// the Redis-backed session tier, and the SQLite local tier) and falls back
// to stale entries when a fresh fetch fails.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/analyticket/analyticket/internal/codec"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/pkg/memory"
)

// staleRetention is how long a tier keeps an entry past its TTL so it can
// still be served in degraded mode.
const staleRetention = 24 * time.Hour

// Tier is one storage layer. Get returns entries regardless of expiry;
// freshness is decided by Service.
type Tier interface {
	Kind() models.Tier
	Get(ctx context.Context, key string) (models.CacheEntry, bool, error)
	Set(ctx context.Context, e models.CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// PrefixDeleter is implemented by tiers that can drop a key range.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// MemoryTier keeps CBOR-encoded entries in a bounded in-process LRU.
type MemoryTier struct {
	store memory.Store
}

// NewMemoryTier returns a memory tier holding at most capacity entries.
// A capacity <= 0 means unbounded.
func NewMemoryTier(capacity int, opts ...memory.LRUOption) *MemoryTier {
	return &MemoryTier{store: memory.NewLRU(capacity, opts...)}
}

func (t *MemoryTier) Kind() models.Tier { return models.TierMemory }

func (t *MemoryTier) Get(_ context.Context, key string) (models.CacheEntry, bool, error) {
	raw, ok := t.store.Get(key)
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	var e models.CacheEntry
	if err := codec.Unmarshal(raw.Value, &e); err != nil {
		t.store.Delete(key)
		return models.CacheEntry{}, false, err
	}
	e.Tier = models.TierMemory
	return e, true, nil
}

func (t *MemoryTier) Set(_ context.Context, e models.CacheEntry) error {
	e.Tier = models.TierMemory
	b, err := codec.Marshal(e)
	if err != nil {
		return err
	}
	var opts []memory.Option
	if e.TTL > 0 {
		opts = append(opts, memory.WithTTL(e.TTL+staleRetention))
	}
	t.store.Set(e.Key, b, opts...)
	return nil
}

func (t *MemoryTier) Delete(_ context.Context, key string) error {
	t.store.Delete(key)
	return nil
}

func (t *MemoryTier) DeletePrefix(_ context.Context, prefix string) (int, error) {
	return t.store.DeletePrefix(prefix), nil
}

func (t *MemoryTier) Clear(context.Context) error {
	t.store.Clear()
	return nil
}

// Keys lists cached keys with the given prefix, sorted.
func (t *MemoryTier) Keys(prefix string) []string {
	var out []string
	for _, k := range t.store.Keys() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}
