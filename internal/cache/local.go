package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/analyticket/analyticket/internal/codec"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/store"
)

// LocalTier persists entries in the SQLite cache_entries table. It survives
// restarts and logouts. Payloads are stored framed by codec.Pack, so large
// ones are zstd-compressed on disk.
type LocalTier struct {
	db *sql.DB
}

// NewLocalTier returns a tier backed by db.
func NewLocalTier(db *sql.DB) *LocalTier {
	return &LocalTier{db: db}
}

func (t *LocalTier) Kind() models.Tier { return models.TierLocal }

func (t *LocalTier) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	e, ok, err := store.GetCacheEntry(ctx, t.db, key)
	if err != nil || !ok {
		return e, ok, err
	}
	payload, err := codec.Unpack(e.Payload)
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("local cache %s: %w", key, err)
	}
	e.Payload = payload
	return e, true, nil
}

func (t *LocalTier) Set(ctx context.Context, e models.CacheEntry) error {
	e.Tier = models.TierLocal
	e.Payload = codec.Pack(e.Payload)
	return store.PutCacheEntry(ctx, t.db, e)
}

func (t *LocalTier) Delete(ctx context.Context, key string) error {
	_, err := store.DeleteCacheEntry(ctx, t.db, key)
	return err
}

func (t *LocalTier) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	n, err := store.DeleteCachePrefix(ctx, t.db, prefix)
	return int(n), err
}

func (t *LocalTier) Clear(ctx context.Context) error {
	_, err := store.ClearCacheEntries(ctx, t.db)
	return err
}
