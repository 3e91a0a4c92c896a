package cache

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/codec"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/store"
)

func TestLocalTierCompressesLargePayloadsOnDisk(t *testing.T) {
	db, err := store.InitDBWithPath(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	tier := NewLocalTier(db)

	payload := bytes.Repeat([]byte(`{"id":"t1","status":"open"}`), 500)
	require.NoError(t, tier.Set(ctx, models.CacheEntry{Key: "tickets:list:open::50", Payload: payload, StoredAt: epoch, TTL: time.Hour}))

	raw, ok, err := store.GetCacheEntry(ctx, db, "tickets:list:open::50")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, codec.Compressed(raw.Payload))
	assert.Less(t, len(raw.Payload), len(payload))

	e, ok, err := tier.Get(ctx, "tickets:list:open::50")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, e.Payload)
	assert.Equal(t, models.TierLocal, e.Tier)
}

func TestLocalTierCorruptRowIsAnError(t *testing.T) {
	db, err := store.InitDBWithPath(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	require.NoError(t, store.PutCacheEntry(ctx, db, models.CacheEntry{Key: "tickets:t1", Payload: []byte{0x7f}, StoredAt: epoch, TTL: time.Hour}))

	_, ok, err := NewLocalTier(db).Get(ctx, "tickets:t1")
	require.ErrorIs(t, err, codec.ErrBadFrame)
	assert.False(t, ok)
}
