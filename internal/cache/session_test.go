package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/models"
)

func newSessionTiers(t *testing.T, ids ...string) (*miniredis.Miniredis, []*SessionTier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tiers := make([]*SessionTier, len(ids))
	for i, id := range ids {
		tiers[i] = NewSessionTier(client, id)
	}
	return mr, tiers
}

func TestSessionTierKeyLayoutAndTTL(t *testing.T) {
	mr, tiers := newSessionTiers(t, "abc")
	ctx := context.Background()

	require.NoError(t, tiers[0].Set(ctx, models.CacheEntry{
		Key: "tickets", Payload: []byte("x"), StoredAt: epoch, TTL: 30 * time.Minute,
	}))

	assert.True(t, mr.Exists("session:abc:cache:tickets"))
	assert.Equal(t, 30*time.Minute+staleRetention, mr.TTL("session:abc:cache:tickets"))
	assert.Equal(t, "abc", tiers[0].SessionID())
}

func TestSessionTierExpiresInRedis(t *testing.T) {
	mr, tiers := newSessionTiers(t, "abc")
	ctx := context.Background()

	require.NoError(t, tiers[0].Set(ctx, models.CacheEntry{
		Key: "tickets", Payload: []byte("x"), StoredAt: epoch, TTL: time.Minute,
	}))
	mr.FastForward(time.Minute + staleRetention + time.Second)

	_, ok, err := tiers[0].Get(ctx, "tickets")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionTierClearIsScopedToSession(t *testing.T) {
	mr, tiers := newSessionTiers(t, "alice", "bob")
	ctx := context.Background()

	for _, tier := range tiers {
		require.NoError(t, tier.Set(ctx, models.CacheEntry{Key: "tickets", Payload: []byte("x"), StoredAt: epoch}))
	}
	require.NoError(t, tiers[0].Clear(ctx))

	assert.False(t, mr.Exists("session:alice:cache:tickets"))
	assert.True(t, mr.Exists("session:bob:cache:tickets"))
	assert.Equal(t, time.Duration(0), mr.TTL("session:bob:cache:tickets"), "zero TTL entries never expire")
}

func TestSessionTierUnavailable(t *testing.T) {
	mr, tiers := newSessionTiers(t, "abc")
	mr.Close()

	_, _, err := tiers[0].Get(context.Background(), "tickets")
	require.Error(t, err)
}

func TestSessionTierPrefixIsMatchedLiterally(t *testing.T) {
	mr, tiers := newSessionTiers(t, "abc")
	ctx := context.Background()

	for _, k := range []string{"tickets:1", "tickets:2", "notes:1", "tickets?:x", "[ab]:1"} {
		require.NoError(t, tiers[0].Set(ctx, models.CacheEntry{Key: k, Payload: []byte("x"), StoredAt: epoch}))
	}

	n, err := tiers[0].DeletePrefix(ctx, "*")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = tiers[0].DeletePrefix(ctx, "tickets?")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("session:abc:cache:tickets:1"))

	n, err = tiers[0].DeletePrefix(ctx, "[ab]")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("session:abc:cache:notes:1"))
}

func TestSessionTierClearWithGlobSessionID(t *testing.T) {
	mr, tiers := newSessionTiers(t, "*", "bob")
	ctx := context.Background()

	for _, tier := range tiers {
		require.NoError(t, tier.Set(ctx, models.CacheEntry{Key: "tickets", Payload: []byte("x"), StoredAt: epoch}))
	}
	require.NoError(t, tiers[0].Clear(ctx))

	assert.False(t, mr.Exists("session:*:cache:tickets"))
	assert.True(t, mr.Exists("session:bob:cache:tickets"))
}
