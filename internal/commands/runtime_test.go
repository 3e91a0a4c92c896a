package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/app"
	"github.com/analyticket/analyticket/internal/cache"
	"github.com/analyticket/analyticket/internal/loading"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/retry"
	"github.com/analyticket/analyticket/internal/store"
)

// newTestRuntime wires memory, session (miniredis) and local tiers with a
// fast retry policy on the real clock.
func newTestRuntime(t *testing.T) (*clientRuntime, *miniredis.Miniredis) {
	t.Helper()

	db, err := store.InitDBWithPath(filepath.Join(t.TempDir(), "analyticket.db"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	policy, err := retry.New(models.RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Multiplier: 1,
	})
	require.NoError(t, err)

	session := cache.NewSessionTier(client, "test")
	rt := &clientRuntime{
		settings: app.ClientSettings{RealtimeTransport: app.TransportRedis, Retry: policy.Config()},
		logger:   slog.Default(),
		db:       db,
		redis:    client,
		session:  session,
		policy:   policy,
		cache: cache.New(
			cache.WithTier(cache.NewMemoryTier(32)),
			cache.WithTier(session),
			cache.WithTier(cache.NewLocalTier(db)),
		),
		tracker: loading.NewTracker(loading.WithPolicy(policy)),
	}
	rt.closers = []func(){
		func() { _ = db.Close() },
		func() { _ = client.Close() },
		rt.tracker.Close,
	}
	t.Cleanup(rt.Close)
	return rt, mr
}

func TestRuntimeBackendRequiresDatabaseURL(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := rt.Backend(context.Background())
	require.ErrorIs(t, err, errNoDatabaseURL)
}

func TestRuntimeRealtimeBuiltOnce(t *testing.T) {
	rt, _ := newTestRuntime(t)

	m1, pub1, err := rt.Realtime()
	require.NoError(t, err)
	m2, pub2, err := rt.Realtime()
	require.NoError(t, err)
	require.Same(t, m1, m2)
	require.Equal(t, pub1, pub2)
}

func TestRuntimeRealtimePostgresNeedsDatabaseURL(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.settings.RealtimeTransport = app.TransportPostgres

	_, _, err := rt.Realtime()
	require.ErrorIs(t, err, errNoDatabaseURL)
}

func TestRuntimeLogoutKeepsLocalTier(t *testing.T) {
	rt, mr := newTestRuntime(t)
	ctx := context.Background()

	require.NoError(t, rt.cache.Set(ctx, "tickets:list:::50", []byte("v")))
	require.True(t, mr.Exists("session:test:cache:tickets:list:::50"))

	require.NoError(t, rt.Logout(ctx))
	require.False(t, mr.Exists("session:test:cache:tickets:list:::50"))

	e, ok := rt.cache.Get(ctx, "tickets:list:::50")
	require.True(t, ok)
	require.Equal(t, models.TierLocal, e.Tier)
}

func TestRuntimeCloseIsIdempotent(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.Close()
	rt.Close()
	require.Nil(t, rt.closers)
}
