package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/app"
	"github.com/analyticket/analyticket/internal/backend"
	"github.com/analyticket/analyticket/internal/cache"
	"github.com/analyticket/analyticket/internal/classify"
	"github.com/analyticket/analyticket/internal/loading"
	"github.com/analyticket/analyticket/internal/realtime"
	"github.com/analyticket/analyticket/internal/retry"
)

// redisProbeTimeout bounds the startup ping that decides whether the
// session tier is enabled.
const redisProbeTimeout = 2 * time.Second

var (
	errNoDatabaseURL = errors.New("database_url is not configured (set it in config.yaml or ANALYTICKET_DATABASE_URL)")
	errNoRedis       = errors.New("redis_url is invalid")
)

// clientRuntime is the client core wired from the effective settings. The
// backend and realtime parts are built on first use.
type clientRuntime struct {
	settings app.ClientSettings
	logger   *slog.Logger

	db      *DB
	redis   *redis.Client
	session *cache.SessionTier
	cache   *cache.Service
	policy  *retry.Policy
	tracker *loading.Tracker

	backend   *backend.Client
	publisher realtime.Publisher
	manager   *realtime.Manager

	closers []func()
}

func newRuntime(ctx context.Context, sessionID string) (*clientRuntime, error) {
	cfg := app.EffectiveClientSettings()
	logger := slog.Default()

	policy, err := retry.New(cfg.Retry, retry.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	db, closeDB, err := openDB(ctx)
	if err != nil {
		return nil, err
	}

	rt := &clientRuntime{
		settings: cfg,
		logger:   logger,
		db:       db,
		policy:   policy,
		closers:  []func(){closeDB},
	}

	opts := []cache.Option{
		cache.WithTTL(cfg.CacheTTL),
		cache.WithLogger(logger),
		cache.WithTier(cache.NewMemoryTier(cfg.MemoryCacheEntries)),
		cache.WithTier(cache.NewLocalTier(db)),
	}

	if redisOpts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logger.Warn("invalid redis_url; session cache disabled", "error", err)
	} else {
		client := redis.NewClient(redisOpts)
		rt.redis = client
		rt.closers = append(rt.closers, func() { _ = client.Close() })

		probeCtx, cancel := context.WithTimeout(ctx, redisProbeTimeout)
		err := client.Ping(probeCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable; session cache disabled", "error", err)
		} else {
			rt.session = cache.NewSessionTier(client, sessionID)
			opts = append(opts, cache.WithTier(rt.session))
		}
	}

	rt.cache = cache.New(opts...)
	rt.tracker = loading.NewTracker(loading.WithPolicy(policy), loading.WithLogger(logger))
	rt.closers = append(rt.closers, rt.tracker.Close)
	return rt, nil
}

// Backend opens the ticket database on first use.
func (rt *clientRuntime) Backend(ctx context.Context) (*backend.Client, error) {
	if rt.backend != nil {
		return rt.backend, nil
	}
	if rt.settings.DatabaseURL == "" {
		return nil, errNoDatabaseURL
	}
	c, err := backend.Open(ctx, rt.settings.DatabaseURL)
	if err != nil {
		return nil, err
	}
	rt.backend = c
	rt.closers = append(rt.closers, func() { _ = c.Close() })
	return c, nil
}

// Realtime builds the configured transport and the subscription manager on
// first use.
func (rt *clientRuntime) Realtime() (*realtime.Manager, realtime.Publisher, error) {
	if rt.manager != nil {
		return rt.manager, rt.publisher, nil
	}

	topts := []realtime.TransportOption{
		realtime.WithRetryPolicy(rt.policy),
		realtime.WithTransportLogger(rt.logger),
	}

	var transport realtime.Transport
	switch rt.settings.RealtimeTransport {
	case app.TransportPostgres:
		if rt.settings.DatabaseURL == "" {
			return nil, nil, errNoDatabaseURL
		}
		t, err := realtime.NewPostgresTransport(rt.settings.DatabaseURL, topts...)
		if err != nil {
			return nil, nil, classify.Wrap("connect", "realtime", err)
		}
		rt.closers = append(rt.closers, t.Close)
		transport, rt.publisher = t, t
	default:
		if rt.redis == nil {
			return nil, nil, errNoRedis
		}
		t := realtime.NewRedisTransport(rt.redis, topts...)
		transport, rt.publisher = t, t
	}

	m := realtime.NewManager(transport, realtime.WithLogger(rt.logger))
	rt.manager = m
	rt.closers = append(rt.closers, func() { _ = m.Close() })
	return rt.manager, rt.publisher, nil
}

// Logout drops the per-session cache tiers. The local tier survives so the
// next session can still serve degraded data.
func (rt *clientRuntime) Logout(ctx context.Context) error {
	return rt.cache.Teardown(ctx)
}

// Close releases everything in reverse order of acquisition.
func (rt *clientRuntime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withRuntime mirrors withDB for commands that need the client core.
func withRuntime(ctx context.Context, sessionID string, fn func(rt *clientRuntime) error) error {
	rt, err := newRuntime(ctx, sessionID)
	if err != nil {
		return cmdErr(err)
	}
	defer rt.Close()

	if err := fn(rt); err != nil {
		return cmdErr(err)
	}
	return nil
}
