package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/analyticket/analyticket/internal/clock"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/retry"
)

type transportConfig struct {
	policy *retry.Policy
	clock  clock.Clock
	logger *slog.Logger
}

// TransportOption configures a transport.
type TransportOption func(*transportConfig)

// WithRetryPolicy sets the reconnect backoff policy.
func WithRetryPolicy(p *retry.Policy) TransportOption {
	return func(c *transportConfig) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithTransportClock sets the clock used for backoff waits and timestamps.
func WithTransportClock(clk clock.Clock) TransportOption {
	return func(c *transportConfig) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithTransportLogger sets the logger.
func WithTransportLogger(l *slog.Logger) TransportOption {
	return func(c *transportConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newTransportConfig(opts []TransportOption) transportConfig {
	c := transportConfig{policy: retry.Default(), clock: clock.Real(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// RedisTransport carries channels over Redis pub/sub. Channel "x" maps to
// the Redis channel "rt:x"; messages are JSON RealtimeEvents.
type RedisTransport struct {
	client redis.UniversalClient
	cfg    transportConfig
}

// NewRedisTransport returns a transport using client.
func NewRedisTransport(client redis.UniversalClient, opts ...TransportOption) *RedisTransport {
	return &RedisTransport{client: client, cfg: newTransportConfig(opts)}
}

func redisChannel(channel string) string { return "rt:" + channel }

// Open subscribes to channel. The subscription is confirmed asynchronously.
func (t *RedisTransport) Open(ctx context.Context, channel string) (Stream, error) {
	if err := validateChannel(channel); err != nil {
		return nil, err
	}
	p, runCtx := newPipe(ctx)
	p.setStatus(models.StatusConnecting)

	ps := t.client.Subscribe(runCtx, redisChannel(channel))
	p.onClose = ps.Close

	go t.run(runCtx, p, ps, channel)
	return p, nil
}

func (t *RedisTransport) run(ctx context.Context, p *pipe, ps *redis.PubSub, channel string) {
	defer p.finish()
	log := t.cfg.logger.With("channel", channel, "transport", "redis")
	b := t.cfg.policy.NewBackOff()

	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			p.setStatus(models.StatusReconnecting)
			wait := b.NextBackOff()
			log.Warn("realtime receive failed", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-t.cfg.clock.After(wait):
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" {
				b.Reset()
				p.setStatus(models.StatusConnected)
			}
		case *redis.Message:
			ev, err := decodeEvent(channel, []byte(m.Payload), t.cfg.clock.Now())
			if err != nil {
				log.Warn("dropping undecodable realtime message", "error", err)
				continue
			}
			if !p.emit(ctx, ev) {
				return
			}
		}
	}
}

// Publish sends ev on channel.
func (t *RedisTransport) Publish(ctx context.Context, channel string, ev models.RealtimeEvent) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	b, err := encodeEvent(channel, ev)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	if err := t.client.Publish(ctx, redisChannel(channel), b).Err(); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}
