package realtime

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/analyticket/analyticket/internal/models"
)

// PostgresTransport carries channels over LISTEN/NOTIFY. Each open stream
// holds one dedicated connection taken out of the pool. Notification payloads
// are JSON RealtimeEvents, as produced by Publish or a table trigger.
type PostgresTransport struct {
	pool *pgxpool.Pool
	cfg  transportConfig
}

// NewPostgresTransport returns a transport for connString. No connection is
// made until a stream is opened.
func NewPostgresTransport(connString string, opts ...TransportOption) (*PostgresTransport, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return &PostgresTransport{pool: pool, cfg: newTransportConfig(opts)}, nil
}

// NotifyChannel is the Postgres notification channel carrying channel.
// Triggers and other writers pass it to pg_notify.
func NotifyChannel(channel string) string { return "rt:" + channel }

func pgChannel(channel string) string {
	return pgx.Identifier{NotifyChannel(channel)}.Sanitize()
}

// Open starts listening on channel in the background.
func (t *PostgresTransport) Open(ctx context.Context, channel string) (Stream, error) {
	if err := validateChannel(channel); err != nil {
		return nil, err
	}
	p, runCtx := newPipe(ctx)
	p.setStatus(models.StatusConnecting)
	go t.run(runCtx, p, channel)
	return p, nil
}

func (t *PostgresTransport) run(ctx context.Context, p *pipe, channel string) {
	defer p.finish()
	log := t.cfg.logger.With("channel", channel, "transport", "postgres")
	b := t.cfg.policy.NewBackOff()

	for {
		err := t.listen(ctx, p, channel, b.Reset)
		if ctx.Err() != nil {
			return
		}
		p.setStatus(models.StatusReconnecting)
		wait := b.NextBackOff()
		log.Warn("realtime listen failed", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-t.cfg.clock.After(wait):
		}
	}
}

// listen holds one connection until it fails or ctx is done.
func (t *PostgresTransport) listen(ctx context.Context, p *pipe, channel string, connected func()) error {
	conn, err := t.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// A LISTENing connection must not go back to the pool.
	raw := conn.Hijack()
	defer func() { _ = raw.Close(context.Background()) }()

	if _, err := raw.Exec(ctx, "LISTEN "+pgChannel(channel)); err != nil {
		return err
	}
	connected()
	p.setStatus(models.StatusConnected)

	for {
		n, err := raw.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := decodeEvent(channel, []byte(n.Payload), t.cfg.clock.Now())
		if err != nil {
			t.cfg.logger.Warn("dropping undecodable notification", "channel", channel, "error", err)
			continue
		}
		if !p.emit(ctx, ev) {
			return ctx.Err()
		}
	}
}

// Publish sends ev on channel with pg_notify.
func (t *PostgresTransport) Publish(ctx context.Context, channel string, ev models.RealtimeEvent) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	b, err := encodeEvent(channel, ev)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	if _, err := t.pool.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel(channel), string(b)); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Close releases the pool. Open streams should be closed first.
func (t *PostgresTransport) Close() {
	t.pool.Close()
}
