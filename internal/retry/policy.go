// Package retry holds the single retry policy shared by every call site:
// loading machines use Delay to schedule automatic retries, blocking callers
// use Do, and realtime transports use NewBackOff for reconnect loops.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/analyticket/analyticket/internal/classify"
	"github.com/analyticket/analyticket/internal/models"
)

// uncapped stands in for "no MaxDelay"; ExponentialBackOff treats a zero
// MaxInterval as a cap of zero.
const uncapped = time.Duration(math.MaxInt64)

// Policy is an immutable, validated RetryPolicy.
type Policy struct {
	cfg       models.RetryPolicy
	retryable func(error) bool
	logger    *slog.Logger
}

// Option customizes a Policy.
type Option func(*Policy)

// WithRetryable overrides which errors Do retries. The default retries
// whatever classify reports as recoverable.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) { p.retryable = fn }
}

// WithLogger sets the logger used for retry notifications.
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

// New validates cfg and returns a Policy.
func New(cfg models.RetryPolicy, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{cfg: cfg, retryable: classify.Retryable, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Default returns a Policy built from models.DefaultRetryPolicy.
func Default() *Policy {
	p, err := New(models.DefaultRetryPolicy())
	if err != nil {
		panic("retry: default policy invalid: " + err.Error())
	}
	return p
}

// Config returns the underlying configuration.
func (p *Policy) Config() models.RetryPolicy { return p.cfg }

// MaxRetries is the number of failed attempts after which retrying stops.
func (p *Policy) MaxRetries() int { return p.cfg.MaxRetries }

// Cooldown is the minimum spacing between two retry triggers.
func (p *Policy) Cooldown() time.Duration { return p.cfg.Cooldown }

// NewBackOff returns a fresh, unbounded exponential backoff without jitter
// following this policy's base delay, multiplier and cap.
func (p *Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.BaseDelay
	b.Multiplier = p.cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = uncapped
	if p.cfg.MaxDelay > 0 {
		b.MaxInterval = p.cfg.MaxDelay
	}
	b.Reset()
	return b
}

// Delay returns BaseDelay * Multiplier^retryCount, capped at MaxDelay.
func (p *Policy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	b := p.NewBackOff()
	d := b.NextBackOff()
	for i := 0; i < retryCount; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Do runs op until it succeeds, returns a non-retryable error, ctx is done,
// or MaxRetries attempts have failed. The error of the last attempt is
// returned.
func (p *Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.NewBackOff(), uint64(attempts-1)), ctx)

	return backoff.RetryNotify(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, next time.Duration) {
		p.logger.Debug("retrying operation", "error", err.Error(), "next", next)
	})
}
