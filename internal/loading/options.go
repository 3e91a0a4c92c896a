package loading

import (
	"log/slog"
	"time"

	"github.com/analyticket/analyticket/internal/classify"
	"github.com/analyticket/analyticket/internal/clock"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/retry"
)

type config struct {
	policy   *retry.Policy
	clock    clock.Clock
	logger   *slog.Logger
	classify func(error, time.Time) models.ErrorRecord
}

// Option configures a Machine or Tracker.
type Option func(*config)

// WithPolicy sets the retry policy. Defaults to retry.Default().
func WithPolicy(p *retry.Policy) Option {
	return func(c *config) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithClock sets the clock used for timestamps and retry timers.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClassifier replaces classify.Classify.
func WithClassifier(fn func(error, time.Time) models.ErrorRecord) Option {
	return func(c *config) {
		if fn != nil {
			c.classify = fn
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		policy:   retry.Default(),
		clock:    clock.Real(),
		logger:   slog.Default(),
		classify: classify.Classify,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
