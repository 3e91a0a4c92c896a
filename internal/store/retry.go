package store

import (
	"context"
	"strings"
	"time"

	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/retry"
)

// busyPolicy retries SQLite lock contention. It is tighter than the network
// policy because contention clears in milliseconds.
var busyPolicy = mustPolicy(models.RetryPolicy{
	MaxRetries: 10,
	BaseDelay:  50 * time.Millisecond,
	Multiplier: 2,
	MaxDelay:   2 * time.Second,
}, retry.WithRetryable(isRetryableError))

func mustPolicy(cfg models.RetryPolicy, opts ...retry.Option) *retry.Policy {
	p, err := retry.New(cfg, opts...)
	if err != nil {
		panic("store: invalid retry policy: " + err.Error())
	}
	return p
}

// RetryWithBackoff retries operation on transient SQLite errors
// (SQLITE_BUSY, "database is locked"). Constraint violations and everything
// else are returned immediately.
func RetryWithBackoff(operation func() error) error {
	return RetryWithBackoffContext(context.Background(), operation)
}

// RetryWithBackoffContext is RetryWithBackoff bounded by ctx: cancellation
// stops the retry loop and returns the last error.
func RetryWithBackoffContext(ctx context.Context, operation func() error) error {
	return busyPolicy.Do(ctx, func(context.Context) error { return operation() })
}

// isRetryableError relies on modernc.org/sqlite error strings (v1.45+).
// If modernc changes its error format, update the matchers below.
func isRetryableError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY")
}
