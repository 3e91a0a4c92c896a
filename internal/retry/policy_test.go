package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/models"
)

func fastPolicy(t *testing.T, maxRetries int) *Policy {
	t.Helper()
	p, err := New(models.RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
		Cooldown:   0,
	})
	require.NoError(t, err)
	return p
}

func TestDelayIsExponential(t *testing.T) {
	p, err := New(models.RetryPolicy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, Multiplier: 2})
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, 800*time.Millisecond, p.Delay(3))
	assert.Equal(t, 100*time.Millisecond, p.Delay(-4))
}

func TestDelayRespectsCap(t *testing.T) {
	p, err := New(models.RetryPolicy{MaxRetries: 10, BaseDelay: time.Second, Multiplier: 3, MaxDelay: 5 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 3*time.Second, p.Delay(1))
	assert.Equal(t, 5*time.Second, p.Delay(2))
	assert.Equal(t, 5*time.Second, p.Delay(8))
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	_, err := New(models.RetryPolicy{MaxRetries: 1, BaseDelay: time.Second, Multiplier: 0})
	assert.Error(t, err)
}

func TestDoStopsAfterMaxRetries(t *testing.T) {
	p := fastPolicy(t, 3)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	p := fastPolicy(t, 5)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return &models.FetchError{Kind: models.ErrorKindPermission, Err: errors.New("denied")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var fe *models.FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	p := fastPolicy(t, 3)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("request timed out")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoHonoursContext(t *testing.T) {
	p, err := New(models.RetryPolicy{MaxRetries: 100, BaseDelay: time.Hour, Multiplier: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls++
			return errors.New("network down")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
	assert.Equal(t, 1, calls)
}

func TestWithRetryableOverride(t *testing.T) {
	p, err := New(models.RetryPolicy{MaxRetries: 4, BaseDelay: time.Millisecond, Multiplier: 1},
		WithRetryable(func(error) bool { return true }))
	require.NoError(t, err)

	calls := 0
	_ = p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("permission denied")
	})
	assert.Equal(t, 4, calls)
}
