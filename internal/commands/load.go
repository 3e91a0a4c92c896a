package commands

import (
	"context"
	"errors"
	"time"

	"github.com/analyticket/analyticket/internal/cache"
	"github.com/analyticket/analyticket/internal/loading"
	"github.com/analyticket/analyticket/internal/models"
)

// loadOptions controls one tracked load.
type loadOptions struct {
	// wait blocks until automatic retries are exhausted before falling back
	// to the cache.
	wait     bool
	maxStale time.Duration
}

type loadResponse[T any] struct {
	Result  cache.Result[T]     `json:"result"`
	Loading models.LoadingState `json:"loading"`
}

// loadTracked runs fetch through the loading machine named key and serves
// the cache under the same key when the final attempt fails.
func loadTracked[T any](ctx context.Context, rt *clientRuntime, key string, o loadOptions, fetch cache.Fetcher[T]) (loadResponse[T], error) {
	m, err := loading.For[T](rt.tracker, key)
	if err != nil {
		return loadResponse[T]{}, err
	}

	tracked := func(ctx context.Context) (T, error) {
		v, err := m.Run(ctx, loading.Op[T](fetch))
		if err == nil || !o.wait {
			return v, err
		}
		st, awaitErr := m.Await(ctx)
		if awaitErr != nil {
			return v, err
		}
		if st.Phase == models.PhaseSuccess {
			if res, ok := m.Result(); ok {
				return res, nil
			}
		}
		return v, lastFailure(st, err)
	}

	res, err := cache.LoadWithGracefulDegradation(ctx, rt.cache, key, tracked, cache.WithMaxStale(o.maxStale))
	return loadResponse[T]{Result: res, Loading: m.State()}, err
}

// lastFailure rebuilds the most recent attempt's error from its record so the
// kind survives past the first attempt.
func lastFailure(st models.LoadingState, fallback error) error {
	if st.LastError == nil {
		return fallback
	}
	return &models.FetchError{Kind: st.LastError.Kind, Err: errors.New(st.LastError.Message)}
}
