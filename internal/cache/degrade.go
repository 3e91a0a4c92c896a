package cache

import (
	"context"
	"time"

	"github.com/analyticket/analyticket/internal/classify"
	"github.com/analyticket/analyticket/internal/codec"
	"github.com/analyticket/analyticket/internal/models"
)

// SourceNetwork marks a Result produced by a successful fetch. Otherwise
// Source names the tier the data came from.
const SourceNetwork = "network"

// Features that can be unavailable while serving cached data.
const (
	FeatureFreshData   = "fresh-data"
	FeatureLiveUpdates = "live-updates"
	FeatureMutations   = "mutations"
	FeatureRestricted  = "restricted-data"
)

// Result is the outcome of LoadWithGracefulDegradation. Partial is set when
// Data came from the cache because the fetch failed.
type Result[T any] struct {
	Data            T                   `json:"data"`
	Partial         bool                `json:"partial"`
	Stale           bool                `json:"stale,omitempty"`
	MissingFeatures []string            `json:"missing_features,omitempty"`
	Source          string              `json:"source"`
	StoredAt        time.Time           `json:"stored_at,omitempty"`
	Err             *models.ErrorRecord `json:"error,omitempty"`
}

// Fetcher loads a fresh value.
type Fetcher[T any] func(ctx context.Context) (T, error)

type loadOptions struct {
	maxStale time.Duration
	features func(models.ErrorKind) []string
}

// LoadOption configures LoadWithGracefulDegradation.
type LoadOption func(*loadOptions)

// WithMaxStale bounds how long past expiry a cached entry may still be
// served. Zero serves only fresh entries; by default any age is served.
func WithMaxStale(d time.Duration) LoadOption {
	return func(o *loadOptions) { o.maxStale = d }
}

// WithMissingFeatures replaces DefaultMissingFeatures.
func WithMissingFeatures(fn func(models.ErrorKind) []string) LoadOption {
	return func(o *loadOptions) {
		if fn != nil {
			o.features = fn
		}
	}
}

// DefaultMissingFeatures lists what a degraded view lacks for a failure kind.
func DefaultMissingFeatures(kind models.ErrorKind) []string {
	switch kind {
	case models.ErrorKindNetwork:
		return []string{FeatureFreshData, FeatureLiveUpdates, FeatureMutations}
	case models.ErrorKindTimeout:
		return []string{FeatureFreshData, FeatureLiveUpdates}
	case models.ErrorKindPermission:
		return []string{FeatureFreshData, FeatureRestricted}
	default:
		return []string{FeatureFreshData}
	}
}

// LoadWithGracefulDegradation calls fetch and caches its value. When fetch
// fails it serves the best cached entry for key instead, marked Partial. If
// nothing usable is cached the fetch error is returned along with its
// classification in Result.Err.
func LoadWithGracefulDegradation[T any](ctx context.Context, s *Service, key string, fetch Fetcher[T], opts ...LoadOption) (Result[T], error) {
	o := loadOptions{maxStale: -1, features: DefaultMissingFeatures}
	for _, opt := range opts {
		opt(&o)
	}

	v, err := fetch(ctx)
	if err == nil {
		now := s.clock.Now()
		if setErr := SetValue(ctx, s, key, v); setErr != nil {
			s.logger.Warn("cache store after fetch failed", "key", key, "error", setErr)
		}
		return Result[T]{Data: v, Source: SourceNetwork, StoredAt: now}, nil
	}

	rec := classify.Classify(err, s.clock.Now())
	if e, ok := s.lookup(ctx, key, o.maxStale); ok {
		var cached T
		decErr := codec.Unmarshal(e.Payload, &cached)
		if decErr == nil {
			s.logger.Info("serving cached data after fetch failure",
				"key", key, "tier", e.Tier, "kind", rec.Kind, "stored_at", e.StoredAt)
			return Result[T]{
				Data:            cached,
				Partial:         true,
				Stale:           e.Expired(s.clock.Now()),
				MissingFeatures: o.features(rec.Kind),
				Source:          string(e.Tier),
				StoredAt:        e.StoredAt,
				Err:             &rec,
			}, nil
		}
		s.logger.Warn("cached payload undecodable", "key", key, "tier", e.Tier, "error", decErr)
	}

	return Result[T]{Err: &rec}, err
}
