package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/analyticket/analyticket/internal/clock"
	"github.com/analyticket/analyticket/internal/models"
)

// ErrNoTiers is returned by Set when the service has no tiers.
var ErrNoTiers = errors.New("cache: no tiers configured")

var tierRank = map[models.Tier]int{
	models.TierMemory:  0,
	models.TierSession: 1,
	models.TierLocal:   2,
}

// Service is the injectable cache. Construct it at startup, call Teardown on
// logout, and Purge to drop everything.
type Service struct {
	tiers  []Tier
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTier adds a tier. Tiers are consulted memory, session, local
// regardless of the order they are added in.
func WithTier(t Tier) Option {
	return func(s *Service) {
		if t != nil {
			s.tiers = append(s.tiers, t)
		}
	}
}

// WithTTL sets how long entries are served as fresh.
func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock sets the clock used for StoredAt and expiry checks.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for tier failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Service with the given tiers.
func New(opts ...Option) *Service {
	s := &Service{
		ttl:    models.DefaultCacheTTL,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	sort.SliceStable(s.tiers, func(i, j int) bool {
		return tierRank[s.tiers[i].Kind()] < tierRank[s.tiers[j].Kind()]
	})
	return s
}

// TTL returns the fixed entry lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Tiers lists the configured tier kinds in lookup order.
func (s *Service) Tiers() []models.Tier {
	out := make([]models.Tier, len(s.tiers))
	for i, t := range s.tiers {
		out[i] = t.Kind()
	}
	return out
}

// Get returns the first non-expired entry for key, walking tiers from
// fastest to slowest. A hit on a slower tier is copied into the faster ones.
func (s *Service) Get(ctx context.Context, key string) (models.CacheEntry, bool) {
	e, ok := s.lookup(ctx, key, 0)
	if !ok || e.Expired(s.clock.Now()) {
		return models.CacheEntry{}, false
	}
	return e, true
}

// lookup returns the first fresh entry, or failing that the most recently
// stored expired entry no older than maxStale past expiry. A negative
// maxStale accepts any expired entry; zero accepts none.
func (s *Service) lookup(ctx context.Context, key string, maxStale time.Duration) (models.CacheEntry, bool) {
	now := s.clock.Now()

	var (
		stale    models.CacheEntry
		hasStale bool
	)
	for i, t := range s.tiers {
		e, ok, err := t.Get(ctx, key)
		if err != nil {
			s.tierFailed(t, "get", key, err)
			continue
		}
		if !ok {
			continue
		}
		if !e.Expired(now) {
			s.backfill(ctx, s.tiers[:i], e)
			return e, true
		}
		if maxStale < 0 || now.Sub(e.ExpiresAt()) <= maxStale {
			if !hasStale || e.StoredAt.After(stale.StoredAt) {
				stale, hasStale = e, true
			}
		}
	}
	return stale, hasStale
}

func (s *Service) backfill(ctx context.Context, faster []Tier, e models.CacheEntry) {
	for _, t := range faster {
		if err := t.Set(ctx, e); err != nil {
			s.tierFailed(t, "backfill", e.Key, err)
		}
	}
}

// Set stores payload under key in every tier with the service TTL. It fails
// only when no tier accepted the write.
func (s *Service) Set(ctx context.Context, key string, payload []byte) error {
	if len(s.tiers) == 0 {
		return ErrNoTiers
	}
	e := models.CacheEntry{
		Key:      key,
		Payload:  payload,
		StoredAt: s.clock.Now(),
		TTL:      s.ttl,
	}
	var errs []error
	for _, t := range s.tiers {
		if err := t.Set(ctx, e); err != nil {
			s.tierFailed(t, "set", key, err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Kind(), err))
		}
	}
	if len(errs) == len(s.tiers) {
		return errors.Join(errs...)
	}
	return nil
}

// Delete removes key from every tier. It fails only when every tier failed.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.each("delete", key, func(t Tier) error { return t.Delete(ctx, key) })
}

// Invalidate drops every key starting with prefix from the tiers that
// support range deletes, and returns how many entries were removed.
func (s *Service) Invalidate(ctx context.Context, prefix string) int {
	total := 0
	for _, t := range s.tiers {
		pd, ok := t.(PrefixDeleter)
		if !ok {
			continue
		}
		n, err := pd.DeletePrefix(ctx, prefix)
		if err != nil {
			s.tierFailed(t, "invalidate", prefix, err)
		}
		total += n
	}
	return total
}

// Teardown clears the memory and session tiers. The local tier survives.
func (s *Service) Teardown(ctx context.Context) error {
	var errs []error
	for _, t := range s.tiers {
		if t.Kind() == models.TierLocal {
			continue
		}
		if err := t.Clear(ctx); err != nil {
			s.tierFailed(t, "clear", "", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Kind(), err))
		}
	}
	return errors.Join(errs...)
}

// Purge clears every tier.
func (s *Service) Purge(ctx context.Context) error {
	var errs []error
	for _, t := range s.tiers {
		if err := t.Clear(ctx); err != nil {
			s.tierFailed(t, "clear", "", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Kind(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) each(op, key string, fn func(Tier) error) error {
	var errs []error
	for _, t := range s.tiers {
		if err := fn(t); err != nil {
			s.tierFailed(t, op, key, err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Kind(), err))
		}
	}
	if len(s.tiers) > 0 && len(errs) == len(s.tiers) {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Service) tierFailed(t Tier, op, key string, err error) {
	s.logger.Warn("cache tier failed", "tier", t.Kind(), "op", op, "key", key, "error", err)
}
