package models

import "time"

// Tier identifies a cache storage layer. Lookups walk tiers in the order
// memory, session, local.
type Tier string

// Tier constants.
const (
	TierMemory  Tier = "memory"
	TierSession Tier = "session"
	TierLocal   Tier = "local"
)

// DefaultCacheTTL is how long a cached payload is served as fresh.
const DefaultCacheTTL = 30 * time.Minute

// CacheEntry is one cached payload in one tier.
type CacheEntry struct {
	Key      string        `json:"key" cbor:"key"`
	Payload  []byte        `json:"payload" cbor:"payload"`
	StoredAt time.Time     `json:"stored_at" cbor:"stored_at"`
	TTL      time.Duration `json:"ttl" cbor:"ttl"`
	Tier     Tier          `json:"tier" cbor:"tier"`
}

// ExpiresAt returns the instant after which the entry is stale. A zero TTL
// never expires.
func (e CacheEntry) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.StoredAt.Add(e.TTL)
}

// Expired reports whether the entry is stale at now.
func (e CacheEntry) Expired(now time.Time) bool {
	exp := e.ExpiresAt()
	return !exp.IsZero() && now.After(exp)
}
