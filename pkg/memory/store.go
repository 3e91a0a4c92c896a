// Package memory is a bounded in-process byte store with LRU eviction and
// lazily enforced retention.
package memory

import "time"

// Store is a key-value store for cached payloads.
type Store interface {
	Set(key string, value []byte, opts ...Option)
	Get(key string) (Entry, bool)
	Delete(key string) bool
	DeletePrefix(prefix string) int
	Keys() []string
	Clear()
	Len() int
}

// Entry is a stored payload. Value is owned by the store; callers must not
// modify it.
type Entry struct {
	Key       string     `json:"key"`
	Value     []byte     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedAt time.Time  `json:"created_at"`
}

type setOptions struct {
	ttl time.Duration
}

// Option configures a Set operation.
type Option func(*setOptions)

// WithTTL drops the entry on the first read after d has elapsed.
func WithTTL(d time.Duration) Option {
	return func(o *setOptions) {
		o.ttl = d
	}
}
