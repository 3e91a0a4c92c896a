package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/analyticket/analyticket/internal/codec"
	"github.com/analyticket/analyticket/internal/models"
)

const scanBatch = 100

// globEscaper quotes the characters SCAN MATCH treats as pattern syntax.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// SessionTier stores entries in Redis under session:<id>:cache:<key>. Its
// contents belong to one login session and are dropped on logout.
type SessionTier struct {
	client    redis.UniversalClient
	sessionID string
	prefix    string
}

// NewSessionTier returns a tier scoped to sessionID.
func NewSessionTier(client redis.UniversalClient, sessionID string) *SessionTier {
	return &SessionTier{
		client:    client,
		sessionID: sessionID,
		prefix:    "session:" + sessionID + ":cache:",
	}
}

func (t *SessionTier) Kind() models.Tier { return models.TierSession }

// SessionID returns the session the tier is scoped to.
func (t *SessionTier) SessionID() string { return t.sessionID }

func (t *SessionTier) key(k string) string { return t.prefix + k }

func (t *SessionTier) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	b, err := t.client.Get(ctx, t.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("session cache get: %w", err)
	}
	var e models.CacheEntry
	if err := codec.Unmarshal(b, &e); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("session cache decode: %w", err)
	}
	e.Tier = models.TierSession
	return e, true, nil
}

func (t *SessionTier) Set(ctx context.Context, e models.CacheEntry) error {
	e.Tier = models.TierSession
	b, err := codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("session cache encode: %w", err)
	}
	var ttl time.Duration
	if e.TTL > 0 {
		ttl = e.TTL + staleRetention
	}
	if err := t.client.Set(ctx, t.key(e.Key), b, ttl).Err(); err != nil {
		return fmt.Errorf("session cache set: %w", err)
	}
	return nil
}

func (t *SessionTier) Delete(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, t.key(key)).Err(); err != nil {
		return fmt.Errorf("session cache delete: %w", err)
	}
	return nil
}

func (t *SessionTier) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return t.deleteMatching(ctx, globEscaper.Replace(t.key(prefix))+"*")
}

func (t *SessionTier) Clear(ctx context.Context) error {
	_, err := t.deleteMatching(ctx, globEscaper.Replace(t.prefix)+"*")
	return err
}

func (t *SessionTier) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var keys []string
	iter := t.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("session cache scan: %w", err)
	}

	deleted := 0
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := t.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("session cache delete: %w", err)
		}
		deleted += int(n)
	}
	return deleted, nil
}
