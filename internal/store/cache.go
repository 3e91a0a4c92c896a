package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/analyticket/analyticket/internal/models"
)

// MaxCacheKeyLength bounds keys written to cache_entries.
const MaxCacheKeyLength = 512

// CacheStats summarizes the local cache table.
type CacheStats struct {
	Entries      int64      `json:"entries"`
	Expired      int64      `json:"expired"`
	PayloadBytes int64      `json:"payload_bytes"`
	Oldest       *time.Time `json:"oldest,omitempty"`
}

func validateCacheKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("cache key is required")
	}
	if len(key) > MaxCacheKeyLength {
		return fmt.Errorf("cache key exceeds max length (%d)", MaxCacheKeyLength)
	}
	return nil
}

// PutCacheEntry inserts or replaces the entry for e.Key.
func PutCacheEntry(ctx context.Context, db *sql.DB, e models.CacheEntry) error {
	if err := validateCacheKey(e.Key); err != nil {
		return err
	}
	payload := e.Payload
	if payload == nil {
		payload = []byte{}
	}
	return RetryWithBackoffContext(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO cache_entries (key, payload, stored_at, ttl_ms, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET
				payload = excluded.payload,
				stored_at = excluded.stored_at,
				ttl_ms = excluded.ttl_ms,
				updated_at = CURRENT_TIMESTAMP
		`, e.Key, payload, e.StoredAt.UnixMilli(), e.TTL.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to put cache entry: %w", err)
		}
		return nil
	})
}

// GetCacheEntry loads the entry for key regardless of expiry; freshness is
// the caller's decision.
func GetCacheEntry(ctx context.Context, db *sql.DB, key string) (models.CacheEntry, bool, error) {
	var (
		payload  []byte
		storedAt int64
		ttlMS    int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT payload, stored_at, ttl_ms FROM cache_entries WHERE key = ?
	`, key).Scan(&payload, &storedAt, &ttlMS)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return models.CacheEntry{
		Key:      key,
		Payload:  payload,
		StoredAt: time.UnixMilli(storedAt).UTC(),
		TTL:      time.Duration(ttlMS) * time.Millisecond,
		Tier:     models.TierLocal,
	}, true, nil
}

// DeleteCacheEntry removes key. Reports whether a row was deleted.
func DeleteCacheEntry(ctx context.Context, db *sql.DB, key string) (bool, error) {
	var affected int64
	err := RetryWithBackoffContext(ctx, func() error {
		res, err := db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		if err != nil {
			return fmt.Errorf("failed to delete cache entry: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected > 0, err
}

// DeleteCachePrefix removes every key starting with prefix in one
// transaction and returns how many rows went.
func DeleteCachePrefix(ctx context.Context, db *sql.DB, prefix string) (int64, error) {
	var affected int64
	err := Transact(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM cache_entries WHERE substr(key, 1, length(?1)) = ?1
		`, prefix)
		if err != nil {
			return fmt.Errorf("failed to delete cache prefix: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// ClearCacheEntries removes every cached row.
func ClearCacheEntries(ctx context.Context, db *sql.DB) (int64, error) {
	var affected int64
	err := RetryWithBackoffContext(ctx, func() error {
		res, err := db.ExecContext(ctx, `DELETE FROM cache_entries`)
		if err != nil {
			return fmt.Errorf("failed to clear cache entries: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// PruneExpiredCache deletes entries whose expiry is before cutoff. Entries
// with no TTL are kept.
func PruneExpiredCache(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	var affected int64
	err := RetryWithBackoffContext(ctx, func() error {
		res, err := db.ExecContext(ctx, `
			DELETE FROM cache_entries
			WHERE ttl_ms > 0 AND stored_at + ttl_ms < ?
		`, cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to prune cache entries: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// ListCacheKeys returns cached keys with the given prefix, sorted.
func ListCacheKeys(ctx context.Context, db *sql.DB, prefix string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key FROM cache_entries WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetCacheStats reports table-level counters as of now.
func GetCacheStats(ctx context.Context, db *sql.DB, now time.Time) (CacheStats, error) {
	var (
		stats  CacheStats
		oldest sql.NullInt64
	)
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN ttl_ms > 0 AND stored_at + ttl_ms < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(LENGTH(payload)), 0),
			MIN(stored_at)
		FROM cache_entries
	`, now.UnixMilli()).Scan(&stats.Entries, &stats.Expired, &stats.PayloadBytes, &oldest)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		stats.Oldest = &t
	}
	return stats, nil
}
