package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/models"
)

func TestRunDiagnostics_Clean(t *testing.T) {
	db := openTestDB(t)

	diags, err := RunDiagnostics(context.Background(), db, time.Now())
	require.NoError(t, err)
	require.Empty(t, diags)
}

func TestRunDiagnostics_CacheMostlyExpired(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, PutCacheEntry(ctx, db, models.CacheEntry{Key: "tickets:list:open::50", StoredAt: base, TTL: time.Second}))
	require.NoError(t, PutCacheEntry(ctx, db, models.CacheEntry{Key: "tickets:t1", StoredAt: base, TTL: time.Second}))

	diags, err := RunDiagnostics(ctx, db, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.Equal(t, "CACHE_MOSTLY_EXPIRED", diags[0].Code)
	require.Equal(t, "warning", diags[0].Level)
	require.Contains(t, diags[0].Message, "2 of 2")
	require.NotEmpty(t, diags[0].SuggestedAction)
}

func TestRunDiagnostics_NoWarningWhenMostlyFresh(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, PutCacheEntry(ctx, db, models.CacheEntry{Key: "old", StoredAt: base, TTL: time.Second}))
	require.NoError(t, PutCacheEntry(ctx, db, models.CacheEntry{Key: "fresh", StoredAt: base.Add(time.Hour), TTL: time.Hour}))

	diags, err := RunDiagnostics(ctx, db, base.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, diags)
}

func TestRunDiagnostics_SchemaBehind(t *testing.T) {
	db := openTestDB(t)

	_, latest, err := SchemaVersion(db)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM goose_db_version WHERE version_id = ?`, latest)
	require.NoError(t, err)

	diags, err := RunDiagnostics(context.Background(), db, time.Now())
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.Equal(t, "SCHEMA_BEHIND", diags[0].Code)
	require.Equal(t, "error", diags[0].Level)
}
