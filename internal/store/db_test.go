package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDBWithPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInitDB(t *testing.T) {
	testDBPath := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := InitDBWithPath(testDBPath)
	require.NoError(t, err)
	defer db.Close()

	_, statErr := os.Stat(testDBPath)
	require.NoError(t, statErr, "database file was not created")

	for _, table := range []string{"cache_entries", "user_preferences"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s was not created", table)
	}

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestSchemaVersionIsLatestAfterInit(t *testing.T) {
	db := openTestDB(t)

	current, latest, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest)
	assert.Equal(t, latest, current)
}

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	db, err := InitDBWithPath(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitDBWithPath(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestBusyTimeoutFromEnv(t *testing.T) {
	t.Setenv("ANALYTICKET_BUSY_TIMEOUT_MS", "")
	assert.Equal(t, defaultBusyTimeoutMS, busyTimeoutMS())

	t.Setenv("ANALYTICKET_BUSY_TIMEOUT_MS", "250")
	assert.Equal(t, 250, busyTimeoutMS())
	assert.Equal(t, "PRAGMA busy_timeout=250", localPragmas(busyTimeoutMS())[0])

	t.Setenv("ANALYTICKET_BUSY_TIMEOUT_MS", "-5")
	assert.Equal(t, defaultBusyTimeoutMS, busyTimeoutMS())
}

func TestMigrationLockHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")
	held, err := lockFile(context.Background(), path)
	require.NoError(t, err)
	defer unlockFile(held)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = lockFile(ctx, path)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenLocalCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := OpenLocal(ctx, filepath.Join(t.TempDir(), "canceled.db"))
	require.Error(t, err)
}

func TestNormalizeSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/x.db?mode=rwc", normalizeSQLiteDSN("/tmp/x.db"))
	assert.Equal(t, "file::memory:?cache=shared", normalizeSQLiteDSN(":memory:"))
	assert.Equal(t, "file:custom.db?mode=ro", normalizeSQLiteDSN("file:custom.db?mode=ro"))
}
