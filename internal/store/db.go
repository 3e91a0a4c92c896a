package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/analyticket/analyticket/internal/app"
	_ "modernc.org/sqlite"
)

// defaultBusyTimeoutMS is the SQLite busy_timeout in milliseconds.
// Override with ANALYTICKET_BUSY_TIMEOUT_MS.
const defaultBusyTimeoutMS = 5000

// InitDB opens the local cache database at the configured path and runs
// migrations.
func InitDB() (*sql.DB, error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, err
	}
	return OpenLocal(context.Background(), dbPath)
}

// InitDBWithPath opens the database at dbPath (useful for testing).
func InitDBWithPath(dbPath string) (*sql.DB, error) {
	return OpenLocal(context.Background(), dbPath)
}

// OpenLocal opens the local cache database at dbPath, applies connection
// pragmas and migrates it. ctx bounds the busy retries and the wait for
// another process's migration lock.
func OpenLocal(ctx context.Context, dbPath string) (*sql.DB, error) {
	if _, err := app.EnsureDBDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", normalizeSQLiteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open local cache %s: %w", dbPath, err)
	}

	// One connection: the local tier is a per-process cache, not a server.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range localPragmas(busyTimeoutMS()) {
		if err := RetryWithBackoffContext(ctx, func() error {
			_, err := db.ExecContext(ctx, pragma)
			return err
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := RetryWithBackoffContext(ctx, func() error { return MigrateDB(ctx, db, dbPath) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local cache: %w", err)
	}

	return db, nil
}

func busyTimeoutMS() int {
	if v := os.Getenv("ANALYTICKET_BUSY_TIMEOUT_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultBusyTimeoutMS
}

// localPragmas puts busy_timeout first so the WAL switch waits on locks held
// by another CLI process sharing the file.
func localPragmas(busyMS int) []string {
	return []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyMS),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA journal_mode=WAL",
	}
}

func normalizeSQLiteDSN(dbPath string) string {
	switch {
	case strings.HasPrefix(dbPath, "file:"):
		return dbPath
	case dbPath == ":memory:":
		return "file::memory:?cache=shared"
	default:
		// mode=rwc creates the file; some environments otherwise open read-only.
		return "file:" + dbPath + "?mode=rwc"
	}
}
