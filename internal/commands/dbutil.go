package commands

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/analyticket/analyticket/internal/app"
	"github.com/analyticket/analyticket/internal/output"
	"github.com/analyticket/analyticket/internal/store"
)

// DB is an alias so command code doesn't need to import database/sql.
type DB = sql.DB

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// The JSON error response on stdout is the output.
	return "error already printed"
}

func (e printedError) Unwrap() error { return e.err }

// openDB opens the local cache database at the resolved path.
func openDB(ctx context.Context) (*DB, func(), error) {
	path, err := app.GetDBPath()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.OpenLocal(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

// withDB runs fn against the local database without building the rest of
// the runtime; errors from either are printed through cmdErr.
func withDB(ctx context.Context, fn func(db *DB) error) error {
	db, closeDB, err := openDB(ctx)
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	if err := fn(db); err != nil {
		return cmdErr(err)
	}
	return nil
}

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	_ = output.PrintError(err)
	return printedError{err: err}
}
