package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Transact runs fn in one transaction, retrying the whole unit while SQLite
// reports lock contention. fn may run more than once and must not keep state
// between attempts.
func Transact(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	return RetryWithBackoffContext(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin cache transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit cache transaction: %w", err)
		}
		return nil
	})
}
