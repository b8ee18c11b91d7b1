package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConcurrentStockConflict marks a transaction that lost a race against a
// concurrent writer on the same product row. Callers may retry with backoff.
var ErrConcurrentStockConflict = errors.New("concurrent stock mutation conflict")

// WithTx executes fn within a repeatable-read transaction. Serialization
// failures are classified as ErrConcurrentStockConflict so callers can
// distinguish transient conflicts from real failures.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return classifyConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isConflict(err) {
			return fmt.Errorf("platform/db: commit tx: %w", ErrConcurrentStockConflict)
		}
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

func classifyConflict(err error) error {
	if isConflict(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentStockConflict, err)
	}
	return err
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
