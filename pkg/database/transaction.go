package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// maxTxAttempts bounds reruns after serialization failures and deadlocks.
const maxTxAttempts = 3

// commitTimeout bounds COMMIT, which runs detached from the caller's cancellation.
const commitTimeout = 5 * time.Second

// TxFunc runs inside a transaction. It may run more than once, so it must not
// keep side effects outside tx.
type TxFunc func(pgx.Tx) error

// WithTransaction runs fn in a transaction and commits it. An error or panic
// from fn rolls back. Serialization failures and deadlocks rerun fn.
func WithTransaction(ctx context.Context, pool *pgxpool.Pool, fn TxFunc) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runTx(ctx, pool, fn)
		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("[DATABASE] transaction conflict, retrying")
	}
	return err
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn TxFunc) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rollback and commit must still reach the server when ctx was cancelled mid-transaction.
	detached := context.WithoutCancel(ctx)
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(detached)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(detached)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	// A cancelled caller must not abort COMMIT halfway: the server may apply it while the
	// client reports failure.
	commitCtx, cancel := context.WithTimeout(detached, commitTimeout)
	defer cancel()
	if err = tx.Commit(commitCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// WithTransactionResult is WithTransaction for functions that produce a value.
func WithTransactionResult[T any](ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) (T, error)) (T, error) {
	var result T

	err := WithTransaction(ctx, pool, func(tx pgx.Tx) error {
		var fnErr error
		result, fnErr = fn(tx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}
