package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// serializationAttempts bounds how often a transaction is replayed after a serialization failure.
const serializationAttempts = 3

// Beginner is satisfied by *pgxpool.Pool and by pgx.Tx for nested savepoints.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ Beginner = (*pgxpool.Pool)(nil)

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool Beginner, fn func(pgx.Tx) error) error {
	return WithTxOptions(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithTxOptions runs fn in a transaction with opts. Under Serializable, fn is replayed from scratch
// when Postgres aborts with a serialization failure (SQLSTATE 40001), so fn must not have side
// effects outside the transaction. Other isolation levels surface the failure to the caller.
func WithTxOptions(ctx context.Context, pool Beginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= serializationAttempts; attempt++ {
		err = runTx(ctx, pool, opts, fn)
		if err == nil || !retryable(opts, err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func runTx(ctx context.Context, pool Beginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}

func retryable(opts pgx.TxOptions, err error) bool {
	return opts.IsoLevel == pgx.Serializable && IsSerializationFailure(err)
}

// IsSerializationFailure reports whether err carries SQLSTATE 40001.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
