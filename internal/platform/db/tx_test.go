package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	txs  []*fakeTx
	opts []pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{}
	b.txs = append(b.txs, tx)
	b.opts = append(b.opts, opts)
	return tx, nil
}

var serializationErr = &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

func TestWithTxCommits(t *testing.T) {
	b := &fakeBeginner{}
	require.NoError(t, WithTx(context.Background(), b, func(pgx.Tx) error { return nil }))
	require.Len(t, b.txs, 1)
	assert.True(t, b.txs[0].committed)
	assert.Equal(t, pgx.RepeatableRead, b.opts[0].IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.Len(t, b.txs, 1)
	assert.True(t, b.txs[0].rolledBack)
}

func TestSerializableReplaysOnConflict(t *testing.T) {
	b := &fakeBeginner{}
	calls := 0
	err := WithTxOptions(context.Background(), b, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(pgx.Tx) error {
		calls++
		if calls < 2 {
			return fmt.Errorf("insert payout: %w", serializationErr)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, b.txs[0].rolledBack)
	assert.True(t, b.txs[1].committed)
}

func TestReplayGivesUpAfterAttempts(t *testing.T) {
	b := &fakeBeginner{}
	err := WithTxOptions(context.Background(), b, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(pgx.Tx) error {
		return serializationErr
	})
	assert.True(t, IsSerializationFailure(err))
	assert.Len(t, b.txs, serializationAttempts)
}

func TestRepeatableReadDoesNotReplay(t *testing.T) {
	b := &fakeBeginner{}
	err := WithTx(context.Background(), b, func(pgx.Tx) error {
		return serializationErr
	})
	assert.Error(t, err)
	assert.Len(t, b.txs, 1)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(serializationErr))
	assert.False(t, IsSerializationFailure(errors.New("plain")))
}
