package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	opts pgx.TxOptions
	err  error
}

func (b *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	beginner := &fakeBeginner{tx: &fakeTx{}}
	err := WithTx(context.Background(), beginner, func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.Equal(t, pgx.RepeatableRead, beginner.opts.IsoLevel)
	require.True(t, beginner.tx.committed)
	require.False(t, beginner.tx.rolledBack)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	beginner := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")
	err := WithTx(context.Background(), beginner, func(tx pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, beginner.tx.committed)
	require.True(t, beginner.tx.rolledBack)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	beginner := &fakeBeginner{tx: &fakeTx{}}
	require.Panics(t, func() {
		_ = WithTx(context.Background(), beginner, func(tx pgx.Tx) error { panic("handler blew up") })
	})
	require.False(t, beginner.tx.committed)
	require.True(t, beginner.tx.rolledBack)
}

func TestWithTxPropagatesBeginError(t *testing.T) {
	boom := errors.New("pool exhausted")
	err := WithTx(context.Background(), &fakeBeginner{err: boom}, func(tx pgx.Tx) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, boom)
}
