package shared

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Row abstracts the QueryRow capability shared by pgxpool.Pool and pgx.Tx.
type Row interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextDocNumber atomically increments the per-prefix sequence and formats a
// document number such as TKT-000042. Safe under concurrency: the UPSERT takes a
// row lock on the prefix, so two callers never observe the same value.
func NextDocNumber(ctx context.Context, q Row, prefix string) (string, error) {
	if prefix == "" {
		return "", errors.New("shared: sequence prefix required")
	}
	var value int64
	err := q.QueryRow(ctx, `INSERT INTO doc_sequences (prefix, last_value) VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET last_value = doc_sequences.last_value + 1
RETURNING last_value`, prefix).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("shared: next doc number: %w", err)
	}
	return fmt.Sprintf("%s-%06d", prefix, value), nil
}
