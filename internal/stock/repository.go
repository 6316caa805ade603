package stock

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-pos/comptoir/internal/platform/db"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	ApplyMovement(ctx context.Context, input MovementInput) (Movement, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) ApplyMovement(ctx context.Context, input MovementInput) (Movement, error) {
	return Apply(ctx, r.tx, input)
}

// ListMovements returns ledger entries, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter ListFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, type, quantity, unit_price, total_value, reference_id, user_id, reason, stock_before, stock_after, created_at
FROM stock_movements
WHERE product_id=$1
  AND ($2::text IS NULL OR type=$2)
  AND created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY created_at DESC, id DESC
LIMIT $5`, filter.ProductID, filter.Type, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.UnitPrice, &m.TotalValue,
			&m.ReferenceID, &m.UserID, &m.Reason, &m.StockBefore, &m.StockAfter, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// LedgerSum replays the ledger for a product. Used by the consistency check
// against the cached products.stock_on_hand.
func (r *Repository) LedgerSum(ctx context.Context, productID int64) (int, error) {
	var sum int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE product_id=$1`, productID).Scan(&sum)
	return sum, err
}

// CachedOnHand reads the denormalized quantity from products.
func (r *Repository) CachedOnHand(ctx context.Context, productID int64) (int, error) {
	var qty int
	err := r.pool.QueryRow(ctx, `SELECT stock_on_hand FROM products WHERE id=$1`, productID).Scan(&qty)
	return qty, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
