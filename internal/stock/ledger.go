package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// Apply row-locks the product, guards against negative stock, updates the
// cached on-hand quantity and appends the ledger entry, all on the caller's
// transaction. Callers (sales, procurement, refunds, manual adjustments) wrap
// their whole business operation in one transaction and call Apply per line.
func Apply(ctx context.Context, tx pgx.Tx, input MovementInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if input.Quantity == 0 {
		return Movement{}, fmt.Errorf("%w: quantity must be non-zero", shared.ErrValidation)
	}

	var name string
	var current int
	err := tx.QueryRow(ctx, `SELECT name, stock_on_hand FROM products WHERE id=$1 FOR UPDATE`, input.ProductID).
		Scan(&name, &current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, input.ProductID)
		}
		return Movement{}, fmt.Errorf("stock: lock product: %w", err)
	}

	after := current + input.Quantity
	if after < 0 {
		return Movement{}, fmt.Errorf("%w: %s (available %d, requested %d)", shared.ErrInsufficientStock, name, current, -input.Quantity)
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock_on_hand=$1, updated_at=NOW() WHERE id=$2`, after, input.ProductID); err != nil {
		return Movement{}, fmt.Errorf("stock: update on-hand: %w", err)
	}

	movement := Movement{
		ProductID:   input.ProductID,
		Type:        input.Type,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		TotalValue:  input.UnitPrice * float64(input.Quantity),
		UserID:      input.UserID,
		Reason:      input.Reason,
		StockBefore: current,
		StockAfter:  after,
	}
	if input.ReferenceID != "" {
		movement.ReferenceID = &input.ReferenceID
	}
	err = tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, type, quantity, unit_price, total_value, reference_id, user_id, reason, stock_before, stock_after, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
RETURNING id, created_at`,
		movement.ProductID, movement.Type, movement.Quantity, movement.UnitPrice, movement.TotalValue,
		movement.ReferenceID, movement.UserID, movement.Reason, movement.StockBefore, movement.StockAfter).
		Scan(&movement.ID, &movement.CreatedAt)
	if err != nil {
		return Movement{}, fmt.Errorf("stock: insert movement: %w", err)
	}
	return movement, nil
}
