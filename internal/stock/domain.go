// Package stock maintains the append-only stock movement ledger and the cached
// on-hand quantity on products. Every stock mutation in the system goes through
// this package, inside the caller's transaction.
package stock

import "time"

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementEntry represents inbound stock, typically a purchase receipt.
	MovementEntry MovementType = "ENTRY"
	// MovementSale represents stock leaving through a sale.
	MovementSale MovementType = "SALE"
	// MovementAdjustment is a manual correction, including sale cancellations.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementDamage records damaged goods written off.
	MovementDamage MovementType = "DAMAGE"
	// MovementLoss records lost or stolen goods written off.
	MovementLoss MovementType = "LOSS"
	// MovementReturn represents stock coming back through a refund (avoir).
	MovementReturn MovementType = "RETURN"
)

// Movement is one immutable ledger entry. Quantity is signed: positive for
// inbound, negative for outbound. StockBefore/StockAfter snapshot the cached
// quantity around the entry so the ledger can be audited without replay.
type Movement struct {
	ID          int64        `json:"id" db:"id"`
	ProductID   int64        `json:"product_id" db:"product_id"`
	Type        MovementType `json:"type" db:"type"`
	Quantity    int          `json:"quantity" db:"quantity"`
	UnitPrice   float64      `json:"unit_price" db:"unit_price"`
	TotalValue  float64      `json:"total_value" db:"total_value"`
	ReferenceID *string      `json:"reference_id,omitempty" db:"reference_id"`
	UserID      int64        `json:"user_id" db:"user_id"`
	Reason      string       `json:"reason" db:"reason"`
	StockBefore int          `json:"stock_before" db:"stock_before"`
	StockAfter  int          `json:"stock_after" db:"stock_after"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// MovementInput describes a ledger entry to append.
type MovementInput struct {
	ProductID   int64
	Type        MovementType
	Quantity    int
	UnitPrice   float64
	ReferenceID string
	UserID      int64
	Reason      string
}

// AdjustmentRequest posts a manual stock correction.
type AdjustmentRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=500"`
}

// WriteOffRequest posts a damage or loss entry; quantity is the positive count removed.
type WriteOffRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,max=500"`
}

// ListFilter scopes movement listings.
type ListFilter struct {
	ProductID int64
	Type      *MovementType
	From      time.Time
	To        time.Time
	Limit     int
}
