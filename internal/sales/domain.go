// Package sales implements checkout, cancellation and refunds (avoirs).
package sales

import (
	"time"

	"github.com/comptoir-pos/comptoir/internal/pricing"
)

// Status enumerates the sale lifecycle. Sales are created COMPLETED at
// checkout; there is no draft state on this path.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

// PaymentMethod enumerates how a sale was settled at the counter.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentCard   PaymentMethod = "CARD"
	PaymentMixed  PaymentMethod = "MIXED"
	PaymentCredit PaymentMethod = "CREDIT"
)

// Sale is a completed checkout document (ticket or invoice).
type Sale struct {
	ID            int64           `json:"id" db:"id"`
	Number        string          `json:"number" db:"number"`
	Type          pricing.DocType `json:"type" db:"type"`
	Status        Status          `json:"status" db:"status"`
	ClientID      *int64          `json:"client_id,omitempty" db:"client_id"`
	Subtotal      float64         `json:"subtotal" db:"subtotal"`
	Discount      float64         `json:"discount" db:"discount"`
	Tax           float64         `json:"tax" db:"tax"`
	Total         float64         `json:"total" db:"total"`
	Margin        float64         `json:"margin" db:"margin"`
	AmountPaid    float64         `json:"amount_paid" db:"amount_paid"`
	DueDate       *time.Time      `json:"due_date,omitempty" db:"due_date"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`
	CashAmount    float64         `json:"cash_amount" db:"cash_amount"`
	CardAmount    float64         `json:"card_amount" db:"card_amount"`
	CurrencyCode  string          `json:"currency_code" db:"currency_code"`
	CreatedBy     int64           `json:"created_by" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
	Items         []SaleItem      `json:"items,omitempty" db:"-"`
}

// SaleItem is one line of a sale, owned exclusively by it. Prices are
// snapshots taken at sale time. RefundedQty tracks the cumulative quantity
// returned across all avoirs against this line.
type SaleItem struct {
	ID            int64   `json:"id" db:"id"`
	SaleID        int64   `json:"sale_id" db:"sale_id"`
	ProductID     int64   `json:"product_id" db:"product_id"`
	ProductName   string  `json:"product_name" db:"product_name"`
	Quantity      int     `json:"quantity" db:"quantity"`
	UnitPrice     float64 `json:"unit_price" db:"unit_price"`
	Discount      float64 `json:"discount" db:"discount"`
	TotalPrice    float64 `json:"total_price" db:"total_price"`
	PurchasePrice float64 `json:"purchase_price" db:"purchase_price"`
	Margin        float64 `json:"margin" db:"margin"`
	RefundedQty   int     `json:"refunded_qty" db:"refunded_qty"`
}

// Refund is a credit note (avoir) against a completed sale. It is a separate
// ledger entry; the original sale's totals and amount paid stay untouched.
type Refund struct {
	ID           int64         `json:"id" db:"id"`
	SaleID       int64         `json:"sale_id" db:"sale_id"`
	AvoirNumber  string        `json:"avoir_number" db:"avoir_number"`
	RefundAmount float64       `json:"refund_amount" db:"refund_amount"`
	Reason       *string       `json:"reason,omitempty" db:"reason"`
	CreatedBy    int64         `json:"created_by" db:"created_by"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	Items        []RefundItem `json:"items,omitempty" db:"-"`
}

// RefundItem snapshots one refunded line.
type RefundItem struct {
	ID          int64   `json:"id" db:"id"`
	RefundID    int64   `json:"refund_id" db:"refund_id"`
	ProductID   int64   `json:"product_id" db:"product_id"`
	ProductName string  `json:"product_name" db:"product_name"`
	Quantity    int     `json:"quantity" db:"quantity"`
	UnitPrice   float64 `json:"unit_price" db:"unit_price"`
	TotalPrice  float64 `json:"total_price" db:"total_price"`
}

// ProductRef is the product snapshot the checkout works against, read under a
// row lock so concurrent checkouts cannot oversell.
type ProductRef struct {
	ID            int64
	Name          string
	SalePrice     float64
	PurchasePrice float64
	StockOnHand   int
	IsActive      bool
}

// SaleLineRequest is one requested order line. UnitPrice falls back to the
// product's current sale price when omitted.
type SaleLineRequest struct {
	ProductID int64    `json:"product_id" validate:"required,gt=0"`
	Quantity  int      `json:"quantity" validate:"required,gte=1"`
	UnitPrice *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	Discount  float64  `json:"discount" validate:"gte=0"`
}

// CreateSaleRequest is the checkout payload.
type CreateSaleRequest struct {
	Type          pricing.DocType   `json:"type" validate:"required,oneof=TICKET INVOICE"`
	ClientID      *int64            `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	Items         []SaleLineRequest `json:"items" validate:"required,min=1,dive"`
	Discount      float64           `json:"discount" validate:"gte=0"`
	PaymentMethod PaymentMethod     `json:"payment_method" validate:"required,oneof=CASH CARD MIXED CREDIT"`
	CashAmount    float64           `json:"cash_amount" validate:"gte=0"`
	CardAmount    float64           `json:"card_amount" validate:"gte=0"`
	DueDate       *time.Time        `json:"due_date,omitempty"`
	CurrencyCode  string            `json:"currency_code" validate:"omitempty,len=3"`
}

// RefundLineRequest asks to return part of one sale line.
type RefundLineRequest struct {
	SaleItemID int64 `json:"sale_item_id" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"required,gte=1"`
}

// CreateRefundRequest is the avoir payload.
type CreateRefundRequest struct {
	Items  []RefundLineRequest `json:"items" validate:"required,min=1,dive"`
	Reason *string             `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ListSalesRequest filters sale listings.
type ListSalesRequest struct {
	Status   *Status          `json:"status,omitempty"`
	Type     *pricing.DocType `json:"type,omitempty"`
	ClientID *int64           `json:"client_id,omitempty"`
	DateFrom *time.Time       `json:"date_from,omitempty"`
	DateTo   *time.Time       `json:"date_to,omitempty"`
	Page     int              `json:"page" validate:"gte=0"`
	PerPage  int              `json:"per_page" validate:"gte=0,lte=500"`
}
