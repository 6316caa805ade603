// Package quotes manages price quotes (devis) and their one-shot conversion
// into sales.
package quotes

import (
	"time"

	"github.com/comptoir-pos/comptoir/internal/pricing"
	"github.com/comptoir-pos/comptoir/internal/sales"
)

// Status enumerates the quote lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusAccepted  Status = "ACCEPTED"
	StatusRefused   Status = "REFUSED"
	StatusExpired   Status = "EXPIRED"
	StatusConverted Status = "CONVERTED"
)

// Quote is a priced offer. Totals follow the same rules as the matching sale
// document type, so converting never changes the numbers the client saw.
type Quote struct {
	ID              int64           `json:"id" db:"id"`
	Number          string          `json:"number" db:"number"`
	Type            pricing.DocType `json:"type" db:"type"`
	Status          Status          `json:"status" db:"status"`
	ClientID        *int64          `json:"client_id,omitempty" db:"client_id"`
	Subtotal        float64         `json:"subtotal" db:"subtotal"`
	Discount        float64         `json:"discount" db:"discount"`
	Tax             float64         `json:"tax" db:"tax"`
	Total           float64         `json:"total" db:"total"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty" db:"valid_until"`
	ConvertedSaleID *int64          `json:"converted_sale_id,omitempty" db:"converted_sale_id"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	CreatedBy       int64           `json:"created_by" db:"created_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Items           []QuoteItem     `json:"items,omitempty" db:"-"`
}

// QuoteItem is one quoted line with prices frozen at quote time.
type QuoteItem struct {
	ID          int64   `json:"id" db:"id"`
	QuoteID     int64   `json:"quote_id" db:"quote_id"`
	ProductID   int64   `json:"product_id" db:"product_id"`
	ProductName string  `json:"product_name" db:"product_name"`
	Quantity    int     `json:"quantity" db:"quantity"`
	UnitPrice   float64 `json:"unit_price" db:"unit_price"`
	Discount    float64 `json:"discount" db:"discount"`
	TotalPrice  float64 `json:"total_price" db:"total_price"`
}

// QuoteLineRequest is one requested quote line.
type QuoteLineRequest struct {
	ProductID int64    `json:"product_id" validate:"required,gt=0"`
	Quantity  int      `json:"quantity" validate:"required,gte=1"`
	UnitPrice *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	Discount  float64  `json:"discount" validate:"gte=0"`
}

// CreateQuoteRequest registers a quote.
type CreateQuoteRequest struct {
	Type       pricing.DocType    `json:"type" validate:"required,oneof=TICKET INVOICE"`
	ClientID   *int64             `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	Items      []QuoteLineRequest `json:"items" validate:"required,min=1,dive"`
	Discount   float64            `json:"discount" validate:"gte=0"`
	ValidUntil *time.Time         `json:"valid_until,omitempty"`
	Notes      *string            `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ConvertQuoteRequest turns an open quote into a sale. Payment details are
// collected at conversion time, like any checkout.
type ConvertQuoteRequest struct {
	PaymentMethod sales.PaymentMethod `json:"payment_method" validate:"required,oneof=CASH CARD MIXED CREDIT"`
	CashAmount    float64             `json:"cash_amount" validate:"gte=0"`
	CardAmount    float64             `json:"card_amount" validate:"gte=0"`
	DueDate       *time.Time          `json:"due_date,omitempty"`
}

// ListQuotesRequest filters quote listings.
type ListQuotesRequest struct {
	Status   *Status `json:"status,omitempty"`
	ClientID *int64  `json:"client_id,omitempty"`
	Page     int     `json:"page" validate:"gte=0"`
	PerPage  int     `json:"per_page" validate:"gte=0,lte=500"`
}
