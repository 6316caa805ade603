// Package credit tracks payments against sales and aggregates per-client
// outstanding balances.
package credit

import "time"

// Payment is one settlement recorded against a sale. Payments only ever add
// to a sale's amount paid; refunds go through avoirs, not negative payments.
type Payment struct {
	ID        int64     `json:"id" db:"id"`
	SaleID    int64     `json:"sale_id" db:"sale_id"`
	Amount    float64   `json:"amount" db:"amount"`
	Method    string    `json:"method" db:"method"`
	CreatedBy int64     `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RecordPaymentRequest settles part of a sale's balance.
type RecordPaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required,oneof=CASH CARD TRANSFER CHECK"`
}

// ClientCreditSummary is one row of the outstanding-balance report. DaysOverdue
// counts from the oldest unpaid sale's due date, or its creation date when no
// due date was set.
type ClientCreditSummary struct {
	ClientID    int64     `json:"client_id"`
	ClientName  string    `json:"client_name"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	TotalDue    float64   `json:"total_due"`
	UnpaidCount int       `json:"unpaid_count"`
	OldestRef   time.Time `json:"oldest_ref"`
	DaysOverdue int       `json:"days_overdue"`
}

// SummaryFilter scopes the credit summary report.
type SummaryFilter struct {
	MinOverdueDays *int     `json:"min_overdue_days,omitempty"`
	MinDue         *float64 `json:"min_due,omitempty"`
	MaxDue         *float64 `json:"max_due,omitempty"`
	Search         *string  `json:"search,omitempty"`
	Page           int      `json:"page"`
	PerPage        int      `json:"per_page"`
}
