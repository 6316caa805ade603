// Package register tracks cash register sessions per cashier.
package register

import "time"

// SessionStatus enumerates register session states.
type SessionStatus string

const (
	StatusOpen   SessionStatus = "OPEN"
	StatusClosed SessionStatus = "CLOSED"
)

// Session is one cash drawer count, opened with a float and closed against
// the cash taken during the shift. A user has at most one open session.
type Session struct {
	ID             int64         `json:"id" db:"id"`
	UserID         int64         `json:"user_id" db:"user_id"`
	Status         SessionStatus `json:"status" db:"status"`
	InitialAmount  float64       `json:"initial_amount" db:"initial_amount"`
	ExpectedAmount *float64      `json:"expected_amount,omitempty" db:"expected_amount"`
	ActualAmount   *float64      `json:"actual_amount,omitempty" db:"actual_amount"`
	Difference     *float64      `json:"difference,omitempty" db:"difference"`
	OpenedAt       time.Time     `json:"opened_at" db:"opened_at"`
	ClosedAt       *time.Time    `json:"closed_at,omitempty" db:"closed_at"`
}

// OpenRequest opens a session with the counted drawer float.
type OpenRequest struct {
	InitialAmount float64 `json:"initial_amount" validate:"gte=0"`
}

// CloseRequest closes a session with the counted drawer content.
type CloseRequest struct {
	ActualAmount float64 `json:"actual_amount" validate:"gte=0"`
}
