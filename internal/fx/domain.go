// Package fx converts amounts between currencies using daily rate snapshots
// anchored to a deployment-wide base currency.
package fx

import "time"

// Currency describes a currency known to the system.
type Currency struct {
	Code     string `json:"code" db:"code"`
	Name     string `json:"name" db:"name"`
	Symbol   string `json:"symbol" db:"symbol"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Rate is a per-day snapshot: 1 unit of Code buys RateToBase base-currency units.
type Rate struct {
	Code       string    `json:"code" db:"code"`
	RateToBase float64   `json:"rate_to_base" db:"rate_to_base"`
	RateDate   time.Time `json:"rate_date" db:"rate_date"`
}

// RateSet is the snapshot the converter works against. The base currency always
// resolves to 1.
type RateSet struct {
	Base  string
	Rates map[string]float64
}

// UpsertRateRequest records today's rate for a currency.
type UpsertRateRequest struct {
	Code       string    `json:"code" validate:"required,len=3"`
	RateToBase float64   `json:"rate_to_base" validate:"required,gt=0"`
	RateDate   time.Time `json:"rate_date"`
}

// CreateCurrencyRequest registers a currency.
type CreateCurrencyRequest struct {
	Code   string `json:"code" validate:"required,len=3"`
	Name   string `json:"name" validate:"required,max=100"`
	Symbol string `json:"symbol" validate:"max=10"`
}
