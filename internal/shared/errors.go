package shared

import "errors"

var (
	// ErrNotFound indicates a missing product, sale, purchase, quote or client.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock indicates the stock check failed; wrappers name the product.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity indicates a business-rule violation on a refund or receipt quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrOverpayment indicates a payment exceeding the remaining due amount.
	ErrOverpayment = errors.New("payment exceeds remaining due")
	// ErrAlreadyCancelled indicates an illegal second cancellation.
	ErrAlreadyCancelled = errors.New("already cancelled")
	// ErrCancelled indicates an operation against a cancelled document.
	ErrCancelled = errors.New("document is cancelled")
	// ErrAlreadyConverted indicates a quote that has already produced a sale.
	ErrAlreadyConverted = errors.New("quote already converted")
	// ErrAlreadyOpen indicates the user already has an open cash register.
	ErrAlreadyOpen = errors.New("cash register already open")
	// ErrAlreadyClosed indicates an illegal second close of a cash register.
	ErrAlreadyClosed = errors.New("cash register already closed")
)
