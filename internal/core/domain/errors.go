package domain

import "errors"

// Expected purchase outcomes. Callers branch on these with errors.Is;
// anything not matching one of them is an unexpected system failure.
var (
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	ErrStockNotInitialized = errors.New("stock counter not initialized")
	ErrDuplicateOrder      = errors.New("duplicate order")

	// ErrStatusUnknown means the ledger write may or may not have committed
	// (the request ran out of time waiting on it). No compensation is applied
	// for a state that was never confirmed; the caller should poll the order.
	ErrStatusUnknown = errors.New("purchase status unknown, check order")
)
