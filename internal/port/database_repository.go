package port

import (
	"context"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
)

// DatabaseRepository is the durable ledger and order store.
//
// Commit methods persist the order and the matching stock decrement in one
// transaction, so a purchase either fully commits or leaves the ledger
// untouched. Adapters report conflicts and duplicates through the domain
// error kinds.
type DatabaseRepository interface {
	// GetTicket returns (nil, nil) when the ticket does not exist.
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)

	CreateTicket(ctx context.Context, ticket *domain.Ticket) error

	ListTickets(ctx context.Context) ([]domain.Ticket, error)

	// SaveStockUnsafe writes available stock with no version or stock guard.
	// Only the baseline strategy uses it; it loses races by design.
	SaveStockUnsafe(ctx context.Context, ticketID string, availableStock int) error

	// CommitPurchaseCAS inserts the order and decrements stock, conditioned
	// on the ticket version being expectedVersion. Returns
	// domain.ErrConcurrencyConflict when the version no longer matches.
	CommitPurchaseCAS(ctx context.Context, order domain.Order, expectedVersion int64) error

	// CommitPurchase inserts the order and decrements stock, conditioned on
	// availableStock >= quantity. Returns domain.ErrInsufficientStock when
	// the guard fails.
	CommitPurchase(ctx context.Context, order domain.Order) error

	// CreateOrder inserts an order without touching stock (failure records).
	// Returns domain.ErrDuplicateOrder when the order SN already exists.
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrderBySN returns (nil, nil) when no order has that SN.
	GetOrderBySN(ctx context.Context, orderSN string) (*domain.Order, error)
}
