package port

import (
	"context"
	"time"
)

// CacheRepository is the fast-path stock counter. It mirrors the ledger's
// available stock but is advisory: the ledger is always the authority.
type CacheRepository interface {
	// GetStock returns the counter value; found is false when the key is
	// absent or expired. An absent counter must be treated as an error by
	// callers, never as zero or unlimited stock.
	GetStock(ctx context.Context, ticketID string) (value int64, found bool, err error)

	// AddStock atomically adds delta (negative to admit a purchase) and
	// returns the post-add value. The add and the returned value are one
	// inseparable step; a read-then-write on the counter is forbidden.
	// found is false and the counter untouched when the key is absent.
	AddStock(ctx context.Context, ticketID string, delta int64) (newValue int64, found bool, err error)

	// SetStock initializes or overwrites the counter with a TTL.
	SetStock(ctx context.Context, ticketID string, value int64, ttl time.Duration) error
}
