package port

import (
	"context"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
)

// ReservationQueue decouples purchase admission from durable commit.
// Delivery is at least once; consumers must be idempotent per OrderSN.
type ReservationQueue interface {
	Publish(ctx context.Context, msg domain.ReservationMessage) error
}

// ReservationHandler processes one delivered reservation. A nil return
// acknowledges the message; errors leave it for redelivery.
type ReservationHandler func(ctx context.Context, msg domain.ReservationMessage) error
