package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// Terminal reports whether the status can no longer transition.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

type Order struct {
	OrderSN    string
	BuyerID    string
	TicketID   string
	Quantity   int
	TotalCents int64
	Status     OrderStatus
	Remarks    string // failure cause, set only on failed orders
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReservationMessage is the flat payload published for async purchases.
// The queue delivers it at least once; OrderSN is the idempotency key.
type ReservationMessage struct {
	OrderSN  string `json:"order_sn"`
	TicketID string `json:"ticket_id"`
	BuyerID  string `json:"buyer_id"`
	Quantity int    `json:"quantity"`
}
