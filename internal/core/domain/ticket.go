package domain

import "time"

// Ticket is the durable, authoritative stock record for one sale item.
type Ticket struct {
	ID             string
	Name           string
	Description    string
	PriceCents     int64
	TotalStock     int
	AvailableStock int
	Version        int64 // optimistic locking
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
