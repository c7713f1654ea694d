package handler

import (
	"time"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
)

type ticketResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	PriceCents     int64     `json:"price_cents"`
	TotalStock     int       `json:"total_stock"`
	AvailableStock int       `json:"available_stock"`
	CreatedAt      time.Time `json:"created_at"`
}

type orderResponse struct {
	OrderSN    string    `json:"order_sn"`
	BuyerID    string    `json:"buyer_id"`
	TicketID   string    `json:"ticket_id"`
	Quantity   int       `json:"quantity"`
	TotalCents int64     `json:"total_cents"`
	Status     string    `json:"status"`
	Remarks    string    `json:"remarks,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		PriceCents:     t.PriceCents,
		TotalStock:     t.TotalStock,
		AvailableStock: t.AvailableStock,
		CreatedAt:      t.CreatedAt,
	}
}

func toTicketResponses(tickets []domain.Ticket) []ticketResponse {
	out := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketResponse(t))
	}
	return out
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderSN:    o.OrderSN,
		BuyerID:    o.BuyerID,
		TicketID:   o.TicketID,
		Quantity:   o.Quantity,
		TotalCents: o.TotalCents,
		Status:     string(o.Status),
		Remarks:    o.Remarks,
		CreatedAt:  o.CreatedAt,
	}
}
