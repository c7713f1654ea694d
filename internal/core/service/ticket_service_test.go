package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
)

func TestCreateTicket_DefaultsAndValidation(t *testing.T) {
	db := newMockDB()
	svc := NewTicketService(db, newMockCache())

	ticket, err := svc.CreateTicket(context.Background(), &domain.Ticket{
		Name:       "concert",
		PriceCents: 5000,
		TotalStock: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.ID == "" {
		t.Error("expected generated ticket ID")
	}
	if ticket.AvailableStock != 100 {
		t.Errorf("expected available stock 100, got %d", ticket.AvailableStock)
	}

	_, err = svc.CreateTicket(context.Background(), &domain.Ticket{Name: "", TotalStock: 10})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty name, got: %v", err)
	}

	_, err = svc.CreateTicket(context.Background(), &domain.Ticket{Name: "x", TotalStock: 0})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for zero stock, got: %v", err)
	}
}

func TestInitStockCache_SeedsFromLedger(t *testing.T) {
	ticket := testTicket("item-1", 100, 1000)
	ticket.AvailableStock = 37 // ledger already partially sold
	db := newMockDB(ticket)
	cache := newMockCache()
	svc := NewTicketService(db, cache)

	if err := svc.InitStockCache(context.Background(), "item-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cache.value("item-1"); got != 37 {
		t.Errorf("expected counter seeded to 37, got %d", got)
	}
}

func TestInitStockCache_TicketMissing(t *testing.T) {
	svc := NewTicketService(newMockDB(), newMockCache())

	err := svc.InitStockCache(context.Background(), "missing")
	if !errors.Is(err, domain.ErrTicketNotFound) {
		t.Errorf("expected ErrTicketNotFound, got: %v", err)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	svc := NewTicketService(newMockDB(), newMockCache())

	_, err := svc.GetTicket(context.Background(), "missing")
	if !errors.Is(err, domain.ErrTicketNotFound) {
		t.Errorf("expected ErrTicketNotFound, got: %v", err)
	}
}
