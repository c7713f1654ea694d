package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
	"github.com/ndquoc/ticket-rush/internal/port"
)

// stockTTL bounds how long a fast-path counter lives without re-init. An
// expired counter reads as absent, which purchase paths treat as an error
// rather than unlimited stock.
const stockTTL = time.Hour

// TicketService covers the administrative side: the ticket catalog and
// seeding the fast-path counter from the ledger.
type TicketService struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	logger zerolog.Logger
}

func NewTicketService(db port.DatabaseRepository, cache port.CacheRepository) *TicketService {
	return &TicketService{
		db:     db,
		cache:  cache,
		logger: zlog.With().Str("component", "ticket_service").Logger(),
	}
}

func (s *TicketService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.db.ListTickets(ctx)
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.db.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *TicketService) CreateTicket(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	if ticket.Name == "" || ticket.TotalStock <= 0 || ticket.PriceCents < 0 {
		return nil, fmt.Errorf("%w: name, positive stock and non-negative price required", ErrInvalidRequest)
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	ticket.AvailableStock = ticket.TotalStock

	if err := s.db.CreateTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("ticket_id", ticket.ID).
		Int("total_stock", ticket.TotalStock).
		Msg("ticket created")
	return ticket, nil
}

// InitStockCache seeds the fast-path counter from the ledger's available
// stock. This is the only path that creates the counter; it also serves as
// the reconciliation step when cache and ledger have drifted.
func (s *TicketService) InitStockCache(ctx context.Context, ticketID string) error {
	ticket, err := s.db.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("read ticket: %w", err)
	}
	if ticket == nil {
		return domain.ErrTicketNotFound
	}

	if err := s.cache.SetStock(ctx, ticketID, int64(ticket.AvailableStock), stockTTL); err != nil {
		return fmt.Errorf("seed stock counter: %w", err)
	}

	s.logger.Info().
		Str("ticket_id", ticketID).
		Int("available_stock", ticket.AvailableStock).
		Msg("stock counter initialized")
	return nil
}
