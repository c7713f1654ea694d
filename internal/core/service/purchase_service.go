package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
	"github.com/ndquoc/ticket-rush/internal/metrics"
	"github.com/ndquoc/ticket-rush/internal/port"
)

// Strategy selects how a purchase is admitted and committed.
type Strategy string

const (
	// StrategyUnsafe reads, checks and writes with no concurrency control.
	// It oversells under load and exists only as the baseline.
	StrategyUnsafe Strategy = "unsafe"
	// StrategyOptimistic commits conditioned on the ticket version and
	// surfaces a conflict on the first mismatch.
	StrategyOptimistic Strategy = "optimistic"
	// StrategyOptimisticRetry re-reads and retries on conflict, bounded.
	StrategyOptimisticRetry Strategy = "optimistic_retry"
	// StrategyCache admits through the atomic cache counter, then
	// re-validates against the ledger before committing.
	StrategyCache Strategy = "cache"
	// StrategyAsync admits through the cache counter and defers the ledger
	// commit to the reservation queue.
	StrategyAsync Strategy = "async"
)

const (
	maxOptimisticAttempts = 3
	retryBackoffStep      = 100 * time.Millisecond
	compensateTimeout     = 5 * time.Second
)

var ErrInvalidRequest = errors.New("invalid purchase request")

type PurchaseRequest struct {
	TicketID string
	BuyerID  string
	Quantity int
	Strategy Strategy
}

// PurchaseResult carries either a committed order (synchronous strategies)
// or, for the async strategy, the order SN to poll while the reservation
// queue finishes the commit.
type PurchaseResult struct {
	Order      *domain.Order
	OrderSN    string
	Processing bool
}

type PurchaseService struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	queue  port.ReservationQueue
	logger zerolog.Logger
}

func NewPurchaseService(db port.DatabaseRepository, cache port.CacheRepository, queue port.ReservationQueue) *PurchaseService {
	return &PurchaseService{
		db:     db,
		cache:  cache,
		queue:  queue,
		logger: zlog.With().Str("component", "purchase_service").Logger(),
	}
}

func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if req.TicketID == "" || req.BuyerID == "" || req.Quantity <= 0 {
		return nil, ErrInvalidRequest
	}

	var (
		result *PurchaseResult
		err    error
	)
	switch req.Strategy {
	case StrategyUnsafe:
		result, err = s.purchaseUnsafe(ctx, req)
	case StrategyOptimistic:
		result, err = s.purchaseOptimistic(ctx, req, 1)
	case StrategyOptimisticRetry:
		result, err = s.purchaseOptimistic(ctx, req, maxOptimisticAttempts)
	case StrategyCache:
		result, err = s.purchaseCache(ctx, req)
	case StrategyAsync:
		result, err = s.purchaseAsync(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidRequest, req.Strategy)
	}

	metrics.PurchaseAttempts.WithLabelValues(string(req.Strategy), outcomeLabel(result, err)).Inc()
	return result, err
}

// GetOrder looks up a finalized order by its SN.
func (s *PurchaseService) GetOrder(ctx context.Context, orderSN string) (*domain.Order, error) {
	order, err := s.db.GetOrderBySN(ctx, orderSN)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// purchaseUnsafe is the read-check-write baseline. Two concurrent callers
// can both observe sufficient stock before either writes.
func (s *PurchaseService) purchaseUnsafe(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	ticket, err := s.db.GetTicket(ctx, req.TicketID)
	if err != nil {
		return nil, fmt.Errorf("read ticket: %w", err)
	}
	if ticket == nil {
		return nil, domain.ErrTicketNotFound
	}
	if ticket.AvailableStock < req.Quantity {
		return nil, domain.ErrInsufficientStock
	}

	if err := s.db.SaveStockUnsafe(ctx, req.TicketID, ticket.AvailableStock-req.Quantity); err != nil {
		return nil, s.classifyWriteErr(ctx, err)
	}

	order := newPaidOrder(req, ticket)
	if err := s.db.CreateOrder(ctx, order); err != nil {
		return nil, s.classifyWriteErr(ctx, err)
	}

	return &PurchaseResult{Order: &order, OrderSN: order.OrderSN}, nil
}

// purchaseOptimistic runs up to maxAttempts read-check-commit cycles. The
// commit is conditioned on the version observed at read time; a conflict
// means another writer got there first and the whole mutation was rejected.
func (s *PurchaseService) purchaseOptimistic(ctx context.Context, req PurchaseRequest, maxAttempts int) (*PurchaseResult, error) {
	for attempt := 1; ; attempt++ {
		ticket, err := s.db.GetTicket(ctx, req.TicketID)
		if err != nil {
			return nil, fmt.Errorf("read ticket: %w", err)
		}
		if ticket == nil {
			return nil, domain.ErrTicketNotFound
		}
		if ticket.AvailableStock < req.Quantity {
			return nil, domain.ErrInsufficientStock
		}

		order := newPaidOrder(req, ticket)
		err = s.db.CommitPurchaseCAS(ctx, order, ticket.Version)
		if err == nil {
			return &PurchaseResult{Order: &order, OrderSN: order.OrderSN}, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, s.classifyWriteErr(ctx, err)
		}
		if attempt >= maxAttempts {
			return nil, domain.ErrConcurrencyConflict
		}

		s.logger.Debug().
			Str("ticket_id", req.TicketID).
			Int("attempt", attempt).
			Msg("version conflict, retrying")

		// Arithmetically increasing pause to spread out re-conflicts.
		// Nothing provisional is in flight here, so a cancelled wait is a
		// plain context error, not an ambiguous outcome.
		timer := time.NewTimer(retryBackoffStep * time.Duration(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("retry wait: %w", ctx.Err())
		}
	}
}

// purchaseCache admits through one atomic decrement on the cache counter,
// then re-validates against the ledger before the durable commit. Every
// path that keeps the decrement without a matching ledger decrement
// compensates the counter back up.
func (s *PurchaseService) purchaseCache(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	remaining, found, err := s.cache.AddStock(ctx, req.TicketID, -int64(req.Quantity))
	if err != nil {
		// The decrement was never confirmed; compensating could hand the
		// same stock out twice.
		return nil, fmt.Errorf("cache decrement: %w", err)
	}
	if !found {
		return nil, domain.ErrStockNotInitialized
	}
	if remaining < 0 {
		compensateCache(ctx, s.cache, s.logger, req.TicketID, req.Quantity)
		return nil, domain.ErrInsufficientStock
	}

	ticket, err := s.db.GetTicket(ctx, req.TicketID)
	if err != nil {
		compensateCache(ctx, s.cache, s.logger, req.TicketID, req.Quantity)
		return nil, fmt.Errorf("read ticket: %w", err)
	}
	if ticket == nil {
		compensateCache(ctx, s.cache, s.logger, req.TicketID, req.Quantity)
		return nil, domain.ErrTicketNotFound
	}
	if ticket.AvailableStock < req.Quantity {
		compensateCache(ctx, s.cache, s.logger, req.TicketID, req.Quantity)
		return nil, domain.ErrInsufficientStock
	}

	order := newPaidOrder(req, ticket)
	if err := s.db.CommitPurchase(ctx, order); err != nil {
		if ambiguousOutcome(ctx, err) {
			// The ledger write may have committed; leave the cache alone
			// and let the caller poll the order.
			return nil, domain.ErrStatusUnknown
		}
		compensateCache(ctx, s.cache, s.logger, req.TicketID, req.Quantity)
		if errors.Is(err, domain.ErrInsufficientStock) {
			return nil, domain.ErrInsufficientStock
		}
		return nil, fmt.Errorf("commit purchase: %w", err)
	}

	return &PurchaseResult{Order: &order, OrderSN: order.OrderSN}, nil
}

// purchaseAsync performs only the cache admission synchronously and hands
// the ledger commit to the reservation queue.
func (s *PurchaseService) purchaseAsync(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	remaining, found, err := s.cache.AddStock(ctx, req.TicketID, -int64(req.Quantity))
	if err != nil {
		return nil, fmt.Errorf("cache decrement: %w", err)
	}
	if !found {
		return nil, domain.ErrStockNotInitialized
	}
	if remaining < 0 {
		compensateCache(ctx, s.cache, s.logger, req.TicketID, req.Quantity)
		return nil, domain.ErrInsufficientStock
	}

	orderSN := NewOrderSN()
	msg := domain.ReservationMessage{
		OrderSN:  orderSN,
		TicketID: req.TicketID,
		BuyerID:  req.BuyerID,
		Quantity: req.Quantity,
	}
	if err := s.queue.Publish(ctx, msg); err != nil {
		compensateCache(ctx, s.cache, s.logger, req.TicketID, req.Quantity)
		return nil, fmt.Errorf("enqueue reservation: %w", err)
	}

	s.logger.Info().
		Str("order_sn", orderSN).
		Str("ticket_id", req.TicketID).
		Int("quantity", req.Quantity).
		Msg("reservation enqueued")

	return &PurchaseResult{OrderSN: orderSN, Processing: true}, nil
}

// compensateCache restores an admission that did not reach a durable
// commit. It runs detached from the request context so an expired deadline
// cannot strand the counter.
func compensateCache(ctx context.Context, cache port.CacheRepository, logger zerolog.Logger, ticketID string, quantity int) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	if _, _, err := cache.AddStock(cctx, ticketID, int64(quantity)); err != nil {
		logger.Error().Err(err).
			Str("ticket_id", ticketID).
			Int("quantity", quantity).
			Msg("CRITICAL: cache compensation failed, counter short until re-init")
	}
}

// classifyWriteErr separates confirmed failures from writes whose outcome
// the request never observed.
func (s *PurchaseService) classifyWriteErr(ctx context.Context, err error) error {
	if ambiguousOutcome(ctx, err) {
		return domain.ErrStatusUnknown
	}
	return fmt.Errorf("ledger write: %w", err)
}

func ambiguousOutcome(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func newPaidOrder(req PurchaseRequest, ticket *domain.Ticket) domain.Order {
	now := time.Now()
	return domain.Order{
		OrderSN:    NewOrderSN(),
		BuyerID:    req.BuyerID,
		TicketID:   req.TicketID,
		Quantity:   req.Quantity,
		TotalCents: ticket.PriceCents * int64(req.Quantity),
		Status:     domain.OrderStatusPaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewOrderSN generates a unique order reference.
func NewOrderSN() string {
	return "T" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func outcomeLabel(result *PurchaseResult, err error) string {
	switch {
	case err == nil && result != nil && result.Processing:
		return "processing"
	case err == nil:
		return "paid"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, domain.ErrStockNotInitialized):
		return "not_initialized"
	case errors.Is(err, domain.ErrTicketNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStatusUnknown):
		return "unknown"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	default:
		return "error"
	}
}
