package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
	"github.com/ndquoc/ticket-rush/internal/metrics"
	"github.com/ndquoc/ticket-rush/internal/port"
)

// CommitWorker finalizes async reservations: it reconciles the cache
// admission against the ledger and writes the terminal order. Every
// reservation ends as either a Paid order backed by a ledger decrement, or
// a Failed order with the cache counter restored.
type CommitWorker struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	logger zerolog.Logger
}

func NewCommitWorker(db port.DatabaseRepository, cache port.CacheRepository) *CommitWorker {
	return &CommitWorker{
		db:     db,
		cache:  cache,
		logger: zlog.With().Str("component", "commit_worker").Logger(),
	}
}

// HandleReservation processes one delivery. A nil return acknowledges the
// message; an error leaves it for redelivery, so this method only errors
// when nothing irreversible has happened yet.
func (w *CommitWorker) HandleReservation(ctx context.Context, msg domain.ReservationMessage) error {
	timer := prometheus.NewTimer(metrics.CommitDuration)
	defer timer.ObserveDuration()

	// At-least-once delivery: a terminal order for this SN means a previous
	// delivery already settled it.
	existing, err := w.db.GetOrderBySN(ctx, msg.OrderSN)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if existing != nil {
		w.logger.Info().Str("order_sn", msg.OrderSN).Msg("reservation already finalized, skipping")
		metrics.ReservationCommits.WithLabelValues("duplicate").Inc()
		return nil
	}

	ticket, err := w.db.GetTicket(ctx, msg.TicketID)
	if err != nil {
		return fmt.Errorf("read ticket: %w", err)
	}
	if ticket == nil {
		metrics.ReservationCommits.WithLabelValues("not_found").Inc()
		return w.failReservation(ctx, msg, 0, "ticket not found: "+msg.TicketID)
	}

	totalCents := ticket.PriceCents * int64(msg.Quantity)

	if ticket.AvailableStock < msg.Quantity {
		metrics.ReservationCommits.WithLabelValues("insufficient_stock").Inc()
		return w.failReservation(ctx, msg, totalCents, "insufficient stock")
	}

	now := time.Now()
	order := domain.Order{
		OrderSN:    msg.OrderSN,
		BuyerID:    msg.BuyerID,
		TicketID:   msg.TicketID,
		Quantity:   msg.Quantity,
		TotalCents: totalCents,
		Status:     domain.OrderStatusPaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = w.db.CommitPurchase(ctx, order)
	switch {
	case err == nil:
		w.logger.Info().Str("order_sn", msg.OrderSN).Str("ticket_id", msg.TicketID).Msg("reservation committed")
		metrics.ReservationCommits.WithLabelValues("paid").Inc()
		return nil

	case errors.Is(err, domain.ErrDuplicateOrder):
		// Another consumer finalized this SN between our check and commit.
		metrics.ReservationCommits.WithLabelValues("duplicate").Inc()
		return nil

	case errors.Is(err, domain.ErrInsufficientStock):
		// Lost the ledger race after the re-check.
		metrics.ReservationCommits.WithLabelValues("insufficient_stock").Inc()
		return w.failReservation(ctx, msg, totalCents, "insufficient stock")

	default:
		w.logger.Error().Err(err).Str("order_sn", msg.OrderSN).Msg("reservation commit failed")
		metrics.ReservationCommits.WithLabelValues("failed").Inc()
		return w.failReservation(ctx, msg, totalCents, "system error: "+err.Error())
	}
}

// failReservation writes the terminal Failed order, then restores the cache
// counter. The order goes in first: once it exists, a redelivery stops at
// the idempotency check, so the compensation cannot be applied twice. If
// the insert hits a duplicate, some other path already finalized the SN and
// owns the compensation.
func (w *CommitWorker) failReservation(ctx context.Context, msg domain.ReservationMessage, totalCents int64, cause string) error {
	now := time.Now()
	order := domain.Order{
		OrderSN:    msg.OrderSN,
		BuyerID:    msg.BuyerID,
		TicketID:   msg.TicketID,
		Quantity:   msg.Quantity,
		TotalCents: totalCents,
		Status:     domain.OrderStatusFailed,
		Remarks:    cause,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := w.db.CreateOrder(ctx, order)
	if errors.Is(err, domain.ErrDuplicateOrder) {
		w.logger.Info().Str("order_sn", msg.OrderSN).Msg("order already finalized, skipping compensation")
		return nil
	}
	if err != nil {
		// Nothing written, nothing compensated; let the message redeliver.
		return fmt.Errorf("write failed order: %w", err)
	}

	w.logger.Warn().Str("order_sn", msg.OrderSN).Str("cause", cause).Msg("reservation failed")
	compensateCache(ctx, w.cache, w.logger, msg.TicketID, msg.Quantity)
	return nil
}
