package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/ticketrush?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return db
}

func setupTicket(t *testing.T, db *sql.DB, ticketID string, stock int, priceCents int64) {
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `
		INSERT INTO tickets (id, name, description, price_cents, total_stock, available_stock, version, created_at, updated_at)
		VALUES (?, 'test ticket', '', ?, ?, ?, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE available_stock = ?, total_stock = ?, price_cents = ?, version = 0`,
		ticketID, priceCents, stock, stock, stock, stock, priceCents)
	if err != nil {
		t.Fatalf("setup ticket: %v", err)
	}
	db.ExecContext(ctx, `DELETE FROM orders WHERE ticket_id = ?`, ticketID)
}

func testOrder(ticketID string, qty int) domain.Order {
	now := time.Now()
	return domain.Order{
		OrderSN:    "test-" + ticketID + "-" + now.Format("150405.000000000"),
		BuyerID:    "buyer-1",
		TicketID:   ticketID,
		Quantity:   qty,
		TotalCents: int64(qty) * 1000,
		Status:     domain.OrderStatusPaid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCommitPurchase_Success(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	setupTicket(t, db, "commit-item", 10, 1000)

	order := testOrder("commit-item", 3)
	if err := adapter.CommitPurchase(ctx, order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ticket, err := adapter.GetTicket(ctx, "commit-item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.AvailableStock != 7 {
		t.Errorf("expected stock 7, got %d", ticket.AvailableStock)
	}
	if ticket.Version != 1 {
		t.Errorf("expected version 1, got %d", ticket.Version)
	}

	stored, err := adapter.GetOrderBySN(ctx, order.OrderSN)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil || stored.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid order, got %+v", stored)
	}
}

func TestCommitPurchase_InsufficientStockRollsBack(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	setupTicket(t, db, "guard-item", 2, 1000)

	order := testOrder("guard-item", 3)
	err := adapter.CommitPurchase(ctx, order)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}

	// The rejected transaction must leave no order behind.
	stored, _ := adapter.GetOrderBySN(ctx, order.OrderSN)
	if stored != nil {
		t.Error("expected no order after rollback")
	}

	ticket, _ := adapter.GetTicket(ctx, "guard-item")
	if ticket.AvailableStock != 2 {
		t.Errorf("expected stock unchanged at 2, got %d", ticket.AvailableStock)
	}
}

func TestCommitPurchaseCAS_VersionConflict(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	setupTicket(t, db, "cas-item", 10, 1000)

	// First commit at version 0 succeeds and bumps the version.
	if err := adapter.CommitPurchaseCAS(ctx, testOrder("cas-item", 1), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second commit still quoting version 0 must conflict.
	err := adapter.CommitPurchaseCAS(ctx, testOrder("cas-item", 1), 0)
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got: %v", err)
	}

	ticket, _ := adapter.GetTicket(ctx, "cas-item")
	if ticket.AvailableStock != 9 {
		t.Errorf("expected stock 9 after one commit, got %d", ticket.AvailableStock)
	}
}

func TestCreateOrder_DuplicateSN(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	setupTicket(t, db, "dup-item", 10, 1000)

	order := testOrder("dup-item", 1)
	if err := adapter.CreateOrder(ctx, order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := adapter.CreateOrder(ctx, order)
	if !errors.Is(err, domain.ErrDuplicateOrder) {
		t.Errorf("expected ErrDuplicateOrder, got: %v", err)
	}
}

func TestGetTicket_Absent(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	ticket, err := adapter.GetTicket(context.Background(), "no-such-ticket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket != nil {
		t.Errorf("expected nil ticket, got %+v", ticket)
	}
}
