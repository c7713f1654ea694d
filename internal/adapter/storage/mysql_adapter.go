package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/ndquoc/ticket-rush/internal/core/domain"
)

const mysqlErrDuplicateEntry = 1062

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	var t domain.Ticket
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, description, price_cents, total_stock, available_stock, version, created_at, updated_at
		FROM tickets WHERE id = ?`, ticketID,
	).Scan(&t.ID, &t.Name, &t.Description, &t.PriceCents, &t.TotalStock,
		&t.AvailableStock, &t.Version, &t.CreatedAt, &t.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ticket: %w", err)
	}

	return &t, nil
}

func (m *MySQLAdapter) CreateTicket(ctx context.Context, t *domain.Ticket) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO tickets (id, name, description, price_cents, total_stock, available_stock, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, NOW(), NOW())`,
		t.ID, t.Name, t.Description, t.PriceCents, t.TotalStock, t.AvailableStock,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, description, price_cents, total_stock, available_stock, version, created_at, updated_at
		FROM tickets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.PriceCents, &t.TotalStock,
			&t.AvailableStock, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// SaveStockUnsafe is the unguarded write used by the baseline strategy.
// Concurrent writers overwrite each other here; that is the point.
func (m *MySQLAdapter) SaveStockUnsafe(ctx context.Context, ticketID string, availableStock int) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE tickets
		SET available_stock = ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		availableStock, ticketID,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) CommitPurchaseCAS(ctx context.Context, order domain.Order, expectedVersion int64) error {
	return m.commitPurchase(ctx, order, `
		UPDATE tickets
		SET available_stock = available_stock - ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		domain.ErrConcurrencyConflict,
		order.Quantity, order.TicketID, expectedVersion,
	)
}

func (m *MySQLAdapter) CommitPurchase(ctx context.Context, order domain.Order) error {
	return m.commitPurchase(ctx, order, `
		UPDATE tickets
		SET available_stock = available_stock - ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND available_stock >= ?`,
		domain.ErrInsufficientStock,
		order.Quantity, order.TicketID, order.Quantity,
	)
}

// commitPurchase runs the order insert and the guarded stock decrement in one
// transaction; guardErr is returned when the decrement matches no row.
func (m *MySQLAdapter) commitPurchase(ctx context.Context, order domain.Order, updateQuery string, guardErr error, updateArgs ...interface{}) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return guardErr
	}

	return tx.Commit()
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	return insertOrder(ctx, m.db, order)
}

func (m *MySQLAdapter) GetOrderBySN(ctx context.Context, orderSN string) (*domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT order_sn, buyer_id, ticket_id, quantity, total_cents, status, remarks, created_at, updated_at
		FROM orders WHERE order_sn = ?`, orderSN,
	).Scan(&o.OrderSN, &o.BuyerID, &o.TicketID, &o.Quantity, &o.TotalCents,
		&o.Status, &o.Remarks, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	return &o, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertOrder(ctx context.Context, db execer, order domain.Order) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO orders (order_sn, buyer_id, ticket_id, quantity, total_cents, status, remarks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`,
		order.OrderSN, order.BuyerID, order.TicketID, order.Quantity,
		order.TotalCents, order.Status, order.Remarks,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
			return domain.ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}
