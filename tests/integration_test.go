package tests

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ndquoc/ticket-rush/internal/adapter/storage"
	"github.com/ndquoc/ticket-rush/internal/core/domain"
	"github.com/ndquoc/ticket-rush/internal/core/service"
)

type testEnv struct {
	redis *redis.Client
	mysql *sql.DB
	cache *storage.RedisAdapter
	db    *storage.MySQLAdapter
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/ticketrush?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	env := &testEnv{
		redis: rdb,
		mysql: db,
		cache: storage.NewRedisAdapter(rdb),
		db:    storage.NewMySQLAdapter(db),
	}
	t.Cleanup(func() {
		rdb.Close()
		db.Close()
	})
	return env
}

// seedTicket creates a fresh ticket row and, when withCache is set, seeds
// the fast-path counter from it.
func (env *testEnv) seedTicket(t *testing.T, stock int, priceCents int64, withCache bool) string {
	t.Helper()
	ctx := context.Background()
	ticketID := "it-" + uuid.NewString()[:8]

	err := env.db.CreateTicket(ctx, &domain.Ticket{
		ID:             ticketID,
		Name:           "integration ticket",
		PriceCents:     priceCents,
		TotalStock:     stock,
		AvailableStock: stock,
	})
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}

	if withCache {
		if err := env.cache.SetStock(ctx, ticketID, int64(stock), time.Hour); err != nil {
			t.Fatalf("seed cache: %v", err)
		}
	}
	return ticketID
}

// channelQueue is an in-process stand-in for the broker so the async path
// can be exercised end to end against real storage.
type channelQueue struct {
	mu       sync.Mutex
	messages []domain.ReservationMessage
}

func (q *channelQueue) Publish(ctx context.Context, msg domain.ReservationMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

func TestCacheStrategy_ConcurrentNoOversell(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	initialStock := 10
	totalRequests := 20
	ticketID := env.seedTicket(t, initialStock, 1000, true)

	svc := service.NewPurchaseService(env.db, env.cache, &channelQueue{})

	var paid atomic.Int32
	var soldOut atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(ctx, service.PurchaseRequest{
				TicketID: ticketID,
				BuyerID:  "buyer",
				Quantity: 1,
				Strategy: service.StrategyCache,
			})
			switch {
			case err == nil:
				paid.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOut.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if paid.Load() != int32(initialStock) {
		t.Errorf("expected %d paid, got %d", initialStock, paid.Load())
	}
	if soldOut.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d sold out, got %d", totalRequests-initialStock, soldOut.Load())
	}

	ticket, err := env.db.GetTicket(ctx, ticketID)
	if err != nil {
		t.Fatalf("read ticket: %v", err)
	}
	if ticket.AvailableStock != 0 {
		t.Errorf("expected ledger stock 0, got %d", ticket.AvailableStock)
	}

	counter, _, _ := env.cache.GetStock(ctx, ticketID)
	if counter != 0 {
		t.Errorf("expected counter 0, got %d", counter)
	}
}

func TestOptimisticStrategy_TwoConcurrentBuyers(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	ticketID := env.seedTicket(t, 5, 1000, false)
	svc := service.NewPurchaseService(env.db, env.cache, &channelQueue{})

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(ctx, service.PurchaseRequest{
				TicketID: ticketID,
				BuyerID:  "buyer",
				Quantity: 5,
				Strategy: service.StrategyOptimistic,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrConcurrencyConflict), errors.Is(err, domain.ErrInsufficientStock):
			rejections++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 || rejections != 1 {
		t.Errorf("expected exactly one winner, got %d successes / %d rejections", successes, rejections)
	}

	ticket, _ := env.db.GetTicket(ctx, ticketID)
	if ticket.AvailableStock != 0 {
		t.Errorf("expected stock 0, got %d", ticket.AvailableStock)
	}
}

func TestAsyncStrategy_EndToEndCommit(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	ticketID := env.seedTicket(t, 3, 2500, true)

	queue := &channelQueue{}
	svc := service.NewPurchaseService(env.db, env.cache, queue)
	worker := service.NewCommitWorker(env.db, env.cache)

	result, err := svc.Purchase(ctx, service.PurchaseRequest{
		TicketID: ticketID,
		BuyerID:  "buyer",
		Quantity: 2,
		Strategy: service.StrategyAsync,
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if !result.Processing {
		t.Fatal("expected processing result")
	}
	if len(queue.messages) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(queue.messages))
	}

	// Drain the queue like the consumer would, then replay the delivery.
	if err := worker.HandleReservation(ctx, queue.messages[0]); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := worker.HandleReservation(ctx, queue.messages[0]); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	order, err := env.db.GetOrderBySN(ctx, result.OrderSN)
	if err != nil {
		t.Fatalf("read order: %v", err)
	}
	if order == nil || order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid order, got %+v", order)
	}
	if order.TotalCents != 5000 {
		t.Errorf("expected total 5000, got %d", order.TotalCents)
	}

	ticket, _ := env.db.GetTicket(ctx, ticketID)
	if ticket.AvailableStock != 1 {
		t.Errorf("expected stock 1 after single commit, got %d", ticket.AvailableStock)
	}
}

func TestAsyncStrategy_CounterAbsent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	ticketID := env.seedTicket(t, 3, 1000, false)

	queue := &channelQueue{}
	svc := service.NewPurchaseService(env.db, env.cache, queue)

	_, err := svc.Purchase(ctx, service.PurchaseRequest{
		TicketID: ticketID,
		BuyerID:  "buyer",
		Quantity: 1,
		Strategy: service.StrategyAsync,
	})
	if !errors.Is(err, domain.ErrStockNotInitialized) {
		t.Fatalf("expected ErrStockNotInitialized, got: %v", err)
	}
	if len(queue.messages) != 0 {
		t.Errorf("no reservation may be enqueued, got %d", len(queue.messages))
	}
}
