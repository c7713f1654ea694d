// Admission stress driver: fires concurrent async purchases at a real
// Redis counter and checks that admissions exactly match the stock.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ndquoc/ticket-rush/internal/adapter/storage"
	"github.com/ndquoc/ticket-rush/internal/core/domain"
	"github.com/ndquoc/ticket-rush/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	ticketID      = "stress-ticket"
	initialStock  = 20
	totalRequests = 50
)

// countingQueue swallows reservations; only admission is under test here.
type countingQueue struct {
	published atomic.Int32
}

func (q *countingQueue) Publish(ctx context.Context, msg domain.ReservationMessage) error {
	q.published.Add(1)
	return nil
}

func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	rdb.Del(ctx, "stock:"+ticketID)

	cache := storage.NewRedisAdapter(rdb)
	if err := cache.SetStock(ctx, ticketID, initialStock, time.Hour); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	queue := &countingQueue{}
	svc := service.NewPurchaseService(nil, cache, queue)

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(buyerID int) {
			defer wg.Done()

			_, err := svc.Purchase(ctx, service.PurchaseRequest{
				TicketID: ticketID,
				BuyerID:  fmt.Sprintf("buyer-%d", buyerID),
				Quantity: 1,
				Strategy: service.StrategyAsync,
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()
	remaining, _, _ := cache.GetStock(ctx, ticketID)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Admitted:         %d\n", success)
	fmt.Printf("Rejected:         %d\n", fail)
	fmt.Printf("Enqueued:         %d\n", queue.published.Load())
	fmt.Printf("Counter Left:     %d\n", remaining)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && remaining == 0 && queue.published.Load() == initialStock {
		fmt.Printf("PASS: exactly %d admissions, counter drained\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d admissions and empty counter, got %d admissions, %d left\n",
			initialStock, success, remaining)
	}
}
