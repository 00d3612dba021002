package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-reservation/internal/adapter/storage"
	"github.com/rl1809/order-reservation/internal/core/domain"
	"github.com/rl1809/order-reservation/internal/core/service"
	"github.com/rl1809/order-reservation/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

type ledgerStore interface {
	port.StockLedger
	port.Catalog
}

func main() {
	redisAddr := flag.String("redis", "", "redis address for the stock ledger; in-memory when empty")
	flag.Parse()

	if err := run(context.Background(), *redisAddr); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, redisAddr string) error {

	orders := storage.NewMemoryAdapter()
	var ledger ledgerStore = orders
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer rdb.Close()
		ledger = storage.NewRedisAdapter(rdb)
	}

	product, err := ledger.CreateProduct(ctx, domain.Product{
		ID:    "stress-item-" + uuid.NewString(),
		Name:  "flash sale item",
		Price: decimal.RequireFromString("9.99"),
		Stock: initialStock,
	})
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	orderService := service.NewOrderService(ledger, orders, queueSize)
	defer orderService.Close()

	// Drain the event queue in background
	go func() {
		for range orderService.GetEventQueue() {
		}
	}()

	var successCount, insufficientCount, exhaustedCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			_, err := orderService.CreateOrder(ctx, "", fmt.Sprintf("user-%d", userID), []domain.LineItem{
				{ProductID: product.ID, Quantity: 1},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			case errors.Is(err, domain.ErrConflictExhausted):
				exhaustedCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	final, err := ledger.GetProduct(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("failed to read final stock: %w", err)
	}
	if final == nil {
		return errors.New("product disappeared during the run")
	}

	success := int(successCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:      %d\n", initialStock)
	fmt.Printf("Total Requests:     %d\n", totalRequests)
	fmt.Printf("Successful:         %d\n", success)
	fmt.Printf("Insufficient Stock: %d\n", insufficientCount.Load())
	fmt.Printf("Conflict Exhausted: %d\n", exhaustedCount.Load())
	fmt.Printf("Other Errors:       %d\n", otherCount.Load())
	fmt.Printf("Final Stock:        %d (version %d)\n", final.Stock, final.Version)
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	if success <= initialStock && final.Stock == initialStock-success && final.Stock >= 0 {
		fmt.Println("PASS: no oversell")
	} else {
		fmt.Printf("FAIL: %d successes against stock %d, final stock %d\n", success, initialStock, final.Stock)
	}

	if final.Version == domain.InitialVersion+success {
		fmt.Println("PASS: one version bump per successful order")
	} else {
		fmt.Printf("FAIL: expected version %d, got %d\n", domain.InitialVersion+success, final.Version)
	}

	return nil
}
