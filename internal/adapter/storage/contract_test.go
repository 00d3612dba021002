package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-reservation/internal/core/domain"
	"github.com/rl1809/order-reservation/internal/port"
)

type ledgerStore interface {
	port.StockLedger
	port.Catalog
}

func seedProduct(t *testing.T, store port.Catalog, stock int) *domain.Product {
	t.Helper()

	p, err := store.CreateProduct(context.Background(), domain.Product{
		ID:    "test-" + uuid.NewString(),
		Name:  "widget",
		Price: decimal.RequireFromString("19.99"),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// testLedgerContract checks the conditional decrement semantics every ledger
// backend has to provide.
func testLedgerContract(t *testing.T, store ledgerStore) {
	ctx := context.Background()

	t.Run("create starts at initial version", func(t *testing.T) {
		p := seedProduct(t, store, 10)
		got, err := store.GetProduct(ctx, p.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.Version != domain.InitialVersion || got.Stock != 10 {
			t.Fatalf("unexpected product: %+v", got)
		}
		if !got.Price.Equal(decimal.RequireFromString("19.99")) {
			t.Errorf("expected price 19.99, got %s", got.Price)
		}
	})

	t.Run("duplicate create is rejected", func(t *testing.T) {
		p := seedProduct(t, store, 1)
		_, err := store.CreateProduct(ctx, domain.Product{ID: p.ID, Price: decimal.NewFromInt(1), Stock: 1})
		if !errors.Is(err, domain.ErrProductExists) {
			t.Errorf("expected ErrProductExists, got: %v", err)
		}
	})

	t.Run("missing product reads as nil", func(t *testing.T) {
		got, err := store.GetProduct(ctx, "missing-"+uuid.NewString())
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %+v, %v", got, err)
		}
	})

	t.Run("decrement with matching version", func(t *testing.T) {
		p := seedProduct(t, store, 10)
		got, err := store.DecrementStock(ctx, p.ID, 3, p.Version)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.Stock != 7 || got.Version != p.Version+1 {
			t.Fatalf("expected stock 7 version %d, got %+v", p.Version+1, got)
		}
	})

	t.Run("stale version does not mutate", func(t *testing.T) {
		p := seedProduct(t, store, 10)
		got, err := store.DecrementStock(ctx, p.ID, 1, p.Version+5)
		if err != nil || got != nil {
			t.Fatalf("expected no update, got %+v, %v", got, err)
		}
		after, _ := store.GetProduct(ctx, p.ID)
		if after.Stock != 10 || after.Version != p.Version {
			t.Errorf("expected row unchanged, got %+v", after)
		}
	})

	t.Run("insufficient stock does not mutate", func(t *testing.T) {
		p := seedProduct(t, store, 2)
		got, err := store.DecrementStock(ctx, p.ID, 3, p.Version)
		if err != nil || got != nil {
			t.Fatalf("expected no update, got %+v, %v", got, err)
		}
		after, _ := store.GetProduct(ctx, p.ID)
		if after.Stock != 2 || after.Version != p.Version {
			t.Errorf("expected row unchanged, got %+v", after)
		}
	})

	t.Run("decrement to exactly zero", func(t *testing.T) {
		p := seedProduct(t, store, 2)
		got, err := store.DecrementStock(ctx, p.ID, 2, p.Version)
		if err != nil || got == nil || got.Stock != 0 {
			t.Fatalf("expected stock 0, got %+v, %v", got, err)
		}
	})

	t.Run("missing product is no update", func(t *testing.T) {
		got, err := store.DecrementStock(ctx, "missing-"+uuid.NewString(), 1, 1)
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %+v, %v", got, err)
		}
	})

	t.Run("one winner per version", func(t *testing.T) {
		p := seedProduct(t, store, 100)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := store.DecrementStock(ctx, p.ID, 1, p.Version)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if got != nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("expected exactly 1 winner, got %d", wins.Load())
		}
		after, _ := store.GetProduct(ctx, p.ID)
		if after.Stock != 99 || after.Version != p.Version+1 {
			t.Errorf("expected stock 99 version %d, got %+v", p.Version+1, after)
		}
	})
}

// testOrderRepositoryContract checks persistence and the user-scoped listing.
func testOrderRepositoryContract(t *testing.T, repo port.OrderRepository) {
	ctx := context.Background()
	userID := "user-" + uuid.NewString()

	var ids []string
	for i := 0; i < 3; i++ {
		order := domain.NewOrder(userID, []domain.Reservation{
			{ProductID: fmt.Sprintf("p%d", i), Quantity: i + 1, UnitPrice: decimal.RequireFromString("2.50")},
			{ProductID: "shared", Quantity: 1, UnitPrice: decimal.RequireFromString("1.00")},
		})
		order.CreatedAt = order.CreatedAt.Add(-time.Duration(i) * time.Minute)
		order.UpdatedAt = order.CreatedAt
		if err := repo.PersistOrder(ctx, order); err != nil {
			t.Fatalf("persist order: %v", err)
		}
		ids = append(ids, order.ID)
	}

	got, err := repo.FindOrder(ctx, ids[0])
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if got == nil || got.UserID != userID || len(got.Items) != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got.Total.Equal(decimal.RequireFromString("3.50")) {
		t.Errorf("expected total 3.50, got %s", got.Total)
	}
	if got.Status != domain.OrderStatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}

	missing, err := repo.FindOrder(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing order; got %+v, %v", missing, err)
	}

	count, err := repo.CountOrdersByUser(ctx, userID)
	if err != nil || count != 3 {
		t.Errorf("expected count 3, got %d, %v", count, err)
	}

	page, err := repo.ListOrdersByUser(ctx, userID, 2, 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[0] || page[1].ID != ids[1] {
		t.Errorf("expected newest two orders first, got %d orders", len(page))
	}

	rest, err := repo.ListOrdersByUser(ctx, userID, 2, 2)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != ids[2] {
		t.Errorf("expected the oldest order on the second page, got %d orders", len(rest))
	}
}

// testOrderWithDuplicateItemIDs builds an order whose second item insert hits a
// primary key violation.
func testOrderWithDuplicateItemIDs() domain.Order {
	order := domain.NewOrder("user-"+uuid.NewString(), []domain.Reservation{
		{ProductID: "a", Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
		{ProductID: "b", Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
	})
	order.Items[1].ID = order.Items[0].ID
	return order
}
