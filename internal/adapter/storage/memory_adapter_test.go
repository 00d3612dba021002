package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

func TestMemoryAdapter_LedgerContract(t *testing.T) {
	testLedgerContract(t, NewMemoryAdapter())
}

func TestMemoryAdapter_OrderRepositoryContract(t *testing.T) {
	testOrderRepositoryContract(t, NewMemoryAdapter())
}

func TestMemoryAdapter_RejectsNegativeStock(t *testing.T) {
	m := NewMemoryAdapter()
	_, err := m.CreateProduct(context.Background(), domain.Product{ID: "p", Price: decimal.NewFromInt(1), Stock: -1})
	if err == nil {
		t.Error("expected error for negative stock")
	}
}

func TestMemoryAdapter_ReturnsCopies(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	p := seedProduct(t, m, 5)

	got, _ := m.GetProduct(ctx, p.ID)
	got.Stock = 0

	again, _ := m.GetProduct(ctx, p.ID)
	if again.Stock != 5 {
		t.Errorf("mutating a read must not change the stored row, got stock %d", again.Stock)
	}
}

func TestMemoryAdapter_PersistOrderDuplicateID(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	order := domain.NewOrder("user-1", []domain.Reservation{{ProductID: "p", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}})

	if err := m.PersistOrder(ctx, order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.PersistOrder(ctx, order); err == nil {
		t.Error("expected duplicate order id to fail")
	}
}

func TestMemoryAdapter_SetIdempotency(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ok, err := m.SetIdempotency(ctx, "idempotency:req-1")
	if err != nil || !ok {
		t.Fatalf("expected first claim to succeed, got %v, %v", ok, err)
	}

	ok, _ = m.SetIdempotency(ctx, "idempotency:req-1")
	if ok {
		t.Error("expected second claim to fail")
	}

	now = now.Add(idempotencyKeyTTL + time.Second)
	ok, _ = m.SetIdempotency(ctx, "idempotency:req-1")
	if !ok {
		t.Error("expected claim to succeed after the key expired")
	}
}

func TestMemoryAdapter_ListOrdersNegativeOffset(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	order := domain.NewOrder("user-1", []domain.Reservation{{ProductID: "p", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}})
	if err := m.PersistOrder(ctx, order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.ListOrdersByUser(ctx, "user-1", 10, -10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected a negative offset to read from the start, got %d orders", len(got))
	}
}

func TestMemoryAdapter_ReleaseIdempotency(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	if ok, _ := m.SetIdempotency(ctx, "idempotency:req-1"); !ok {
		t.Fatal("expected first claim to succeed")
	}
	if err := m.ReleaseIdempotency(ctx, "idempotency:req-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := m.SetIdempotency(ctx, "idempotency:req-1"); !ok {
		t.Error("expected claim to succeed after release")
	}
}
