package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

// fakeLedger implements port.StockLedger with the conditional-decrement contract
// and lets tests interfere with a row right before each decrement.
type fakeLedger struct {
	mu       sync.Mutex
	products map[string]domain.Product

	decrementCalls map[string]int
	getCalls       map[string]int

	// interfere runs under the lock before the version/stock check.
	interfere    func(products map[string]domain.Product, productID string)
	decrementErr error
	getErr       error
}

func newFakeLedger(products ...domain.Product) *fakeLedger {
	l := &fakeLedger{
		products:       make(map[string]domain.Product),
		decrementCalls: make(map[string]int),
		getCalls:       make(map[string]int),
	}
	for _, p := range products {
		l.products[p.ID] = p
	}
	return l
}

func (l *fakeLedger) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.getCalls[productID]++
	if l.getErr != nil {
		return nil, l.getErr
	}
	p, ok := l.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (l *fakeLedger) DecrementStock(ctx context.Context, productID string, quantity, expectedVersion int) (*domain.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.decrementCalls[productID]++
	if l.decrementErr != nil {
		return nil, l.decrementErr
	}
	if l.interfere != nil {
		l.interfere(l.products, productID)
	}

	p, ok := l.products[productID]
	if !ok || p.Version != expectedVersion || p.Stock < quantity {
		return nil, nil
	}
	p.Stock -= quantity
	p.Version++
	l.products[productID] = p
	return &p, nil
}

func (l *fakeLedger) product(id string) domain.Product {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.products[id]
}

func (l *fakeLedger) totalDecrements() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.decrementCalls {
		n += c
	}
	return n
}

func (l *fakeLedger) totalGets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.getCalls {
		n += c
	}
	return n
}

// Mock OrderRepository
type fakeOrderRepo struct {
	mu         sync.Mutex
	orders     []domain.Order
	persistErr error
}

func (r *fakeOrderRepo) PersistOrder(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persistErr != nil {
		return r.persistErr
	}
	r.orders = append(r.orders, order)
	return nil
}

func (r *fakeOrderRepo) FindOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == orderID {
			return &o, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeOrderRepo) CountOrdersByUser(ctx context.Context, userID string) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func newProduct(id string, stock, version int, price string) domain.Product {
	return domain.Product{
		ID:      id,
		Name:    id,
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
		Version: version,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
