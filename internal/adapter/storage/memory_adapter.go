package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

// MemoryAdapter keeps products, orders and idempotency keys in process memory.
// Each method holds one mutex for its whole duration, which gives DecrementStock
// the same single-row atomicity as the SQL and Redis adapters.
type MemoryAdapter struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]domain.Order
	keys     map[string]time.Time
	keyTTL   time.Duration
	now      func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		keys:     make(map[string]time.Time),
		keyTTL:   idempotencyKeyTTL,
		now:      time.Now,
	}
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.Stock < 0 {
		return nil, fmt.Errorf("create product: negative stock %d", p.Stock)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; ok {
		return nil, fmt.Errorf("create product %s: %w", p.ID, domain.ErrProductExists)
	}
	now := m.now().UTC()
	p.Version = domain.InitialVersion
	p.CreatedAt = now
	p.UpdatedAt = now
	m.products[p.ID] = p

	return &p, nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) DecrementStock(ctx context.Context, productID string, quantity, expectedVersion int) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok || p.Version != expectedVersion || p.Stock < quantity {
		return nil, nil
	}

	p.Stock -= quantity
	p.Version++
	p.UpdatedAt = m.now().UTC()
	m.products[productID] = p

	return &p, nil
}

func (m *MemoryAdapter) PersistOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; ok {
		return fmt.Errorf("insert order: duplicate id %s", order.ID)
	}
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = order
	return nil
}

func (m *MemoryAdapter) FindOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

func (m *MemoryAdapter) ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owned []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			o.Items = nil
			owned = append(owned, o)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	offset = max(offset, 0)
	if offset >= len(owned) {
		return []domain.Order{}, nil
	}
	end := min(offset+limit, len(owned))
	return owned[offset:end], nil
}

func (m *MemoryAdapter) CountOrdersByUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, o := range m.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.keys[key] = now.Add(m.keyTTL)
	return true, nil
}

func (m *MemoryAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	return nil
}
