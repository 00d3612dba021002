package port

import (
	"context"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

type OrderRepository interface {
	// PersistOrder writes the order header and all its items in one transaction
	PersistOrder(ctx context.Context, order domain.Order) error

	// FindOrder returns the order with its items, nil if it does not exist
	FindOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrdersByUser returns order headers newest first, without items
	ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error)

	CountOrdersByUser(ctx context.Context, userID string) (int64, error)
}
