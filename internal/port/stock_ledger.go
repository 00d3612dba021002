package port

import (
	"context"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

type StockLedger interface {
	// GetProduct reads a product row, returns nil if it does not exist
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// DecrementStock atomically takes quantity units if the stored version equals
	// expectedVersion and stock >= quantity, bumping the version by one.
	// Returns nil without mutating when either condition fails or the row is missing;
	// the caller cannot tell which.
	DecrementStock(ctx context.Context, productID string, quantity, expectedVersion int) (*domain.Product, error)
}

type Catalog interface {
	// CreateProduct inserts a new product row at domain.InitialVersion
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
}
