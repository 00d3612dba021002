package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Version   int // optimistic locking, starts at 1
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InitialVersion is the version a product row is created with.
const InitialVersion = 1

// LineItem is one (product, quantity) pair of an order request.
type LineItem struct {
	ProductID string
	Quantity  int
}

// Reservation is the result of a successful conditional decrement for one line item.
// UnitPrice is the price read when the item entered the order.
type Reservation struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Version   int
	Stock     int
}
