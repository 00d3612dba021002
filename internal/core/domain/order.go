package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID        string
	UserID    string
	Items     []OrderItem
	Total     decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewOrder builds a pending order from reserved line items. The total is the
// sum of captured unit prices times quantities.
func NewOrder(userID string, reserved []Reservation) Order {
	now := time.Now().UTC()
	id := uuid.NewString()

	items := make([]OrderItem, 0, len(reserved))
	total := decimal.Zero
	for _, r := range reserved {
		item := OrderItem{
			ID:        uuid.NewString(),
			OrderID:   id,
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}

	return Order{
		ID:        id,
		UserID:    userID,
		Items:     items,
		Total:     total,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type Page[T any] struct {
	Items []T
	Page  int
	Size  int
	Total int64
}
