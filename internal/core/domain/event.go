package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderCreated               EventType = "order.created"
	EventOrderReservationIncomplete EventType = "order.reservation_incomplete"
)

// Event is emitted by the order service after each CreateOrder that either
// succeeded or left stock decremented without an order.
type Event struct {
	ID         string
	Type       EventType
	OrderID    string
	UserID     string
	Total      decimal.Decimal
	Items      []OrderItem
	Reserved   []Reservation
	Reason     string
	OccurredAt time.Time
	Headers    map[string]string
}

// Key is the partitioning key for the event.
func (e Event) Key() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.UserID
}
