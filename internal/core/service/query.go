package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// GetOrder returns one of userID's orders. Orders of other users are reported
// as not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	if orderID == "" || userID == "" {
		return nil, &domain.ValidationError{Reason: "order id and user id are required"}
	}

	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", orderID, err)
	}
	if order == nil || order.UserID != userID {
		return nil, &domain.NotFoundError{Resource: "order", ID: orderID}
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string, page, size int) (domain.Page[domain.Order], error) {
	if userID == "" {
		return domain.Page[domain.Order]{}, &domain.ValidationError{Reason: "user id is required"}
	}
	if page < 0 {
		page = 0
	}
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	if page > math.MaxInt/size {
		return domain.Page[domain.Order]{}, &domain.ValidationError{Reason: fmt.Sprintf("page %d is out of range", page)}
	}

	total, err := s.orders.CountOrdersByUser(ctx, userID)
	if err != nil {
		return domain.Page[domain.Order]{}, fmt.Errorf("count orders: %w", err)
	}

	orders, err := s.orders.ListOrdersByUser(ctx, userID, size, page*size)
	if err != nil {
		return domain.Page[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}

	return domain.Page[domain.Order]{
		Items: orders,
		Page:  page,
		Size:  size,
		Total: total,
	}, nil
}
