package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-reservation/internal/core/domain"
	"github.com/rl1809/order-reservation/internal/core/service"
)

type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Status    domain.OrderStatus  `json:"status"`
	Total     decimal.Decimal     `json:"total"`
	Items     []OrderItemResponse `json:"items,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

type ErrorResponse struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
	Partial   bool   `json:"partial,omitempty"` // stock taken for earlier items was not returned
}

func toLineItems(items []OrderItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

func toOrderResponse(o *domain.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}
	return resp
}

func toErrorResponse(err error) *ErrorResponse {
	return &ErrorResponse{
		Kind:      Kind(err),
		Message:   Message(err),
		ProductID: domain.FailedProductID(err),
		Partial:   service.IsPartial(err),
	}
}
