package handler

import (
	"context"
	"log/slog"

	"github.com/rl1809/order-reservation/internal/core/service"
)

type GRPCHandler struct {
	orderService *service.OrderService
	log          *slog.Logger
}

func NewGRPCHandler(orderService *service.OrderService, log *slog.Logger) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, log: log}
}

// Domain failures are reported in the reply, not as gRPC status errors.
func (h *GRPCHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderReply, error) {
	order, err := h.orderService.CreateOrder(ctx, req.RequestID, req.UserID, toLineItems(req.Items))
	if err != nil {
		return h.failure(err), nil
	}

	return &OrderReply{
		Success: true,
		Message: "order placed successfully",
		Order:   toOrderResponse(order),
	}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderReply, error) {
	order, err := h.orderService.GetOrder(ctx, req.OrderID, req.UserID)
	if err != nil {
		return h.failure(err), nil
	}

	return &OrderReply{
		Success: true,
		Message: "ok",
		Order:   toOrderResponse(order),
	}, nil
}

func (h *GRPCHandler) failure(err error) *OrderReply {
	if Kind(err) == "internal" {
		h.log.Error("grpc request failed", "err", err)
	}
	resp := toErrorResponse(err)
	return &OrderReply{
		Success: false,
		Message: resp.Message,
		Error:   resp,
	}
}
