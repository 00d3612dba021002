package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-reservation/internal/core/domain"
	"github.com/rl1809/order-reservation/internal/core/service"
	"github.com/rl1809/order-reservation/internal/port"
)

const (
	userIDHeader         = "X-User-ID"
	idempotencyKeyHeader = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
)

type HTTPHandler struct {
	orderService *service.OrderService
	catalog      port.Catalog
	log          *slog.Logger
}

type CreateOrderHTTPRequest struct {
	Items []OrderItemRequest `json:"items"`
}

type CreateProductHTTPRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type ProductHTTPResponse struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock"`
	Version int             `json:"version"`
}

type APIResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

type PageHTTPResponse struct {
	Items []*OrderResponse `json:"items"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
	Total int64            `json:"total"`
}

func NewHTTPHandler(orderService *service.OrderService, catalog port.Catalog, log *slog.Logger) *HTTPHandler {
	return &HTTPHandler{orderService: orderService, catalog: catalog, log: log}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Logging(h.log))

	r.Get("/health", h.HealthCheck)
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{id}", h.GetOrder)
	r.Post("/admin/products", h.CreateProduct)

	return r
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateOrderHTTPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, &domain.ValidationError{Reason: "invalid request body"})
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), r.Header.Get(idempotencyKeyHeader), userID, toLineItems(req.Items))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: toOrderResponse(order)})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: toOrderResponse(order)})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 0)

	result, err := h.orderService.ListOrders(r.Context(), userID, page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]*OrderResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toOrderResponse(&result.Items[i]))
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: PageHTTPResponse{
		Items: items,
		Page:  result.Page,
		Size:  result.Size,
		Total: result.Total,
	}})
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductHTTPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, &domain.ValidationError{Reason: "invalid request body"})
		return
	}
	if req.Stock < 0 || !req.Price.IsPositive() {
		h.writeError(w, &domain.ValidationError{Reason: "price must be positive and stock non-negative"})
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), domain.Product{
		ID:    req.ID,
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: ProductHTTPResponse{
		ID:      p.ID,
		Name:    p.Name,
		Price:   p.Price,
		Stock:   p.Stock,
		Version: p.Version,
	}})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, APIResponse{Success: false, Error: toErrorResponse(err)})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, APIResponse{
			Success: false,
			Error:   &ErrorResponse{Kind: "unauthorized", Message: "missing " + userIDHeader + " header"},
		})
		return "", false
	}
	return userID, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
