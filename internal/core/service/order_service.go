package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/order-reservation/internal/core/domain"
	"github.com/rl1809/order-reservation/internal/port"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	maxConcurrentReads   = 8
)

type OrderService struct {
	ledger port.StockLedger
	orders port.OrderRepository
	idem   port.IdempotencyStore
	log    *slog.Logger
	tracer trace.Tracer

	mu     sync.RWMutex
	closed bool
	events chan domain.Event
}

type Option func(*OrderService)

func WithLogger(log *slog.Logger) Option {
	return func(s *OrderService) { s.log = log }
}

// WithIdempotency enables request-id deduplication on CreateOrder.
func WithIdempotency(store port.IdempotencyStore) Option {
	return func(s *OrderService) { s.idem = store }
}

// NewOrderService wires the coordinator. A queueSize <= 0 disables order events.
func NewOrderService(ledger port.StockLedger, orders port.OrderRepository, queueSize int, opts ...Option) *OrderService {
	s := &OrderService{
		ledger: ledger,
		orders: orders,
		log:    slog.Default(),
		tracer: otel.Tracer("github.com/rl1809/order-reservation/internal/core/service"),
	}
	if queueSize > 0 {
		s.events = make(chan domain.Event, queueSize)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder reserves stock for every item, in the order given, and records the
// order once all reservations succeed. A failure after some items were already
// reserved is returned as *domain.PartialReservationError; those decrements stay.
// An empty requestID skips idempotency checks.
func (s *OrderService) CreateOrder(ctx context.Context, requestID, userID string, items []domain.LineItem) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("order.items", len(items)),
	)

	order, err := s.createOrder(ctx, requestID, userID, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, requestID, userID string, items []domain.LineItem) (*domain.Order, error) {
	if err := validateOrder(userID, items); err != nil {
		return nil, err
	}

	if requestID != "" && s.idem != nil {
		key := idempotencyKeyPrefix + requestID
		ok, err := s.idem.SetIdempotency(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}

		order, err := s.placeOrder(ctx, userID, items)
		if err != nil && tookNothing(err) {
			s.releaseKey(ctx, key)
		}
		return order, err
	}

	return s.placeOrder(ctx, userID, items)
}

func (s *OrderService) placeOrder(ctx context.Context, userID string, items []domain.LineItem) (*domain.Order, error) {
	products, err := s.loadProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	reserved := make([]domain.Reservation, 0, len(items))
	for i, item := range items {
		r, err := s.reserve(ctx, products[i], item.Quantity)
		if err != nil {
			return nil, s.abandon(ctx, userID, reserved, err)
		}
		reserved = append(reserved, r)
	}

	order := domain.NewOrder(userID, reserved)
	if err := s.orders.PersistOrder(ctx, order); err != nil {
		return nil, s.abandon(ctx, userID, reserved, fmt.Errorf("persist order: %w", err))
	}

	s.log.Info("order created",
		"order_id", order.ID,
		"user_id", userID,
		"items", len(order.Items),
		"total", order.Total.String(),
	)
	s.emit(ctx, domain.Event{
		Type:    domain.EventOrderCreated,
		OrderID: order.ID,
		UserID:  userID,
		Total:   order.Total,
		Items:   order.Items,
	})

	return &order, nil
}

func validateOrder(userID string, items []domain.LineItem) error {
	if userID == "" {
		return &domain.ValidationError{Reason: "user id is required"}
	}
	if len(items) == 0 {
		return &domain.ValidationError{Reason: "order must have at least one item"}
	}
	for i, item := range items {
		if item.ProductID == "" {
			return &domain.ValidationError{Reason: fmt.Sprintf("item %d: product id is required", i)}
		}
		if item.Quantity <= 0 {
			return &domain.ValidationError{Reason: fmt.Sprintf("item %d: quantity must be greater than 0", i)}
		}
	}
	return nil
}

// loadProducts reads every product once, concurrently, and runs the nominal
// stock pre-check. Failures are reported for the first offending item in
// request order, before anything is decremented.
func (s *OrderService) loadProducts(ctx context.Context, items []domain.LineItem) ([]domain.Product, error) {
	found := make([]*domain.Product, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			p, err := s.ledger.GetProduct(gctx, item.ProductID)
			if err != nil {
				return fmt.Errorf("read product %s: %w", item.ProductID, err)
			}
			found[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	products := make([]domain.Product, len(items))
	for i, item := range items {
		p := found[i]
		if p == nil {
			return nil, &domain.NotFoundError{Resource: "product", ID: item.ProductID}
		}
		if p.Stock < item.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.Stock,
			}
		}
		products[i] = *p
	}
	return products, nil
}

// abandon reports a failure that stopped the reservation sequence. Stock already
// taken is not given back; it is surfaced as a partial reservation instead.
func (s *OrderService) abandon(ctx context.Context, userID string, reserved []domain.Reservation, cause error) error {
	if len(reserved) == 0 {
		return cause
	}

	s.log.Error("order abandoned with stock already reserved",
		"user_id", userID,
		"reserved", reservedItems(reserved),
		"err", cause,
	)
	s.emit(ctx, domain.Event{
		Type:     domain.EventOrderReservationIncomplete,
		UserID:   userID,
		Reserved: reserved,
		Reason:   cause.Error(),
	})

	return &domain.PartialReservationError{Cause: cause, Reserved: reserved}
}

type reservedItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func reservedItems(reserved []domain.Reservation) []reservedItem {
	out := make([]reservedItem, 0, len(reserved))
	for _, r := range reserved {
		out = append(out, reservedItem{ProductID: r.ProductID, Quantity: r.Quantity})
	}
	return out
}

// tookNothing reports whether err is a business failure that left every row
// untouched. Store faults are excluded: a decrement may have landed before the
// connection failed.
func tookNothing(err error) bool {
	if IsPartial(err) {
		return false
	}
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrConflictExhausted)
}

// releaseKey lets a request id be retried after a failure that reserved nothing.
func (s *OrderService) releaseKey(ctx context.Context, key string) {
	if err := s.idem.ReleaseIdempotency(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("failed to release idempotency key", "key", key, "err", err)
	}
}

// emit queues an event without blocking the caller; a full queue drops it.
func (s *OrderService) emit(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}

	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	event.Headers = map[string]string{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(event.Headers))

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.events <- event:
	default:
		s.log.Warn("event queue full, dropping event", "type", event.Type, "key", event.Key())
	}
}

func (s *OrderService) GetEventQueue() <-chan domain.Event {
	return s.events
}

func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.events == nil {
		s.closed = true
		return
	}
	s.closed = true
	close(s.events)
}

// IsPartial reports whether err left stock decremented without an order.
func IsPartial(err error) bool {
	var partial *domain.PartialReservationError
	return errors.As(err, &partial)
}
