package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

// MaxReserveRetries bounds the conflict-driven retries of one reservation,
// so a reservation issues at most MaxReserveRetries+1 decrement calls.
const MaxReserveRetries = 3

// reserve takes quantity units of product using the version it was read at.
// On "no update" it re-reads the row: missing and depleted are terminal, anything
// else is a lost version race and is retried with the fresh version.
// The unit price always comes from product, never from a re-read.
func (s *OrderService) reserve(ctx context.Context, product domain.Product, quantity int) (domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", product.ID),
		attribute.Int("quantity", quantity),
	)

	expectedVersion := product.Version
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Reservation{}, err
		}

		updated, err := s.ledger.DecrementStock(ctx, product.ID, quantity, expectedVersion)
		if err != nil {
			return domain.Reservation{}, fmt.Errorf("decrement stock %s: %w", product.ID, err)
		}
		if updated != nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return domain.Reservation{
				ProductID: product.ID,
				Quantity:  quantity,
				UnitPrice: product.Price,
				Version:   updated.Version,
				Stock:     updated.Stock,
			}, nil
		}

		fresh, err := s.ledger.GetProduct(ctx, product.ID)
		if err != nil {
			return domain.Reservation{}, fmt.Errorf("reload product %s: %w", product.ID, err)
		}
		if fresh == nil {
			return domain.Reservation{}, &domain.NotFoundError{Resource: "product", ID: product.ID}
		}
		if fresh.Stock < quantity {
			return domain.Reservation{}, &domain.InsufficientStockError{
				ProductID: product.ID,
				Requested: quantity,
				Available: fresh.Stock,
			}
		}

		if attempt > MaxReserveRetries {
			s.log.Warn("stock contention exhausted reservation retries",
				"product_id", product.ID,
				"attempts", attempt,
				"version", fresh.Version,
			)
			return domain.Reservation{}, &domain.ConflictExhaustedError{ProductID: product.ID, Attempts: attempt}
		}

		s.log.Debug("stock version conflict, retrying",
			"product_id", product.ID,
			"attempt", attempt,
			"expected_version", expectedVersion,
			"current_version", fresh.Version,
		)
		expectedVersion = fresh.Version
	}
}
