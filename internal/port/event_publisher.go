package port

import (
	"context"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
