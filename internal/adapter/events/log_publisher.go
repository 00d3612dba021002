package events

import (
	"context"
	"log/slog"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

// LogPublisher writes events to the log; used when no Kafka brokers are configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.log.InfoContext(ctx, "order event",
		"event_id", event.ID,
		"type", event.Type,
		"key", event.Key(),
		"reason", event.Reason,
	)
	return nil
}
