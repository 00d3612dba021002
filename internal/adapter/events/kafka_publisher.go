package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-reservation/internal/core/domain"
)

const EventTypeHeader = "event_type"

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// KafkaPublisher writes order events to a single topic keyed by order id, or
// by user id for events that have no order.
type KafkaPublisher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewKafkaPublisher(log *slog.Logger, producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{log: log, producer: producer, topic: topic}
}

type itemPayload struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type eventPayload struct {
	ID         string           `json:"id"`
	Type       domain.EventType `json:"type"`
	OrderID    string           `json:"order_id,omitempty"`
	UserID     string           `json:"user_id"`
	Total      *decimal.Decimal `json:"total,omitempty"`
	Items      []itemPayload    `json:"items,omitempty"`
	Reserved   []itemPayload    `json:"reserved,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	value, err := json.Marshal(toPayload(event))
	if err != nil {
		return err
	}

	headers := make([]kafka.Header, 0, len(event.Headers)+1)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: EventTypeHeader, Value: []byte(event.Type)})

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.Key()),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("event publish failed", "event_id", event.ID, "type", event.Type, "err", err)
		return err
	}
	p.log.Debug("event published", "event_id", event.ID, "type", event.Type)
	return nil
}

func toPayload(event domain.Event) eventPayload {
	out := eventPayload{
		ID:         event.ID,
		Type:       event.Type,
		OrderID:    event.OrderID,
		UserID:     event.UserID,
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt,
	}
	if event.Type == domain.EventOrderCreated {
		total := event.Total
		out.Total = &total
	}
	for _, item := range event.Items {
		out.Items = append(out.Items, itemPayload{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	for _, r := range event.Reserved {
		out.Reserved = append(out.Reserved, itemPayload{
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		})
	}
	return out
}
