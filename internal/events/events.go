// Package events defines the order events exchanged between the API and the
// worker over SQS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imrishuroy/go-studio-orderdesk/internal/aws"
	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
)

// Type names an order event.
type Type string

const (
	// OrderPlaced is sent after a storefront checkout is persisted.
	OrderPlaced Type = "order.placed"
	// OrderStatusChanged is sent after the admin desk moves an order.
	OrderStatusChanged Type = "order.status_changed"
)

// Event is the SQS message body.
type Event struct {
	Type           Type          `json:"type"`
	OrderID        string        `json:"order_id"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	CorrelationID  string        `json:"correlation_id,omitempty"`
	Status         orders.Status `json:"status,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// Decode parses an SQS message body.
func Decode(body string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.OrderID == "" {
		return Event{}, fmt.Errorf("decode event: missing order_id")
	}
	if ev.Type == "" {
		// messages from the first API release carried no type
		ev.Type = OrderPlaced
	}
	return ev, nil
}

// Publisher sends order events to the orders queue.
type Publisher struct {
	queue *aws.Publisher
}

// NewPublisher wraps an SQS publisher.
func NewPublisher(queue *aws.Publisher) *Publisher {
	return &Publisher{queue: queue}
}

// Publish sends ev with its ids copied into message attributes.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	attrs := map[string]string{
		"event_type":      string(ev.Type),
		"order_id":        ev.OrderID,
		"idempotency_key": ev.IdempotencyKey,
		"correlation_id":  ev.CorrelationID,
	}
	if _, err := p.queue.Send(ctx, body, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
