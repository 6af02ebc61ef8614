package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-studio-orderdesk/internal/aws"
	orderevents "github.com/imrishuroy/go-studio-orderdesk/internal/events"
	"github.com/imrishuroy/go-studio-orderdesk/internal/idempotency"
	"github.com/imrishuroy/go-studio-orderdesk/internal/logging"
	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/triage"
)

// Processor consumes order events and keeps the triage gauges current.
type Processor struct {
	orderStore *orders.Store
	idempStore *idempotency.Store
	gauges     *aws.MetricsPublisher
	classifier *triage.Classifier
	log        *zap.Logger
	nowFunc    func() time.Time
}

// ProcessorConfig names the tables and namespace the worker uses.
type ProcessorConfig struct {
	OrdersTable      string
	IdempotencyTable string
	IdempotencyTTL   time.Duration
	MetricsNamespace string
}

// NewProcessor creates a worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, cfg ProcessorConfig, log *zap.Logger) *Processor {
	return &Processor{
		orderStore: orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		idempStore: idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		gauges:     aws.NewMetricsPublisher(clients.CloudWatch, cfg.MetricsNamespace),
		classifier: triage.NewClassifier(nil),
		log:        logging.OrNop(log),
		nowFunc:    time.Now,
	}
}

// Handle processes an SQS batch. Failed messages are reported individually so
// only they are redelivered; after the batch the bucket gauges are refreshed.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Error("process message", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	if err := p.RefreshGauges(ctx); err != nil {
		p.log.Warn("refresh triage gauges", zap.Error(err))
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	msg, err := orderevents.Decode(rec.Body)
	if err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	log := p.log.With(
		zap.String("type", string(msg.Type)),
		zap.String("order_id", msg.OrderID),
		zap.String("correlation_id", msg.CorrelationID),
	)

	order, err := p.orderStore.Get(ctx, msg.OrderID)
	if err != nil {
		return fmt.Errorf("fetch order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", msg.OrderID)
	}

	switch msg.Type {
	case orderevents.OrderPlaced:
		if err := p.orderStore.IncrementAttempts(ctx, msg.OrderID); err != nil {
			return err
		}
		if msg.IdempotencyKey != "" {
			if err := p.settle(ctx, msg); err != nil {
				return err
			}
		}
		log.Info("order accepted", zap.String("priority", p.classifier.Priority(*order).String()))
	case orderevents.OrderStatusChanged:
		if order.Status.Normalize() != msg.Status.Normalize() {
			// a later change already landed
			log.Info("stale status event", zap.String("current", string(order.Status)))
			return nil
		}
		log.Info("order status changed", zap.String("status", string(order.Status)))
	default:
		log.Warn("ignoring unknown event type")
	}
	return nil
}

// settle marks the checkout key DONE when the API did not get to it.
func (p *Processor) settle(ctx context.Context, msg orderevents.Event) error {
	body, _ := json.Marshal(map[string]any{"order_id": msg.OrderID, "status": orders.StatusPending})
	err := p.idempStore.MarkDone(ctx, msg.IdempotencyKey, string(body), http.StatusCreated)
	if errors.Is(err, idempotency.ErrNotInProgress) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update idempotency: %w", err)
	}
	return nil
}

// RefreshGauges publishes the current order count of every triage bucket.
func (p *Processor) RefreshGauges(ctx context.Context) error {
	list, err := p.orderStore.List(ctx)
	if err != nil {
		return err
	}
	counts := p.classifier.Summarize(list)
	byName := make(map[string]int, len(counts))
	for prio, n := range counts {
		byName[prio.String()] = n
	}
	return p.gauges.PublishBuckets(ctx, byName, p.nowFunc())
}
