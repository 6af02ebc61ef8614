package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-studio-orderdesk/internal/aws"
	"github.com/imrishuroy/go-studio-orderdesk/internal/config"
	"github.com/imrishuroy/go-studio-orderdesk/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.EndpointOverride)
	if err != nil {
		log.Fatal("init aws clients", zap.Error(err))
	}

	p := NewProcessor(clients, ProcessorConfig{
		OrdersTable:      cfg.OrdersTable,
		IdempotencyTable: cfg.IdempotencyTable,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		MetricsNamespace: cfg.MetricsNamespace,
	}, log)

	// RUN_LOCAL replays one message (LOCAL_SQS_BODY) instead of serving Lambda.
	if cfg.RunLocal {
		body := config.New().GetString("local_sqs_body")
		if body == "" {
			body = `{"type":"order.placed","order_id":"local-order-1","idempotency_key":"local-key-1"}`
		}
		resp, err := p.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}})
		if err != nil {
			log.Fatal("local handler", zap.Error(err))
		}
		if len(resp.BatchItemFailures) > 0 {
			log.Fatal("local message failed")
		}
		return
	}

	lambda.Start(p.Handle)
}
