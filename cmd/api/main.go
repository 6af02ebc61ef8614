package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-studio-orderdesk/internal/aws"
	"github.com/imrishuroy/go-studio-orderdesk/internal/config"
	"github.com/imrishuroy/go-studio-orderdesk/internal/handlers"
	"github.com/imrishuroy/go-studio-orderdesk/internal/logging"
	"github.com/imrishuroy/go-studio-orderdesk/internal/metrics"
)

func setupRouter(cfg handlers.HandlerConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID(), handlers.AccessLog(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterOrdersRoutes(r, cfg)

	return r
}

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

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.EndpointOverride)
	if err != nil {
		log.Fatal("init aws clients", zap.Error(err))
	}
	metrics.Register()

	r := setupRouter(handlers.HandlerConfig{
		DynamoDBClient:           clients.DynamoDB,
		SQSClient:                clients.SQS,
		IdempotencyTable:         cfg.IdempotencyTable,
		OrdersTable:              cfg.OrdersTable,
		CustomersTable:           cfg.CustomersTable,
		QueueURL:                 cfg.QueueURL,
		TTLWindow:                cfg.IdempotencyTTL,
		Location:                 cfg.Timezone,
		CustomerFetchConcurrency: cfg.CustomerFetchConcurrency,
		Logger:                   log,
	}, log)

	if cfg.RunLocal {
		log.Info("running local server", zap.String("addr", cfg.HTTPAddr))
		if err := r.Run(cfg.HTTPAddr); err != nil {
			log.Fatal("run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
