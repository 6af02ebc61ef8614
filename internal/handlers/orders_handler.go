package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-studio-orderdesk/internal/aws"
	"github.com/imrishuroy/go-studio-orderdesk/internal/customers"
	"github.com/imrishuroy/go-studio-orderdesk/internal/events"
	"github.com/imrishuroy/go-studio-orderdesk/internal/idempotency"
	"github.com/imrishuroy/go-studio-orderdesk/internal/logging"
	"github.com/imrishuroy/go-studio-orderdesk/internal/metrics"
	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/search"
	"github.com/imrishuroy/go-studio-orderdesk/internal/triage"
	"github.com/imrishuroy/go-studio-orderdesk/internal/validation"
)

// HandlerConfig groups dependencies for the order routes.
type HandlerConfig struct {
	DynamoDBClient   aws.DynamoDBAPI
	SQSClient        aws.SQSAPI
	IdempotencyTable string
	OrdersTable      string
	CustomersTable   string
	QueueURL         string
	TTLWindow        time.Duration

	// Location renders order dates for date search (nil means UTC).
	Location *time.Location
	// CustomerFetchConcurrency bounds customer lookups per list request.
	CustomerFetchConcurrency int

	Logger *zap.Logger
	// Now overrides the clock used for triage (nil means time.Now).
	Now func() time.Time
}

type server struct {
	cfg        HandlerConfig
	log        *zap.Logger
	validate   *validatorv10.Validate
	idemp      *idempotency.Store
	orders     *orders.Store
	customers  *customers.Store
	events     *events.Publisher
	classifier *triage.Classifier
	pipeline   *triage.Pipeline
}

func newServer(cfg HandlerConfig) *server {
	classifier := triage.NewClassifier(cfg.Now)
	return &server{
		cfg:        cfg,
		log:        logging.OrNop(cfg.Logger),
		validate:   validation.New(),
		idemp:      idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable, cfg.TTLWindow),
		orders:     orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable),
		customers:  customers.NewStore(cfg.DynamoDBClient, cfg.CustomersTable),
		events:     events.NewPublisher(aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)),
		classifier: classifier,
		pipeline:   triage.NewPipeline(search.NewScorer(cfg.Location), classifier),
	}
}

// RegisterOrdersRoutes registers the storefront checkout and the admin desk
// routes on r.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	s := newServer(cfg)

	r.POST("/orders", s.checkout)

	admin := r.Group("/admin/orders")
	admin.GET("", s.listOrders)
	admin.GET("/summary", s.summary)
	admin.GET("/:id", s.getOrder)
	admin.PATCH("/:id/status", s.patchStatus)
}

func (s *server) checkout(c *gin.Context) {
	ctx := c.Request.Context()
	log := s.log.With(zap.String("correlation_id", CorrelationID(c)))

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}

	idempKey := c.GetHeader("Idempotency-Key")
	if idempKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
		return
	}
	log = log.With(zap.String("idempotency_key", idempKey))
	requestHash := idempotency.HashRequest(raw)

	orderID := primitive.NewObjectID().Hex()
	order := orderFromRequest(orderID, req)
	rec := s.idemp.NewRecord(idempKey, orderID, requestHash)

	err = s.orders.CreateWithIdempotencyTransaction(ctx, s.cfg.DynamoDBClient, s.idemp.Table(), rec, order, s.cfg.TTLWindow)
	if errors.Is(err, orders.ErrIdempotencyConflict) {
		s.replay(c, log, idempKey, requestHash)
		return
	}
	if err != nil {
		log.Error("create order", zap.Error(err))
		metrics.IncCheckout("failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}

	ev := events.Event{
		Type:           events.OrderPlaced,
		OrderID:        orderID,
		IdempotencyKey: idempKey,
		CorrelationID:  CorrelationID(c),
		Status:         orders.StatusPending,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Error("enqueue order", zap.String("order_id", orderID), zap.Error(err))
		if mfErr := s.idemp.MarkFailed(ctx, idempKey, fmt.Sprintf("sqs_send_failed: %v", err)); mfErr != nil {
			log.Warn("mark idempotency failed", zap.Error(mfErr))
		}
		metrics.IncCheckout("failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed"})
		return
	}

	body, _ := json.Marshal(gin.H{"order_id": orderID, "status": orders.StatusPending})
	if err := s.idemp.MarkDone(ctx, idempKey, string(body), http.StatusCreated); err != nil {
		// the worker settles the record if this write is lost
		log.Warn("mark idempotency done", zap.Error(err))
	}

	log.Info("order placed", zap.String("order_id", orderID))
	metrics.IncCheckout("created")
	c.Header("Location", "/admin/orders/"+orderID)
	c.Data(http.StatusCreated, "application/json", body)
}

// replay answers a checkout whose Idempotency-Key was seen before.
func (s *server) replay(c *gin.Context, log *zap.Logger, key, requestHash string) {
	rec, err := s.idemp.Get(c.Request.Context(), key)
	if err != nil {
		log.Error("idempotency lookup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}
	if rec == nil {
		// order_id collision with no key recorded
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transaction_failed_no_idempotency_record"})
		return
	}
	if !rec.Matches(requestHash) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return
	}

	switch rec.Status {
	case idempotency.StatusDone:
		metrics.IncCheckout("replayed")
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		metrics.IncCheckout("in_progress")
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
	case idempotency.StatusFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "order_id": rec.OrderID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func orderFromRequest(orderID string, req validation.CheckoutRequest) orders.Order {
	o := orders.Order{
		OrderID:        orderID,
		CustomerID:     req.CustomerID,
		Status:         orders.StatusPending,
		ShippingMethod: orders.ShippingMethod(strings.ToLower(strings.TrimSpace(req.ShippingMethod))),
		TotalAmount:    req.Amount,
	}
	if req.Customer != nil {
		o.Customer = &orders.CustomerSnapshot{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Email:     req.Customer.Email,
		}
	}
	o.Items = make([]orders.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		o.Items = append(o.Items, orders.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return o
}
