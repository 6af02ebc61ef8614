package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-studio-orderdesk/internal/customers"
	"github.com/imrishuroy/go-studio-orderdesk/internal/events"
	"github.com/imrishuroy/go-studio-orderdesk/internal/metrics"
	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/triage"
	"github.com/imrishuroy/go-studio-orderdesk/internal/validation"
)

// OrderView is an order as the admin desk renders it.
type OrderView struct {
	orders.Order
	Priority string  `json:"priority"`
	Score    float64 `json:"score,omitempty"`
}

func (s *server) view(e triage.Entry) OrderView {
	return OrderView{Order: e.Order, Priority: e.Priority.String(), Score: e.Score}
}

// snapshot loads every order with customer names attached.
func (s *server) snapshot(c *gin.Context) ([]orders.Order, bool) {
	ctx := c.Request.Context()
	list, err := s.orders.List(ctx)
	if err != nil {
		s.log.Error("list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return nil, false
	}
	list, err = customers.Attach(ctx, s.customers, list, s.cfg.CustomerFetchConcurrency)
	if err != nil {
		s.log.Error("attach customers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "customer_lookup_failed"})
		return nil, false
	}
	return list, true
}

func (s *server) listOrders(c *gin.Context) {
	var q validation.ListQuery
	if err := validation.BindQueryAndValidate(c, &q, s.validate); err != nil {
		return
	}
	filter, err := triage.ParseFilter(q.Filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter"})
		return
	}

	list, ok := s.snapshot(c)
	if !ok {
		return
	}

	start := time.Now()
	entries := s.pipeline.Run(list, q.Q, filter)
	metrics.ObserveSearch(string(filter), strings.TrimSpace(q.Q) != "", len(entries), time.Since(start))

	views := make([]OrderView, len(entries))
	for i, e := range entries {
		views[i] = s.view(e)
	}
	c.JSON(http.StatusOK, gin.H{
		"filter": filter,
		"query":  q.Q,
		"count":  len(views),
		"orders": views,
	})
}

func (s *server) summary(c *gin.Context) {
	list, ok := s.snapshot(c)
	if !ok {
		return
	}
	counts := s.classifier.Summarize(list)
	buckets := make(map[string]int, len(counts))
	for p, n := range counts {
		buckets[p.String()] = n
		metrics.SetBucket(p.String(), n)
	}
	c.JSON(http.StatusOK, gin.H{"total": len(list), "buckets": buckets})
}

func (s *server) getOrder(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := s.orders.Get(ctx, c.Param("id"))
	if err != nil {
		s.log.Error("get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get_failed"})
		return
	}
	if o == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		return
	}
	withCustomer, err := customers.Attach(ctx, s.customers, []orders.Order{*o}, 1)
	if err != nil {
		s.log.Error("attach customer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "customer_lookup_failed"})
		return
	}
	e := triage.Entry{Order: withCustomer[0], Priority: s.classifier.Priority(withCustomer[0])}
	c.JSON(http.StatusOK, s.view(e))
}

func (s *server) patchStatus(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	log := s.log.With(zap.String("order_id", id), zap.String("correlation_id", CorrelationID(c)))

	var p validation.StatusPatch
	if err := validation.BindAndValidate(c, &p, s.validate); err != nil {
		return
	}
	from, to := orders.ParseStatus(p.From), orders.ParseStatus(p.To)

	err := s.orders.UpdateStatus(ctx, id, from, to)
	if errors.Is(err, orders.ErrStatusMismatch) {
		current, getErr := s.orders.Get(ctx, id)
		if getErr == nil && current == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		body := gin.H{"error": "status_conflict"}
		if current != nil {
			body["current_status"] = current.Status
		}
		c.JSON(http.StatusConflict, body)
		return
	}
	if err != nil {
		log.Error("update status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}

	ev := events.Event{
		Type:          events.OrderStatusChanged,
		OrderID:       id,
		CorrelationID: CorrelationID(c),
		Status:        to,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		// the status change is already durable
		log.Warn("publish status change", zap.Error(err))
	}
	log.Info("order status changed", zap.String("from", string(from)), zap.String("to", string(to)))
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": to})
}
