package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-studio-orderdesk/internal/customers"
	"github.com/imrishuroy/go-studio-orderdesk/internal/events"
	"github.com/imrishuroy/go-studio-orderdesk/internal/idempotency"
	"github.com/imrishuroy/go-studio-orderdesk/internal/orders"
	"github.com/imrishuroy/go-studio-orderdesk/internal/testutil"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const checkoutBody = `{
	"customer_id": "c-1",
	"customer": {"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com"},
	"shipping_method": "Pickup",
	"items": [{"product_id": "ring-1", "quantity": 2, "unit_price": 12.5}],
	"amount": 25
}`

type fixture struct {
	router *gin.Engine
	dynamo *testutil.Dynamo
	sqs    *testutil.SQS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{dynamo: testutil.NewDynamo(), sqs: &testutil.SQS{}}
	r := gin.New()
	r.Use(RequestID())
	RegisterOrdersRoutes(r, HandlerConfig{
		DynamoDBClient:           f.dynamo,
		SQSClient:                f.sqs,
		IdempotencyTable:         "idempotency",
		OrdersTable:              "orders",
		CustomersTable:           "customers",
		QueueURL:                 "https://sqs.local/orders",
		TTLWindow:                48 * time.Hour,
		CustomerFetchConcurrency: 2,
		Now:                      func() time.Time { return now },
	})
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seedOrder(t *testing.T, o orders.Order) {
	t.Helper()
	item, err := attributevalue.MarshalMap(o)
	require.NoError(t, err)
	f.dynamo.Seed("orders", item)
}

func (f *fixture) seedCustomer(t *testing.T, c customers.Customer) {
	t.Helper()
	item, err := attributevalue.MarshalMap(c)
	require.NoError(t, err)
	f.dynamo.Seed("customers", item)
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func TestCheckout_CreatesOrderAndEnqueues(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/orders", checkoutBody, map[string]string{"Idempotency-Key": "k1", "X-Request-Id": "req-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Regexp(t, `^[a-f0-9]{24}$`, resp.OrderID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "/admin/orders/"+resp.OrderID, w.Header().Get("Location"))
	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))

	item := f.dynamo.Item("orders", resp.OrderID)
	require.NotNil(t, item)
	var stored orders.Order
	require.NoError(t, attributevalue.UnmarshalMap(item, &stored))
	assert.Equal(t, orders.ShippingPickup, stored.ShippingMethod)
	assert.Equal(t, "Ada", stored.Customer.FirstName)
	assert.Equal(t, 25.0, stored.TotalAmount)
	require.Len(t, stored.Items, 1)

	assert.Equal(t, idempotency.StatusDone, stringAttr(f.dynamo.Item("idempotency", "k1"), "status"))

	bodies := f.sqs.Bodies()
	require.Len(t, bodies, 1)
	ev, err := events.Decode(bodies[0])
	require.NoError(t, err)
	assert.Equal(t, events.OrderPlaced, ev.Type)
	assert.Equal(t, resp.OrderID, ev.OrderID)
	assert.Equal(t, "req-1", ev.CorrelationID)
}

func TestCheckout_Replay(t *testing.T) {
	f := newFixture(t)
	headers := map[string]string{"Idempotency-Key": "k1"}

	first := f.do(t, http.MethodPost, "/orders", checkoutBody, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/orders", checkoutBody, headers)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Len(t, f.sqs.Sent, 1, "a replay is not enqueued again")

	changed := strings.Replace(checkoutBody, `"amount": 25`, `"amount": 25.0`, 1)
	third := f.do(t, http.MethodPost, "/orders", changed, headers)
	assert.Equal(t, http.StatusUnprocessableEntity, third.Code)
}

func TestCheckout_InProgress(t *testing.T) {
	f := newFixture(t)
	rec := idempotency.Record{
		IdempotencyKey: "k1",
		Status:         idempotency.StatusInProgress,
		OrderID:        "65f000000000000000000009",
		RequestHash:    idempotency.HashRequest([]byte(checkoutBody)),
	}
	item, err := attributevalue.MarshalMap(rec)
	require.NoError(t, err)
	f.dynamo.Seed("idempotency", item)

	w := f.do(t, http.MethodPost, "/orders", checkoutBody, map[string]string{"Idempotency-Key": "k1"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), rec.OrderID)
}

func TestCheckout_BadRequests(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/orders", checkoutBody, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_idempotency_key")

	mismatch := strings.Replace(checkoutBody, `"amount": 25`, `"amount": 24`, 1)
	w = f.do(t, http.MethodPost, "/orders", mismatch, map[string]string{"Idempotency-Key": "k2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
	assert.Empty(t, f.dynamo.Tables["orders"])
}

func TestCheckout_EnqueueFailure(t *testing.T) {
	f := newFixture(t)
	f.sqs.Err = errors.New("queue unavailable")
	headers := map[string]string{"Idempotency-Key": "k1"}

	w := f.do(t, http.MethodPost, "/orders", checkoutBody, headers)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "enqueue_failed")
	assert.Equal(t, idempotency.StatusFailed, stringAttr(f.dynamo.Item("idempotency", "k1"), "status"))

	w = f.do(t, http.MethodPost, "/orders", checkoutBody, headers)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "previous_attempt_failed")
}

func seedDesk(t *testing.T, f *fixture) {
	t.Helper()
	f.seedOrder(t, orders.Order{
		OrderID: "65f000000000000000000001", Status: orders.StatusPending, ShippingMethod: orders.ShippingDelivery,
		OrderDate: now.Add(-72 * time.Hour), Customer: &orders.CustomerSnapshot{FirstName: "Maria", LastName: "Lopez"},
	})
	f.seedOrder(t, orders.Order{
		OrderID: "65f000000000000000000002", Status: orders.StatusPending, ShippingMethod: orders.ShippingPickup,
		OrderDate: now.Add(-time.Hour), CustomerID: "c-2",
	})
	f.seedOrder(t, orders.Order{
		OrderID: "65f000000000000000000003", Status: orders.StatusShipped, ShippingMethod: orders.ShippingDelivery,
		OrderDate: now.Add(-120 * time.Hour), Customer: &orders.CustomerSnapshot{FirstName: "Grace", LastName: "Hopper"},
	})
	f.seedCustomer(t, customers.Customer{CustomerID: "c-2", FirstName: "Mario", LastName: "Rossi"})
}

type listResponse struct {
	Count  int    `json:"count"`
	Filter string `json:"filter"`
	Orders []struct {
		OrderID  string  `json:"order_id"`
		Priority string  `json:"priority"`
		Score    float64 `json:"score"`
		Customer *struct {
			FirstName string `json:"first_name"`
		} `json:"customer"`
	} `json:"orders"`
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	seedDesk(t, f)

	w := f.do(t, http.MethodGet, "/admin/orders?q=mari&filter=pending", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "PENDING", resp.Filter)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "65f000000000000000000002", resp.Orders[0].OrderID)
	assert.Equal(t, "PICKUP", resp.Orders[0].Priority)
	require.NotNil(t, resp.Orders[0].Customer)
	assert.Equal(t, "Mario", resp.Orders[0].Customer.FirstName)
	assert.Equal(t, "65f000000000000000000001", resp.Orders[1].OrderID)
	assert.Equal(t, "URGENT_DELIVERY", resp.Orders[1].Priority)
	assert.Equal(t, 7.0, resp.Orders[1].Score)

	w = f.do(t, http.MethodGet, "/admin/orders", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = listResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "ALL", resp.Filter)
}

func TestListOrders_Errors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/admin/orders?filter=archived", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.dynamo.Err = errors.New("scan throttled")
	w = f.do(t, http.MethodGet, "/admin/orders", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	seedDesk(t, f)

	w := f.do(t, http.MethodGet, "/admin/orders/summary", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Total   int            `json:"total"`
		Buckets map[string]int `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, map[string]int{
		"PICKUP": 1, "URGENT_DELIVERY": 1, "DELIVERY": 0,
		"SHIPPED": 1, "FULFILLED": 0, "DELIVERED": 0,
	}, resp.Buckets)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	seedDesk(t, f)

	w := f.do(t, http.MethodGet, "/admin/orders/65f000000000000000000002", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"first_name":"Mario"`)
	assert.Contains(t, w.Body.String(), `"priority":"PICKUP"`)

	w = f.do(t, http.MethodGet, "/admin/orders/65f0000000000000000000ff", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatchStatus(t *testing.T) {
	f := newFixture(t)
	seedDesk(t, f)
	path := "/admin/orders/65f000000000000000000001/status"

	w := f.do(t, http.MethodPatch, path, `{"from":"pending","to":"shipped"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "shipped", stringAttr(f.dynamo.Item("orders", "65f000000000000000000001"), "order_status"))

	bodies := f.sqs.Bodies()
	require.Len(t, bodies, 1)
	ev, err := events.Decode(bodies[0])
	require.NoError(t, err)
	assert.Equal(t, events.OrderStatusChanged, ev.Type)
	assert.Equal(t, orders.StatusShipped, ev.Status)

	// stale "from"
	w = f.do(t, http.MethodPatch, path, `{"from":"pending","to":"canceled"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"current_status":"shipped"`)

	w = f.do(t, http.MethodPatch, path, `{"from":"shipped","to":"pending"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/admin/orders/65f0000000000000000000ff/status", `{"from":"pending","to":"shipped"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestID_Minted(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/admin/orders/summary", "", nil)
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)
}
