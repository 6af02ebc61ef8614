package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-studio-orderdesk/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)

func newTestStore(mock *testutil.Dynamo) *Store {
	s := NewStore(mock, "orders")
	s.nowFunc = func() time.Time { return fixedNow }
	return s
}

func seedOrder(t *testing.T, mock *testutil.Dynamo, o Order) {
	t.Helper()
	item, err := attributevalue.MarshalMap(o)
	require.NoError(t, err)
	mock.Seed("orders", item)
}

func TestCreateWithIdempotencyTransaction_Success(t *testing.T) {
	mock := testutil.NewDynamo()
	store := newTestStore(mock)

	idemp := map[string]any{
		"idempotency_key": "key-1",
		"status":          "IN_PROGRESS",
		"order_id":        "65f0c0ffee0000000000abcd",
	}
	order := Order{
		OrderID:        "65f0c0ffee0000000000abcd",
		CustomerID:     "cust-1",
		Customer:       &CustomerSnapshot{FirstName: "Ada", LastName: "Lovelace"},
		ShippingMethod: ShippingPickup,
		TotalAmount:    120,
		Items:          []LineItem{{ProductID: "ring-class", Quantity: 1, UnitPrice: 120}},
	}

	err := store.CreateWithIdempotencyTransaction(context.Background(), mock, "idempotency", idemp, order, 48*time.Hour)
	require.NoError(t, err)

	idempItem := mock.Item("idempotency", "key-1")
	require.NotNil(t, idempItem)
	exp, ok := idempItem["expires_at"].(*types.AttributeValueMemberN)
	require.True(t, ok, "expires_at should be added when the caller omits it")
	assert.NotEmpty(t, exp.Value)

	var got Order
	require.NoError(t, attributevalue.UnmarshalMap(mock.Item("orders", order.OrderID), &got))
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, got.OrderDate.Equal(fixedNow))
	assert.Equal(t, "Ada", got.Customer.FirstName)
}

func TestCreateWithIdempotencyTransaction_ExistingKeyFails(t *testing.T) {
	mock := testutil.NewDynamo()
	mock.Seed("idempotency", map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: "key-2"},
		"status":          &types.AttributeValueMemberS{Value: "DONE"},
	})
	store := newTestStore(mock)

	err := store.CreateWithIdempotencyTransaction(context.Background(), mock, "idempotency",
		map[string]any{"idempotency_key": "key-2"}, Order{OrderID: "o-2"}, time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdempotencyConflict))
	assert.Nil(t, mock.Item("orders", "o-2"), "order must not be written when the transaction is canceled")
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(testutil.NewDynamo())
	o, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestList_Paginates(t *testing.T) {
	mock := testutil.NewDynamo()
	mock.PageSize = 2
	for _, id := range []string{"a1", "b2", "c3", "d4", "e5"} {
		seedOrder(t, mock, Order{OrderID: id, Status: StatusPending, OrderDate: fixedNow})
	}
	store := newTestStore(mock)

	got, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "a1", got[0].OrderID)
	assert.Equal(t, "e5", got[4].OrderID)
	assert.Equal(t, 3, mock.Calls["Scan"])
}

func TestList_Error(t *testing.T) {
	mock := testutil.NewDynamo()
	mock.Err = errors.New("throttled")
	_, err := newTestStore(mock).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan orders")
}

func TestUpdateStatus_Condition_SuccessAndFail(t *testing.T) {
	mock := testutil.NewDynamo()
	seedOrder(t, mock, Order{OrderID: "order-10", Status: StatusPending, OrderDate: fixedNow})
	store := newTestStore(mock)
	ctx := context.Background()

	require.NoError(t, store.UpdateStatus(ctx, "order-10", StatusPending, StatusShipped))

	got, err := store.Get(ctx, "order-10")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)

	err = store.UpdateStatus(ctx, "order-10", StatusPending, StatusFulfilled)
	assert.ErrorIs(t, err, ErrStatusMismatch)

	err = store.UpdateStatus(ctx, "missing", StatusPending, StatusShipped)
	assert.ErrorIs(t, err, ErrStatusMismatch)
}

func TestIncrementAttempts(t *testing.T) {
	mock := testutil.NewDynamo()
	seedOrder(t, mock, Order{OrderID: "order-11", Status: StatusPending, OrderDate: fixedNow})
	store := newTestStore(mock)
	ctx := context.Background()

	require.NoError(t, store.IncrementAttempts(ctx, "order-11"))
	require.NoError(t, store.IncrementAttempts(ctx, "order-11"))

	got, err := store.Get(ctx, "order-11")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
}
