package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-studio-orderdesk/internal/testutil"
)

func TestPublisher_Send(t *testing.T) {
	q := &testutil.SQS{}
	p := NewPublisher(q, "https://sqs.local/orders")

	id, err := p.Send(context.Background(), []byte(`{"type":"order.placed"}`), map[string]string{
		"order_id":       "65f0c0ffee0000000000abcd",
		"correlation_id": "",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.Len(t, q.Sent, 1)
	sent := q.Sent[0]
	assert.Equal(t, "https://sqs.local/orders", *sent.QueueUrl)
	assert.Equal(t, `{"type":"order.placed"}`, *sent.MessageBody)
	assert.Len(t, sent.MessageAttributes, 1, "empty attributes are dropped")
	assert.Equal(t, "65f0c0ffee0000000000abcd", *sent.MessageAttributes["order_id"].StringValue)
}

func TestPublisher_SendError(t *testing.T) {
	q := &testutil.SQS{Err: errors.New("queue gone")}
	_, err := NewPublisher(q, "u").Send(context.Background(), []byte("{}"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send message")
}

func TestMetricsPublisher_PublishBuckets(t *testing.T) {
	cw := &testutil.CloudWatch{}
	m := NewMetricsPublisher(cw, "Studio/OrderDesk")
	ts := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.PublishBuckets(context.Background(), map[string]int{"PICKUP": 2, "URGENT_DELIVERY": 5}, ts))
	assert.Equal(t, "Studio/OrderDesk", cw.Namespace)
	require.Len(t, cw.Data, 2)

	v, ok := cw.Value(BucketMetricName, "URGENT_DELIVERY")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	require.NoError(t, m.PublishBuckets(context.Background(), nil, ts))
	assert.Len(t, cw.Data, 2, "nothing sent for empty counts")
}
