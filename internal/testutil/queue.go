package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS records every SendMessage call.
type SQS struct {
	mu   sync.Mutex
	Sent []*sqs.SendMessageInput
	Err  error
}

func (q *SQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return nil, q.Err
	}
	q.Sent = append(q.Sent, in)
	id := fmt.Sprintf("msg-%d", len(q.Sent))
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

// Bodies returns the message bodies sent so far.
func (q *SQS) Bodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.Sent))
	for _, in := range q.Sent {
		out = append(out, *in.MessageBody)
	}
	return out
}

// CloudWatch records every datum passed to PutMetricData.
type CloudWatch struct {
	mu        sync.Mutex
	Namespace string
	Data      []cwtypes.MetricDatum
	Err       error
}

func (c *CloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if in.Namespace != nil {
		c.Namespace = *in.Namespace
	}
	c.Data = append(c.Data, in.MetricData...)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Value returns the last recorded value for metric name with the given
// dimension value, and whether it was found.
func (c *CloudWatch) Value(name, dimensionValue string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.Data) - 1; i >= 0; i-- {
		d := c.Data[i]
		if d.MetricName == nil || *d.MetricName != name || d.Value == nil {
			continue
		}
		for _, dim := range d.Dimensions {
			if dim.Value != nil && *dim.Value == dimensionValue {
				return *d.Value, true
			}
		}
	}
	return 0, false
}
