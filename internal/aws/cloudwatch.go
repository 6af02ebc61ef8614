package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// BucketMetricName is the CloudWatch metric holding per-bucket order counts.
const BucketMetricName = "OrdersInBucket"

// MetricsPublisher writes triage gauges to CloudWatch.
type MetricsPublisher struct {
	CW        CloudWatchAPI
	Namespace string
}

// NewMetricsPublisher returns a MetricsPublisher for namespace.
func NewMetricsPublisher(cw CloudWatchAPI, namespace string) *MetricsPublisher {
	return &MetricsPublisher{CW: cw, Namespace: namespace}
}

// PublishBuckets sends one OrdersInBucket datum per bucket, dimensioned by
// bucket name and stamped with ts.
func (m *MetricsPublisher) PublishBuckets(ctx context.Context, counts map[string]int, ts time.Time) error {
	if len(counts) == 0 {
		return nil
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	data := make([]cwtypes.MetricDatum, 0, len(names))
	for _, name := range names {
		data = append(data, cwtypes.MetricDatum{
			MetricName: awsString(BucketMetricName),
			Dimensions: []cwtypes.Dimension{
				{Name: awsString("Bucket"), Value: awsString(name)},
			},
			Timestamp: &ts,
			Unit:      cwtypes.StandardUnitCount,
			Value:     awsFloat(float64(counts[name])),
		})
	}

	_, err := m.CW.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.Namespace,
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func awsFloat(f float64) *float64 { return &f }
