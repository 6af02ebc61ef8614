package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSearch(t *testing.T) {
	before := testutil.ToFloat64(searchesTotal.WithLabelValues("PICKUP", "text"))
	ObserveSearch("PICKUP", true, 3, 2*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(searchesTotal.WithLabelValues("PICKUP", "text")))
}

func TestSetBucket(t *testing.T) {
	SetBucket("URGENT_DELIVERY", 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(bucketOrders.WithLabelValues("URGENT_DELIVERY")))
}

func TestIncCheckout(t *testing.T) {
	before := testutil.ToFloat64(checkoutsTotal.WithLabelValues("created"))
	IncCheckout("created")
	assert.Equal(t, before+1, testutil.ToFloat64(checkoutsTotal.WithLabelValues("created")))
}
