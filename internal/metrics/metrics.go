// Package metrics exposes Prometheus instruments for the order desk API.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	searchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Name:      "searches_total",
		Help:      "Admin order list requests by active filter and whether a query was given",
	}, []string{"filter", "query"})
	searchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderdesk",
		Name:      "search_duration_seconds",
		Help:      "Time spent filtering, scoring and sorting the order list",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	}, []string{"filter"})
	searchResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orderdesk",
		Name:      "search_results",
		Help:      "Number of orders returned by the admin order list",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
	bucketOrders = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "orderdesk",
		Name:      "bucket_orders",
		Help:      "Orders per triage bucket at the last summary",
	}, []string{"bucket"})
	checkoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Name:      "checkouts_total",
		Help:      "Storefront checkout requests by outcome",
	}, []string{"outcome"})
)

// Register adds the collectors to the default registry (idempotent).
func Register() {
	RegisterWith(prometheus.DefaultRegisterer)
}

// RegisterWith adds the collectors to r once per process.
func RegisterWith(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(searchesTotal, searchDuration, searchResults, bucketOrders, checkoutsTotal)
	})
}

// ObserveSearch records one admin list request.
func ObserveSearch(filter string, withQuery bool, results int, d time.Duration) {
	q := "none"
	if withQuery {
		q = "text"
	}
	searchesTotal.WithLabelValues(filter, q).Inc()
	searchDuration.WithLabelValues(filter).Observe(d.Seconds())
	searchResults.Observe(float64(results))
}

// SetBucket records the current size of a triage bucket.
func SetBucket(bucket string, n int) { bucketOrders.WithLabelValues(bucket).Set(float64(n)) }

// IncCheckout counts a checkout outcome ("created", "replayed", "in_progress", "failed").
func IncCheckout(outcome string) { checkoutsTotal.WithLabelValues(outcome).Inc() }
