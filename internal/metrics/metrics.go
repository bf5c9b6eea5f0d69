// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photohub_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photohub_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "route"},
	)

	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photohub_store_operations_total",
			Help: "Collection file operations by collection, operation and outcome.",
		},
		[]string{"collection", "operation", "outcome"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photohub_store_operation_duration_seconds",
			Help:    "Time spent holding a collection lock.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "operation"},
	)

	FiltersAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photohub_filters_applied_total",
			Help: "Filter applications by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordStoreOperation(collection, operation string, err error, d time.Duration) {
	StoreOperationsTotal.WithLabelValues(collection, operation, outcome(err)).Inc()
	StoreOperationDuration.WithLabelValues(collection, operation).Observe(d.Seconds())
}

func RecordFilter(operation string, err error) {
	FiltersAppliedTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
