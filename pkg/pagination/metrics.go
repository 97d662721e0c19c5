package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callstream_pages_fetched_total",
		Help: "Total pages fetched by operation",
	}, []string{"operation"}) // "refresh", "update", "walk", "concurrent"

	pageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callstream_page_errors_total",
		Help: "Total page fetch failures by operation",
	}, []string{"operation"})

	pagerRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callstream_pager_rejected_total",
		Help: "Total pager requests rejected because another request was in flight",
	})

	fetchAllDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callstream_fetch_all_duration_seconds",
		Help:    "Duration of fetching every page of an endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"mode"}) // "sequential", "concurrent"
)
