// Package metrics exposes the Prometheus registry used by callstream.
// Metrics are defined with promauto in the packages that record them
// (client, cache, ratelimit, pagination) and land in the default registry.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prefix is the common name prefix of callstream metrics.
const Prefix = "callstream_"

// Registry is the registerer every callstream metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names returns the names of callstream metric families that have been
// recorded at least once.
func Names() ([]string, error) {
	families, err := Gatherer.Gather()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), Prefix) {
			names = append(names, mf.GetName())
		}
	}
	return names, nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - callstream_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - callstream_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - callstream_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - callstream_retries_total{error_class} (Counter): Retry attempts by error class
//   - callstream_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - callstream_retry_exhausted_total{error_class} (Counter): Requests that used every attempt
//
// Cache Metrics (pkg/cache):
//   - callstream_cache_hits_total (Counter): Cache hits
//   - callstream_cache_misses_total (Counter): Cache misses, including expired entries
//   - callstream_cache_bytes_written_total (Counter): Bytes written to Redis
//   - callstream_cache_errors_total{operation} (Counter): Cache operation errors
//   - callstream_cache_conditional_requests_total (Counter): Requests sent with validators
//   - callstream_cache_not_modified_total (Counter): 304 responses served from cache
//
// Rate Limit Metrics (pkg/ratelimit):
//   - callstream_rate_limit_remaining (Gauge): Requests left in the current window
//   - callstream_rate_limit_blocks_total (Counter): Requests blocked at the critical threshold
//   - callstream_rate_limit_throttles_total (Counter): Requests delayed at the warning threshold
//
// Pagination Metrics (pkg/pagination):
//   - callstream_pages_fetched_total{operation} (Counter): Pages received by refresh/update/walk
//   - callstream_page_errors_total{operation} (Counter): Failed page fetches
//   - callstream_pager_rejected_total (Counter): Pager requests rejected while one was in flight
//   - callstream_fetch_all_duration_seconds{mode} (Histogram): Exhaustive fetch duration, sequential or concurrent
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(callstream_cache_hits_total[5m])) /
//   (sum(rate(callstream_cache_hits_total[5m])) + sum(rate(callstream_cache_misses_total[5m])))
//
//   # Budget Status
//   callstream_rate_limit_remaining < 20
//
//   # P95 Exhaustive Fetch Duration
//   histogram_quantile(0.95, rate(callstream_fetch_all_duration_seconds_bucket[5m]))
