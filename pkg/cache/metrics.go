package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callstream_cache_hits_total",
		Help: "Total number of response cache hits",
	})

	// CacheMisses counts cache misses, including expired entries.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callstream_cache_misses_total",
		Help: "Total number of response cache misses",
	})

	// BytesWritten counts serialized bytes stored in Redis.
	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callstream_cache_bytes_written_total",
		Help: "Total bytes written to the response cache",
	})

	// CacheErrors counts cache operation errors.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callstream_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"

	// ConditionalRequestsSent counts requests sent with validators.
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callstream_cache_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	// NotModifiedResponses counts 304 responses served from cache.
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callstream_cache_not_modified_total",
		Help: "Total number of 304 Not Modified responses",
	})
)
