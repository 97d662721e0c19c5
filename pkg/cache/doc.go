// Package cache provides a Redis-backed HTTP response cache with support for
// conditional requests.
//
// Entries are keyed by request method, endpoint, query and an optional scope
// (for responses that differ per credential). Their lifetime follows the
// response's Cache-Control max-age or Expires header, falling back to
// DefaultTTL. Responses marked no-store are never cached.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "/v1/orders",
//		Query:    url.Values{"page": []string{"2"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// # Conditional Requests
//
//	if cache.CanRevalidate(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// a 304 response means entry is still valid
//	}
//
// # Metrics
//
//   - callstream_cache_hits_total
//   - callstream_cache_misses_total
//   - callstream_cache_bytes_written_total
//   - callstream_cache_errors_total{operation}
//   - callstream_cache_conditional_requests_total
//   - callstream_cache_not_modified_total
package cache
