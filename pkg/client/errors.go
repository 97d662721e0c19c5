package client

import (
	"errors"

	"github.com/Sternrassler/callstream/pkg/call"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts failed without
	// producing a response.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a retry
	// backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRequestBlocked is returned when the rate limit tracker refuses a
	// request because the budget is critical.
	ErrRequestBlocked = errors.New("request blocked: rate limit critical")
)

// shouldRetry determines if a failure class may be retried.
func shouldRetry(class call.ErrorClass) bool {
	switch class {
	case call.ErrorClassClient:
		// 4xx responses repeat on retry
		return false
	case call.ErrorClassServer, call.ErrorClassRateLimit, call.ErrorClassNetwork:
		return true
	default:
		return false
	}
}
