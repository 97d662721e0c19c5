package call

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors reported through a call's error channel.
var (
	// ErrEmptyBody is returned when a single-value consumer receives a
	// successful response without a body.
	ErrEmptyBody = errors.New("successful response had no body")

	// ErrCallConsumed is returned when a call is subscribed more than once.
	ErrCallConsumed = errors.New("call already consumed")
)

// ErrorClass represents a classification of call failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents failures without an HTTP status.
	ErrorClassNetwork ErrorClass = "network"
)

// Classify maps an HTTP status to an ErrorClass. Status 0 means the request
// never produced a response.
func Classify(status int) ErrorClass {
	switch {
	case status == 0:
		return ErrorClassNetwork
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// TransportError is a network or HTTP failure reported by the endpoint.
type TransportError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
}

// NewTransportError builds a TransportError from a callback's error outcome.
func NewTransportError(status int, message string) *TransportError {
	return &TransportError{
		StatusCode: status,
		Class:      Classify(status),
		Message:    message,
	}
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s error: %s", e.Class, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// Retryable reports whether a retry could plausibly succeed.
func (e *TransportError) Retryable() bool {
	switch e.Class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
