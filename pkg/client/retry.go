package client

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/Sternrassler/callstream/pkg/call"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callstream_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callstream_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callstream_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first
	// request. 1 disables retries.
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns a single-attempt configuration. Calls fail on
// the first error unless retries are enabled explicitly.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// BackoffRetryConfig returns a three-attempt exponential backoff configuration.
func BackoffRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 3
	return cfg
}

// classifyAttempt returns the failure class of one attempt, or "" when the
// attempt produced a non-error response.
func classifyAttempt(resp *http.Response, err error) call.ErrorClass {
	if err != nil {
		return call.ErrorClassNetwork
	}
	if resp.StatusCode >= 400 {
		return call.Classify(resp.StatusCode)
	}
	return ""
}

// retryWithBackoff runs attempt until it succeeds, fails with a class that
// is not retried, or config.MaxAttempts is reached. An HTTP error response
// from the final attempt is returned as-is so the caller can report its
// status. Backoff is exponential with ±20% jitter and honors ctx.
func retryWithBackoff(ctx context.Context, config RetryConfig, attempt func() (*http.Response, error)) (*http.Response, error) {
	maxAttempts := max(config.MaxAttempts, 1)
	backoff := config.InitialBackoff

	for n := 1; ; n++ {
		resp, err := attempt()
		class := classifyAttempt(resp, err)

		if !shouldRetry(class) {
			if n > 1 && class == "" {
				log.Info().
					Int("attempt", n).
					Msg("Request succeeded after retry")
			}
			return resp, err
		}

		if n >= maxAttempts {
			if maxAttempts > 1 {
				retryExhaustedTotal.WithLabelValues(string(class)).Inc()
				log.Warn().
					Str("error_class", string(class)).
					Int("max_attempts", maxAttempts).
					Msg("Retry attempts exhausted")
			}
			if err != nil && maxAttempts > 1 {
				return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, err)
			}
			return resp, err
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		retriesTotal.WithLabelValues(string(class)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(jitter.Seconds())

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", n).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("error_class", string(class)).
				Int("attempt", n).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
}
