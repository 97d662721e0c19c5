package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	remainingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callstream_rate_limit_remaining",
		Help: "Requests remaining in the current rate limit window",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callstream_rate_limit_blocks_total",
		Help: "Total number of requests blocked by the rate limit tracker",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callstream_rate_limit_throttles_total",
		Help: "Total number of requests delayed by the rate limit tracker",
	})
)

// Headers names the response headers carrying the budget.
type Headers struct {
	// Remaining holds the number of requests left.
	Remaining string

	// Reset holds the seconds until the window resets.
	Reset string
}

// DefaultHeaders returns the common X-RateLimit-* header names.
func DefaultHeaders() Headers {
	return Headers{
		Remaining: "X-RateLimit-Remaining",
		Reset:     "X-RateLimit-Reset",
	}
}

// Config holds tracker configuration.
type Config struct {
	// KeyPrefix namespaces the Redis key (default "callstream:rate_limit").
	KeyPrefix string

	Headers    Headers
	Thresholds Thresholds

	// ThrottleDelay is how long a request waits in the warning zone.
	ThrottleDelay time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:     "callstream:rate_limit",
		Headers:       DefaultHeaders(),
		Thresholds:    DefaultThresholds(),
		ThrottleDelay: time.Second,
	}
}

// Tracker records the budget from responses and gates requests.
type Tracker struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// NewTracker creates a tracker. Zero config fields use DefaultConfig values.
func NewTracker(redisClient *redis.Client, config Config, logger zerolog.Logger) *Tracker {
	defaults := DefaultConfig()
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}
	if config.Headers.Remaining == "" {
		config.Headers.Remaining = defaults.Headers.Remaining
	}
	if config.Headers.Reset == "" {
		config.Headers.Reset = defaults.Headers.Reset
	}
	if config.Thresholds == (Thresholds{}) {
		config.Thresholds = defaults.Thresholds
	}

	return &Tracker{
		redis:  redisClient,
		config: config,
		logger: logger,
	}
}

func (t *Tracker) stateKey() string {
	return t.config.KeyPrefix + ":state"
}

// GetState returns the stored state, or nil if no response has been seen.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	data, err := t.redis.Get(ctx, t.stateKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode rate limit state: %w", err)
	}
	return &state, nil
}

// UpdateFromHeaders stores the budget carried by a response. Responses
// without the remaining header are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(t.config.Headers.Remaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.config.Headers.Remaining, err)
	}

	resetStr := headers.Get(t.config.Headers.Reset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", t.config.Headers.Reset)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.config.Headers.Reset, err)
	}

	now := time.Now()
	state := State{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode rate limit state: %w", err)
	}

	// keep the state around a little past the reset so late readers still see it
	ttl := time.Duration(resetSeconds)*time.Second + time.Minute
	if err := t.redis.Set(ctx, t.stateKey(), data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state: %w", err)
	}

	remainingGauge.Set(float64(remain))

	switch {
	case t.config.Thresholds.Blocks(&state):
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case t.config.Thresholds.Throttles(&state):
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent. In the warning
// zone it waits ThrottleDelay (or until ctx is done) before allowing.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, err
	}
	if state == nil {
		return true, nil
	}

	if t.config.Thresholds.Blocks(state) {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")
		blocksTotal.Inc()
		return false, nil
	}

	if t.config.Thresholds.Throttles(state) && t.config.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.config.ThrottleDelay).
			Msg("Rate limit warning - throttling request")
		throttlesTotal.Inc()

		timer := time.NewTimer(t.config.ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}
