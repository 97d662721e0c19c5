// Package ratelimit tracks an API's request budget from response headers and
// gates requests before the budget runs out. State is stored in Redis so
// every client sharing the budget sees the same numbers.
package ratelimit

import (
	"time"
)

// Default thresholds for gating decisions.
const (
	// DefaultCriticalThreshold blocks requests when the remaining budget
	// falls below it.
	DefaultCriticalThreshold = 5

	// DefaultWarningThreshold throttles requests when the remaining budget
	// falls below it.
	DefaultWarningThreshold = 20
)

// State is the last known request budget.
type State struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last read from a response.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale reports whether the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// TimeUntilReset returns the time until the window resets, or 0.
func (s *State) TimeUntilReset() time.Duration {
	return max(time.Until(s.ResetAt), 0)
}

// Thresholds decide when requests are blocked or throttled.
type Thresholds struct {
	Critical int
	Warning  int
}

// DefaultThresholds returns the default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: DefaultCriticalThreshold,
		Warning:  DefaultWarningThreshold,
	}
}

// Blocks reports whether s is below the critical threshold. A window that
// has already reset never blocks.
func (t Thresholds) Blocks(s *State) bool {
	return s.Remaining < t.Critical && s.TimeUntilReset() > 0
}

// Throttles reports whether s is below the warning threshold but not blocked.
func (t Thresholds) Throttles(s *State) bool {
	return s.Remaining < t.Warning && !t.Blocks(s) && s.TimeUntilReset() > 0
}
