// Package ratelimit tracks the request quota a data source advertises in
// its response headers and gates requests before the quota runs out.
// State is kept in Redis so every connector talking to the same source
// shares one view of the quota.
package ratelimit

import (
	"time"
)

// Redis hash fields of the per-source state.
const (
	fieldRemaining = "remaining"
	fieldResetAt   = "reset_at"
	fieldUpdated   = "last_update"
)

// KeyPrefix prefixes the Redis key of every source.
const KeyPrefix = "apiconn:rate_limit:"

// Default thresholds for rate limit decisions.
const (
	// DefaultCriticalThreshold blocks requests when the remaining quota
	// falls below it.
	DefaultCriticalThreshold = 2

	// DefaultWarningThreshold throttles requests when the remaining quota
	// falls below it.
	DefaultWarningThreshold = 10
)

// State is the last known quota of a source.
type State struct {
	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the window resets.
	ResetAt time.Time

	// LastUpdate is when the state was recorded.
	LastUpdate time.Time

	// Known is false when no response has reported a quota yet.
	Known bool
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// TimeUntilReset returns the duration until the window resets, 0 if it
// already has.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// active reports whether the recorded quota still applies.
func (s *State) active() bool {
	return s.Known && s.TimeUntilReset() > 0
}

// NeedsBlock reports whether requests must be refused.
func (s *State) NeedsBlock(critical int) bool {
	return s.active() && s.Remaining < critical
}

// NeedsThrottle reports whether requests should be slowed down.
func (s *State) NeedsThrottle(critical, warning int) bool {
	return s.active() && s.Remaining < warning && s.Remaining >= critical
}
