package ratelimit

import (
	"testing"
	"time"
)

func TestState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *State
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &State{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &State{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    &State{LastUpdate: time.Now().Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Gating(t *testing.T) {
	future := time.Now().Add(time.Minute)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name     string
		state    State
		block    bool
		throttle bool
	}{
		{"unknown", State{}, false, false},
		{"healthy", State{Known: true, Remaining: 100, ResetAt: future}, false, false},
		{"at warning threshold", State{Known: true, Remaining: DefaultWarningThreshold, ResetAt: future}, false, false},
		{"below warning", State{Known: true, Remaining: DefaultWarningThreshold - 1, ResetAt: future}, false, true},
		{"at critical threshold", State{Known: true, Remaining: DefaultCriticalThreshold, ResetAt: future}, false, true},
		{"below critical", State{Known: true, Remaining: DefaultCriticalThreshold - 1, ResetAt: future}, true, false},
		{"critical but window reset", State{Known: true, Remaining: 0, ResetAt: past}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.NeedsBlock(DefaultCriticalThreshold); got != tt.block {
				t.Errorf("NeedsBlock() = %v, want %v", got, tt.block)
			}
			if got := tt.state.NeedsThrottle(DefaultCriticalThreshold, DefaultWarningThreshold); got != tt.throttle {
				t.Errorf("NeedsThrottle() = %v, want %v", got, tt.throttle)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	s := &State{ResetAt: time.Now().Add(-time.Second)}
	if got := s.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset", got)
	}

	s.ResetAt = time.Now().Add(30 * time.Second)
	if got := s.TimeUntilReset(); got <= 25*time.Second || got > 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want ~30s", got)
	}
}
