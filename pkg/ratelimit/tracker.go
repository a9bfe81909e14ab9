package ratelimit

import (
	"context"
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

// ErrRateLimited is returned when the remaining quota is critical.
var ErrRateLimited = errors.New("rate limit critical: request blocked")

// Prometheus metrics for rate limit tracking.
var (
	rateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apiconn_rate_limit_remaining",
		Help: "Requests remaining in the current rate limit window by source",
	}, []string{"source"})

	rateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to critical rate limit",
	}, []string{"source"})

	rateLimitThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to low rate limit",
	}, []string{"source"})
)

// Config configures a Tracker.
type Config struct {
	// Source names the data source; it scopes the Redis key and metrics.
	Source string

	// RemainingHeader carries the remaining quota.
	RemainingHeader string

	// ResetHeader carries the seconds until the window resets.
	ResetHeader string

	// CriticalThreshold and WarningThreshold gate requests.
	CriticalThreshold int
	WarningThreshold  int

	// ThrottleDelay is how long a throttled request waits.
	ThrottleDelay time.Duration

	// MaxStateAge is how long a recorded quota is trusted. Older state
	// no longer gates requests. Zero trusts state until it resets.
	MaxStateAge time.Duration
}

// DefaultConfig returns a configuration for the common X-RateLimit-* headers.
func DefaultConfig(source string) Config {
	return Config{
		Source:            source,
		RemainingHeader:   "X-RateLimit-Remaining",
		ResetHeader:       "X-RateLimit-Reset",
		CriticalThreshold: DefaultCriticalThreshold,
		WarningThreshold:  DefaultWarningThreshold,
		ThrottleDelay:     1 * time.Second,
		MaxStateAge:       5 * time.Minute,
	}
}

// Tracker monitors a source's rate limit and gates requests.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	config Config
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, cfg Config, logger zerolog.Logger) (*Tracker, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Source == "" {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.RemainingHeader == "" || cfg.ResetHeader == "" {
		return nil, fmt.Errorf("rate limit headers are required")
	}
	if cfg.WarningThreshold < cfg.CriticalThreshold {
		return nil, fmt.Errorf("warning threshold (%d) must be >= critical threshold (%d)",
			cfg.WarningThreshold, cfg.CriticalThreshold)
	}

	return &Tracker{
		redis:  redisClient,
		logger: logger.With().Str("source", cfg.Source).Logger(),
		config: cfg,
	}, nil
}

func (t *Tracker) key() string {
	return KeyPrefix + t.config.Source
}

// GetState retrieves the current state from Redis. When nothing has been
// recorded yet the state is unknown and requests are allowed.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	fields, err := t.redis.HGetAll(ctx, t.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	if len(fields) == 0 {
		t.logger.Debug().Msg("No rate limit state in Redis")
		return &State{}, nil
	}

	remaining, err := strconv.Atoi(fields[fieldRemaining])
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	resetAt, err := strconv.ParseInt(fields[fieldResetAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reset timestamp: %w", err)
	}
	updated, err := strconv.ParseInt(fields[fieldUpdated], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse last update: %w", err)
	}

	return &State{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetAt, 0),
		LastUpdate: time.Unix(updated, 0),
		Known:      true,
	}, nil
}

// UpdateFromHeaders records the quota advertised by a response. Responses
// without the remaining header are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(t.config.RemainingHeader)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.config.RemainingHeader, err)
	}

	resetStr := headers.Get(t.config.ResetHeader)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", t.config.ResetHeader)
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", t.config.ResetHeader, err)
	}

	now := time.Now()
	resetAt := now.Add(time.Duration(resetSeconds) * time.Second)

	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, t.key(),
		fieldRemaining, remain,
		fieldResetAt, resetAt.Unix(),
		fieldUpdated, now.Unix(),
	)
	// Keep the key around a little past the window.
	pipe.Expire(ctx, t.key(), time.Duration(resetSeconds)*time.Second+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitRemaining.WithLabelValues(t.config.Source).Set(float64(remain))

	switch {
	case remain < t.config.CriticalThreshold:
		t.logger.Error().Int("remaining", remain).Time("reset_at", resetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case remain < t.config.WarningThreshold:
		t.logger.Warn().Int("remaining", remain).Time("reset_at", resetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().Int("remaining", remain).Time("reset_at", resetAt).
			Msg("Rate limit state updated")
	}

	return nil
}

// Allow checks the current state before a request. It returns
// ErrRateLimited when the quota is critical and waits ThrottleDelay when it
// is low.
func (t *Tracker) Allow(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	if state.Known && t.config.MaxStateAge > 0 && state.IsStale(t.config.MaxStateAge) {
		t.logger.Debug().
			Time("last_update", state.LastUpdate).
			Msg("Rate limit state stale - ignoring")
		return nil
	}

	if state.NeedsBlock(t.config.CriticalThreshold) {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")
		rateLimitBlocksTotal.WithLabelValues(t.config.Source).Inc()
		return fmt.Errorf("%w (resets in %s)", ErrRateLimited, state.TimeUntilReset().Round(time.Second))
	}

	if state.NeedsThrottle(t.config.CriticalThreshold, t.config.WarningThreshold) {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Rate limit low - throttling request")
		rateLimitThrottlesTotal.WithLabelValues(t.config.Source).Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.config.ThrottleDelay):
		}
	}

	return nil
}
