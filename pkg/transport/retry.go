package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apiconn_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// classifiedError carries the class of a failed attempt through backoff.
type classifiedError struct {
	class ErrorClass
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

func retryable(class ErrorClass, err error) error {
	ce := &classifiedError{class: class, err: err}
	if !shouldRetry(class) {
		return backoff.Permanent(ce)
	}
	return ce
}

// permanent stops the retry loop with err.
func permanent(err error) error {
	return backoff.Permanent(err)
}

// retryWithBackoff runs fn until it succeeds, returns a non-retryable
// error, the retries run out or ctx is done. Backoff is exponential with
// ±20% jitter.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func(attempt int) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialBackoff
	eb.MaxInterval = cfg.MaxBackoff
	eb.Multiplier = cfg.BackoffMultiplier
	eb.RandomizationFactor = 0.2
	eb.MaxElapsedTime = 0
	eb.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(cfg.MaxRetries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		return fn(attempt)
	}

	notify := func(err error, wait time.Duration) {
		class := classOf(err)
		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		logger.Debug().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")
	}

	err := backoff.RetryNotify(op, policy, notify)
	if err == nil {
		if attempt > 1 {
			logger.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
		}
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn().Int("attempt", attempt).Msg("Context cancelled during retry")
		return fmt.Errorf("request cancelled after %d attempts: %w", attempt, ctxErr)
	}

	class := classOf(err)
	if shouldRetry(class) {
		retryExhaustedTotal.WithLabelValues(string(class)).Inc()
		logger.Warn().
			Str("error_class", string(class)).
			Int("attempts", attempt).
			Msg("Retry attempts exhausted")
	}
	return err
}

func classOf(err error) ErrorClass {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}
	return ""
}
