// Package transport sends request descriptors over HTTP with retries,
// optional shared rate limiting and Prometheus instrumentation.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/api-connector/pkg/ratelimit"
	"github.com/Sternrassler/api-connector/pkg/request"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_requests_total",
		Help: "Total requests by host and status",
	}, []string{"host", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apiconn_request_duration_seconds",
		Help:    "Request duration in seconds by host",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport performs a single logical request. A Transport may retry
// internally; the returned response is the final attempt.
type Transport interface {
	Send(ctx context.Context, d *request.Descriptor) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, d *request.Descriptor) (*Response, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, d *request.Descriptor) (*Response, error) {
	return f(ctx, d)
}

// Config holds the HTTP transport configuration.
type Config struct {
	// UserAgent is sent with every request unless the descriptor sets its own.
	UserAgent string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// MaxResponseSize caps the number of body bytes read per response.
	MaxResponseSize int64

	// Retry controls backoff between attempts.
	Retry RetryConfig

	// RateLimiter is consulted before every attempt (optional).
	RateLimiter *ratelimit.Tracker

	// HTTPClient overrides the default client (optional, mostly for tests).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:       userAgent,
		Timeout:         30 * time.Second,
		MaxResponseSize: 32 << 20,
		Retry:           DefaultRetryConfig(),
	}
}

// HTTPTransport is the production Transport.
type HTTPTransport struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates an HTTPTransport.
func New(cfg Config) (*HTTPTransport, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %v)", cfg.Timeout)
	}
	if cfg.MaxResponseSize <= 0 {
		return nil, fmt.Errorf("max_response_size must be positive (got %d)", cfg.MaxResponseSize)
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BackoffMultiplier < 1 {
		cfg.Retry.BackoffMultiplier = 1
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPTransport{
		httpClient: httpClient,
		config:     cfg,
		logger:     log.With().Str("component", "transport").Logger(),
	}, nil
}

// Send executes d. Retryable failures (5xx, 429, network) are retried
// with backoff. When the retries run out on an HTTP status the last
// response is returned without error so the caller can inspect its body.
// Network exhaustion yields ErrRetryExhausted.
func (t *HTTPTransport) Send(ctx context.Context, d *request.Descriptor) (*Response, error) {
	var (
		last    *Response
		lastNet error
	)

	host := ""
	err := retryWithBackoff(ctx, t.config.Retry, t.logger, func(attempt int) error {
		if t.config.RateLimiter != nil {
			if err := t.config.RateLimiter.Allow(ctx); err != nil {
				// A blocked quota will not clear within the backoff window.
				return permanent(err)
			}
		}

		req, err := d.HTTPRequest(ctx)
		if err != nil {
			return permanent(fmt.Errorf("build http request: %w", err))
		}
		host = req.URL.Host
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", t.config.UserAgent)
		}
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}

		t.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Int("attempt", attempt).
			Msg("Executing request")

		start := time.Now()
		resp, err := t.do(req)
		requestDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return permanent(ctx.Err())
			}
			if errors.Is(err, ErrResponseTooLarge) {
				return permanent(err)
			}
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(host, "network_error").Inc()
			t.logger.Warn().Err(err).Str("host", host).Msg("Request failed")
			lastNet = err
			return retryable(ErrorClassNetwork, err)
		}
		last = resp

		if t.config.RateLimiter != nil {
			if err := t.config.RateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
				t.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		requestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()
		class := classifyStatus(resp.StatusCode)
		if class == "" {
			return nil
		}

		errorsTotal.WithLabelValues(string(class)).Inc()
		t.logger.Warn().
			Str("host", host).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Request returned error status")

		reqErr := &RequestError{StatusCode: resp.StatusCode, Body: string(resp.Body), URL: req.URL.Redacted()}
		return retryable(class, reqErr)
	})

	if err == nil {
		return last, nil
	}

	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr) && last != nil:
		// Status failures are reported through the response itself.
		return last, nil
	case ctx.Err() != nil:
		return nil, err
	case lastNet != nil && errors.Is(err, lastNet):
		return nil, fmt.Errorf("%w: %w", ErrRetryExhausted, lastNet)
	default:
		return nil, unwrapClassified(err)
	}
}

func (t *HTTPTransport) do(req *http.Request) (*Response, error) {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.config.MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > t.config.MaxResponseSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, t.config.MaxResponseSize)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func unwrapClassified(err error) error {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.err
	}
	return err
}
