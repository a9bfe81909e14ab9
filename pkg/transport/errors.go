package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the transport.
var (
	// ErrRetryExhausted is returned when all retry attempts failed at the
	// network level.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize.
	ErrResponseTooLarge = errors.New("response body too large")

	// ErrRequest is matched by every RequestError.
	ErrRequest = errors.New("request failed")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// RequestError reports a response with a non-success status. It carries
// the raw body so callers can surface the source's own error message.
type RequestError struct {
	StatusCode int
	Body       string
	URL        string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if e.URL == "" {
		return fmt.Sprintf("request error (status %d): %s", e.StatusCode, body)
	}
	return fmt.Sprintf("request error (status %d) from %s: %s", e.StatusCode, e.URL, body)
}

// Is makes errors.Is(err, ErrRequest) match.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}

// Class returns the error class of the status code.
func (e *RequestError) Class() ErrorClass {
	return classifyStatus(e.StatusCode)
}

// classifyStatus categorizes a status code. Success codes have no class.
func classifyStatus(status int) ErrorClass {
	switch {
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

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx will fail the same way again
		return false
	}
}
