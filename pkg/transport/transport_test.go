package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/api-connector/pkg/request"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig("apiq-test/1.0")
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func newTestTransport(t *testing.T, mutate func(*Config)) *HTTPTransport {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", nil, false},
		{"missing user agent", func(c *Config) { c.UserAgent = "" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"zero response size", func(c *Config) { c.MaxResponseSize = 0 }, true},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, err := New(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPTransport_Send_Success(t *testing.T) {
	var gotUA, gotAccept, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":1}]`)
	}))
	defer server.Close()

	tr := newTestTransport(t, nil)
	d := request.NewDescriptor(http.MethodGet, server.URL+"/items")
	d.Params["limit"] = "10"

	resp, err := tr.Send(context.Background(), d)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !resp.OK() {
		t.Errorf("StatusCode = %d, want 2xx", resp.StatusCode)
	}
	if string(resp.Body) != `[{"id":1}]` {
		t.Errorf("Body = %q", resp.Body)
	}
	if gotUA != "apiq-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotQuery != "10" {
		t.Errorf("limit = %q, want 10", gotQuery)
	}
}

func TestHTTPTransport_Send_DescriptorUserAgentWins(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	tr := newTestTransport(t, nil)
	d := request.NewDescriptor(http.MethodGet, server.URL)
	d.Headers["User-Agent"] = "custom/2.0"

	if _, err := tr.Send(context.Background(), d); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotUA != "custom/2.0" {
		t.Errorf("User-Agent = %q, want custom/2.0", gotUA)
	}
}

func TestHTTPTransport_Send_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	tr := newTestTransport(t, nil)
	resp, err := tr.Send(context.Background(), request.NewDescriptor(http.MethodGet, server.URL))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestHTTPTransport_Send_ExhaustedReturnsLastResponse(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message":"slow down"}`)
	}))
	defer server.Close()

	tr := newTestTransport(t, func(c *Config) { c.Retry.MaxRetries = 2 })
	resp, err := tr.Send(context.Background(), request.NewDescriptor(http.MethodGet, server.URL))
	if err != nil {
		t.Fatalf("Send() error = %v, want nil with last response", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", resp.StatusCode)
	}
	if string(resp.Body) != `{"message":"slow down"}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", got)
	}
}

func TestHTTPTransport_Send_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `bad token`)
	}))
	defer server.Close()

	tr := newTestTransport(t, nil)
	resp, err := tr.Send(context.Background(), request.NewDescriptor(http.MethodGet, server.URL))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestHTTPTransport_Send_NetworkExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	tr := newTestTransport(t, func(c *Config) { c.Retry.MaxRetries = 1 })
	_, err := tr.Send(context.Background(), request.NewDescriptor(http.MethodGet, url))
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Send() error = %v, want ErrRetryExhausted", err)
	}
}

func TestHTTPTransport_Send_ResponseTooLarge(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, "0123456789")
	}))
	defer server.Close()

	tr := newTestTransport(t, func(c *Config) { c.MaxResponseSize = 4 })
	_, err := tr.Send(context.Background(), request.NewDescriptor(http.MethodGet, server.URL))
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Errorf("Send() error = %v, want ErrResponseTooLarge", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestHTTPTransport_Send_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tr := newTestTransport(t, func(c *Config) {
		c.Retry.InitialBackoff = time.Hour
		c.Retry.MaxBackoff = time.Hour
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Send(ctx, request.NewDescriptor(http.MethodGet, server.URL))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTransportFunc(t *testing.T) {
	var got string
	var tr Transport = TransportFunc(func(ctx context.Context, d *request.Descriptor) (*Response, error) {
		got = d.URL
		return &Response{StatusCode: http.StatusNoContent}, nil
	})

	resp, err := tr.Send(context.Background(), request.NewDescriptor(http.MethodGet, "https://example.test/x"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got != "https://example.test/x" || !resp.OK() {
		t.Errorf("got url %q status %d", got, resp.StatusCode)
	}
}
