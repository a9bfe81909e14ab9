// Package testutil provides a mock paginated API and transport doubles
// for connector tests.
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/api-connector/pkg/request"
	"github.com/Sternrassler/api-connector/pkg/transport"
)

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request seen by the mock server.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Cookies map[string]string
	Body    string
}

// Item is one record of a mock collection.
type Item map[string]any

// Items returns n records with descending ids n..1, the order most
// cursor APIs use (newest first).
func Items(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		id := n - i
		items[i] = Item{"id": id, "name": "item-" + strconv.Itoa(id), "score": float64(id) / 2}
	}
	return items
}

// Collection configures a paginated collection endpoint.
type Collection struct {
	Items []Item

	// LimitParam is the query parameter carrying the page size.
	LimitParam string
	// OffsetParam enables offset paging when set.
	OffsetParam string
	// CursorParam enables max-id cursor paging when set: only items with
	// id <= cursor are returned.
	CursorParam string
	// Envelope wraps the records under this key when set, e.g. "data".
	Envelope string
	// Headers are sent with every page.
	Headers map[string]string
}

// MockAPI is a configurable mock HTTP API.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockAPI starts a mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cookies := make(map[string]string)
		for _, c := range r.Cookies() {
			cookies[c.Name] = c.Value
		}

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Header:  r.Header.Clone(),
			Cookies: cookies,
			Body:    string(body),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if !exists {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears the recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// Requests returns the recorded requests in arrival order.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// SetHandler sets a custom handler for a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCollection serves c at path with offset or cursor paging.
func (m *MockAPI) SetCollection(path string, c Collection) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		items := c.Items
		if c.CursorParam != "" && q.Get(c.CursorParam) != "" {
			maxID, err := strconv.Atoi(q.Get(c.CursorParam))
			if err != nil {
				http.Error(w, `{"error":"bad cursor"}`, http.StatusBadRequest)
				return
			}
			start := len(items)
			for i, it := range items {
				if it["id"].(int) <= maxID {
					start = i
					break
				}
			}
			items = items[start:]
		}

		if c.OffsetParam != "" && q.Get(c.OffsetParam) != "" {
			offset, err := strconv.Atoi(q.Get(c.OffsetParam))
			if err != nil || offset < 0 {
				http.Error(w, `{"error":"bad offset"}`, http.StatusBadRequest)
				return
			}
			items = items[min(offset, len(items)):]
		}

		if c.LimitParam != "" && q.Get(c.LimitParam) != "" {
			limit, err := strconv.Atoi(q.Get(c.LimitParam))
			if err != nil || limit < 0 {
				http.Error(w, `{"error":"bad limit"}`, http.StatusBadRequest)
				return
			}
			items = items[:min(limit, len(items))]
		}

		var payload any = items
		if c.Envelope != "" {
			payload = map[string]any{c.Envelope: items, "count": len(items)}
		}

		for key, value := range c.Headers {
			w.Header().Set(key, value)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	})
}

// RecordingTransport records every descriptor before delegating to Next.
type RecordingTransport struct {
	Next transport.Transport

	mu    sync.Mutex
	sends []*request.Descriptor
}

// Send implements transport.Transport.
func (r *RecordingTransport) Send(ctx context.Context, d *request.Descriptor) (*transport.Response, error) {
	r.mu.Lock()
	r.sends = append(r.sends, d)
	r.mu.Unlock()
	return r.Next.Send(ctx, d)
}

// Sent returns the recorded descriptors in send order.
func (r *RecordingTransport) Sent() []*request.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*request.Descriptor(nil), r.sends...)
}

// StaticTransport answers every request with the same response.
func StaticTransport(status int, body string) transport.Transport {
	return transport.TransportFunc(func(ctx context.Context, d *request.Descriptor) (*transport.Response, error) {
		return &transport.Response{StatusCode: status, Header: http.Header{}, Body: []byte(body)}, nil
	})
}
