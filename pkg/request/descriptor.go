// Package request builds single-use request descriptors from a table
// definition, credentials and a variable context.
package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/Sternrassler/api-connector/pkg/spec"
)

// Descriptor is a fully rendered request for one page. It is built fresh
// for every page and never reused.
type Descriptor struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  map[string]string
	Cookies map[string]string

	// Body is nil when the request has no body. Encoder tags how it is
	// serialized.
	Body    map[string]string
	Encoder BodyEncoder
}

// NewDescriptor returns an empty descriptor seeded with method and URL.
func NewDescriptor(method, rawURL string) *Descriptor {
	return &Descriptor{
		Method:  method,
		URL:     rawURL,
		Headers: make(map[string]string),
		Params:  make(map[string]string),
		Cookies: make(map[string]string),
	}
}

// AuthTarget exposes the parts of a descriptor an Authorizer may change.
// The maps alias the descriptor's own maps.
type AuthTarget struct {
	Headers map[string]string
	Params  map[string]string
	Cookies map[string]string
}

func (d *Descriptor) authTarget() AuthTarget {
	return AuthTarget{
		Headers: d.Headers,
		Params:  d.Params,
		Cookies: d.Cookies,
	}
}

// HTTPRequest converts the descriptor into an *http.Request. Params are
// merged into any query string already present in the URL.
func (d *Descriptor) HTTPRequest(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", d.URL, err)
	}

	if len(d.Params) > 0 {
		q := u.Query()
		for k, v := range d.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if d.Body != nil {
		if d.Encoder == nil {
			return nil, &spec.ConfigurationError{Field: "body", Reason: "body without encoder"}
		}
		body, err = d.Encoder.Encode(d.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if d.Body != nil {
		req.Header.Set("Content-Type", d.Encoder.ContentType())
	}

	// Sorted for a stable Cookie header.
	names := make([]string, 0, len(d.Cookies))
	for name := range d.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		req.AddCookie(&http.Cookie{Name: name, Value: d.Cookies[name]})
	}

	return req, nil
}
