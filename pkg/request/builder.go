package request

import (
	"fmt"

	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/template"
)

// Credentials are the secrets handed to an Authorizer, keyed by name
// (for example "access_token", "client_secret").
type Credentials map[string]string

// Authorizer adds authentication material to a request. Implementations
// may only change headers, params and cookies.
type Authorizer interface {
	Apply(target AuthTarget, creds Credentials) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(target AuthTarget, creds Credentials) error

// Apply implements Authorizer.
func (f AuthorizerFunc) Apply(target AuthTarget, creds Credentials) error {
	return f(target, creds)
}

// Build assembles the descriptor of one page request.
//
// The authorizer runs first, then headers, params and cookies are rendered
// and merged in that order; a rendered value replaces an existing key.
// The body, if any, is rendered last and tagged with its encoder.
func Build(table *spec.TableSpec, authz Authorizer, creds Credentials, vars template.Vars) (*Descriptor, error) {
	rawURL := table.URL
	if template.IsTemplated(rawURL) {
		rendered, err := template.RenderString("url", rawURL, vars)
		if err != nil {
			return nil, err
		}
		rawURL = rendered
	}

	d := NewDescriptor(table.Method, rawURL)

	if table.Authorization != nil {
		if authz == nil {
			return nil, &spec.ConfigurationError{
				Table:  table.Name,
				Field:  "authorization",
				Reason: "no authorizer for " + string(table.Authorization.Type),
			}
		}
		if err := authz.Apply(d.authTarget(), creds); err != nil {
			return nil, fmt.Errorf("authorize %s: %w", table.Name, err)
		}
	}

	groups := []struct {
		name   string
		fields spec.Fields
		dst    map[string]string
	}{
		{"headers", table.Headers, d.Headers},
		{"params", table.Params, d.Params},
		{"cookies", table.Cookies, d.Cookies},
	}
	for _, g := range groups {
		if g.fields == nil {
			continue
		}
		rendered, err := template.Render(g.name, g.fields, vars)
		if err != nil {
			return nil, err
		}
		for k, v := range rendered {
			g.dst[k] = v
		}
	}

	if table.Body != nil {
		enc, err := EncoderFor(table.Name, table.BodyContentType)
		if err != nil {
			return nil, err
		}
		body, err := template.Render("body", table.Body, vars)
		if err != nil {
			return nil, err
		}
		d.Body = body
		d.Encoder = enc
	}

	return d, nil
}
