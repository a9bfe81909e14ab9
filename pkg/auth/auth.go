// Package auth implements the authorization schemes a table can declare.
//
// Every scheme satisfies request.Authorizer and only touches headers,
// query parameters or cookies. Secrets come from the per-query credentials.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/api-connector/pkg/request"
	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/golang-jwt/jwt/v5"
)

// Default credential names.
const (
	CredAccessToken  = "access_token"
	CredAPIKey       = "api_key"
	CredUsername     = "username"
	CredPassword     = "password"
	CredClientID     = "client_id"
	CredClientSecret = "client_secret"
)

// DefaultJWTTTL is the lifetime of a signed token when the table sets none.
const DefaultJWTTTL = 5 * time.Minute

// ErrMissingCredential is returned when a required credential is absent.
var ErrMissingCredential = errors.New("missing credential")

func missing(scheme, key string) error {
	return fmt.Errorf("%s: %w %q", scheme, ErrMissingCredential, key)
}

// New returns the authorizer for an authorization spec.
func New(a spec.AuthSpec) (request.Authorizer, error) {
	switch a.Type {
	case spec.AuthBearer:
		return &BearerToken{CredentialKey: orDefault(a.CredentialKey, CredAccessToken)}, nil
	case spec.AuthAPIKey:
		return &APIKey{
			Location:      a.Location,
			KeyName:       a.KeyName,
			CredentialKey: orDefault(a.CredentialKey, CredAPIKey),
		}, nil
	case spec.AuthBasic:
		return &Basic{}, nil
	case spec.AuthJWT:
		ttl := a.TTL
		if ttl == 0 {
			ttl = DefaultJWTTTL
		}
		return &SignedJWT{
			Issuer:        a.Issuer,
			TTL:           ttl,
			CredentialKey: orDefault(a.CredentialKey, CredClientSecret),
		}, nil
	default:
		return nil, &spec.ConfigurationError{
			Field:  "authorization.type",
			Reason: fmt.Sprintf("unsupported authorization type %q", a.Type),
		}
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// BearerToken sets "Authorization: Bearer <token>".
type BearerToken struct {
	CredentialKey string
}

// Apply implements request.Authorizer.
func (b *BearerToken) Apply(target request.AuthTarget, creds request.Credentials) error {
	token := creds[b.CredentialKey]
	if token == "" {
		return missing("bearer", b.CredentialKey)
	}
	target.Headers["Authorization"] = "Bearer " + token
	return nil
}

// APIKey places a static key in a header, query parameter or cookie.
type APIKey struct {
	Location      spec.Location
	KeyName       string
	CredentialKey string
}

// Apply implements request.Authorizer.
func (k *APIKey) Apply(target request.AuthTarget, creds request.Credentials) error {
	key := creds[k.CredentialKey]
	if key == "" {
		return missing("api_key", k.CredentialKey)
	}

	switch k.Location {
	case spec.LocationHeader:
		target.Headers[k.KeyName] = key
	case spec.LocationQuery:
		target.Params[k.KeyName] = key
	case spec.LocationCookie:
		target.Cookies[k.KeyName] = key
	default:
		return fmt.Errorf("api_key: unsupported location %q", k.Location)
	}
	return nil
}

// Basic sets HTTP basic authentication from username and password.
type Basic struct{}

// Apply implements request.Authorizer.
func (Basic) Apply(target request.AuthTarget, creds request.Credentials) error {
	user, ok := creds[CredUsername]
	if !ok || user == "" {
		return missing("basic", CredUsername)
	}
	raw := user + ":" + creds[CredPassword]
	target.Headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	return nil
}

// SignedJWT signs a short-lived HS256 token per request and sends it as a
// bearer token. The subject is the client_id credential; the issuer falls
// back to it when unset.
type SignedJWT struct {
	Issuer        string
	TTL           time.Duration
	CredentialKey string

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Apply implements request.Authorizer.
func (s *SignedJWT) Apply(target request.AuthTarget, creds request.Credentials) error {
	secret := creds[s.CredentialKey]
	if secret == "" {
		return missing("jwt", s.CredentialKey)
	}
	clientID := creds[CredClientID]
	if clientID == "" {
		return missing("jwt", CredClientID)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	issued := now()

	claims := jwt.RegisteredClaims{
		Issuer:    orDefault(s.Issuer, clientID),
		Subject:   clientID,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(s.TTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return fmt.Errorf("jwt: sign token: %w", err)
	}
	target.Headers["Authorization"] = "Bearer " + signed
	return nil
}
