// Package spec defines the declarative description of an HTTP data source:
// its tables, how requests for them are shaped, how they paginate and how
// their responses map to columns.
//
// Specs are read-only to the rest of the module. Use Validate (or
// ParseSource, which validates) before handing a TableSpec to the
// request builder or the pagination engine.
package spec

import "time"

// Strategy selects the pagination protocol of a table.
type Strategy string

const (
	// StrategyNone fetches a single page.
	StrategyNone Strategy = "none"

	// StrategyOffset computes each page's offset from the page index.
	StrategyOffset Strategy = "offset"

	// StrategyCursor derives each page's cursor from the previous page's last row.
	StrategyCursor Strategy = "cursor"
)

// ContentType is the encoding of a request body.
type ContentType string

const (
	// ContentTypeNone means the request carries no body.
	ContentTypeNone ContentType = ""

	// ContentTypeForm encodes the body as application/x-www-form-urlencoded.
	ContentTypeForm ContentType = "application/x-www-form-urlencoded"

	// ContentTypeJSON encodes the body as a JSON object.
	ContentTypeJSON ContentType = "application/json"
)

// AuthType selects an authorization scheme.
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api_key"
	AuthBasic  AuthType = "basic"
	AuthJWT    AuthType = "jwt"
)

// Location says where an API key is placed on the request.
type Location string

const (
	LocationHeader Location = "header"
	LocationQuery  Location = "query"
	LocationCookie Location = "cookie"
)

// ColumnType is the declared type of a response column.
type ColumnType string

const (
	ColumnString  ColumnType = "string"
	ColumnInt     ColumnType = "int"
	ColumnFloat   ColumnType = "float"
	ColumnBoolean ColumnType = "boolean"
	ColumnObject  ColumnType = "object"
)

// Fields is a TemplateField group: field name to template expression.
// A boolean value marks the field as required (true) or optional (false)
// and is documentation only.
type Fields map[string]any

// PaginationConfig describes how a table is paged.
type PaginationConfig struct {
	// Strategy is the pagination protocol.
	Strategy Strategy `yaml:"type"`

	// PageSizeParam is the variable that carries the page size
	// (the count key). The caller-facing "returned_number" is renamed to it.
	PageSizeParam string `yaml:"count_key"`

	// MaxPageSize bounds the rows requested by any single page.
	MaxPageSize int `yaml:"max_count"`

	// CursorParam is the variable that carries the cursor (cursor strategy).
	CursorParam string `yaml:"cursor_key,omitempty"`

	// CursorColumn is the response column read from the last row of a page
	// to build the next cursor (cursor strategy).
	CursorColumn string `yaml:"cursor_id,omitempty"`

	// OffsetParam is the variable that carries the row offset (offset strategy).
	OffsetParam string `yaml:"anchor_key,omitempty"`
}

// AuthSpec declares the authorization scheme of a table.
type AuthSpec struct {
	Type AuthType `yaml:"type"`

	// Location and KeyName place an API key.
	Location Location `yaml:"location,omitempty"`
	KeyName  string   `yaml:"key_name,omitempty"`

	// CredentialKey names the credential that holds the secret material.
	// Each scheme has its own default.
	CredentialKey string `yaml:"credential_key,omitempty"`

	// Issuer and TTL configure signed JWTs.
	Issuer string        `yaml:"issuer,omitempty"`
	TTL    time.Duration `yaml:"ttl,omitempty"`
}

// Column maps one response field to a typed output column.
type Column struct {
	Name string     `yaml:"name"`
	Path string     `yaml:"target"`
	Type ColumnType `yaml:"type"`
}

// ResponseSpec describes how to turn a response body into rows.
type ResponseSpec struct {
	ContentType ContentType `yaml:"ctype"`

	// TablePath locates the array of records in the body. Empty means the
	// body itself is the array.
	TablePath string `yaml:"table_path"`

	// Columns are ordered; the order is the column order of the result.
	Columns []Column `yaml:"schema"`
}

// ColumnNames returns the column names in declaration order.
func (r ResponseSpec) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// TableSpec is the immutable definition of a single table.
type TableSpec struct {
	Name   string
	Method string
	URL    string

	Headers Fields
	Params  Fields
	Cookies Fields
	Body    Fields

	BodyContentType ContentType

	Authorization *AuthSpec

	Pagination PaginationConfig
	Response   ResponseSpec
}

// HasBody reports whether the table declares a body field group.
func (t *TableSpec) HasBody() bool {
	return t.Body != nil
}
