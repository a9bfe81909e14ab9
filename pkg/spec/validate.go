package spec

import "net/http"

var validMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Validate checks a table definition and returns the first
// ConfigurationError found, or nil.
func (t *TableSpec) Validate() error {
	if t.Name == "" {
		return configErr("", "name", "table name is required")
	}

	// Methods go on the wire as written; ParseSource upper-cases them.
	if !validMethods[t.Method] {
		return configErr(t.Name, "method", "unsupported HTTP method %q (want upper case, e.g. GET)", t.Method)
	}

	if t.URL == "" {
		return configErr(t.Name, "url", "url is required")
	}

	if err := t.validateBody(); err != nil {
		return err
	}

	if t.Authorization != nil {
		if err := t.validateAuth(); err != nil {
			return err
		}
	}

	if err := t.validatePagination(); err != nil {
		return err
	}

	return t.validateResponse()
}

func (t *TableSpec) validateBody() error {
	switch t.BodyContentType {
	case ContentTypeForm, ContentTypeJSON:
		if t.Body == nil {
			return configErr(t.Name, "body", "content type %q declared without body fields", t.BodyContentType)
		}
	case ContentTypeNone:
		if t.Body != nil {
			return configErr(t.Name, "body", "body fields declared without a content type")
		}
	default:
		// Binary and multipart bodies are not supported.
		return configErr(t.Name, "body.ctype", "unsupported body content type %q", t.BodyContentType)
	}
	return nil
}

func (t *TableSpec) validateAuth() error {
	a := t.Authorization
	switch a.Type {
	case AuthBearer, AuthBasic:
	case AuthAPIKey:
		switch a.Location {
		case LocationHeader, LocationQuery, LocationCookie:
		default:
			return configErr(t.Name, "authorization.location", "unsupported api key location %q", a.Location)
		}
		if a.KeyName == "" {
			return configErr(t.Name, "authorization.key_name", "api key name is required")
		}
	case AuthJWT:
		if a.TTL < 0 {
			return configErr(t.Name, "authorization.ttl", "ttl must not be negative")
		}
	default:
		return configErr(t.Name, "authorization.type", "unsupported authorization type %q", a.Type)
	}
	return nil
}

func (t *TableSpec) validatePagination() error {
	p := t.Pagination
	if p.MaxPageSize <= 0 {
		return configErr(t.Name, "pagination.max_count", "must be > 0 (got %d)", p.MaxPageSize)
	}
	if p.PageSizeParam == "" {
		return configErr(t.Name, "pagination.count_key", "count key is required")
	}

	switch p.Strategy {
	case StrategyNone:
	case StrategyOffset:
		if p.OffsetParam == "" {
			return configErr(t.Name, "pagination.anchor_key", "offset strategy requires an anchor key")
		}
	case StrategyCursor:
		if p.CursorParam == "" {
			return configErr(t.Name, "pagination.cursor_key", "cursor strategy requires a cursor key")
		}
		if p.CursorColumn == "" {
			return configErr(t.Name, "pagination.cursor_id", "cursor strategy requires a cursor column")
		}
		if !t.Response.hasColumn(p.CursorColumn) {
			return configErr(t.Name, "pagination.cursor_id", "cursor column %q is not in the response schema", p.CursorColumn)
		}
	default:
		return configErr(t.Name, "pagination.type", "unsupported pagination strategy %q", p.Strategy)
	}
	return nil
}

func (t *TableSpec) validateResponse() error {
	r := t.Response
	if r.ContentType != ContentTypeJSON {
		return configErr(t.Name, "response.ctype", "unsupported response content type %q", r.ContentType)
	}
	if len(r.Columns) == 0 {
		return configErr(t.Name, "response.schema", "at least one column is required")
	}

	seen := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		if c.Name == "" {
			return configErr(t.Name, "response.schema", "column name is required")
		}
		if seen[c.Name] {
			return configErr(t.Name, "response.schema", "duplicate column %q", c.Name)
		}
		seen[c.Name] = true

		switch c.Type {
		case ColumnString, ColumnInt, ColumnFloat, ColumnBoolean, ColumnObject:
		default:
			return configErr(t.Name, "response.schema."+c.Name, "unsupported column type %q", c.Type)
		}
	}
	return nil
}

func (r ResponseSpec) hasColumn(name string) bool {
	for _, c := range r.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}
