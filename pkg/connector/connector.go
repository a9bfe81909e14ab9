// Package connector turns a declarative source definition into tables.
//
// A Connector looks up the table, merges its default variables with the
// call's parameters, resolves the authorizer and runs the pagination
// engine over a Transport and a Decoder. All network access goes through
// the injected Transport, so connectors can share one HTTP client or use
// a test double.
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/api-connector/pkg/auth"
	"github.com/Sternrassler/api-connector/pkg/decode"
	"github.com/Sternrassler/api-connector/pkg/pagination"
	"github.com/Sternrassler/api-connector/pkg/request"
	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/table"
	"github.com/Sternrassler/api-connector/pkg/template"
	"github.com/Sternrassler/api-connector/pkg/transport"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReturnedNumber is the caller-facing name of the requested row count.
// It is renamed to the table's page size parameter before rendering.
const ReturnedNumber = "returned_number"

// DefaultUserAgent is used when no Transport is injected.
const DefaultUserAgent = "api-connector/1.0"

var (
	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_rows_total",
		Help: "Total rows returned by table",
	}, []string{"table"})

	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_queries_total",
		Help: "Total queries by table and outcome",
	}, []string{"table", "outcome"})
)

// Connector queries the tables of one source.
type Connector struct {
	provider   spec.Provider
	transport  transport.Transport
	decoder    decode.Decoder
	vars       template.Vars
	creds      request.Credentials
	pagination pagination.Config
	logger     zerolog.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithTransport sets the transport. The default is an HTTPTransport with
// DefaultUserAgent.
func WithTransport(t transport.Transport) Option {
	return func(c *Connector) { c.transport = t }
}

// WithDecoder sets the response decoder. The default decodes JSON.
func WithDecoder(d decode.Decoder) Option {
	return func(c *Connector) { c.decoder = d }
}

// WithVars sets default variables available to every query.
func WithVars(vars map[string]any) Option {
	return func(c *Connector) { c.vars = template.NewVars(vars) }
}

// WithCredentials sets the default credentials.
func WithCredentials(creds request.Credentials) Option {
	return func(c *Connector) { c.creds = creds }
}

// WithLogger sets the base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Connector) { c.logger = l }
}

// WithPagination sets the pagination engine configuration.
func WithPagination(cfg pagination.Config) Option {
	return func(c *Connector) { c.pagination = cfg }
}

// New creates a Connector for provider.
func New(provider spec.Provider, opts ...Option) (*Connector, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	c := &Connector{
		provider:   provider,
		decoder:    decode.JSON{},
		vars:       template.NewVars(nil),
		pagination: pagination.DefaultConfig(),
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		t, err := transport.New(transport.DefaultConfig(DefaultUserAgent))
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		c.transport = t
	}

	c.logger = c.logger.With().
		Str("component", "connector").
		Str("source", provider.Name()).
		Logger()

	return c, nil
}

// TableNames returns the tables of the source.
func (c *Connector) TableNames() []string {
	return c.provider.TableNames()
}

// Table returns the definition of a table.
func (c *Connector) Table(name string) (*spec.TableSpec, error) {
	t, ok := c.provider.Table(name)
	if !ok {
		return nil, &UnknownTableError{Table: name, Source: c.provider.Name()}
	}
	return t, nil
}

// queryOptions holds per-call overrides.
type queryOptions struct {
	creds       request.Credentials
	concurrency int
}

// QueryOption configures a single Query call.
type QueryOption func(*queryOptions)

// WithAuth replaces the connector's credentials for one query.
func WithAuth(creds request.Credentials) QueryOption {
	return func(o *queryOptions) { o.creds = creds }
}

// WithConcurrency overrides the engine's MaxConcurrency for one query.
func WithConcurrency(n int) QueryOption {
	return func(o *queryOptions) { o.concurrency = n }
}

// Query fetches a table. params override the connector's default
// variables; a "returned_number" entry sets the number of rows to fetch.
func (c *Connector) Query(ctx context.Context, tableName string, params map[string]any, opts ...QueryOption) (*table.Table, error) {
	t, err := c.Table(tableName)
	if err != nil {
		return nil, err
	}

	o := queryOptions{creds: c.creds}
	for _, opt := range opts {
		opt(&o)
	}

	logger := c.logger.With().
		Str("table", tableName).
		Str("query_id", uuid.NewString()).
		Logger()

	vars := c.vars.Merge(template.NewVars(params)).Rename(ReturnedNumber, t.Pagination.PageSizeParam)

	var authz request.Authorizer
	if t.Authorization != nil {
		authz, err = auth.New(*t.Authorization)
		if err != nil {
			return nil, err
		}
	}

	cfg := c.pagination
	if o.concurrency > 0 {
		cfg.MaxConcurrency = o.concurrency
	}

	fetcher := &requestFetcher{
		table:     t,
		authz:     authz,
		creds:     o.creds,
		transport: c.transport,
		decoder:   c.decoder,
		logger:    logger,
	}

	start := time.Now()
	logger.Debug().Strs("vars", vars.Keys()).Msg("Starting query")

	result, err := pagination.NewEngine(fetcher, cfg, logger).Run(ctx, t.Pagination, vars)
	if err != nil {
		queriesTotal.WithLabelValues(tableName, "error").Inc()
		logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Query failed")
		return nil, fmt.Errorf("query %s.%s: %w", c.provider.Name(), tableName, err)
	}

	if len(result.Columns) == 0 {
		result.Columns = t.Response.ColumnNames()
	}

	queriesTotal.WithLabelValues(tableName, "ok").Inc()
	rowsTotal.WithLabelValues(tableName).Add(float64(result.Len()))

	return result, nil
}
