package pagination

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/table"
	"github.com/Sternrassler/api-connector/pkg/template"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiconn_pages_fetched_total",
		Help: "Total pages fetched by pagination strategy",
	}, []string{"strategy"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apiconn_query_duration_seconds",
		Help:    "Duration of a paginated query by strategy",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"strategy"})
)

// Page is one planned request.
type Page struct {
	// Index is the 0-based page number.
	Index int

	// Size is the number of rows requested by this page.
	Size int

	// Vars is the variable context the page renders against.
	Vars template.Vars
}

// PageFetcher fetches and decodes a single page.
type PageFetcher interface {
	FetchPage(ctx context.Context, page Page) (*table.Table, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page Page) (*table.Table, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, page Page) (*table.Table, error) {
	return f(ctx, page)
}

// Engine drives the pages of one query.
type Engine struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewEngine creates an engine.
func NewEngine(fetcher PageFetcher, config Config, logger zerolog.Logger) *Engine {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	return &Engine{
		fetcher: fetcher,
		config:  config,
		logger:  logger.With().Str("component", "pagination").Logger(),
	}
}

// Run fetches every page of the query and merges the rows in page order.
// The requested row count is read from the page size variable of cfg;
// when it is absent a single full page is fetched.
func (e *Engine) Run(ctx context.Context, cfg spec.PaginationConfig, vars template.Vars) (*table.Table, error) {
	start := time.Now()

	var count *int
	if v, ok := vars.Get(cfg.PageSizeParam); ok {
		n, err := parseCount(v)
		if err != nil {
			return nil, err
		}
		count = &n
	}

	plan, err := NewPlan(cfg, count)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("strategy", string(plan.Strategy)).
		Int("pages", plan.Pages()).
		Int("rows", plan.Total()).
		Msg("Planned query")

	var result *table.Table
	if plan.Strategy == spec.StrategyOffset && e.config.MaxConcurrency > 1 && plan.Pages() > 1 {
		result, err = e.runParallel(ctx, cfg, plan, vars)
	} else {
		result, err = e.runSequential(ctx, cfg, plan, vars)
	}
	if err != nil {
		return nil, err
	}

	queryDuration.WithLabelValues(string(plan.Strategy)).Observe(time.Since(start).Seconds())
	e.logger.Info().
		Str("strategy", string(plan.Strategy)).
		Int("rows", result.Len()).
		Dur("duration", time.Since(start)).
		Msg("Query complete")

	return result, nil
}

func (e *Engine) runSequential(ctx context.Context, cfg spec.PaginationConfig, plan Plan, base template.Vars) (*table.Table, error) {
	var (
		result = &table.Table{}
		cursor int64
	)

	for i, size := range plan.Sizes {
		vars := pageVars(cfg, plan, i, base)
		if plan.Strategy == spec.StrategyCursor && i > 0 {
			vars = vars.With(cfg.CursorParam, cursor-1)
		}

		rows, err := e.fetch(ctx, plan.Strategy, Page{Index: i, Size: size, Vars: vars})
		if err != nil {
			return nil, err
		}
		result.Append(rows)

		if rows.Len() == 0 {
			e.logger.Debug().
				Int("page", i).
				Int("page_size", size).
				Msg("Empty page, source exhausted")
			break
		}

		if plan.Strategy == spec.StrategyCursor {
			cursor, err = cursorValue(i, cfg.CursorColumn, rows.Last())
			if err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

// fetch runs one page and trims it to its requested size.
func (e *Engine) fetch(ctx context.Context, strategy spec.Strategy, page Page) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageCtx := ctx
	if e.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(ctx, e.config.PageTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.fetcher.FetchPage(pageCtx, page)
	if err != nil {
		return nil, &PageError{Page: page.Index, Err: err}
	}
	if rows == nil {
		rows = &table.Table{}
	}
	rows.Truncate(page.Size)

	pagesFetchedTotal.WithLabelValues(string(strategy)).Inc()
	e.logger.Debug().
		Int("page", page.Index).
		Int("page_size", page.Size).
		Int("rows", rows.Len()).
		Dur("duration", time.Since(start)).
		Msg("Fetched page")

	return rows, nil
}

// pageVars derives the variables of page i from the base context.
func pageVars(cfg spec.PaginationConfig, plan Plan, i int, base template.Vars) template.Vars {
	vars := base.With(cfg.PageSizeParam, plan.Sizes[i])
	if plan.Strategy == spec.StrategyOffset {
		vars = vars.With(cfg.OffsetParam, plan.Offset(i))
	}
	return vars
}

// cursorValue reads the integer cursor of a page's last row.
func cursorValue(page int, column string, last table.Row) (int64, error) {
	if last == nil {
		return 0, &CursorError{Page: page, Column: column}
	}
	v, ok := last[column]
	if !ok || v == nil {
		return 0, &CursorError{Page: page, Column: column}
	}

	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int64(n), nil
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, nil
		}
	}
	return 0, &CursorError{Page: page, Column: column, Value: v}
}
