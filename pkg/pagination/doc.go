// Package pagination turns one logical query into a sequence of page
// requests and merges the pages into a single table.
//
// Three strategies are supported:
//
//   - none: a single request sized min(n, max).
//   - offset: ceil(n/max) requests, page i carrying offset i*max. Pages are
//     independent, so they may be fetched by a bounded worker pool.
//   - cursor: sequential requests, page i>0 carrying the integer cursor
//     read from the last row of page i-1, minus one.
//
// Every page renders against a fresh variable context. The last page is
// sized n mod max when that is non-zero. Short pages do not end the
// query; an empty page does. Cursor pages must carry an integer cursor in
// their last row even when no page follows.
//
// Example usage:
//
//	engine := pagination.NewEngine(fetcher, pagination.DefaultConfig(), logger)
//	rows, err := engine.Run(ctx, tableSpec.Pagination, vars)
//
// Any page failure aborts the query without a partial result.
package pagination
