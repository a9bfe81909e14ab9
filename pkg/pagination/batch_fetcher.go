package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/table"
	"github.com/Sternrassler/api-connector/pkg/template"
)

// Config holds engine configuration.
type Config struct {
	// MaxConcurrency is the maximum number of pages fetched in parallel.
	// Only the offset strategy fetches in parallel; 1 keeps every query
	// sequential.
	MaxConcurrency int

	// PageTimeout bounds a single page fetch. Zero means no extra bound
	// beyond the caller's context.
	PageTimeout time.Duration
}

// DefaultConfig returns a sequential configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
		PageTimeout:    0,
	}
}

// pageResult is the outcome of one page in a parallel fetch.
type pageResult struct {
	index int
	rows  *table.Table
	err   error
}

// runParallel fetches offset pages with a worker pool. Results are merged
// in page order and the merge stops at the first empty page. The first
// error cancels the remaining workers.
func (e *Engine) runParallel(ctx context.Context, cfg spec.PaginationConfig, plan Plan, base template.Vars) (*table.Table, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := min(e.config.MaxConcurrency, plan.Pages())

	pageQueue := make(chan int, plan.Pages())
	for i := range plan.Sizes {
		pageQueue <- i
	}
	close(pageQueue)

	results := make(chan pageResult, plan.Pages())

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go e.worker(ctx, cfg, plan, base, pageQueue, results, &wg, id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	pages := make([]*table.Table, plan.Pages())
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		pages[r.index] = r.rows
	}
	if firstErr != nil {
		return nil, firstErr
	}

	result := &table.Table{}
	for i, rows := range pages {
		if rows == nil {
			// Cancelled before this page ran; only possible on error.
			return nil, ctx.Err()
		}
		if rows.Len() == 0 {
			e.logger.Debug().
				Int("page", i).
				Int("fetched_pages", plan.Pages()).
				Msg("Empty page, discarding later pages")
			break
		}
		result.Append(rows)
	}

	return result, nil
}

// worker processes pages from the queue.
func (e *Engine) worker(ctx context.Context, cfg spec.PaginationConfig, plan Plan, base template.Vars, pageQueue <-chan int, results chan<- pageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for i := range pageQueue {
		select {
		case <-ctx.Done():
			e.logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		page := Page{Index: i, Size: plan.Sizes[i], Vars: pageVars(cfg, plan, i, base)}
		rows, err := e.fetch(ctx, plan.Strategy, page)
		results <- pageResult{index: i, rows: rows, err: err}
		if err != nil {
			return
		}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		e.logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
