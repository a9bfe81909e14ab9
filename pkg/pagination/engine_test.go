package pagination

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/table"
	"github.com/Sternrassler/api-connector/pkg/template"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder serves pages from a virtual dataset of `total` rows with ids
// counting down from `total` (newest first, as cursor APIs usually do).
type recorder struct {
	mu    sync.Mutex
	total int
	cfg   spec.PaginationConfig
	pages []Page

	// fail makes the given page index return an error.
	fail map[int]error
	// extra appends rows past the requested size.
	extra int
	// percent serves only this share of each requested page when set.
	percent int
}

func (r *recorder) FetchPage(ctx context.Context, page Page) (*table.Table, error) {
	r.mu.Lock()
	r.pages = append(r.pages, page)
	r.mu.Unlock()

	if err, ok := r.fail[page.Index]; ok {
		return nil, err
	}

	start := 0
	if v, ok := page.Vars.Get(r.cfg.OffsetParam); ok {
		start = v.(int)
	}
	if v, ok := page.Vars.Get(r.cfg.CursorParam); ok {
		// Rows with id <= cursor; ids are total..1 so row index is total-id.
		start = r.total - int(v.(int64))
	}

	v, _ := page.Vars.Get(r.cfg.PageSizeParam)
	size := v.(int)
	if r.percent > 0 {
		size = size * r.percent / 100
	}
	out := table.New([]string{"id"})
	for i := start; i < start+size+r.extra && i < r.total; i++ {
		out.Rows = append(out.Rows, table.Row{"id": int64(r.total - i)})
	}
	return out, nil
}

func (r *recorder) sorted() []Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	pages := append([]Page(nil), r.pages...)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages
}

func offsetConfig(max int) spec.PaginationConfig {
	return spec.PaginationConfig{
		Strategy:      spec.StrategyOffset,
		PageSizeParam: "limit",
		MaxPageSize:   max,
		OffsetParam:   "offset",
	}
}

func cursorConfig(max int) spec.PaginationConfig {
	return spec.PaginationConfig{
		Strategy:      spec.StrategyCursor,
		PageSizeParam: "count",
		MaxPageSize:   max,
		CursorParam:   "max_id",
		CursorColumn:  "id",
	}
}

func run(t *testing.T, cfg spec.PaginationConfig, rec *recorder, vars map[string]any, concurrency int) (*table.Table, error) {
	t.Helper()
	rec.cfg = cfg
	engine := NewEngine(rec, Config{MaxConcurrency: concurrency}, zerolog.Nop())
	return engine.Run(context.Background(), cfg, template.NewVars(vars))
}

func TestEngine_Offset_EndToEndPlan(t *testing.T) {
	rec := &recorder{total: 1000}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 120}, 1)
	require.NoError(t, err)

	require.Len(t, rec.pages, 3)
	var sizes, offsets []any
	for _, p := range rec.pages {
		s, _ := p.Vars.Get("limit")
		o, _ := p.Vars.Get("offset")
		sizes = append(sizes, s)
		offsets = append(offsets, o)
	}
	assert.Equal(t, []any{50, 50, 20}, sizes)
	assert.Equal(t, []any{0, 50, 100}, offsets)

	require.Equal(t, 120, result.Len())
	for i, row := range result.Rows {
		assert.Equal(t, int64(1000-i), row["id"], "row %d out of order", i)
	}
}

func TestEngine_Offset_NonIntegerMultiple(t *testing.T) {
	rec := &recorder{total: 1000}
	_, err := run(t, offsetConfig(40), rec, map[string]any{"limit": 100}, 1)
	require.NoError(t, err)

	require.Len(t, rec.pages, 3)
	last, _ := rec.pages[2].Vars.Get("limit")
	assert.Equal(t, 20, last)
	offset, _ := rec.pages[2].Vars.Get("offset")
	assert.Equal(t, 80, offset)
}

func TestEngine_Offset_ExactMultiple(t *testing.T) {
	rec := &recorder{total: 1000}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 100}, 1)
	require.NoError(t, err)

	require.Len(t, rec.pages, 2)
	last, _ := rec.pages[1].Vars.Get("limit")
	assert.Equal(t, 50, last)
	assert.Equal(t, 100, result.Len())
}

func TestEngine_Offset_Parallel(t *testing.T) {
	rec := &recorder{total: 1000}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 420}, 4)
	require.NoError(t, err)

	pages := rec.sorted()
	require.Len(t, pages, 9)
	for i, p := range pages {
		o, _ := p.Vars.Get("offset")
		assert.Equal(t, i*50, o)
	}

	require.Equal(t, 420, result.Len())
	for i, row := range result.Rows {
		assert.Equal(t, int64(1000-i), row["id"])
	}
}

func TestEngine_Offset_ParallelShortPage(t *testing.T) {
	rec := &recorder{total: 70}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 200}, 4)
	require.NoError(t, err)
	assert.Equal(t, 70, result.Len())
}

func TestEngine_Offset_ParallelShortPagesContinue(t *testing.T) {
	rec := &recorder{total: 1000, percent: 90}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 150}, 3)
	require.NoError(t, err)

	assert.Len(t, rec.sorted(), 3)
	assert.Equal(t, 135, result.Len())
}

func TestEngine_Offset_ParallelError(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{total: 1000, fail: map[int]error{2: boom}}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 300}, 3)

	require.ErrorIs(t, err, boom)
	assert.Nil(t, result)
	var pe *PageError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Page)
}

func TestEngine_Cursor(t *testing.T) {
	rec := &recorder{total: 1000}
	result, err := run(t, cursorConfig(100), rec, map[string]any{"count": 250}, 1)
	require.NoError(t, err)

	require.Len(t, rec.pages, 3)
	assert.False(t, rec.pages[0].Vars.Has("max_id"), "page 0 must not carry a cursor")

	// Page 0 ends at id 901, so page 1 asks for max_id 900.
	c1, _ := rec.pages[1].Vars.Get("max_id")
	assert.Equal(t, int64(900), c1)
	c2, _ := rec.pages[2].Vars.Get("max_id")
	assert.Equal(t, int64(800), c2)

	size, _ := rec.pages[2].Vars.Get("count")
	assert.Equal(t, 50, size)

	require.Equal(t, 250, result.Len())
	for i, row := range result.Rows {
		assert.Equal(t, int64(1000-i), row["id"])
	}
}

func TestEngine_Cursor_ShortPagesContinue(t *testing.T) {
	// Search APIs often return fewer rows than asked while holding more.
	rec := &recorder{total: 1000, percent: 90}
	result, err := run(t, cursorConfig(100), rec, map[string]any{"count": 250}, 1)
	require.NoError(t, err)

	require.Len(t, rec.pages, 3)
	c1, _ := rec.pages[1].Vars.Get("max_id")
	assert.Equal(t, int64(910), c1)
	c2, _ := rec.pages[2].Vars.Get("max_id")
	assert.Equal(t, int64(820), c2)

	require.Equal(t, 90+90+45, result.Len())
	for i, row := range result.Rows {
		assert.Equal(t, int64(1000-i), row["id"])
	}
}

func TestEngine_Cursor_IgnoresConcurrency(t *testing.T) {
	rec := &recorder{total: 1000}
	_, err := run(t, cursorConfig(100), rec, map[string]any{"count": 300}, 8)
	require.NoError(t, err)

	require.Len(t, rec.pages, 3)
	for i, p := range rec.pages {
		assert.Equal(t, i, p.Index, "cursor pages must be fetched in order")
	}
}

func TestEngine_Cursor_MissingColumn(t *testing.T) {
	cfg := cursorConfig(10)
	fetcher := PageFetcherFunc(func(ctx context.Context, page Page) (*table.Table, error) {
		out := table.New([]string{"id", "name"})
		for i := 0; i < 10; i++ {
			out.Rows = append(out.Rows, table.Row{"name": "x"})
		}
		return out, nil
	})

	engine := NewEngine(fetcher, DefaultConfig(), zerolog.Nop())
	_, err := engine.Run(context.Background(), cfg, template.NewVars(map[string]any{"count": 30}))

	require.ErrorIs(t, err, ErrCursor)
	var ce *CursorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.Page)
	assert.Equal(t, "id", ce.Column)
}

func TestEngine_Cursor_LastPageValidated(t *testing.T) {
	// A single planned page still has to carry its cursor column.
	cfg := cursorConfig(100)
	calls := 0
	fetcher := PageFetcherFunc(func(ctx context.Context, page Page) (*table.Table, error) {
		calls++
		out := table.New([]string{"name"})
		for i := 0; i < 30; i++ {
			out.Rows = append(out.Rows, table.Row{"name": "x"})
		}
		return out, nil
	})

	engine := NewEngine(fetcher, DefaultConfig(), zerolog.Nop())
	result, err := engine.Run(context.Background(), cfg, template.NewVars(map[string]any{"count": 30}))

	require.ErrorIs(t, err, ErrCursor)
	assert.Nil(t, result)
	assert.Equal(t, 1, calls)
}

func TestEngine_Cursor_EmptyPageStops(t *testing.T) {
	rec := &recorder{total: 150}
	result, err := run(t, cursorConfig(100), rec, map[string]any{"count": 400}, 1)
	require.NoError(t, err)

	assert.Len(t, rec.pages, 3, "third page is empty")
	assert.Equal(t, 150, result.Len())
}

func TestEngine_Cursor_NonIntegerValue(t *testing.T) {
	cfg := cursorConfig(1)
	fetcher := PageFetcherFunc(func(ctx context.Context, page Page) (*table.Table, error) {
		out := table.New([]string{"id"})
		out.Rows = append(out.Rows, table.Row{"id": "abc"})
		return out, nil
	})

	engine := NewEngine(fetcher, DefaultConfig(), zerolog.Nop())
	_, err := engine.Run(context.Background(), cfg, template.NewVars(map[string]any{"count": 2}))

	var ce *CursorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "abc", ce.Value)
}

func TestEngine_None_SingleRequest(t *testing.T) {
	cfg := spec.PaginationConfig{Strategy: spec.StrategyNone, PageSizeParam: "limit", MaxPageSize: 50}

	for _, count := range []any{nil, 10, 120} {
		rec := &recorder{total: 1000}
		vars := map[string]any{}
		if count != nil {
			vars["limit"] = count
		}
		_, err := run(t, cfg, rec, vars, 4)
		require.NoError(t, err)
		assert.Len(t, rec.pages, 1, "count %v", count)
	}
}

func TestEngine_NoCount(t *testing.T) {
	rec := &recorder{total: 1000}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"q": "go"}, 1)
	require.NoError(t, err)

	require.Len(t, rec.pages, 1)
	size, _ := rec.pages[0].Vars.Get("limit")
	assert.Equal(t, 50, size)
	assert.False(t, rec.pages[0].Vars.Has("offset"))
	assert.Equal(t, 50, result.Len())
}

func TestEngine_CountBelowMax(t *testing.T) {
	tests := []struct {
		name      string
		cfg       spec.PaginationConfig
		offsetKey string
	}{
		{"offset", offsetConfig(50), "offset"},
		{"cursor", cursorConfig(50), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{total: 1000}
			_, err := run(t, tt.cfg, rec, map[string]any{tt.cfg.PageSizeParam: 30}, 1)
			require.NoError(t, err)

			require.Len(t, rec.pages, 1)
			size, _ := rec.pages[0].Vars.Get(tt.cfg.PageSizeParam)
			assert.Equal(t, 30, size)
			assert.False(t, rec.pages[0].Vars.Has("max_id"))
			if tt.offsetKey != "" {
				off, _ := rec.pages[0].Vars.Get(tt.offsetKey)
				assert.Equal(t, 0, off)
			}
		})
	}
}

func TestEngine_EmptyPageStops(t *testing.T) {
	rec := &recorder{total: 60}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 200}, 1)
	require.NoError(t, err)

	// Page 1 is short (10 rows) but only the empty page 2 ends the query.
	assert.Len(t, rec.pages, 3)
	assert.Equal(t, 60, result.Len())
}

func TestEngine_LongPageTrimmed(t *testing.T) {
	rec := &recorder{total: 1000, extra: 5}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 70}, 1)
	require.NoError(t, err)
	assert.Equal(t, 70, result.Len())
}

func TestEngine_PageErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{total: 1000, fail: map[int]error{1: boom}}
	result, err := run(t, offsetConfig(50), rec, map[string]any{"limit": 150}, 1)

	require.ErrorIs(t, err, boom)
	assert.Nil(t, result)
	assert.Len(t, rec.pages, 2, "no pages after the failing one")
}

func TestEngine_InvalidCount(t *testing.T) {
	for _, count := range []any{0, -5, "many", 2.5, []int{1}} {
		rec := &recorder{total: 10}
		_, err := run(t, offsetConfig(50), rec, map[string]any{"limit": count}, 1)
		assert.ErrorIs(t, err, ErrInvalidCount, "count %v", count)
		assert.Empty(t, rec.pages)
	}
}

func TestEngine_FreshVarsPerPage(t *testing.T) {
	rec := &recorder{total: 1000}
	base := map[string]any{"limit": 100, "q": "go"}
	_, err := run(t, offsetConfig(50), rec, base, 1)
	require.NoError(t, err)

	// Caller map is untouched and vars keep only their own page's values.
	assert.Equal(t, map[string]any{"limit": 100, "q": "go"}, base)
	o0, _ := rec.pages[0].Vars.Get("offset")
	o1, _ := rec.pages[1].Vars.Get("offset")
	assert.Equal(t, 0, o0)
	assert.Equal(t, 50, o1)
}

func TestEngine_ContextCancelled(t *testing.T) {
	rec := &recorder{total: 1000}
	rec.cfg = offsetConfig(50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(rec, DefaultConfig(), zerolog.Nop())
	_, err := engine.Run(ctx, rec.cfg, template.NewVars(map[string]any{"limit": 100}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.pages)
}
