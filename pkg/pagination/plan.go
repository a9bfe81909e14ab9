package pagination

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Sternrassler/api-connector/pkg/spec"
)

// ErrInvalidCount is returned when the requested row count is not a
// positive integer.
var ErrInvalidCount = errors.New("invalid requested count")

// Plan is the page layout of one query.
type Plan struct {
	// Strategy is the effective strategy. It is none when no count was
	// requested, whatever the table declares.
	Strategy spec.Strategy

	// Sizes holds the requested size of each page.
	Sizes []int

	// PageSize is the full page size (the table's max count).
	PageSize int
}

// Pages returns the number of planned pages.
func (p Plan) Pages() int { return len(p.Sizes) }

// Offset returns the row offset of page i.
func (p Plan) Offset(i int) int { return i * p.PageSize }

// Total returns the number of rows the plan asks for.
func (p Plan) Total() int {
	total := 0
	for _, s := range p.Sizes {
		total += s
	}
	return total
}

// String returns the page sizes, e.g. "[50 50 20]".
func (p Plan) String() string {
	return fmt.Sprint(p.Sizes)
}

// NewPlan lays out the pages for a requested count. A nil count means
// the caller did not ask for a specific number of rows.
func NewPlan(cfg spec.PaginationConfig, count *int) (Plan, error) {
	full := cfg.MaxPageSize
	if full <= 0 {
		return Plan{}, fmt.Errorf("max page size must be > 0 (got %d)", full)
	}

	if count == nil {
		return Plan{Strategy: spec.StrategyNone, Sizes: []int{full}, PageSize: full}, nil
	}

	n := *count
	if n <= 0 {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}

	if cfg.Strategy == spec.StrategyNone {
		return Plan{Strategy: spec.StrategyNone, Sizes: []int{min(n, full)}, PageSize: full}, nil
	}

	pages := (n + full - 1) / full
	sizes := make([]int, pages)
	for i := range sizes {
		sizes[i] = full
	}
	if rem := n % full; rem != 0 {
		sizes[pages-1] = rem
	}

	return Plan{Strategy: cfg.Strategy, Sizes: sizes, PageSize: full}, nil
}

// parseCount converts a requested count variable into an int. Values
// coming from YAML or the command line may be any numeric type or a
// decimal string.
func parseCount(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidCount, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCount, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidCount, v)
	}
}
