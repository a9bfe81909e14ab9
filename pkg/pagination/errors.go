package pagination

import (
	"errors"
	"fmt"
)

// ErrCursor is matched by every CursorError.
var ErrCursor = errors.New("invalid cursor")

// CursorError reports a page whose last row has no usable cursor value.
type CursorError struct {
	Page   int
	Column string
	Value  any
}

func (e *CursorError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("page %d: cursor column %q missing from last row", e.Page, e.Column)
	}
	return fmt.Sprintf("page %d: cursor column %q has non-integer value %v (%T)", e.Page, e.Column, e.Value, e.Value)
}

// Is makes errors.Is(err, ErrCursor) match.
func (e *CursorError) Is(target error) bool {
	return target == ErrCursor
}

// PageError wraps the failure of a single page.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
