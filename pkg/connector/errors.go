package connector

import (
	"errors"
	"fmt"
)

// ErrUnknownTable is matched by every UnknownTableError.
var ErrUnknownTable = errors.New("unknown table")

// UnknownTableError is returned when a query names a table the source
// does not define.
type UnknownTableError struct {
	Table  string
	Source string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("no such table %q in %s", e.Table, e.Source)
}

// Is makes errors.Is(err, ErrUnknownTable) match.
func (e *UnknownTableError) Is(target error) bool {
	return target == ErrUnknownTable
}
