package spec

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every ConfigurationError.
var ErrInvalidConfig = errors.New("invalid table configuration")

// ConfigurationError reports an invalid or unsupported combination in a
// table definition. It is never retried.
type ConfigurationError struct {
	Table  string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error in table %q: %s: %s", e.Table, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConfig) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func configErr(table, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Table:  table,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}
