package template

import (
	"errors"
	"fmt"
)

// ErrUndefinedVariable is matched by every UndefinedVariableError.
var ErrUndefinedVariable = errors.New("undefined variable")

// UndefinedVariableError reports a template that references a variable
// absent from the context.
type UndefinedVariableError struct {
	Field    string
	Variable string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%s: undefined variable %q", e.Field, e.Variable)
}

// Is makes errors.Is(err, ErrUndefinedVariable) match.
func (e *UndefinedVariableError) Is(target error) bool {
	return target == ErrUndefinedVariable
}

// SyntaxError reports an expression that does not parse.
type SyntaxError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: invalid template: %v", e.Field, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SyntaxError) Unwrap() error {
	return e.Err
}
