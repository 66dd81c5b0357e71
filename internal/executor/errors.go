package executor

import "fmt"

// TypeMismatch reports a value that doesn't fit a column's declared
// type on INSERT/UPDATE (spec.md §7). Comparison/arithmetic type
// errors surface directly from package types instead, since they wrap
// types.ErrTypeMismatch already.
type TypeMismatch struct {
	Table, Column string
	Want          string
	Got           string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch: %s.%s wants %s, got %s", e.Table, e.Column, e.Want, e.Got)
}
