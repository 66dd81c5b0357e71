package catalog

import "fmt"

// SchemaError covers unknown table/column, duplicate table/index,
// duplicate column on ADD, and dropping a table's last column
// (spec.md §7).
type SchemaError struct{ Message string }

func (e *SchemaError) Error() string { return "schema error: " + e.Message }

func schemaErrorf(format string, args ...interface{}) error {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ArityMismatch is raised when a row's value count does not match its
// table's column count (spec.md §7).
type ArityMismatch struct {
	Table string
	Want  int
	Got   int
}

func (e *ArityMismatch) Error() string {
	return fmt.Sprintf("arity mismatch on %s: want %d values, got %d", e.Table, e.Want, e.Got)
}

// FKViolation is raised when a referential constraint fails on
// insert, update or delete (spec.md §4.3, §7).
type FKViolation struct{ Message string }

func (e *FKViolation) Error() string { return "foreign key violation: " + e.Message }

func fkViolationf(format string, args ...interface{}) error {
	return &FKViolation{Message: fmt.Sprintf(format, args...)}
}

// TransactionStateError covers BEGIN-in-transaction and
// COMMIT/ROLLBACK-outside-transaction (spec.md §4.6, §7).
type TransactionStateError struct{ Message string }

func (e *TransactionStateError) Error() string { return "transaction error: " + e.Message }
