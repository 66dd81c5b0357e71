// Package executor walks a planner.Plan and produces rows (spec.md
// §4.5). Non-SELECT statements execute directly against the catalog
// in dml.go; SELECT goes through the iterator chain in iter.go.
package executor

import (
	"fmt"

	"rustql/internal/types"
)

// Column names one slot of a row stream's output: Table is the
// source alias ("" for computed/projected columns).
type Column struct {
	Table string
	Name  string
}

// Schema is the ordered column list a RowIter produces; every Row it
// yields has exactly len(Schema) values.
type Schema []Column

// Resolve finds the slot a ColumnRef names. An unqualified reference
// matches by name alone and is an error if ambiguous; a qualified
// reference matches table and name exactly.
func (s Schema) Resolve(table, name string) (int, error) {
	if table != "" {
		for i, c := range s {
			if c.Table == table && c.Name == name {
				return i, nil
			}
		}
		return -1, fmt.Errorf("unknown column %s.%s", table, name)
	}
	idx := -1
	for i, c := range s {
		if c.Name == name {
			if idx != -1 {
				return -1, fmt.Errorf("ambiguous column %q", name)
			}
			idx = i
		}
	}
	if idx == -1 {
		return -1, fmt.Errorf("unknown column %q", name)
	}
	return idx, nil
}

// Concat produces the schema of a join: both sides' columns, in
// order, left then right.
func (s Schema) Concat(other Schema) Schema {
	out := make(Schema, 0, len(s)+len(other))
	out = append(out, s...)
	out = append(out, other...)
	return out
}

// Row is one tuple flowing through the executor.
type Row struct {
	Values []types.Value
}

func concatRows(a, b Row) Row {
	out := make([]types.Value, 0, len(a.Values)+len(b.Values))
	out = append(out, a.Values...)
	out = append(out, b.Values...)
	return Row{Values: out}
}

func nullRow(n int) Row {
	vals := make([]types.Value, n)
	for i := range vals {
		vals[i] = types.NewNull()
	}
	return Row{Values: vals}
}

func cloneRow(r Row) Row {
	out := make([]types.Value, len(r.Values))
	copy(out, r.Values)
	return Row{Values: out}
}
