package catalog

import "rustql/internal/types"

// Table is an ordered column list plus its rows and the indexes
// defined on it (spec.md §3). Row order is insertion order; nothing
// in this package ever reorders it — ORDER BY is a query-time concern
// handled by package planner/executor.
type Table struct {
	Name      string
	Columns   []Column
	order     []RowID // insertion order, survives deletes (we splice out)
	rows      map[RowID]*Row
	indexes   map[string]*Index // index name -> index
	nextRowID RowID
}

func newTable(name string, columns []Column) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		rows:    map[RowID]*Row{},
		indexes: map[string]*Index{},
	}
}

// ColumnIndex returns the ordinal of a column by name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// RowCount is the planner statistic spec.md §4.4 calls row_count.
func (t *Table) RowCount() int64 { return int64(len(t.order)) }

// Rows returns the live rows in insertion order (spec.md §8: "INSERT
// then SELECT * returns exactly the inserted rows in insertion
// order").
func (t *Table) Rows() []*Row {
	out := make([]*Row, 0, len(t.order))
	for _, id := range t.order {
		if r, ok := t.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// RowByID looks up a single row, for resolving IndexScan candidates.
func (t *Table) RowByID(id RowID) (*Row, bool) {
	r, ok := t.rows[id]
	return r, ok
}

// IndexesOnColumn returns every index defined on the given column.
func (t *Table) IndexesOnColumn(column string) []*Index {
	var out []*Index
	for _, ix := range t.indexes {
		if ix.Column == column {
			out = append(out, ix)
		}
	}
	return out
}

func (t *Table) appendRow(values []types.Value) *Row {
	id := t.nextRowID
	t.nextRowID++
	row := &Row{ID: id, Values: values}
	t.rows[id] = row
	t.order = append(t.order, id)
	for _, ix := range t.indexes {
		colIdx := t.ColumnIndex(ix.Column)
		ix.insert(values[colIdx], id)
	}
	return row
}

func (t *Table) deleteRow(id RowID) {
	row, ok := t.rows[id]
	if !ok {
		return
	}
	for _, ix := range t.indexes {
		colIdx := t.ColumnIndex(ix.Column)
		ix.remove(row.Values[colIdx], id)
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *Table) updateRow(id RowID, newValues []types.Value) {
	row, ok := t.rows[id]
	if !ok {
		return
	}
	for _, ix := range t.indexes {
		colIdx := t.ColumnIndex(ix.Column)
		ix.remove(row.Values[colIdx], id)
	}
	row.Values = newValues
	for _, ix := range t.indexes {
		colIdx := t.ColumnIndex(ix.Column)
		ix.insert(newValues[colIdx], id)
	}
}

func (t *Table) clone() *Table {
	c := newTable(t.Name, append([]Column(nil), t.Columns...))
	c.order = append([]RowID(nil), t.order...)
	c.nextRowID = t.nextRowID
	for id, r := range t.rows {
		c.rows[id] = r.clone()
	}
	for name, ix := range t.indexes {
		c.indexes[name] = ix.clone()
	}
	return c
}
