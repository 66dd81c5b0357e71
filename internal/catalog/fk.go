// fk.go implements foreign-key enforcement (spec.md §4.3): child-side
// validation on INSERT/UPDATE, and parent-side cascades on DELETE/UPDATE.
package catalog

import "rustql/internal/types"

type childRef struct {
	Table  string
	Column string
	FK     *ForeignKey
}

// childReferences finds every column, across every table, whose
// foreign key points at parentTable.parentColumn.
func childReferences(c *Catalog, parentTable, parentColumn string) []childRef {
	var out []childRef
	for _, name := range c.TableNames() {
		t := c.tables[name]
		for _, col := range t.Columns {
			if col.ForeignKey != nil && col.ForeignKey.ParentTable == parentTable && col.ForeignKey.ParentColumn == parentColumn {
				out = append(out, childRef{Table: name, Column: col.Name, FK: col.ForeignKey})
			}
		}
	}
	return out
}

func matchingRowIDs(t *Table, colIdx int, v types.Value) []RowID {
	if ixs := t.IndexesOnColumn(t.Columns[colIdx].Name); len(ixs) > 0 {
		return ixs[0].Lookup(v)
	}
	var out []RowID
	for _, row := range t.Rows() {
		if types.Equal(row.Values[colIdx], v) {
			out = append(out, row.ID)
		}
	}
	return out
}

// EnforceChildWrite validates every foreign-key column of a row about
// to be inserted or updated into table: each non-null value must
// already exist in its parent column (spec.md §4.3).
func (c *Catalog) EnforceChildWrite(table string, values []types.Value) error {
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	for i, col := range t.Columns {
		if col.ForeignKey == nil || values[i].IsNull() {
			continue
		}
		parent, err := c.Table(col.ForeignKey.ParentTable)
		if err != nil {
			return fkViolationf("%s.%s references unknown table %q", table, col.Name, col.ForeignKey.ParentTable)
		}
		parentColIdx := parent.ColumnIndex(col.ForeignKey.ParentColumn)
		if len(matchingRowIDs(parent, parentColIdx, values[i])) == 0 {
			return fkViolationf("%s=%s has no matching row in %s.%s", col.Name, values[i].String(), col.ForeignKey.ParentTable, col.ForeignKey.ParentColumn)
		}
	}
	return nil
}

type tableRow struct {
	Table string
	ID    RowID
}

// CascadeOnParentDelete deletes ids from table, applying each child
// foreign key's ON DELETE action along the way, and deletes ids
// itself once every dependent has been resolved. Cycles are broken by
// tracking visited (table, row) pairs — a cycle becomes a fixed point,
// not an error (spec.md §4.3).
func (c *Catalog) CascadeOnParentDelete(table string, ids []RowID) error {
	return c.cascadeDelete(table, ids, map[tableRow]bool{})
}

func (c *Catalog) cascadeDelete(table string, ids []RowID, visited map[tableRow]bool) error {
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	var live []RowID
	for _, id := range ids {
		key := tableRow{table, id}
		if visited[key] {
			continue
		}
		visited[key] = true
		live = append(live, id)
	}
	for _, id := range live {
		row, ok := t.RowByID(id)
		if !ok {
			continue // already removed via another cascade path
		}
		for colIdx, col := range t.Columns {
			refs := childReferences(c, table, col.Name)
			if len(refs) == 0 {
				continue
			}
			val := row.Values[colIdx]
			for _, ref := range refs {
				if err := c.applyDeleteAction(ref, val, visited); err != nil {
					return err
				}
			}
		}
	}
	if len(live) == 0 {
		return nil
	}
	return c.DeleteRows(table, live)
}

func (c *Catalog) applyDeleteAction(ref childRef, parentValue types.Value, visited map[tableRow]bool) error {
	childT, err := c.Table(ref.Table)
	if err != nil {
		return err
	}
	childColIdx := childT.ColumnIndex(ref.Column)
	matches := matchingRowIDs(childT, childColIdx, parentValue)
	if len(matches) == 0 {
		return nil
	}
	switch ref.FK.OnDelete {
	case Cascade:
		return c.cascadeDelete(ref.Table, matches, visited)
	case SetNull:
		for _, cid := range matches {
			row, ok := childT.RowByID(cid)
			if !ok {
				continue
			}
			newValues := append([]types.Value(nil), row.Values...)
			newValues[childColIdx] = types.NewNull()
			if err := c.UpdateRow(ref.Table, cid, newValues); err != nil {
				return err
			}
		}
		return nil
	default: // Restrict, NoAction
		return fkViolationf("%s is referenced by %s.%s", ref.FK.ParentTable, ref.Table, ref.Column)
	}
}

// CascadeOnParentUpdate propagates a change to a referenced column's
// value to every child row that held the old value, per each child
// foreign key's ON UPDATE action (spec.md §4.3). It does not touch
// the parent row itself — the caller updates that row separately.
func (c *Catalog) CascadeOnParentUpdate(table, column string, oldValue, newValue types.Value) error {
	return c.cascadeUpdate(table, column, oldValue, newValue, map[tableRow]bool{})
}

func (c *Catalog) cascadeUpdate(table, column string, oldValue, newValue types.Value, visited map[tableRow]bool) error {
	for _, ref := range childReferences(c, table, column) {
		childT, err := c.Table(ref.Table)
		if err != nil {
			return err
		}
		childColIdx := childT.ColumnIndex(ref.Column)
		matches := matchingRowIDs(childT, childColIdx, oldValue)
		if len(matches) == 0 {
			continue
		}
		switch ref.FK.OnUpdate {
		case Cascade:
			for _, cid := range matches {
				key := tableRow{ref.Table, cid}
				if visited[key] {
					continue
				}
				visited[key] = true
				row, ok := childT.RowByID(cid)
				if !ok {
					continue
				}
				newValues := append([]types.Value(nil), row.Values...)
				newValues[childColIdx] = newValue
				if err := c.UpdateRow(ref.Table, cid, newValues); err != nil {
					return err
				}
				if err := c.cascadeUpdate(ref.Table, ref.Column, oldValue, newValue, visited); err != nil {
					return err
				}
			}
		case SetNull:
			for _, cid := range matches {
				row, ok := childT.RowByID(cid)
				if !ok {
					continue
				}
				newValues := append([]types.Value(nil), row.Values...)
				newValues[childColIdx] = types.NewNull()
				if err := c.UpdateRow(ref.Table, cid, newValues); err != nil {
					return err
				}
			}
		default:
			return fkViolationf("%s is referenced by %s.%s", table, ref.Table, ref.Column)
		}
	}
	return nil
}
