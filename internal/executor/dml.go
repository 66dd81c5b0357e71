package executor

import (
	"fmt"

	"rustql/internal/catalog"
	"rustql/internal/parser"
	"rustql/internal/types"
)

// coerceValue applies RustQL's one implicit conversion (Integer ->
// Float) and otherwise demands an exact Kind match; Null always fits.
func coerceValue(colType types.Kind, v types.Value, table, column string) (types.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	if v.Kind() == colType {
		return v, nil
	}
	if colType == types.Float && v.Kind() == types.Integer {
		return types.NewFloat(float64(v.Integer())), nil
	}
	return types.Value{}, &TypeMismatch{Table: table, Column: column, Want: colType.String(), Got: v.Kind().String()}
}

// ExecuteInsert evaluates and type-checks every row literal, enforces
// outgoing foreign keys, and appends via the catalog (which maintains
// indexes). It returns the number of rows inserted.
func ExecuteInsert(cat *catalog.Catalog, stmt *parser.InsertStmt) (int64, error) {
	tbl, err := cat.Table(stmt.Table)
	if err != nil {
		return 0, err
	}
	colIdx := make([]int, len(stmt.Columns))
	if len(stmt.Columns) == 0 {
		colIdx = make([]int, len(tbl.Columns))
		for i := range colIdx {
			colIdx[i] = i
		}
	} else {
		for i, name := range stmt.Columns {
			idx := tbl.ColumnIndex(name)
			if idx < 0 {
				return 0, fmt.Errorf("unknown column %q in table %q", name, stmt.Table)
			}
			colIdx[i] = idx
		}
	}
	ctx := NewContext(cat)
	var inserted int64
	for _, exprRow := range stmt.Rows {
		if len(exprRow) != len(colIdx) {
			return inserted, fmt.Errorf("INSERT into %q: column/value count mismatch", stmt.Table)
		}
		values := make([]types.Value, len(tbl.Columns))
		for i := range values {
			values[i] = types.NewNull()
		}
		for i, expr := range exprRow {
			v, err := EvalValue(expr, nil, Row{}, ctx)
			if err != nil {
				return inserted, err
			}
			col := tbl.Columns[colIdx[i]]
			cv, err := coerceValue(col.Type, v, stmt.Table, col.Name)
			if err != nil {
				return inserted, err
			}
			values[colIdx[i]] = cv
		}
		if err := cat.EnforceChildWrite(stmt.Table, values); err != nil {
			return inserted, err
		}
		if _, err := cat.Insert(stmt.Table, values); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// ExecuteUpdate evaluates WHERE against every existing row first, then
// applies the collected changes: this keeps the WHERE scan from
// seeing its own writes mid-statement.
func ExecuteUpdate(cat *catalog.Catalog, stmt *parser.UpdateStmt) (int64, error) {
	tbl, err := cat.Table(stmt.Table)
	if err != nil {
		return 0, err
	}
	ctx := NewContext(cat)
	schema := tableSchema(tbl, stmt.Table)

	type change struct {
		id        catalog.RowID
		oldValues []types.Value
		newValues []types.Value
	}
	var changes []change
	for _, r := range tbl.Rows() {
		row := Row{Values: append([]types.Value(nil), r.Values...)}
		tri, err := EvalBool(stmt.Where, schema, row, ctx)
		if err != nil {
			return 0, err
		}
		if !tri.passes() {
			continue
		}
		newValues := append([]types.Value(nil), r.Values...)
		for _, a := range stmt.Assignments {
			idx := tbl.ColumnIndex(a.Column)
			if idx < 0 {
				return 0, fmt.Errorf("unknown column %q in table %q", a.Column, stmt.Table)
			}
			v, err := EvalValue(a.Value, schema, row, ctx)
			if err != nil {
				return 0, err
			}
			cv, err := coerceValue(tbl.Columns[idx].Type, v, stmt.Table, a.Column)
			if err != nil {
				return 0, err
			}
			newValues[idx] = cv
		}
		changes = append(changes, change{id: r.ID, oldValues: append([]types.Value(nil), r.Values...), newValues: newValues})
	}

	for _, ch := range changes {
		if err := cat.EnforceChildWrite(stmt.Table, ch.newValues); err != nil {
			return 0, err
		}
	}
	for _, ch := range changes {
		for i, col := range tbl.Columns {
			if !types.Equal(ch.oldValues[i], ch.newValues[i]) {
				if err := cat.CascadeOnParentUpdate(stmt.Table, col.Name, ch.oldValues[i], ch.newValues[i]); err != nil {
					return 0, err
				}
			}
		}
		if err := cat.UpdateRow(stmt.Table, ch.id, ch.newValues); err != nil {
			return 0, err
		}
	}
	return int64(len(changes)), nil
}

// ExecuteDelete evaluates WHERE against every row, then deletes the
// matches through CascadeOnParentDelete so ON DELETE actions on
// referencing tables run before the rows disappear.
func ExecuteDelete(cat *catalog.Catalog, stmt *parser.DeleteStmt) (int64, error) {
	tbl, err := cat.Table(stmt.Table)
	if err != nil {
		return 0, err
	}
	ctx := NewContext(cat)
	schema := tableSchema(tbl, stmt.Table)
	var ids []catalog.RowID
	for _, r := range tbl.Rows() {
		row := Row{Values: append([]types.Value(nil), r.Values...)}
		tri, err := EvalBool(stmt.Where, schema, row, ctx)
		if err != nil {
			return 0, err
		}
		if tri.passes() {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := cat.CascadeOnParentDelete(stmt.Table, ids); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}
