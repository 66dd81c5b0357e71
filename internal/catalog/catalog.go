// Package catalog is the in-memory data model of spec.md §3: tables,
// columns, indexes, foreign keys, and the catalog that owns them.
// Transaction bookkeeping (which statement opened a transaction, and
// whether one is active) lives in package session; Catalog only
// provides the Snapshot/RestoreFrom primitives BEGIN/ROLLBACK need.
package catalog

import (
	"sort"

	"rustql/internal/types"
)

// Catalog is the mapping table name -> Table plus the global mapping
// index name -> Index (spec.md §3).
type Catalog struct {
	tables  map[string]*Table
	indexes map[string]*Index
}

func NewCatalog() *Catalog {
	return &Catalog{tables: map[string]*Table{}, indexes: map[string]*Index{}}
}

// Table returns the named table.
func (c *Catalog) Table(name string) (*Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, schemaErrorf("unknown table %q", name)
	}
	return t, nil
}

// HasTable reports whether a table exists, without erroring.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.tables[name]
	return ok
}

// TableNames returns every table name, sorted, for deterministic
// iteration (persistence, catalog dumps).
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CreateTable registers a new table. Foreign keys are validated
// against the current catalog state (spec.md §3: "an index cannot
// reference a missing table/column" — the same rule applies to FKs).
func (c *Catalog) CreateTable(name string, columns []Column) error {
	if _, exists := c.tables[name]; exists {
		return schemaErrorf("table %q already exists", name)
	}
	seen := map[string]bool{}
	for _, col := range columns {
		if seen[col.Name] {
			return schemaErrorf("duplicate column %q in table %q", col.Name, name)
		}
		seen[col.Name] = true
		if col.ForeignKey != nil && col.ForeignKey.ParentTable == name {
			found := false
			for _, pc := range columns {
				if pc.Name == col.ForeignKey.ParentColumn {
					found = true
				}
			}
			if !found {
				return schemaErrorf("foreign key references unknown column %q.%q", name, col.ForeignKey.ParentColumn)
			}
		} else if col.ForeignKey != nil {
			if err := c.validateForeignKey(name, col.ForeignKey); err != nil {
				return err
			}
		}
	}
	c.tables[name] = newTable(name, columns)
	return nil
}

// validateForeignKey checks that the referenced parent table/column
// exists in the catalog. CreateTable checks a self-referencing FK
// against the new table's own column list instead, because that table
// is not registered yet when its columns are validated.
func (c *Catalog) validateForeignKey(childTable string, fk *ForeignKey) error {
	parent, ok := c.tables[fk.ParentTable]
	if !ok {
		return schemaErrorf("foreign key references unknown table %q", fk.ParentTable)
	}
	if parent.ColumnIndex(fk.ParentColumn) < 0 {
		return schemaErrorf("foreign key references unknown column %q.%q", fk.ParentTable, fk.ParentColumn)
	}
	return nil
}

// DropTable removes a table and every index defined on it.
func (c *Catalog) DropTable(name string) error {
	t, err := c.Table(name)
	if err != nil {
		return err
	}
	for ixName := range t.indexes {
		delete(c.indexes, ixName)
	}
	delete(c.tables, name)
	return nil
}

// AlterAddColumn appends a column; every existing row gets a trailing
// Null (spec.md §3).
func (c *Catalog) AlterAddColumn(table string, col Column) error {
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	if t.ColumnIndex(col.Name) >= 0 {
		return schemaErrorf("column %q already exists on table %q", col.Name, table)
	}
	if col.ForeignKey != nil {
		if err := c.validateForeignKey(table, col.ForeignKey); err != nil {
			return err
		}
	}
	t.Columns = append(t.Columns, col)
	for _, id := range t.order {
		row := t.rows[id]
		row.Values = append(row.Values, types.NewNull())
	}
	return nil
}

// AlterDropColumn removes a column positionally and refuses to drop a
// table's last column (spec.md §7).
func (c *Catalog) AlterDropColumn(table, name string) error {
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return schemaErrorf("unknown column %q on table %q", name, table)
	}
	if len(t.Columns) == 1 {
		return schemaErrorf("cannot drop the last column of table %q", table)
	}
	for _, ix := range t.indexes {
		if ix.Column == name {
			delete(c.indexes, ix.Name)
			delete(t.indexes, ix.Name)
		}
	}
	t.Columns = append(t.Columns[:idx], t.Columns[idx+1:]...)
	for _, id := range t.order {
		row := t.rows[id]
		row.Values = append(row.Values[:idx], row.Values[idx+1:]...)
	}
	return nil
}

// AlterRenameColumn is schema-only (spec.md §3).
func (c *Catalog) AlterRenameColumn(table, oldName, newName string) error {
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	idx := t.ColumnIndex(oldName)
	if idx < 0 {
		return schemaErrorf("unknown column %q on table %q", oldName, table)
	}
	if t.ColumnIndex(newName) >= 0 {
		return schemaErrorf("column %q already exists on table %q", newName, table)
	}
	t.Columns[idx].Name = newName
	for _, ix := range t.indexes {
		if ix.Column == oldName {
			ix.Column = newName
		}
	}
	return nil
}

// CreateIndex registers a new equality-multimap index and backfills
// it from the table's current rows.
func (c *Catalog) CreateIndex(name, table, column string) error {
	if _, exists := c.indexes[name]; exists {
		return schemaErrorf("index %q already exists", name)
	}
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	colIdx := t.ColumnIndex(column)
	if colIdx < 0 {
		return schemaErrorf("unknown column %q on table %q", column, table)
	}
	ix := newIndex(name, table, column)
	for _, id := range t.order {
		row := t.rows[id]
		ix.insert(row.Values[colIdx], id)
	}
	t.indexes[name] = ix
	c.indexes[name] = ix
	return nil
}

func (c *Catalog) DropIndex(name string) error {
	ix, ok := c.indexes[name]
	if !ok {
		return schemaErrorf("unknown index %q", name)
	}
	if t, ok := c.tables[ix.Table]; ok {
		delete(t.indexes, name)
	}
	delete(c.indexes, name)
	return nil
}

// Index looks up a global index by name.
func (c *Catalog) Index(name string) (*Index, bool) {
	ix, ok := c.indexes[name]
	return ix, ok
}

// Insert appends a row, enforcing only the arity invariant (spec.md
// §3) and index maintenance; type checking and foreign-key
// enforcement are the executor's job (spec.md §4.5, §4.3) since they
// need expression-evaluation and cross-table context this package
// does not have.
func (c *Catalog) Insert(table string, values []types.Value) (RowID, error) {
	t, err := c.Table(table)
	if err != nil {
		return 0, err
	}
	if len(values) != len(t.Columns) {
		return 0, &ArityMismatch{Table: table, Want: len(t.Columns), Got: len(values)}
	}
	row := t.appendRow(values)
	return row.ID, nil
}

// DeleteRows removes a set of rows, keeping every index consistent.
func (c *Catalog) DeleteRows(table string, ids []RowID) error {
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	for _, id := range ids {
		t.deleteRow(id)
	}
	return nil
}

// UpdateRow replaces a row's values in place, keeping indexes
// consistent. The caller is responsible for arity/type checking.
func (c *Catalog) UpdateRow(table string, id RowID, newValues []types.Value) error {
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	if len(newValues) != len(t.Columns) {
		return &ArityMismatch{Table: table, Want: len(t.Columns), Got: len(newValues)}
	}
	t.updateRow(id, newValues)
	return nil
}

// Snapshot takes a value-equal deep copy of the catalog, the state
// BEGIN records and ROLLBACK restores (spec.md §4.6).
func (c *Catalog) Snapshot() *Catalog {
	snap := &Catalog{tables: map[string]*Table{}, indexes: map[string]*Index{}}
	for name, t := range c.tables {
		clone := t.clone()
		snap.tables[name] = clone
		for ixName, ix := range clone.indexes {
			snap.indexes[ixName] = ix
		}
	}
	return snap
}

// RestoreFrom replaces this catalog's contents with those of snap, in
// place, so every other reference to this *Catalog observes the
// restored state (spec.md §4.6).
func (c *Catalog) RestoreFrom(snap *Catalog) {
	c.tables = snap.tables
	c.indexes = snap.indexes
}
