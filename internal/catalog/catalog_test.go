package catalog

import (
	"testing"

	"rustql/internal/types"
)

func intCol(name string) Column { return Column{Name: name, Type: types.Integer} }

func newParentChild(t *testing.T, onDelete, onUpdate FKAction) *Catalog {
	t.Helper()
	cat := NewCatalog()
	if err := cat.CreateTable("parent", []Column{intCol("id")}); err != nil {
		t.Fatalf("create parent: %v", err)
	}
	if err := cat.CreateTable("child", []Column{
		{Name: "id", Type: types.Integer},
		{Name: "pid", Type: types.Integer, ForeignKey: &ForeignKey{
			ParentTable: "parent", ParentColumn: "id", OnDelete: onDelete, OnUpdate: onUpdate,
		}},
	}); err != nil {
		t.Fatalf("create child: %v", err)
	}
	return cat
}

func mustInsert(t *testing.T, cat *Catalog, table string, vals ...int64) RowID {
	t.Helper()
	values := make([]types.Value, len(vals))
	for i, v := range vals {
		values[i] = types.NewInteger(v)
	}
	id, err := cat.Insert(table, values)
	if err != nil {
		t.Fatalf("insert into %s: %v", table, err)
	}
	return id
}

func TestForeignKeyCascadeDelete(t *testing.T) {
	cat := newParentChild(t, Cascade, NoAction)
	p1 := mustInsert(t, cat, "parent", 1)
	mustInsert(t, cat, "parent", 2)
	mustInsert(t, cat, "child", 10, 1)
	mustInsert(t, cat, "child", 11, 1)
	mustInsert(t, cat, "child", 12, 2)

	if err := cat.CascadeOnParentDelete("parent", []RowID{p1}); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}

	parent, _ := cat.Table("parent")
	if got := parent.RowCount(); got != 1 {
		t.Fatalf("parent rows after cascade = %d, want 1", got)
	}
	child, _ := cat.Table("child")
	rows := child.Rows()
	if len(rows) != 1 {
		t.Fatalf("child rows after cascade = %d, want 1", len(rows))
	}
	if rows[0].Values[1].Integer() != 2 {
		t.Fatalf("surviving child.pid = %d, want 2", rows[0].Values[1].Integer())
	}
}

func TestForeignKeyRestrictBlocksDelete(t *testing.T) {
	cat := newParentChild(t, Restrict, NoAction)
	p1 := mustInsert(t, cat, "parent", 1)
	mustInsert(t, cat, "child", 10, 1)

	err := cat.CascadeOnParentDelete("parent", []RowID{p1})
	if err == nil {
		t.Fatal("expected FKViolation, got nil")
	}
	if _, ok := err.(*FKViolation); !ok {
		t.Fatalf("expected *FKViolation, got %T", err)
	}
	parent, _ := cat.Table("parent")
	if got := parent.RowCount(); got != 1 {
		t.Fatalf("restrict must not delete parent row; rows = %d", got)
	}
}

func TestForeignKeySetNullOnDelete(t *testing.T) {
	cat := newParentChild(t, SetNull, NoAction)
	p1 := mustInsert(t, cat, "parent", 1)
	mustInsert(t, cat, "child", 10, 1)

	if err := cat.CascadeOnParentDelete("parent", []RowID{p1}); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}
	child, _ := cat.Table("child")
	rows := child.Rows()
	if len(rows) != 1 {
		t.Fatalf("set null must keep child row, got %d rows", len(rows))
	}
	if !rows[0].Values[1].IsNull() {
		t.Fatalf("child.pid should be null after SET NULL cascade, got %v", rows[0].Values[1])
	}
}

func TestForeignKeyEnforceChildWriteRejectsDangling(t *testing.T) {
	cat := newParentChild(t, NoAction, NoAction)
	mustInsert(t, cat, "parent", 1)

	err := cat.EnforceChildWrite("child", []types.Value{types.NewInteger(10), types.NewInteger(99)})
	if err == nil {
		t.Fatal("expected FKViolation for dangling reference, got nil")
	}
	if _, ok := err.(*FKViolation); !ok {
		t.Fatalf("expected *FKViolation, got %T", err)
	}

	if err := cat.EnforceChildWrite("child", []types.Value{types.NewInteger(10), types.NewInteger(1)}); err != nil {
		t.Fatalf("valid reference should not error: %v", err)
	}
	if err := cat.EnforceChildWrite("child", []types.Value{types.NewInteger(10), types.NewNull()}); err != nil {
		t.Fatalf("null reference should not error: %v", err)
	}
}

func TestForeignKeyCascadeUpdate(t *testing.T) {
	cat := newParentChild(t, NoAction, Cascade)
	mustInsert(t, cat, "parent", 1)
	mustInsert(t, cat, "child", 10, 1)
	mustInsert(t, cat, "child", 11, 1)

	if err := cat.CascadeOnParentUpdate("parent", "id", types.NewInteger(1), types.NewInteger(7)); err != nil {
		t.Fatalf("cascade update: %v", err)
	}
	child, _ := cat.Table("child")
	for _, row := range child.Rows() {
		if row.Values[1].Integer() != 7 {
			t.Fatalf("child.pid = %d after cascade update, want 7", row.Values[1].Integer())
		}
	}
}

func TestForeignKeyCycleIsFixedPointNotError(t *testing.T) {
	cat := NewCatalog()
	// self-referencing FK: node.next -> node.id, ON DELETE CASCADE
	if err := cat.CreateTable("node", []Column{
		{Name: "id", Type: types.Integer},
		{Name: "next", Type: types.Integer, ForeignKey: &ForeignKey{
			ParentTable: "node", ParentColumn: "id", OnDelete: Cascade,
		}},
	}); err != nil {
		t.Fatalf("create self-referencing node: %v", err)
	}
	a := mustInsert(t, cat, "node", 1, 2)
	mustInsert(t, cat, "node", 2, 1) // cycle: 1 -> 2 -> 1

	if err := cat.CascadeOnParentDelete("node", []RowID{a}); err != nil {
		t.Fatalf("cascade delete over cycle: %v", err)
	}
	node, _ := cat.Table("node")
	if got := node.RowCount(); got != 0 {
		t.Fatalf("cyclic cascade should remove both rows, got %d remaining", got)
	}
}

func TestInsertThenSelectOrdering(t *testing.T) {
	cat := NewCatalog()
	if err := cat.CreateTable("t", []Column{intCol("id")}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	mustInsert(t, cat, "t", 3)
	mustInsert(t, cat, "t", 1)
	mustInsert(t, cat, "t", 2)

	tbl, _ := cat.Table("t")
	rows := tbl.Rows()
	want := []int64{3, 1, 2}
	if len(rows) != len(want) {
		t.Fatalf("row count = %d, want %d", len(rows), len(want))
	}
	for i, row := range rows {
		if row.Values[0].Integer() != want[i] {
			t.Fatalf("row %d = %d, want %d (insertion order must be preserved)", i, row.Values[0].Integer(), want[i])
		}
	}
}

func TestArityMismatch(t *testing.T) {
	cat := NewCatalog()
	if err := cat.CreateTable("t", []Column{intCol("a"), intCol("b")}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_, err := cat.Insert("t", []types.Value{types.NewInteger(1)})
	if _, ok := err.(*ArityMismatch); !ok {
		t.Fatalf("expected *ArityMismatch, got %T (%v)", err, err)
	}
}

func TestIndexConsistencyAfterDeleteAndUpdate(t *testing.T) {
	cat := NewCatalog()
	if err := cat.CreateTable("t", []Column{intCol("id"), intCol("val")}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := cat.CreateIndex("idx_val", "t", "val"); err != nil {
		t.Fatalf("create index: %v", err)
	}
	r1 := mustInsert(t, cat, "t", 1, 100)
	mustInsert(t, cat, "t", 2, 200)

	ix, _ := cat.Index("idx_val")
	if ids := ix.Lookup(types.NewInteger(100)); len(ids) != 1 || ids[0] != r1 {
		t.Fatalf("index lookup after insert = %v, want [%d]", ids, r1)
	}

	if err := cat.UpdateRow("t", r1, []types.Value{types.NewInteger(1), types.NewInteger(300)}); err != nil {
		t.Fatalf("update row: %v", err)
	}
	if ids := ix.Lookup(types.NewInteger(100)); len(ids) != 0 {
		t.Fatalf("stale index entry survived update: %v", ids)
	}
	if ids := ix.Lookup(types.NewInteger(300)); len(ids) != 1 || ids[0] != r1 {
		t.Fatalf("index lookup after update = %v, want [%d]", ids, r1)
	}

	if err := cat.DeleteRows("t", []RowID{r1}); err != nil {
		t.Fatalf("delete row: %v", err)
	}
	if ids := ix.Lookup(types.NewInteger(300)); len(ids) != 0 {
		t.Fatalf("stale index entry survived delete: %v", ids)
	}
}

func TestSnapshotRestoreIsBitIdentical(t *testing.T) {
	cat := NewCatalog()
	if err := cat.CreateTable("t", []Column{intCol("id")}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := cat.CreateIndex("idx_id", "t", "id"); err != nil {
		t.Fatalf("create index: %v", err)
	}
	mustInsert(t, cat, "t", 1)
	mustInsert(t, cat, "t", 2)

	snap := cat.Snapshot()

	mustInsert(t, cat, "t", 3)
	if err := cat.DropIndex("idx_id"); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if err := cat.CreateTable("extra", []Column{intCol("x")}); err != nil {
		t.Fatalf("create extra table: %v", err)
	}

	cat.RestoreFrom(snap)

	if cat.HasTable("extra") {
		t.Fatal("restored catalog should not have the post-snapshot table")
	}
	tbl, err := cat.Table("t")
	if err != nil {
		t.Fatalf("table t missing after restore: %v", err)
	}
	if got := tbl.RowCount(); got != 2 {
		t.Fatalf("row count after restore = %d, want 2", got)
	}
	if _, ok := cat.Index("idx_id"); !ok {
		t.Fatal("index idx_id should be restored")
	}
}

func TestDropTableRemovesItsIndexes(t *testing.T) {
	cat := NewCatalog()
	if err := cat.CreateTable("t", []Column{intCol("id")}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := cat.CreateIndex("idx_id", "t", "id"); err != nil {
		t.Fatalf("create index: %v", err)
	}
	if err := cat.DropTable("t"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if _, ok := cat.Index("idx_id"); ok {
		t.Fatal("index should be gone after its table is dropped")
	}
}

func TestAlterDropColumnRefusesLastColumn(t *testing.T) {
	cat := NewCatalog()
	if err := cat.CreateTable("t", []Column{intCol("only")}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := cat.AlterDropColumn("t", "only"); err == nil {
		t.Fatal("expected error dropping a table's last column")
	}
}
