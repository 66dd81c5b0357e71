package storage

import (
	"path/filepath"
	"testing"
	"time"

	"rustql/internal/catalog"
	"rustql/internal/types"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	cat := catalog.NewCatalog()
	if err := cat.CreateTable("dept", []catalog.Column{
		{Name: "id", Type: types.Integer},
		{Name: "name", Type: types.Text},
	}); err != nil {
		t.Fatalf("CreateTable dept: %v", err)
	}
	if err := cat.CreateTable("emp", []catalog.Column{
		{Name: "id", Type: types.Integer},
		{Name: "dept_id", Type: types.Integer, ForeignKey: &catalog.ForeignKey{
			ParentTable: "dept", ParentColumn: "id", OnDelete: catalog.Cascade,
		}},
		{Name: "salary", Type: types.Float},
		{Name: "hired", Type: types.Date},
		{Name: "active", Type: types.Boolean},
		{Name: "nickname", Type: types.Text},
	}); err != nil {
		t.Fatalf("CreateTable emp: %v", err)
	}
	if _, err := cat.Insert("dept", []types.Value{types.NewInteger(1), types.NewText("eng")}); err != nil {
		t.Fatalf("insert dept: %v", err)
	}
	hiredTime, err := time.Parse("2006-01-02", "2024-03-01")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	hired := types.NewDate(hiredTime)
	if _, err := cat.Insert("emp", []types.Value{
		types.NewInteger(1), types.NewInteger(1), types.NewFloat(95000.5), hired,
		types.NewBoolean(true), types.NewNull(),
	}); err != nil {
		t.Fatalf("insert emp: %v", err)
	}
	if err := cat.CreateIndex("idx_emp_dept", "emp", "dept_id"); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	path := filepath.Join(t.TempDir(), "db.json")
	if err := Save(path, cat); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	emp, err := loaded.Table("emp")
	if err != nil {
		t.Fatalf("loaded table emp missing: %v", err)
	}
	rows := emp.Rows()
	if len(rows) != 1 {
		t.Fatalf("want 1 emp row, got %d", len(rows))
	}
	got := rows[0].Values
	if got[0].Integer() != 1 {
		t.Errorf("id = %v, want 1", got[0])
	}
	if !types.Equal(got[2], types.NewFloat(95000.5)) {
		t.Errorf("salary = %v, want 95000.5", got[2])
	}
	if !got[4].Boolean() {
		t.Errorf("active = %v, want true", got[4])
	}
	if !got[5].IsNull() {
		t.Errorf("nickname = %v, want NULL", got[5])
	}

	if ix, ok := loaded.Index("idx_emp_dept"); !ok {
		t.Fatal("loaded catalog missing idx_emp_dept")
	} else if len(ix.Lookup(types.NewInteger(1))) != 1 {
		t.Errorf("rebuilt index did not find the backfilled row")
	}
}

func TestLoadMissingFileReturnsEmptyCatalog(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load of missing file should not error, got %v", err)
	}
	if len(cat.TableNames()) != 0 {
		t.Errorf("want empty catalog, got tables %v", cat.TableNames())
	}
}
