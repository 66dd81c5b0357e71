package executor

import (
	"testing"

	"rustql/internal/catalog"
	"rustql/internal/parser"
)

func mustParse(t *testing.T, sql string) parser.Statement {
	t.Helper()
	stmt, err := parser.ParseStatement(sql)
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	return stmt
}

func mustCreateTable(t *testing.T, cat *catalog.Catalog, sql string) {
	t.Helper()
	stmt := mustParse(t, sql).(*parser.CreateTableStmt)
	cols := make([]catalog.Column, len(stmt.Columns))
	for i, c := range stmt.Columns {
		col := catalog.Column{Name: c.Name, Type: c.Type}
		if c.ForeignKey != nil {
			col.ForeignKey = &catalog.ForeignKey{
				ParentTable:  c.ForeignKey.ParentTable,
				ParentColumn: c.ForeignKey.ParentColumn,
				OnDelete:     catalog.FKAction(c.ForeignKey.OnDelete),
				OnUpdate:     catalog.FKAction(c.ForeignKey.OnUpdate),
			}
		}
		cols[i] = col
	}
	if err := cat.CreateTable(stmt.Name, cols); err != nil {
		t.Fatalf("create table: %v", err)
	}
}

func mustInsert(t *testing.T, cat *catalog.Catalog, sql string) {
	t.Helper()
	stmt := mustParse(t, sql).(*parser.InsertStmt)
	if _, err := ExecuteInsert(cat, stmt); err != nil {
		t.Fatalf("insert %q: %v", sql, err)
	}
}

func mustSelect(t *testing.T, cat *catalog.Catalog, sql string) (Schema, []Row) {
	t.Helper()
	stmt := mustParse(t, sql).(*parser.SelectStmt)
	schema, rows, err := ExecuteSelect(stmt, cat)
	if err != nil {
		t.Fatalf("select %q: %v", sql, err)
	}
	return schema, rows
}

// Scenario 1: basic DML and SELECT round-trip.
func TestBasicInsertAndSelect(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE t (id INTEGER, name TEXT)")
	mustInsert(t, cat, "INSERT INTO t VALUES (1, 'alice'), (2, 'bob')")

	_, rows := mustSelect(t, cat, "SELECT * FROM t WHERE id = 1")
	if len(rows) != 1 || rows[0].Values[1].Text() != "alice" {
		t.Fatalf("SELECT WHERE id=1 = %+v, want one row for alice", rows)
	}
}

// Scenario 2: ORDER BY + LIMIT/OFFSET.
func TestOrderByLimitOffset(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE u (id INTEGER, name TEXT)")
	mustInsert(t, cat, "INSERT INTO u VALUES (1,'A'),(2,'B'),(3,'C'),(4,'D')")

	_, rows := mustSelect(t, cat, "SELECT name FROM u ORDER BY id DESC LIMIT 2 OFFSET 1")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Values[0].Text() != "C" || rows[1].Values[0].Text() != "B" {
		t.Fatalf("rows = %v, want [C B]", rows)
	}
}

// Scenario 3: GROUP BY + HAVING.
func TestGroupByHaving(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE emp (dept TEXT, salary INTEGER)")
	mustInsert(t, cat, "INSERT INTO emp VALUES ('x',10),('x',20),('y',30),('y',40)")

	_, rows := mustSelect(t, cat, "SELECT dept, AVG(salary) FROM emp GROUP BY dept HAVING AVG(salary) > 20")
	if len(rows) != 1 {
		t.Fatalf("got %d groups, want 1 (only dept y passes HAVING)", len(rows))
	}
	if rows[0].Values[0].Text() != "y" {
		t.Fatalf("surviving group = %v, want dept y", rows[0])
	}
	if got, _ := rows[0].Values[1].Numeric(); got != 35 {
		t.Fatalf("AVG(salary) for dept y = %v, want 35", rows[0].Values[1])
	}
}

// Scenario 4: LEFT JOIN with no match on the right null-pads.
func TestLeftJoinNullPads(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE a (id INTEGER)")
	mustCreateTable(t, cat, "CREATE TABLE b (a_id INTEGER, v TEXT)")
	mustInsert(t, cat, "INSERT INTO a VALUES (1),(2)")
	mustInsert(t, cat, "INSERT INTO b VALUES (1,'x')")

	_, rows := mustSelect(t, cat, "SELECT a.id, b.v FROM a LEFT JOIN b ON a.id = b.a_id ORDER BY a.id")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].Values[0].Integer() != 2 || !rows[1].Values[1].IsNull() {
		t.Fatalf("unmatched left row = %+v, want id=2, v=NULL", rows[1])
	}
}

// Scenario 5: FK ON DELETE CASCADE removes the referencing child rows.
func TestForeignKeyCascadeDeleteThroughExecutor(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE dept (id INTEGER)")
	mustCreateTable(t, cat, "CREATE TABLE emp (id INTEGER, dept_id INTEGER FOREIGN KEY REFERENCES dept(id) ON DELETE CASCADE)")
	mustInsert(t, cat, "INSERT INTO dept VALUES (1)")
	mustInsert(t, cat, "INSERT INTO emp VALUES (100, 1), (101, 1)")

	stmt := mustParse(t, "DELETE FROM dept WHERE id = 1").(*parser.DeleteStmt)
	if _, err := ExecuteDelete(cat, stmt); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, rows := mustSelect(t, cat, "SELECT * FROM emp")
	if len(rows) != 0 {
		t.Fatalf("cascade delete left %d emp rows, want 0", len(rows))
	}
}

func TestUpdateRejectsDanglingForeignKey(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE dept (id INTEGER)")
	mustCreateTable(t, cat, "CREATE TABLE emp (id INTEGER, dept_id INTEGER FOREIGN KEY REFERENCES dept(id))")
	mustInsert(t, cat, "INSERT INTO dept VALUES (1)")
	mustInsert(t, cat, "INSERT INTO emp VALUES (100, 1)")

	stmt := mustParse(t, "UPDATE emp SET dept_id = 99 WHERE id = 100").(*parser.UpdateStmt)
	if _, err := ExecuteUpdate(cat, stmt); err == nil {
		t.Fatal("update to a dangling dept_id should fail")
	}
}

func TestWherePredicateThreeValuedLogicExcludesNull(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE t (id INTEGER, score INTEGER)")
	mustInsert(t, cat, "INSERT INTO t VALUES (1, 5), (2, NULL)")

	_, rows := mustSelect(t, cat, "SELECT id FROM t WHERE score > 0")
	if len(rows) != 1 || rows[0].Values[0].Integer() != 1 {
		t.Fatalf("WHERE score > 0 over a NULL row = %+v, want only id=1", rows)
	}
}

func TestIndexConsistencyAfterDeleteAndUpdate(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE t (id INTEGER, tag TEXT)")
	if err := cat.CreateIndex("idx_tag", "t", "tag"); err != nil {
		t.Fatalf("create index: %v", err)
	}
	mustInsert(t, cat, "INSERT INTO t VALUES (1,'a'),(2,'b'),(3,'a')")

	del := mustParse(t, "DELETE FROM t WHERE id = 1").(*parser.DeleteStmt)
	if _, err := ExecuteDelete(cat, del); err != nil {
		t.Fatalf("delete: %v", err)
	}
	upd := mustParse(t, "UPDATE t SET tag = 'c' WHERE id = 2").(*parser.UpdateStmt)
	if _, err := ExecuteUpdate(cat, upd); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, rows := mustSelect(t, cat, "SELECT id FROM t WHERE tag = 'a'")
	if len(rows) != 1 || rows[0].Values[0].Integer() != 3 {
		t.Fatalf("idx_tag lookup after delete/update = %+v, want only id=3", rows)
	}
	_, rows = mustSelect(t, cat, "SELECT id FROM t WHERE tag = 'c'")
	if len(rows) != 1 || rows[0].Values[0].Integer() != 2 {
		t.Fatalf("idx_tag lookup for updated value = %+v, want only id=2", rows)
	}
}

func TestScalarSubqueryCorrelated(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE dept (id INTEGER, name TEXT)")
	mustCreateTable(t, cat, "CREATE TABLE emp (id INTEGER, dept_id INTEGER)")
	mustInsert(t, cat, "INSERT INTO dept VALUES (1,'eng'),(2,'sales')")
	mustInsert(t, cat, "INSERT INTO emp VALUES (100,1),(101,2)")

	_, rows := mustSelect(t, cat, "SELECT id, (SELECT name FROM dept WHERE dept.id = emp.dept_id) FROM emp ORDER BY id")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Values[1].Text() != "eng" || rows[1].Values[1].Text() != "sales" {
		t.Fatalf("correlated subquery results = %v", rows)
	}
}

func TestExistsSubqueryCorrelated(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE dept (id INTEGER)")
	mustCreateTable(t, cat, "CREATE TABLE emp (id INTEGER, dept_id INTEGER)")
	mustInsert(t, cat, "INSERT INTO dept VALUES (1),(2)")
	mustInsert(t, cat, "INSERT INTO emp VALUES (100,1)")

	_, rows := mustSelect(t, cat, "SELECT id FROM dept WHERE EXISTS (SELECT 1 FROM emp WHERE emp.dept_id = dept.id)")
	if len(rows) != 1 || rows[0].Values[0].Integer() != 1 {
		t.Fatalf("EXISTS correlated subquery = %v, want only dept id=1", rows)
	}
}

func TestLikePatternMatching(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE t (name TEXT)")
	mustInsert(t, cat, "INSERT INTO t VALUES ('alice'),('bob'),('alex')")

	_, rows := mustSelect(t, cat, "SELECT name FROM t WHERE name LIKE 'al%'")
	if len(rows) != 2 {
		t.Fatalf("LIKE 'al%%' matched %d rows, want 2", len(rows))
	}
}

func TestInsertTypeMismatchRejected(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE t (id INTEGER)")
	stmt := mustParse(t, "INSERT INTO t VALUES ('not a number')").(*parser.InsertStmt)
	if _, err := ExecuteInsert(cat, stmt); err == nil {
		t.Fatal("inserting text into an INTEGER column should fail")
	}
}

func TestDistinctDedupsProjectedTuples(t *testing.T) {
	cat := catalog.NewCatalog()
	mustCreateTable(t, cat, "CREATE TABLE t (tag TEXT)")
	mustInsert(t, cat, "INSERT INTO t VALUES ('a'),('a'),('b')")

	_, rows := mustSelect(t, cat, "SELECT DISTINCT tag FROM t ORDER BY tag")
	if len(rows) != 2 {
		t.Fatalf("DISTINCT produced %d rows, want 2", len(rows))
	}
}
