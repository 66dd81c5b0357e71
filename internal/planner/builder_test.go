package planner

import (
	"testing"

	"rustql/internal/catalog"
	"rustql/internal/parser"
	"rustql/internal/types"
)

func mustCatalog(t *testing.T, stmts ...string) *catalog.Catalog {
	t.Helper()
	cat := catalog.NewCatalog()
	for _, s := range stmts {
		stmt, err := parser.ParseStatement(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		switch n := stmt.(type) {
		case *parser.CreateTableStmt:
			cols := make([]catalog.Column, len(n.Columns))
			for i, c := range n.Columns {
				cols[i] = catalog.Column{Name: c.Name, Type: c.Type}
			}
			if err := cat.CreateTable(n.Name, cols); err != nil {
				t.Fatalf("create table: %v", err)
			}
		case *parser.CreateIndexStmt:
			if err := cat.CreateIndex(n.IndexName, n.Table, n.Column); err != nil {
				t.Fatalf("create index: %v", err)
			}
		case *parser.InsertStmt:
			for _, row := range n.Rows {
				values := make([]types.Value, len(row))
				for i, e := range row {
					lit, ok := e.(*parser.Literal)
					if !ok {
						t.Fatalf("insert row literal expected, got %T", e)
					}
					values[i] = lit.Value
				}
				if _, err := cat.Insert(n.Table, values); err != nil {
					t.Fatalf("insert: %v", err)
				}
			}
		default:
			t.Fatalf("unsupported setup statement: %T", stmt)
		}
	}
	return cat
}

func parseSelect(t *testing.T, sql string) *parser.SelectStmt {
	t.Helper()
	stmt, err := parser.ParseStatement(sql)
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	sel, ok := stmt.(*parser.SelectStmt)
	if !ok {
		t.Fatalf("expected *SelectStmt, got %T", stmt)
	}
	return sel
}

func TestBuildChoosesIndexScanOverSeqScanForEquality(t *testing.T) {
	cat := mustCatalog(t,
		"CREATE TABLE u (id INTEGER, name TEXT)",
		"CREATE INDEX idx_id ON u (id)",
		"INSERT INTO u VALUES (1,'A'),(2,'B'),(3,'C')",
	)
	sel := parseSelect(t, "SELECT * FROM u WHERE id = 2")
	plan, err := Build(sel, cat)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proj, ok := plan.(*Project)
	if !ok {
		t.Fatalf("expected top-level *Project, got %T", plan)
	}
	scan, ok := proj.Input.(*IndexScan)
	if !ok {
		t.Fatalf("expected *IndexScan under Project, got %T", proj.Input)
	}
	if scan.Column != "id" {
		t.Fatalf("index scan column = %q, want id", scan.Column)
	}
}

func TestBuildFallsBackToSeqScanWithoutIndex(t *testing.T) {
	cat := mustCatalog(t,
		"CREATE TABLE u (id INTEGER, name TEXT)",
		"INSERT INTO u VALUES (1,'A')",
	)
	sel := parseSelect(t, "SELECT * FROM u WHERE id = 1")
	plan, err := Build(sel, cat)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proj := plan.(*Project)
	if _, ok := proj.Input.(*Filter); !ok {
		t.Fatalf("expected Filter wrapping SeqScan, got %T", proj.Input)
	}
}

func TestBuildJoinPrefersHashJoinOnEquality(t *testing.T) {
	cat := mustCatalog(t,
		"CREATE TABLE a (id INTEGER)",
		"CREATE TABLE b (a_id INTEGER, v TEXT)",
		"INSERT INTO a VALUES (1),(2)",
		"INSERT INTO b VALUES (1,'x')",
	)
	sel := parseSelect(t, "SELECT a.id, b.v FROM a LEFT JOIN b ON a.id = b.a_id")
	plan, err := Build(sel, cat)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proj := plan.(*Project)
	join, ok := proj.Input.(*HashJoin)
	if !ok {
		t.Fatalf("expected *HashJoin for equi-join, got %T", proj.Input)
	}
	if join.Kind != parser.LeftJoin {
		t.Fatalf("join kind = %v, want LeftJoin", join.Kind)
	}
}

func TestBuildAggregateWithGroupByAndHaving(t *testing.T) {
	cat := mustCatalog(t,
		"CREATE TABLE emp (dept TEXT, salary INTEGER)",
		"INSERT INTO emp VALUES ('x',10),('x',20),('y',30),('y',40)",
	)
	sel := parseSelect(t, "SELECT dept, AVG(salary) FROM emp GROUP BY dept HAVING AVG(salary) > 20")
	plan, err := Build(sel, cat)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	agg, ok := plan.(*Aggregate)
	if !ok {
		t.Fatalf("expected top-level *Aggregate, got %T", plan)
	}
	if agg.Having == nil {
		t.Fatal("HAVING predicate should be attached to the Aggregate node")
	}
	if len(agg.GroupBy) != 1 {
		t.Fatalf("group by len = %d, want 1", len(agg.GroupBy))
	}
}

func TestBuildOrderByLimitOffset(t *testing.T) {
	cat := mustCatalog(t,
		"CREATE TABLE u (id INTEGER, name TEXT)",
		"INSERT INTO u VALUES (1,'A'),(2,'B'),(3,'C'),(4,'D')",
	)
	sel := parseSelect(t, "SELECT name FROM u ORDER BY id DESC LIMIT 2 OFFSET 1")
	plan, err := Build(sel, cat)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	lim, ok := plan.(*Limit)
	if !ok {
		t.Fatalf("expected top-level *Limit, got %T", plan)
	}
	if lim.Count != 2 || lim.Offset != 1 {
		t.Fatalf("limit=%d offset=%d, want 2/1", lim.Count, lim.Offset)
	}
	if _, ok := lim.Input.(*Sort); !ok {
		t.Fatalf("expected *Sort under Limit, got %T", lim.Input)
	}
}

func TestBuildResidualPredicateSurvivesAsFilter(t *testing.T) {
	cat := mustCatalog(t,
		"CREATE TABLE u (id INTEGER, score INTEGER)",
		"INSERT INTO u VALUES (1,5),(2,9)",
	)
	sel := parseSelect(t, "SELECT * FROM u WHERE id > 0 AND score > 5")
	plan, err := Build(sel, cat)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proj := plan.(*Project)
	filter, ok := proj.Input.(*Filter)
	if !ok {
		t.Fatalf("expected *Filter wrapping scan, got %T", proj.Input)
	}
	if filter.Predicate == nil {
		t.Fatal("filter predicate should not be nil")
	}
}
