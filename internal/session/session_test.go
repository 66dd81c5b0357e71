package session

import (
	"path/filepath"
	"strings"
	"testing"

	"rustql/internal/catalog"
	"rustql/internal/storage"
)

func newTestSession(t *testing.T) (*Session, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	return New(catalog.NewCatalog(), path), path
}

func mustExec(t *testing.T, s *Session, sql string) *Result {
	t.Helper()
	res, err := s.Execute(sql)
	if err != nil {
		t.Fatalf("Execute(%q): %v", sql, err)
	}
	return res
}

func TestTransactionRollbackRestoresPriorState(t *testing.T) {
	s, _ := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (id INTEGER)")
	mustExec(t, s, "INSERT INTO t VALUES (1)")
	mustExec(t, s, "BEGIN")
	mustExec(t, s, "INSERT INTO t VALUES (2)")
	mustExec(t, s, "DELETE FROM t WHERE id = 1")

	mid := mustExec(t, s, "SELECT * FROM t")
	if len(mid.Rows) != 1 {
		t.Fatalf("mid-transaction row count = %d, want 1", len(mid.Rows))
	}

	mustExec(t, s, "ROLLBACK")

	after := mustExec(t, s, "SELECT * FROM t")
	if len(after.Rows) != 1 || after.Rows[0][0].Integer() != 1 {
		t.Fatalf("after rollback = %+v, want exactly row id=1", after.Rows)
	}
}

func TestCommitKeepsChanges(t *testing.T) {
	s, _ := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (id INTEGER)")
	mustExec(t, s, "BEGIN")
	mustExec(t, s, "INSERT INTO t VALUES (1)")
	mustExec(t, s, "COMMIT")

	res := mustExec(t, s, "SELECT * FROM t")
	if len(res.Rows) != 1 {
		t.Fatalf("after commit = %+v, want 1 row", res.Rows)
	}
}

func TestNestedBeginIsRejected(t *testing.T) {
	s, _ := newTestSession(t)
	mustExec(t, s, "BEGIN")
	if _, err := s.Execute("BEGIN"); err == nil {
		t.Fatal("nested BEGIN should fail")
	}
}

func TestCommitWithoutBeginIsRejected(t *testing.T) {
	s, _ := newTestSession(t)
	if _, err := s.Execute("COMMIT"); err == nil {
		t.Fatal("COMMIT with no active transaction should fail")
	}
}

func TestExplainRendersIndentedPlanTree(t *testing.T) {
	s, _ := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (id INTEGER, name TEXT)")
	mustExec(t, s, "INSERT INTO t VALUES (1, 'a')")

	res := mustExec(t, s, "EXPLAIN SELECT * FROM t WHERE id = 1")
	if res.Message == "" {
		t.Fatal("EXPLAIN produced no plan text")
	}
	if !strings.Contains(res.Message, "rows=") || !strings.Contains(res.Message, "cost=") {
		t.Errorf("EXPLAIN output %q missing rows=/cost= annotations", res.Message)
	}
	if !strings.Contains(res.Message, "\n  ") {
		t.Errorf("EXPLAIN output %q has no indented child node", res.Message)
	}
}

// Non-transactional mutations save to disk immediately (spec.md §3):
// a fresh Load of the same path, with no COMMIT ever issued, must see
// the row.
func TestNonTransactionalStatementPersistsImmediately(t *testing.T) {
	s, path := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (id INTEGER)")
	mustExec(t, s, "INSERT INTO t VALUES (1)")

	onDisk, err := storage.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tbl, err := onDisk.Table("t")
	if err != nil {
		t.Fatalf("Table(t): %v", err)
	}
	if len(tbl.Rows()) != 1 {
		t.Fatalf("rows persisted immediately = %d, want 1", len(tbl.Rows()))
	}
}

// A mutation made inside BEGIN is not written to disk until COMMIT
// (spec.md §4.6, §5).
func TestTransactionDefersSaveUntilCommit(t *testing.T) {
	s, path := newTestSession(t)
	mustExec(t, s, "CREATE TABLE t (id INTEGER)")
	mustExec(t, s, "BEGIN")
	mustExec(t, s, "INSERT INTO t VALUES (1)")

	onDisk, err := storage.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tbl, err := onDisk.Table("t")
	if err != nil {
		t.Fatalf("Table(t): %v", err)
	}
	if len(tbl.Rows()) != 0 {
		t.Fatalf("rows visible on disk before COMMIT = %d, want 0", len(tbl.Rows()))
	}

	mustExec(t, s, "COMMIT")

	onDisk, err = storage.Load(path)
	if err != nil {
		t.Fatalf("Load after COMMIT: %v", err)
	}
	tbl, err = onDisk.Table("t")
	if err != nil {
		t.Fatalf("Table(t) after COMMIT: %v", err)
	}
	if len(tbl.Rows()) != 1 {
		t.Fatalf("rows on disk after COMMIT = %d, want 1", len(tbl.Rows()))
	}
}
