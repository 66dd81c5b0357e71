// Package session dispatches parsed statements to the catalog,
// planner and executor, and tracks transaction boundaries (spec.md
// §4.6, §6; SPEC_FULL.md §4.7).
package session

import (
	"fmt"
	"strings"

	"rustql/internal/catalog"
	"rustql/internal/executor"
	"rustql/internal/parser"
	"rustql/internal/planner"
	"rustql/internal/storage"
	"rustql/internal/types"
)

// Result is what one statement produces: a SELECT fills
// Columns/Rows, a DML statement fills Affected, everything else just
// carries a human-readable Message (also where EXPLAIN's rendered
// tree lives).
type Result struct {
	Columns  []string
	Rows     [][]types.Value
	Affected int64
	Message  string
}

// Session wraps one Catalog plus the single level of transaction
// nesting spec.md §4.6 allows: BEGIN snapshots, COMMIT discards the
// snapshot, ROLLBACK restores it. path is where the catalog is
// persisted: non-transactional mutations save immediately (spec.md
// §3), while a mutation made inside BEGIN/COMMIT defers its save until
// COMMIT (spec.md §4.6, §5).
type Session struct {
	Cat      *catalog.Catalog
	path     string
	txActive bool
	snapshot *catalog.Catalog
}

func New(cat *catalog.Catalog, path string) *Session {
	return &Session{Cat: cat, path: path}
}

// Execute parses and runs one statement.
func (s *Session) Execute(sql string) (*Result, error) {
	stmt, err := parser.ParseStatement(sql)
	if err != nil {
		return nil, err
	}
	return s.ExecuteStatement(stmt)
}

// ExecuteStatement runs an already-parsed statement. Non-transactional
// statements that mutate the catalog save to disk immediately after
// they apply (spec.md §3); a mutation made inside an open transaction
// defers its save until COMMIT (spec.md §4.6).
func (s *Session) ExecuteStatement(stmt parser.Statement) (*Result, error) {
	result, mutating, err := s.dispatch(stmt)
	if err != nil {
		return nil, err
	}
	if mutating && !s.txActive {
		if err := storage.Save(s.path, s.Cat); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// dispatch runs stmt and reports whether it mutated the catalog (and
// so needs persisting once ExecuteStatement knows whether a
// transaction is covering it).
func (s *Session) dispatch(stmt parser.Statement) (*Result, bool, error) {
	switch n := stmt.(type) {
	case *parser.BeginStmt:
		res, err := s.begin()
		return res, false, err
	case *parser.CommitStmt:
		res, err := s.commit()
		return res, false, err
	case *parser.RollbackStmt:
		res, err := s.rollback()
		return res, false, err
	case *parser.CreateTableStmt:
		res, err := s.createTable(n)
		return res, true, err
	case *parser.DropTableStmt:
		if err := s.Cat.DropTable(n.Name); err != nil {
			return nil, false, err
		}
		return &Result{Message: "DROP TABLE"}, true, nil
	case *parser.AlterTableStmt:
		res, err := s.alterTable(n)
		return res, true, err
	case *parser.CreateIndexStmt:
		if err := s.Cat.CreateIndex(n.IndexName, n.Table, n.Column); err != nil {
			return nil, false, err
		}
		return &Result{Message: "CREATE INDEX"}, true, nil
	case *parser.DropIndexStmt:
		if err := s.Cat.DropIndex(n.IndexName); err != nil {
			return nil, false, err
		}
		return &Result{Message: "DROP INDEX"}, true, nil
	case *parser.InsertStmt:
		affected, err := executor.ExecuteInsert(s.Cat, n)
		if err != nil {
			return nil, false, err
		}
		return &Result{Affected: affected, Message: "INSERT"}, true, nil
	case *parser.UpdateStmt:
		affected, err := executor.ExecuteUpdate(s.Cat, n)
		if err != nil {
			return nil, false, err
		}
		return &Result{Affected: affected, Message: "UPDATE"}, true, nil
	case *parser.DeleteStmt:
		affected, err := executor.ExecuteDelete(s.Cat, n)
		if err != nil {
			return nil, false, err
		}
		return &Result{Affected: affected, Message: "DELETE"}, true, nil
	case *parser.SelectStmt:
		res, err := s.runSelect(n)
		return res, false, err
	case *parser.ExplainStmt:
		res, err := s.explain(n)
		return res, false, err
	}
	return nil, false, fmt.Errorf("session: unsupported statement %T", stmt)
}

func (s *Session) begin() (*Result, error) {
	if s.txActive {
		return nil, &catalog.TransactionStateError{Message: "a transaction is already active"}
	}
	s.snapshot = s.Cat.Snapshot()
	s.txActive = true
	return &Result{Message: "BEGIN"}, nil
}

func (s *Session) commit() (*Result, error) {
	if !s.txActive {
		return nil, &catalog.TransactionStateError{Message: "no active transaction to commit"}
	}
	if err := storage.Save(s.path, s.Cat); err != nil {
		s.Cat.RestoreFrom(s.snapshot)
		s.txActive = false
		s.snapshot = nil
		return nil, err
	}
	s.txActive = false
	s.snapshot = nil
	return &Result{Message: "COMMIT"}, nil
}

func (s *Session) rollback() (*Result, error) {
	if !s.txActive {
		return nil, &catalog.TransactionStateError{Message: "no active transaction to roll back"}
	}
	s.Cat.RestoreFrom(s.snapshot)
	s.txActive = false
	s.snapshot = nil
	return &Result{Message: "ROLLBACK"}, nil
}

func (s *Session) createTable(n *parser.CreateTableStmt) (*Result, error) {
	cols := make([]catalog.Column, len(n.Columns))
	for i, c := range n.Columns {
		cols[i] = toCatalogColumn(c)
	}
	if err := s.Cat.CreateTable(n.Name, cols); err != nil {
		return nil, err
	}
	return &Result{Message: "CREATE TABLE"}, nil
}

func (s *Session) alterTable(n *parser.AlterTableStmt) (*Result, error) {
	switch op := n.Op.(type) {
	case parser.AddColumnOp:
		if err := s.Cat.AlterAddColumn(n.Name, toCatalogColumn(op.Column)); err != nil {
			return nil, err
		}
	case parser.DropColumnOp:
		if err := s.Cat.AlterDropColumn(n.Name, op.Name); err != nil {
			return nil, err
		}
	case parser.RenameColumnOp:
		if err := s.Cat.AlterRenameColumn(n.Name, op.Old, op.New); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("session: unsupported ALTER TABLE operation %T", n.Op)
	}
	return &Result{Message: "ALTER TABLE"}, nil
}

func (s *Session) runSelect(n *parser.SelectStmt) (*Result, error) {
	schema, rows, err := executor.ExecuteSelect(n, s.Cat)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(schema))
	for i, c := range schema {
		cols[i] = c.Name
	}
	values := make([][]types.Value, len(rows))
	for i, r := range rows {
		values[i] = r.Values
	}
	return &Result{Columns: cols, Rows: values}, nil
}

func (s *Session) explain(n *parser.ExplainStmt) (*Result, error) {
	plan, err := planner.Build(n.Select, s.Cat)
	if err != nil {
		return nil, err
	}
	return &Result{Message: explainTree(plan, 0)}, nil
}

// explainTree renders a plan as spec.md §6's "NodeKind(key_args)
// rows=<n> cost=<c>" lines, indented two spaces per depth.
func explainTree(p planner.Plan, depth int) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&b, "%s rows=%d cost=%.2f", p.Describe(), p.EstimatedRows(), p.EstimatedCost())
	for _, child := range p.Children() {
		b.WriteString("\n")
		b.WriteString(explainTree(child, depth+1))
	}
	return b.String()
}

func toCatalogColumn(c parser.ColumnDef) catalog.Column {
	col := catalog.Column{Name: c.Name, Type: c.Type}
	if c.ForeignKey != nil {
		col.ForeignKey = &catalog.ForeignKey{
			ParentTable:  c.ForeignKey.ParentTable,
			ParentColumn: c.ForeignKey.ParentColumn,
			OnDelete:     toCatalogAction(c.ForeignKey.OnDelete),
			OnUpdate:     toCatalogAction(c.ForeignKey.OnUpdate),
		}
	}
	return col
}

func toCatalogAction(a parser.FKAction) catalog.FKAction {
	switch a {
	case parser.Cascade:
		return catalog.Cascade
	case parser.Restrict:
		return catalog.Restrict
	case parser.SetNull:
		return catalog.SetNull
	default:
		return catalog.NoAction
	}
}
