// Package planner turns a parsed SELECT into a Plan tree (spec.md
// §4.4): a cost-annotated tree of access paths, joins, and the
// relational operators above them. The executor walks the tree it
// receives; the planner never touches rows itself.
package planner

import (
	"fmt"
	"strings"

	"rustql/internal/parser"
)

// Plan is one node of a query plan. Every node carries its own
// estimated row count and cost so EXPLAIN can render them without
// re-deriving anything from the tree shape.
type Plan interface {
	EstimatedRows() int64
	EstimatedCost() float64
	Describe() string
	Children() []Plan
}

type estimate struct {
	rows int64
	cost float64
}

func (e estimate) EstimatedRows() int64   { return e.rows }
func (e estimate) EstimatedCost() float64 { return e.cost }

// SeqScan iterates a table's rows in insertion order.
type SeqScan struct {
	estimate
	Table string
	Alias string
}

func (s *SeqScan) Describe() string { return fmt.Sprintf("SeqScan(%s)", s.Table) }
func (s *SeqScan) Children() []Plan { return nil }

// IndexScan evaluates a pushdown predicate over one index's entries.
// Predicate is the original WHERE conjunct (col op lit with op one of
// = < <= > >=, col IN (literals), or col BETWEEN a AND b) the executor
// evaluates against the index.
type IndexScan struct {
	estimate
	Table, Alias, Index, Column string
	Predicate                   parser.Expression
}

func (s *IndexScan) Describe() string { return fmt.Sprintf("IndexScan(%s)", parser.Render(s.Predicate)) }
func (s *IndexScan) Children() []Plan { return nil }

// Filter re-evaluates a residual predicate per row with three-valued
// logic; only True passes.
type Filter struct {
	estimate
	Input     Plan
	Predicate parser.Expression
}

func (f *Filter) Describe() string { return fmt.Sprintf("Filter(%s)", parser.Render(f.Predicate)) }
func (f *Filter) Children() []Plan { return []Plan{f.Input} }

// NestedLoopJoin probes every right row against every left row.
type NestedLoopJoin struct {
	estimate
	Left, Right Plan
	Kind        parser.JoinKind
	On          parser.Expression
}

func (j *NestedLoopJoin) Describe() string {
	return fmt.Sprintf("NestedLoopJoin(%s, on=%s)", joinKindName(j.Kind), parser.Render(j.On))
}
func (j *NestedLoopJoin) Children() []Plan { return []Plan{j.Left, j.Right} }

// HashJoin builds a hash table over the right input's equi-join key
// and probes it with each left row. The build side is always the right
// input; the executor does not switch to the smaller side.
type HashJoin struct {
	estimate
	Left, Right Plan
	Kind        parser.JoinKind
	LeftKey     *parser.ColumnRef
	RightKey    *parser.ColumnRef
	On          parser.Expression
}

func (j *HashJoin) Describe() string {
	return fmt.Sprintf("HashJoin(%s, on=%s)", joinKindName(j.Kind), parser.Render(j.On))
}
func (j *HashJoin) Children() []Plan { return []Plan{j.Left, j.Right} }

func joinKindName(k parser.JoinKind) string {
	switch k {
	case parser.LeftJoin:
		return "LEFT"
	case parser.RightJoin:
		return "RIGHT"
	case parser.FullJoin:
		return "FULL"
	default:
		return "INNER"
	}
}

// Aggregate partitions its input by GroupBy and evaluates Projections
// (which may mix grouping columns and aggregate calls) per group,
// then applies Having. With no GroupBy, the whole input is one group.
type Aggregate struct {
	estimate
	Input       Plan
	GroupBy     []parser.Expression
	Projections []parser.Projection
	Having      parser.Expression
}

func (a *Aggregate) Describe() string {
	return fmt.Sprintf("Aggregate(group_by=%d)", len(a.GroupBy))
}
func (a *Aggregate) Children() []Plan { return []Plan{a.Input} }

// Sort stably orders rows by OrderBy terms, left to right.
type Sort struct {
	estimate
	Input Plan
	Terms []parser.OrderTerm
}

func (s *Sort) Describe() string {
	parts := make([]string, len(s.Terms))
	for i, t := range s.Terms {
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", parser.Render(t.Expr), dir)
	}
	return fmt.Sprintf("Sort(%s)", strings.Join(parts, ", "))
}
func (s *Sort) Children() []Plan { return []Plan{s.Input} }

// Limit skips Offset rows then emits at most Count rows.
type Limit struct {
	estimate
	Input        Plan
	Count, Offset int64
}

func (l *Limit) Describe() string {
	return fmt.Sprintf("Limit(limit=%d, offset=%d)", l.Count, l.Offset)
}
func (l *Limit) Children() []Plan { return []Plan{l.Input} }

// Distinct dedups by the projected tuple.
type Distinct struct {
	estimate
	Input Plan
}

func (d *Distinct) Describe() string { return "Distinct()" }
func (d *Distinct) Children() []Plan { return []Plan{d.Input} }

// Project evaluates the SELECT list against each input row.
type Project struct {
	estimate
	Input       Plan
	Projections []parser.Projection
}

func (p *Project) Describe() string { return fmt.Sprintf("Project(cols=%d)", len(p.Projections)) }
func (p *Project) Children() []Plan { return []Plan{p.Input} }
