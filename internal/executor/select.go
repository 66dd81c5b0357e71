package executor

import (
	"rustql/internal/catalog"
	"rustql/internal/parser"
	"rustql/internal/planner"
)

// ExecuteSelect plans and runs sel against cat, materializing every
// result row. It is the entry point package session uses for SELECT
// and EXPLAIN, and the one the evaluator recurses into for subqueries.
func ExecuteSelect(sel *parser.SelectStmt, cat *catalog.Catalog) (Schema, []Row, error) {
	return ExecuteSelectWith(sel, NewContext(cat))
}

// ExecuteSelectWith runs sel reusing an existing Context, so a
// correlated subquery shares the outer row-context stack instead of
// starting a fresh one.
func ExecuteSelectWith(sel *parser.SelectStmt, ctx *Context) (Schema, []Row, error) {
	plan, err := planner.Build(sel, ctx.Cat)
	if err != nil {
		return nil, nil, err
	}
	iter, err := Run(plan, ctx)
	if err != nil {
		return nil, nil, err
	}
	rows, err := materialize(iter)
	if err != nil {
		return nil, nil, err
	}
	return iter.Schema(), rows, nil
}

// runSubquery executes sel with the calling row pushed onto ctx's
// stack, so SubqueryExpr/InExpr/ExistsExpr nodes inside sel can
// resolve the outer query's columns (spec.md §9).
func runSubquery(sel *parser.SelectStmt, outerSchema Schema, outerRow Row, ctx *Context) ([]Row, Schema, error) {
	ctx.push(outerSchema, outerRow)
	defer ctx.pop()
	schema, rows, err := ExecuteSelectWith(sel, ctx)
	if err != nil {
		return nil, nil, err
	}
	return rows, schema, nil
}
