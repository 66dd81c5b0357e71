package planner

import (
	"rustql/internal/catalog"
	"rustql/internal/lexer"
	"rustql/internal/parser"
)

// Build compiles a SELECT statement into a Plan tree (spec.md §4.4).
func Build(sel *parser.SelectStmt, cat *catalog.Catalog) (Plan, error) {
	aliases := tableAliases(sel)
	conjuncts := flattenAnd(sel.Where)
	perTable, residualIdx := assignConjuncts(conjuncts, aliases)

	baseAlias := aliasOf(sel.From)
	current, err := buildScan(sel.From, perTable[baseAlias], cat)
	if err != nil {
		return nil, err
	}

	current, err = buildJoinChain(current, sel.Joins, perTable, cat)
	if err != nil {
		return nil, err
	}

	if len(residualIdx) > 0 {
		var residual []parser.Expression
		for _, i := range residualIdx {
			residual = append(residual, conjuncts[i])
		}
		pred := combineAnd(residual)
		current = &Filter{
			estimate:  estimate{rows: current.EstimatedRows(), cost: current.EstimatedCost() + float64(current.EstimatedRows())},
			Input:     current,
			Predicate: pred,
		}
	}

	if hasAggregate(sel) {
		rows := current.EstimatedRows()
		if len(sel.GroupBy) > 0 && rows > 1 {
			rows = rows / 2 // grouping collapses rows; exact count is data-dependent
		} else if len(sel.GroupBy) == 0 {
			rows = 1
		}
		current = &Aggregate{
			estimate:    estimate{rows: rows, cost: current.EstimatedCost() + float64(current.EstimatedRows())},
			Input:       current,
			GroupBy:     sel.GroupBy,
			Projections: sel.Projections,
			Having:      sel.Having,
		}
	} else {
		current = &Project{
			estimate:    estimate{rows: current.EstimatedRows(), cost: current.EstimatedCost()},
			Input:       current,
			Projections: sel.Projections,
		}
	}

	if sel.Distinct {
		current = &Distinct{
			estimate: estimate{rows: current.EstimatedRows(), cost: current.EstimatedCost() + float64(current.EstimatedRows())},
			Input:    current,
		}
	}

	if len(sel.OrderBy) > 0 {
		current = &Sort{
			estimate: estimate{rows: current.EstimatedRows(), cost: current.EstimatedCost() + sortCost(current.EstimatedRows())},
			Input:    current,
			Terms:    sel.OrderBy,
		}
	}

	// LIMIT without ORDER BY needs no intervening Sort node, so it sits
	// directly above Project/Distinct rather than a Sort subtree.
	if sel.Limit != nil || sel.Offset != nil {
		limit := current.EstimatedRows()
		if sel.Limit != nil {
			limit = *sel.Limit
		}
		var offset int64
		if sel.Offset != nil {
			offset = *sel.Offset
		}
		rows := limit
		if current.EstimatedRows()-offset < rows {
			rows = current.EstimatedRows() - offset
		}
		if rows < 0 {
			rows = 0
		}
		current = &Limit{
			estimate: estimate{rows: rows, cost: current.EstimatedCost()},
			Input:    current,
			Count:    limit,
			Offset:   offset,
		}
	}

	return current, nil
}

func sortCost(rows int64) float64 {
	if rows < 2 {
		return float64(rows)
	}
	n := float64(rows)
	// n*log2(n), computed without math.Log2 to avoid a stdlib
	// dependency for a single cost estimate.
	levels := 0.0
	for v := n; v > 1; v /= 2 {
		levels++
	}
	return n * levels
}

// tableAliases returns every FROM/JOIN source's effective alias.
func tableAliases(sel *parser.SelectStmt) []string {
	out := []string{aliasOf(sel.From)}
	for _, j := range sel.Joins {
		out = append(out, aliasOf(j.Table))
	}
	return out
}

func aliasOf(ref parser.TableRef) string {
	if ref.Alias != "" {
		return ref.Alias
	}
	return ref.Name
}

func flattenAnd(e parser.Expression) []parser.Expression {
	if e == nil {
		return nil
	}
	if b, ok := e.(*parser.BinaryExpr); ok && b.Op == lexer.AND {
		return append(flattenAnd(b.Left), flattenAnd(b.Right)...)
	}
	return []parser.Expression{e}
}

func combineAnd(exprs []parser.Expression) parser.Expression {
	if len(exprs) == 0 {
		return nil
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = &parser.BinaryExpr{Left: out, Op: lexer.AND, Right: e}
	}
	return out
}

// assignConjuncts buckets each WHERE conjunct under the single table
// alias it exclusively references, so it can be pushed into that
// table's scan; conjuncts touching more than one table (or none
// unambiguously, or containing a subquery) are left as residual
// indices into conjuncts, applied as a Filter after joins.
func assignConjuncts(conjuncts []parser.Expression, aliases []string) (map[string][]parser.Expression, []int) {
	perTable := map[string][]parser.Expression{}
	var residual []int
	soleAlias := ""
	if len(aliases) == 1 {
		soleAlias = aliases[0]
	}
	for i, c := range conjuncts {
		if containsSubquery(c) {
			residual = append(residual, i)
			continue
		}
		refs := collectColumnRefs(c)
		owner := ""
		ambiguous := false
		for _, r := range refs {
			a := r.Table
			if a == "" {
				a = soleAlias
			}
			if a == "" {
				ambiguous = true
				break
			}
			if owner == "" {
				owner = a
			} else if owner != a {
				ambiguous = true
				break
			}
		}
		if ambiguous || owner == "" {
			residual = append(residual, i)
			continue
		}
		perTable[owner] = append(perTable[owner], c)
	}
	return perTable, residual
}

func containsSubquery(e parser.Expression) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *parser.SubqueryExpr:
		return true
	case *parser.ExistsExpr:
		return true
	case *parser.InExpr:
		if n.Subquery != nil {
			return true
		}
		return false
	case *parser.BinaryExpr:
		return containsSubquery(n.Left) || containsSubquery(n.Right)
	case *parser.UnaryExpr:
		return containsSubquery(n.Expr)
	case *parser.IsNullExpr:
		return containsSubquery(n.Expr)
	case *parser.LikeExpr:
		return containsSubquery(n.Expr) || containsSubquery(n.Pattern)
	case *parser.BetweenExpr:
		return containsSubquery(n.Expr) || containsSubquery(n.Low) || containsSubquery(n.High)
	case *parser.AggregateExpr:
		return containsSubquery(n.Arg)
	default:
		return false
	}
}

func collectColumnRefs(e parser.Expression) []*parser.ColumnRef {
	var out []*parser.ColumnRef
	var walk func(parser.Expression)
	walk = func(e parser.Expression) {
		switch n := e.(type) {
		case nil:
		case *parser.ColumnRef:
			out = append(out, n)
		case *parser.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *parser.UnaryExpr:
			walk(n.Expr)
		case *parser.IsNullExpr:
			walk(n.Expr)
		case *parser.InExpr:
			walk(n.Expr)
			for _, item := range n.List {
				walk(item)
			}
		case *parser.LikeExpr:
			walk(n.Expr)
			walk(n.Pattern)
		case *parser.BetweenExpr:
			walk(n.Expr)
			walk(n.Low)
			walk(n.High)
		case *parser.AggregateExpr:
			walk(n.Arg)
		}
	}
	walk(e)
	return out
}

func hasAggregate(sel *parser.SelectStmt) bool {
	if len(sel.GroupBy) > 0 {
		return true
	}
	for _, p := range sel.Projections {
		if containsAggregate(p.Expr) {
			return true
		}
	}
	return containsAggregate(sel.Having)
}

func containsAggregate(e parser.Expression) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *parser.AggregateExpr:
		return true
	case *parser.BinaryExpr:
		return containsAggregate(n.Left) || containsAggregate(n.Right)
	case *parser.UnaryExpr:
		return containsAggregate(n.Expr)
	case *parser.IsNullExpr:
		return containsAggregate(n.Expr)
	case *parser.LikeExpr:
		return containsAggregate(n.Expr)
	case *parser.BetweenExpr:
		return containsAggregate(n.Expr)
	default:
		return false
	}
}

// buildScan builds the access path for one table, choosing between a
// single index access path (spec.md §4.4) and a sequential scan, and
// wrapping any unused pushed-down conjuncts in a Filter.
func buildScan(ref parser.TableRef, pushed []parser.Expression, cat *catalog.Catalog) (Plan, error) {
	tbl, err := cat.Table(ref.Name)
	if err != nil {
		return nil, err
	}
	rowCount := tbl.RowCount()

	var chosen Plan
	var residual []parser.Expression
	for _, expr := range pushed {
		if chosen == nil {
			if plan, ok := tryIndexAccess(ref, expr, tbl, rowCount); ok {
				chosen = plan
				continue
			}
		}
		residual = append(residual, expr)
	}
	if chosen == nil {
		chosen = &SeqScan{estimate: estimate{rows: rowCount, cost: float64(rowCount)}, Table: ref.Name, Alias: aliasOf(ref)}
	}
	if len(residual) > 0 {
		pred := combineAnd(residual)
		chosen = &Filter{
			estimate:  estimate{rows: chosen.EstimatedRows(), cost: chosen.EstimatedCost() + float64(chosen.EstimatedRows())},
			Input:     chosen,
			Predicate: pred,
		}
	}
	return chosen, nil
}

// tryIndexAccess recognizes the pushdown shapes spec.md §4.4 names:
// col op literal, col IN (literals), col BETWEEN a AND b.
func tryIndexAccess(ref parser.TableRef, expr parser.Expression, tbl *catalog.Table, rowCount int64) (Plan, bool) {
	switch n := expr.(type) {
	case *parser.BinaryExpr:
		col, _, ok := columnLiteral(n.Left, n.Right)
		if !ok {
			return nil, false
		}
		switch n.Op {
		case lexer.EQ, lexer.LT, lexer.LTE, lexer.GT, lexer.GTE:
			ix := soleIndex(tbl, col.Name)
			if ix == nil {
				return nil, false
			}
			var sel float64
			if n.Op == lexer.EQ {
				sel = equalitySelectivity(ix.DistinctCount())
			} else {
				sel = rangeSelectivity
			}
			rows := estimatedRows(rowCount, sel)
			return &IndexScan{
				estimate: estimate{rows: rows, cost: float64(rows)},
				Table:    ref.Name, Alias: aliasOf(ref), Index: ix.Name, Column: col.Name,
				Predicate: expr,
			}, true
		}
	case *parser.InExpr:
		if n.Not || n.Subquery != nil {
			return nil, false
		}
		col, ok := n.Expr.(*parser.ColumnRef)
		if !ok {
			return nil, false
		}
		for _, item := range n.List {
			if _, ok := item.(*parser.Literal); !ok {
				return nil, false
			}
		}
		ix := soleIndex(tbl, col.Name)
		if ix == nil {
			return nil, false
		}
		rows := estimatedRows(rowCount, inSelectivity(len(n.List), ix.DistinctCount()))
		return &IndexScan{
			estimate: estimate{rows: rows, cost: float64(rows)},
			Table:    ref.Name, Alias: aliasOf(ref), Index: ix.Name, Column: col.Name,
			Predicate: expr,
		}, true
	case *parser.BetweenExpr:
		if n.Not {
			return nil, false
		}
		col, ok := n.Expr.(*parser.ColumnRef)
		if !ok {
			return nil, false
		}
		ix := soleIndex(tbl, col.Name)
		if ix == nil {
			return nil, false
		}
		rows := estimatedRows(rowCount, betweenSelectivity)
		return &IndexScan{
			estimate: estimate{rows: rows, cost: float64(rows)},
			Table:    ref.Name, Alias: aliasOf(ref), Index: ix.Name, Column: col.Name,
			Predicate: expr,
		}, true
	}
	return nil, false
}

func soleIndex(tbl *catalog.Table, column string) *catalog.Index {
	ixs := tbl.IndexesOnColumn(column)
	if len(ixs) == 0 {
		return nil
	}
	return ixs[0]
}

// columnLiteral recognizes `col op literal` or `literal op col` and
// returns the column side regardless of which operand it was.
func columnLiteral(left, right parser.Expression) (*parser.ColumnRef, *parser.Literal, bool) {
	if c, ok := left.(*parser.ColumnRef); ok {
		if l, ok := right.(*parser.Literal); ok {
			return c, l, true
		}
	}
	if c, ok := right.(*parser.ColumnRef); ok {
		if l, ok := left.(*parser.Literal); ok {
			return c, l, true
		}
	}
	return nil, nil, false
}

// buildJoinChain joins each FROM/JOIN source in turn. Consecutive
// INNER joins are reordered by a left-deep greedy heuristic (pick the
// next join that minimizes the running estimated row count); LEFT,
// RIGHT and FULL joins fix their position in the chain.
func buildJoinChain(base Plan, joins []parser.JoinClause, perTable map[string][]parser.Expression, cat *catalog.Catalog) (Plan, error) {
	current := base
	i := 0
	for i < len(joins) {
		runStart := i
		for i < len(joins) && joins[i].Kind == parser.InnerJoin {
			i++
		}
		run := joins[runStart:i]
		if len(run) > 0 {
			joined, err := greedyJoinRun(current, run, perTable, cat)
			if err != nil {
				return nil, err
			}
			current = joined
		}
		if i < len(joins) {
			j := joins[i]
			right, err := buildScan(j.Table, perTable[aliasOf(j.Table)], cat)
			if err != nil {
				return nil, err
			}
			current = chooseJoin(current, right, j.Kind, j.On)
			i++
		}
	}
	return current, nil
}

func greedyJoinRun(left Plan, run []parser.JoinClause, perTable map[string][]parser.Expression, cat *catalog.Catalog) (Plan, error) {
	remaining := append([]parser.JoinClause(nil), run...)
	current := left
	for len(remaining) > 0 {
		bestIdx := -1
		var bestPlan Plan
		for idx, cand := range remaining {
			right, err := buildScan(cand.Table, perTable[aliasOf(cand.Table)], cat)
			if err != nil {
				return nil, err
			}
			candidate := chooseJoin(current, right, cand.Kind, cand.On)
			if bestIdx == -1 || candidate.EstimatedRows() < bestPlan.EstimatedRows() {
				bestIdx, bestPlan = idx, candidate
			}
		}
		current = bestPlan
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return current, nil
}

func chooseJoin(left, right Plan, kind parser.JoinKind, on parser.Expression) Plan {
	leftKey, rightKey, equi := equiJoinKeys(on)
	rows := estimateJoinRows(left.EstimatedRows(), right.EstimatedRows(), kind, equi)
	if equi {
		cost := float64(left.EstimatedRows() + right.EstimatedRows())
		return &HashJoin{
			estimate: estimate{rows: rows, cost: cost},
			Left:     left, Right: right, Kind: kind,
			LeftKey: leftKey, RightKey: rightKey, On: on,
		}
	}
	cost := float64(left.EstimatedRows()) * float64(right.EstimatedRows())
	return &NestedLoopJoin{
		estimate: estimate{rows: rows, cost: cost},
		Left:     left, Right: right, Kind: kind, On: on,
	}
}

// equiJoinKeys recognizes an ON predicate of the form col = col,
// RustQL's one hash-joinable shape (spec.md §4.4).
func equiJoinKeys(on parser.Expression) (*parser.ColumnRef, *parser.ColumnRef, bool) {
	b, ok := on.(*parser.BinaryExpr)
	if !ok || b.Op != lexer.EQ {
		return nil, nil, false
	}
	l, lok := b.Left.(*parser.ColumnRef)
	r, rok := b.Right.(*parser.ColumnRef)
	if !lok || !rok {
		return nil, nil, false
	}
	return l, r, true
}
