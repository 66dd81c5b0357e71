package executor

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"rustql/internal/catalog"
	"rustql/internal/lexer"
	"rustql/internal/parser"
	"rustql/internal/planner"
	"rustql/internal/types"
)

// RowIter is a pull-based row stream: every planner.Plan node compiles
// to one. Next returns io.EOF once exhausted.
type RowIter interface {
	Schema() Schema
	Next() (Row, error)
}

// Run compiles plan into a RowIter chain rooted at plan, threading ctx
// down so every node's predicate/projection evaluation can resolve
// correlated outer columns.
func Run(plan planner.Plan, ctx *Context) (RowIter, error) {
	switch p := plan.(type) {
	case *planner.SeqScan:
		return newSeqScan(p, ctx)
	case *planner.IndexScan:
		return newIndexScan(p, ctx)
	case *planner.Filter:
		return newFilter(p, ctx)
	case *planner.NestedLoopJoin:
		return newNestedLoopJoin(p, ctx)
	case *planner.HashJoin:
		return newHashJoin(p, ctx)
	case *planner.Aggregate:
		return newAggregate(p, ctx)
	case *planner.Sort:
		return newSort(p, ctx)
	case *planner.Limit:
		return newLimit(p, ctx)
	case *planner.Distinct:
		return newDistinct(p, ctx)
	case *planner.Project:
		return newProject(p, ctx)
	}
	return nil, fmt.Errorf("executor: unhandled plan node %T", plan)
}

func materialize(it RowIter) ([]Row, error) {
	var rows []Row
	for {
		r, err := it.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
}

// --- SeqScan ---

type sliceIter struct {
	schema Schema
	rows   []Row
	pos    int
}

func (it *sliceIter) Schema() Schema { return it.schema }
func (it *sliceIter) Next() (Row, error) {
	if it.pos >= len(it.rows) {
		return Row{}, io.EOF
	}
	r := it.rows[it.pos]
	it.pos++
	return r, nil
}

func newSeqScan(s *planner.SeqScan, ctx *Context) (RowIter, error) {
	tbl, err := ctx.Cat.Table(s.Table)
	if err != nil {
		return nil, err
	}
	schema := tableSchema(tbl, s.Alias)
	rows := make([]Row, len(tbl.Rows()))
	for i, r := range tbl.Rows() {
		rows[i] = Row{Values: append([]types.Value(nil), r.Values...)}
	}
	return &sliceIter{schema: schema, rows: rows}, nil
}

func tableSchema(tbl *catalog.Table, alias string) Schema {
	schema := make(Schema, len(tbl.Columns))
	for i, c := range tbl.Columns {
		schema[i] = Column{Table: alias, Name: c.Name}
	}
	return schema
}

// --- IndexScan ---

func newIndexScan(s *planner.IndexScan, ctx *Context) (RowIter, error) {
	tbl, err := ctx.Cat.Table(s.Table)
	if err != nil {
		return nil, err
	}
	ix, ok := ctx.Cat.Index(s.Index)
	if !ok {
		return nil, fmt.Errorf("unknown index %q", s.Index)
	}
	candidates := indexCandidates(s.Predicate, ix)
	schema := tableSchema(tbl, s.Alias)

	var rows []Row
	emit := func(id catalog.RowID) error {
		r, ok := tbl.RowByID(id)
		if !ok {
			return nil
		}
		row := Row{Values: append([]types.Value(nil), r.Values...)}
		// The index narrows candidates; re-check the full predicate so
		// operand order and compound shapes stay correct regardless of
		// how the index call above narrowed them.
		tri, err := EvalBool(s.Predicate, schema, row, ctx)
		if err != nil {
			return err
		}
		if tri.passes() {
			rows = append(rows, row)
		}
		return nil
	}
	for _, id := range candidates {
		if err := emit(id); err != nil {
			return nil, err
		}
	}
	return &sliceIter{schema: schema, rows: rows}, nil
}

// indexCandidates narrows RowIDs using whatever shape the predicate
// is (equality, IN list, or BETWEEN); the caller re-checks the full
// predicate, so over-including is safe and missing the index entirely
// just degrades to a full index scan.
func indexCandidates(pred parser.Expression, ix *catalog.Index) []catalog.RowID {
	seen := map[catalog.RowID]struct{}{}
	add := func(ids []catalog.RowID) {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	switch n := pred.(type) {
	case *parser.BinaryExpr:
		if lit, ok := literalOperand(n); ok {
			if n.Op == lexer.EQ {
				add(ix.Lookup(lit))
			} else {
				ix.Scan(func(v types.Value, ids []catalog.RowID) { add(ids) })
			}
		}
	case *parser.InExpr:
		for _, e := range n.List {
			if lit, ok := e.(*parser.Literal); ok {
				add(ix.Lookup(lit.Value))
			}
		}
	case *parser.BetweenExpr:
		ix.Scan(func(v types.Value, ids []catalog.RowID) { add(ids) })
	}
	out := make([]catalog.RowID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func literalOperand(b *parser.BinaryExpr) (types.Value, bool) {
	if lit, ok := b.Left.(*parser.Literal); ok {
		return lit.Value, true
	}
	if lit, ok := b.Right.(*parser.Literal); ok {
		return lit.Value, true
	}
	return types.Value{}, false
}

// --- Filter ---

type filterIter struct {
	input     RowIter
	schema    Schema
	predicate parser.Expression
	ctx       *Context
}

func newFilter(f *planner.Filter, ctx *Context) (RowIter, error) {
	input, err := Run(f.Input, ctx)
	if err != nil {
		return nil, err
	}
	return &filterIter{input: input, schema: input.Schema(), predicate: f.Predicate, ctx: ctx}, nil
}

func (it *filterIter) Schema() Schema { return it.schema }
func (it *filterIter) Next() (Row, error) {
	for {
		r, err := it.input.Next()
		if err != nil {
			return Row{}, err
		}
		tri, err := EvalBool(it.predicate, it.schema, r, it.ctx)
		if err != nil {
			return Row{}, err
		}
		if tri.passes() {
			return r, nil
		}
	}
}

// --- Joins ---

func joinSchemaAndRows(leftPlan, rightPlan planner.Plan, ctx *Context) (Schema, []Row, Schema, []Row, error) {
	leftIt, err := Run(leftPlan, ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rightIt, err := Run(rightPlan, ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	leftRows, err := materialize(leftIt)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rightRows, err := materialize(rightIt)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return leftIt.Schema(), leftRows, rightIt.Schema(), rightRows, nil
}

// outerPad appends the unmatched rows LEFT/RIGHT/FULL joins contribute,
// null-padding the side that found no partner.
func outerPad(kind parser.JoinKind, leftRows, rightRows []Row, leftMatched, rightMatched []bool, leftWidth, rightWidth int, out []Row) []Row {
	switch kind {
	case parser.LeftJoin, parser.FullJoin:
		for i, lr := range leftRows {
			if !leftMatched[i] {
				out = append(out, concatRows(lr, nullRow(rightWidth)))
			}
		}
	}
	switch kind {
	case parser.RightJoin, parser.FullJoin:
		for j, rr := range rightRows {
			if !rightMatched[j] {
				out = append(out, concatRows(nullRow(leftWidth), rr))
			}
		}
	}
	return out
}

func newNestedLoopJoin(j *planner.NestedLoopJoin, ctx *Context) (RowIter, error) {
	leftSchema, leftRows, rightSchema, rightRows, err := joinSchemaAndRows(j.Left, j.Right, ctx)
	if err != nil {
		return nil, err
	}
	schema := leftSchema.Concat(rightSchema)
	leftMatched := make([]bool, len(leftRows))
	rightMatched := make([]bool, len(rightRows))
	var out []Row
	for i, lr := range leftRows {
		for k, rr := range rightRows {
			combined := concatRows(lr, rr)
			tri, err := EvalBool(j.On, schema, combined, ctx)
			if err != nil {
				return nil, err
			}
			if tri.passes() {
				out = append(out, combined)
				leftMatched[i] = true
				rightMatched[k] = true
			}
		}
	}
	out = outerPad(j.Kind, leftRows, rightRows, leftMatched, rightMatched, len(leftSchema), len(rightSchema), out)
	return &sliceIter{schema: schema, rows: out}, nil
}

func resolveKeySide(ref *parser.ColumnRef, leftSchema, rightSchema Schema) (side, idx int, err error) {
	if idx, err := leftSchema.Resolve(ref.Table, ref.Name); err == nil {
		return 0, idx, nil
	}
	if idx, err := rightSchema.Resolve(ref.Table, ref.Name); err == nil {
		return 1, idx, nil
	}
	return 0, 0, fmt.Errorf("unknown column %s.%s in join condition", ref.Table, ref.Name)
}

func valueKey(v types.Value) string {
	if v.IsNull() {
		return "\x00null"
	}
	return fmt.Sprintf("%d:%s", v.Kind(), v.String())
}

func newHashJoin(j *planner.HashJoin, ctx *Context) (RowIter, error) {
	leftSchema, leftRows, rightSchema, rightRows, err := joinSchemaAndRows(j.Left, j.Right, ctx)
	if err != nil {
		return nil, err
	}
	schema := leftSchema.Concat(rightSchema)

	lSide, lIdx, err := resolveKeySide(j.LeftKey, leftSchema, rightSchema)
	if err != nil {
		return nil, err
	}
	rSide, rIdx, err := resolveKeySide(j.RightKey, leftSchema, rightSchema)
	if err != nil {
		return nil, err
	}
	if lSide == rSide {
		return nil, fmt.Errorf("join condition %s must reference both sides of the join", parser.Render(j.On))
	}
	leftKeyIdx, rightKeyIdx := lIdx, rIdx
	if lSide == 1 {
		leftKeyIdx, rightKeyIdx = rIdx, lIdx
	}

	buckets := map[string][]int{}
	for k, rr := range rightRows {
		v := rr.Values[rightKeyIdx]
		if v.IsNull() {
			continue
		}
		key := valueKey(v)
		buckets[key] = append(buckets[key], k)
	}

	leftMatched := make([]bool, len(leftRows))
	rightMatched := make([]bool, len(rightRows))
	var out []Row
	for i, lr := range leftRows {
		v := lr.Values[leftKeyIdx]
		if v.IsNull() {
			continue
		}
		for _, k := range buckets[valueKey(v)] {
			combined := concatRows(lr, rightRows[k])
			out = append(out, combined)
			leftMatched[i] = true
			rightMatched[k] = true
		}
	}
	out = outerPad(j.Kind, leftRows, rightRows, leftMatched, rightMatched, len(leftSchema), len(rightSchema), out)
	return &sliceIter{schema: schema, rows: out}, nil
}

// --- Aggregate ---

func projectionName(p parser.Projection) string {
	if p.Alias != "" {
		return p.Alias
	}
	switch e := p.Expr.(type) {
	case *parser.ColumnRef:
		return e.Name
	case *parser.AggregateExpr:
		return aggregateDisplayName(e)
	default:
		return parser.Render(p.Expr)
	}
}

func aggregateDisplayName(a *parser.AggregateExpr) string {
	arg := "*"
	if !a.Star {
		arg = parser.Render(a.Arg)
	}
	if a.Distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", strings.ToUpper(a.Func), arg)
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(a.Func), arg)
}

func computeAggregate(a *parser.AggregateExpr, rows []Row, schema Schema, ctx *Context) (types.Value, error) {
	fn := strings.ToUpper(a.Func)
	switch fn {
	case "COUNT":
		if a.Star {
			return types.NewInteger(int64(len(rows))), nil
		}
		seen := map[string]struct{}{}
		var count int64
		for _, r := range rows {
			v, err := EvalValue(a.Arg, schema, r, ctx)
			if err != nil {
				return types.Value{}, err
			}
			if v.IsNull() {
				continue
			}
			if a.Distinct {
				k := valueKey(v)
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
			}
			count++
		}
		return types.NewInteger(count), nil
	case "SUM", "AVG":
		seen := map[string]struct{}{}
		var sum float64
		var n int64
		allInt := true
		for _, r := range rows {
			v, err := EvalValue(a.Arg, schema, r, ctx)
			if err != nil {
				return types.Value{}, err
			}
			if v.IsNull() {
				continue
			}
			f, ok := v.Numeric()
			if !ok {
				return types.Value{}, fmt.Errorf("%w: %s requires a numeric argument", types.ErrTypeMismatch, fn)
			}
			if v.Kind() != types.Integer {
				allInt = false
			}
			if a.Distinct {
				k := valueKey(v)
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
			}
			sum += f
			n++
		}
		if n == 0 {
			return types.NewNull(), nil
		}
		if fn == "SUM" {
			if allInt {
				return types.NewInteger(int64(sum)), nil
			}
			return types.NewFloat(sum), nil
		}
		return types.NewFloat(sum / float64(n)), nil
	case "MIN", "MAX":
		var best types.Value
		have := false
		for _, r := range rows {
			v, err := EvalValue(a.Arg, schema, r, ctx)
			if err != nil {
				return types.Value{}, err
			}
			if v.IsNull() {
				continue
			}
			if !have {
				best, have = v, true
				continue
			}
			cmp, err := types.Compare(best, v)
			if err != nil {
				return types.Value{}, err
			}
			if (fn == "MIN" && cmp > 0) || (fn == "MAX" && cmp < 0) {
				best = v
			}
		}
		if !have {
			return types.NewNull(), nil
		}
		return best, nil
	}
	return types.Value{}, fmt.Errorf("unknown aggregate function %q", a.Func)
}

// substituteAggregates rewrites every AggregateExpr leaf in expr into a
// Literal holding its value over rows, so the ordinary scalar
// evaluator can run the rest of the expression unmodified.
func substituteAggregates(expr parser.Expression, rows []Row, schema Schema, ctx *Context) (parser.Expression, error) {
	switch n := expr.(type) {
	case nil:
		return nil, nil
	case *parser.AggregateExpr:
		v, err := computeAggregate(n, rows, schema, ctx)
		if err != nil {
			return nil, err
		}
		return &parser.Literal{Value: v}, nil
	case *parser.BinaryExpr:
		l, err := substituteAggregates(n.Left, rows, schema, ctx)
		if err != nil {
			return nil, err
		}
		r, err := substituteAggregates(n.Right, rows, schema, ctx)
		if err != nil {
			return nil, err
		}
		return &parser.BinaryExpr{Left: l, Op: n.Op, Right: r}, nil
	case *parser.UnaryExpr:
		inner, err := substituteAggregates(n.Expr, rows, schema, ctx)
		if err != nil {
			return nil, err
		}
		return &parser.UnaryExpr{Op: n.Op, Expr: inner}, nil
	default:
		return expr, nil
	}
}

type group struct {
	rows []Row
}

func newAggregate(a *planner.Aggregate, ctx *Context) (RowIter, error) {
	input, err := Run(a.Input, ctx)
	if err != nil {
		return nil, err
	}
	inSchema := input.Schema()
	allRows, err := materialize(input)
	if err != nil {
		return nil, err
	}

	var groups []*group
	if len(a.GroupBy) == 0 {
		groups = []*group{{rows: allRows}}
	} else {
		index := map[string]*group{}
		var order []string
		for _, r := range allRows {
			parts := make([]string, len(a.GroupBy))
			for i, e := range a.GroupBy {
				v, err := EvalValue(e, inSchema, r, ctx)
				if err != nil {
					return nil, err
				}
				parts[i] = valueKey(v)
			}
			key := strings.Join(parts, "\x1f")
			g, ok := index[key]
			if !ok {
				g = &group{}
				index[key] = g
				order = append(order, key)
			}
			g.rows = append(g.rows, r)
		}
		for _, key := range order {
			groups = append(groups, index[key])
		}
	}

	outSchema := make(Schema, len(a.Projections))
	for i, p := range a.Projections {
		outSchema[i] = Column{Name: projectionName(p)}
	}

	var outRows []Row
	for _, g := range groups {
		rep := nullRow(len(inSchema))
		if len(g.rows) > 0 {
			rep = g.rows[0]
		}
		if a.Having != nil {
			rewritten, err := substituteAggregates(a.Having, g.rows, inSchema, ctx)
			if err != nil {
				return nil, err
			}
			tri, err := EvalBool(rewritten, inSchema, rep, ctx)
			if err != nil {
				return nil, err
			}
			if !tri.passes() {
				continue
			}
		}
		vals := make([]types.Value, len(a.Projections))
		for i, p := range a.Projections {
			rewritten, err := substituteAggregates(p.Expr, g.rows, inSchema, ctx)
			if err != nil {
				return nil, err
			}
			v, err := EvalValue(rewritten, inSchema, rep, ctx)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		outRows = append(outRows, Row{Values: vals})
	}
	return &sliceIter{schema: outSchema, rows: outRows}, nil
}

// --- Sort / Limit / Distinct / Project ---

func newSort(s *planner.Sort, ctx *Context) (RowIter, error) {
	// Unless a term names a projection alias, a Sort over a Project sorts
	// the Project's input first, so ORDER BY can use unprojected columns.
	if proj, ok := s.Input.(*planner.Project); ok {
		byAlias := false
		for _, term := range s.Terms {
			if cr, ok := term.Expr.(*parser.ColumnRef); ok && cr.Table == "" {
				for _, p := range proj.Projections {
					byAlias = byAlias || p.Alias == cr.Name
				}
			}
		}
		if !byAlias {
			return newProject(&planner.Project{Input: &planner.Sort{Input: proj.Input, Terms: s.Terms}, Projections: proj.Projections}, ctx)
		}
	}
	input, err := Run(s.Input, ctx)
	if err != nil {
		return nil, err
	}
	schema := input.Schema()
	rows, err := materialize(input)
	if err != nil {
		return nil, err
	}
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range s.Terms {
			a, err := EvalValue(term.Expr, schema, rows[i], ctx)
			if err != nil {
				sortErr = err
				return false
			}
			b, err := EvalValue(term.Expr, schema, rows[j], ctx)
			if err != nil {
				sortErr = err
				return false
			}
			cmp, less := compareForSort(a, b, term.Desc)
			if cmp == 0 {
				continue
			}
			return less
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return &sliceIter{schema: schema, rows: rows}, nil
}

// compareForSort orders NULL last in ASC and first in DESC, so NULL
// is always positioned as the "largest" value regardless of direction.
func compareForSort(a, b types.Value, desc bool) (cmp int, less bool) {
	switch {
	case a.IsNull() && b.IsNull():
		return 0, false
	case a.IsNull():
		return 1, desc
	case b.IsNull():
		return -1, !desc
	}
	c, err := types.Compare(a, b)
	if err != nil {
		return 0, false
	}
	if desc {
		return c, c > 0
	}
	return c, c < 0
}

func newLimit(l *planner.Limit, ctx *Context) (RowIter, error) {
	input, err := Run(l.Input, ctx)
	if err != nil {
		return nil, err
	}
	schema := input.Schema()
	var out []Row
	var skipped, taken int64
	for {
		r, err := input.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if skipped < l.Offset {
			skipped++
			continue
		}
		if taken >= l.Count {
			break
		}
		out = append(out, r)
		taken++
	}
	return &sliceIter{schema: schema, rows: out}, nil
}

func newDistinct(d *planner.Distinct, ctx *Context) (RowIter, error) {
	input, err := Run(d.Input, ctx)
	if err != nil {
		return nil, err
	}
	schema := input.Schema()
	seen := map[string]struct{}{}
	var out []Row
	for {
		r, err := input.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(r.Values))
		for i, v := range r.Values {
			parts[i] = valueKey(v)
		}
		key := strings.Join(parts, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return &sliceIter{schema: schema, rows: out}, nil
}

type projectSlot struct {
	passIdx int // >= 0 means copy input column passIdx verbatim
	expr    parser.Expression
	name    string
	table   string
}

type projectIter struct {
	input   RowIter
	inSchem Schema
	schema  Schema
	slots   []projectSlot
	ctx     *Context
}

func newProject(p *planner.Project, ctx *Context) (RowIter, error) {
	input, err := Run(p.Input, ctx)
	if err != nil {
		return nil, err
	}
	inSchema := input.Schema()
	var slots []projectSlot
	for _, proj := range p.Projections {
		if proj.Star {
			for i, c := range inSchema {
				slots = append(slots, projectSlot{passIdx: i, name: c.Name, table: c.Table})
			}
			continue
		}
		table := ""
		if cr, ok := proj.Expr.(*parser.ColumnRef); ok {
			if idx, err := inSchema.Resolve(cr.Table, cr.Name); err == nil {
				table = inSchema[idx].Table
			}
		}
		slots = append(slots, projectSlot{passIdx: -1, expr: proj.Expr, name: projectionName(proj), table: table})
	}
	schema := make(Schema, len(slots))
	for i, s := range slots {
		schema[i] = Column{Table: s.table, Name: s.name}
	}
	return &projectIter{input: input, inSchem: inSchema, schema: schema, slots: slots, ctx: ctx}, nil
}

func (it *projectIter) Schema() Schema { return it.schema }
func (it *projectIter) Next() (Row, error) {
	r, err := it.input.Next()
	if err != nil {
		return Row{}, err
	}
	vals := make([]types.Value, len(it.slots))
	for i, s := range it.slots {
		if s.passIdx >= 0 {
			vals[i] = r.Values[s.passIdx]
			continue
		}
		v, err := EvalValue(s.expr, it.inSchem, r, it.ctx)
		if err != nil {
			return Row{}, err
		}
		vals[i] = v
	}
	return Row{Values: vals}, nil
}
