package executor

import (
	"fmt"

	"rustql/internal/catalog"
	"rustql/internal/lexer"
	"rustql/internal/parser"
	"rustql/internal/types"
)

// Context threads the catalog and the row-context stack correlated
// subqueries need (spec.md §9: "the expression evaluator takes an
// explicit row-context stack parameter; every subquery pushes its
// outer context before pulling").
type Context struct {
	Cat   *catalog.Catalog
	stack []frame
}

type frame struct {
	schema Schema
	row    Row
}

func NewContext(cat *catalog.Catalog) *Context { return &Context{Cat: cat} }

func (c *Context) push(schema Schema, row Row) { c.stack = append(c.stack, frame{schema, row}) }
func (c *Context) pop()                        { c.stack = c.stack[:len(c.stack)-1] }

// SubqueryCardinalityError is raised when a scalar subquery returns
// more than one row or more than one column (spec.md §7). EXISTS and
// IN subqueries never raise it.
type SubqueryCardinalityError struct{ Message string }

func (e *SubqueryCardinalityError) Error() string { return "subquery cardinality error: " + e.Message }

func resolveColumn(ref *parser.ColumnRef, schema Schema, row Row, ctx *Context) (types.Value, error) {
	if idx, err := schema.Resolve(ref.Table, ref.Name); err == nil {
		return row.Values[idx], nil
	}
	for i := len(ctx.stack) - 1; i >= 0; i-- {
		if idx, err := ctx.stack[i].schema.Resolve(ref.Table, ref.Name); err == nil {
			return ctx.stack[i].row.Values[idx], nil
		}
	}
	if ref.Table != "" {
		return types.Value{}, fmt.Errorf("unknown column %s.%s", ref.Table, ref.Name)
	}
	return types.Value{}, fmt.Errorf("unknown column %q", ref.Name)
}

func triToValue(t Tri) types.Value {
	if t == TriUnknown {
		return types.NewNull()
	}
	return types.NewBoolean(t == TriTrue)
}

func valueToTri(v types.Value) Tri {
	if v.IsNull() {
		return TriUnknown
	}
	return triFromBool(v.Boolean())
}

// EvalValue evaluates expr to a scalar Value.
func EvalValue(expr parser.Expression, schema Schema, row Row, ctx *Context) (types.Value, error) {
	switch n := expr.(type) {
	case nil:
		return types.NewNull(), nil
	case *parser.Literal:
		return n.Value, nil
	case *parser.ColumnRef:
		return resolveColumn(n, schema, row, ctx)
	case *parser.UnaryExpr:
		if n.Op == lexer.MINUS {
			v, err := EvalValue(n.Expr, schema, row, ctx)
			if err != nil {
				return types.Value{}, err
			}
			if v.IsNull() {
				return v, nil
			}
			if v.Kind() == types.Integer {
				return types.NewInteger(-v.Integer()), nil
			}
			f, ok := v.Numeric()
			if !ok {
				return types.Value{}, fmt.Errorf("%w: unary minus on non-numeric value", types.ErrTypeMismatch)
			}
			return types.NewFloat(-f), nil
		}
		tri, err := EvalBool(expr, schema, row, ctx)
		return triToValue(tri), err
	case *parser.BinaryExpr:
		switch n.Op {
		case lexer.AND, lexer.OR, lexer.EQ, lexer.NEQ, lexer.LT, lexer.LTE, lexer.GT, lexer.GTE:
			tri, err := EvalBool(expr, schema, row, ctx)
			return triToValue(tri), err
		case lexer.PLUS, lexer.MINUS, lexer.STAR, lexer.SLASH:
			l, err := EvalValue(n.Left, schema, row, ctx)
			if err != nil {
				return types.Value{}, err
			}
			r, err := EvalValue(n.Right, schema, row, ctx)
			if err != nil {
				return types.Value{}, err
			}
			return evalArithmetic(n.Op, l, r)
		}
	case *parser.IsNullExpr, *parser.InExpr, *parser.LikeExpr, *parser.BetweenExpr, *parser.ExistsExpr:
		tri, err := EvalBool(expr, schema, row, ctx)
		return triToValue(tri), err
	case *parser.AggregateExpr:
		return types.Value{}, fmt.Errorf("aggregate expression used outside an aggregation context")
	case *parser.SubqueryExpr:
		return evalScalarSubquery(n.Select, schema, row, ctx)
	}
	return types.Value{}, fmt.Errorf("cannot evaluate expression %T", expr)
}

func evalArithmetic(op lexer.TokenType, l, r types.Value) (types.Value, error) {
	if l.IsNull() || r.IsNull() {
		return types.NewNull(), nil
	}
	lf, lok := l.Numeric()
	rf, rok := r.Numeric()
	if !lok || !rok {
		return types.Value{}, fmt.Errorf("%w: arithmetic on non-numeric value", types.ErrTypeMismatch)
	}
	var res float64
	switch op {
	case lexer.PLUS:
		res = lf + rf
	case lexer.MINUS:
		res = lf - rf
	case lexer.STAR:
		res = lf * rf
	case lexer.SLASH:
		if rf == 0 {
			return types.Value{}, fmt.Errorf("division by zero")
		}
		res = lf / rf
	}
	if l.Kind() == types.Integer && r.Kind() == types.Integer && op != lexer.SLASH {
		return types.NewInteger(int64(res)), nil
	}
	return types.NewFloat(res), nil
}

func evalComparisonTri(op lexer.TokenType, l, r types.Value) (Tri, error) {
	if l.IsNull() || r.IsNull() {
		return TriUnknown, nil
	}
	cmp, err := types.Compare(l, r)
	if err != nil {
		return TriFalse, err
	}
	switch op {
	case lexer.EQ:
		return triFromBool(cmp == 0), nil
	case lexer.NEQ:
		return triFromBool(cmp != 0), nil
	case lexer.LT:
		return triFromBool(cmp < 0), nil
	case lexer.LTE:
		return triFromBool(cmp <= 0), nil
	case lexer.GT:
		return triFromBool(cmp > 0), nil
	case lexer.GTE:
		return triFromBool(cmp >= 0), nil
	}
	return TriFalse, fmt.Errorf("not a comparison operator")
}

// EvalBool evaluates expr as a WHERE/HAVING/ON predicate, keeping
// Unknown distinct from False until the filter boundary (spec.md
// §9). A nil predicate always passes.
func EvalBool(expr parser.Expression, schema Schema, row Row, ctx *Context) (Tri, error) {
	switch n := expr.(type) {
	case nil:
		return TriTrue, nil
	case *parser.Literal:
		return valueToTri(n.Value), nil
	case *parser.ColumnRef:
		v, err := resolveColumn(n, schema, row, ctx)
		if err != nil {
			return TriFalse, err
		}
		return valueToTri(v), nil
	case *parser.BinaryExpr:
		switch n.Op {
		case lexer.AND:
			l, err := EvalBool(n.Left, schema, row, ctx)
			if err != nil {
				return TriFalse, err
			}
			r, err := EvalBool(n.Right, schema, row, ctx)
			if err != nil {
				return TriFalse, err
			}
			return triAnd(l, r), nil
		case lexer.OR:
			l, err := EvalBool(n.Left, schema, row, ctx)
			if err != nil {
				return TriFalse, err
			}
			r, err := EvalBool(n.Right, schema, row, ctx)
			if err != nil {
				return TriFalse, err
			}
			return triOr(l, r), nil
		case lexer.EQ, lexer.NEQ, lexer.LT, lexer.LTE, lexer.GT, lexer.GTE:
			l, err := EvalValue(n.Left, schema, row, ctx)
			if err != nil {
				return TriFalse, err
			}
			r, err := EvalValue(n.Right, schema, row, ctx)
			if err != nil {
				return TriFalse, err
			}
			return evalComparisonTri(n.Op, l, r)
		}
	case *parser.UnaryExpr:
		if n.Op == lexer.NOT {
			t, err := EvalBool(n.Expr, schema, row, ctx)
			return triNot(t), err
		}
	case *parser.IsNullExpr:
		v, err := EvalValue(n.Expr, schema, row, ctx)
		if err != nil {
			return TriFalse, err
		}
		result := v.IsNull()
		if n.Not {
			result = !result
		}
		return triFromBool(result), nil
	case *parser.InExpr:
		return evalIn(n, schema, row, ctx)
	case *parser.LikeExpr:
		return evalLike(n, schema, row, ctx)
	case *parser.BetweenExpr:
		return evalBetween(n, schema, row, ctx)
	case *parser.ExistsExpr:
		return evalExists(n, schema, row, ctx)
	}
	v, err := EvalValue(expr, schema, row, ctx)
	if err != nil {
		return TriFalse, err
	}
	return valueToTri(v), nil
}

func evalIn(n *parser.InExpr, schema Schema, row Row, ctx *Context) (Tri, error) {
	v, err := EvalValue(n.Expr, schema, row, ctx)
	if err != nil {
		return TriFalse, err
	}
	if v.IsNull() {
		if n.Not {
			return TriUnknown, nil
		}
		return TriUnknown, nil
	}
	var matched, sawNull bool
	if n.Subquery != nil {
		rows, _, err := runSubquery(n.Subquery, schema, row, ctx)
		if err != nil {
			return TriFalse, err
		}
		for _, r := range rows {
			if len(r.Values) == 0 {
				continue
			}
			item := r.Values[0]
			if item.IsNull() {
				sawNull = true
				continue
			}
			cmp, err := types.Compare(v, item)
			if err != nil {
				return TriFalse, err
			}
			if cmp == 0 {
				matched = true
				break
			}
		}
	} else {
		for _, e := range n.List {
			item, err := EvalValue(e, schema, row, ctx)
			if err != nil {
				return TriFalse, err
			}
			if item.IsNull() {
				sawNull = true
				continue
			}
			cmp, err := types.Compare(v, item)
			if err != nil {
				return TriFalse, err
			}
			if cmp == 0 {
				matched = true
				break
			}
		}
	}
	var result Tri
	switch {
	case matched:
		result = TriTrue
	case sawNull:
		result = TriUnknown
	default:
		result = TriFalse
	}
	if n.Not {
		return triNot(result), nil
	}
	return result, nil
}

func evalLike(n *parser.LikeExpr, schema Schema, row Row, ctx *Context) (Tri, error) {
	v, err := EvalValue(n.Expr, schema, row, ctx)
	if err != nil {
		return TriFalse, err
	}
	p, err := EvalValue(n.Pattern, schema, row, ctx)
	if err != nil {
		return TriFalse, err
	}
	if v.IsNull() || p.IsNull() {
		return TriUnknown, nil
	}
	if v.Kind() != types.Text || p.Kind() != types.Text {
		return TriFalse, fmt.Errorf("%w: LIKE requires text operands", types.ErrTypeMismatch)
	}
	result := triFromBool(matchLike(v.Text(), p.Text()))
	if n.Not {
		return triNot(result), nil
	}
	return result, nil
}

func evalBetween(n *parser.BetweenExpr, schema Schema, row Row, ctx *Context) (Tri, error) {
	v, err := EvalValue(n.Expr, schema, row, ctx)
	if err != nil {
		return TriFalse, err
	}
	low, err := EvalValue(n.Low, schema, row, ctx)
	if err != nil {
		return TriFalse, err
	}
	high, err := EvalValue(n.High, schema, row, ctx)
	if err != nil {
		return TriFalse, err
	}
	loTri, err := evalComparisonTri(lexer.GTE, v, low)
	if err != nil {
		return TriFalse, err
	}
	hiTri, err := evalComparisonTri(lexer.LTE, v, high)
	if err != nil {
		return TriFalse, err
	}
	result := triAnd(loTri, hiTri)
	if n.Not {
		return triNot(result), nil
	}
	return result, nil
}

func evalExists(n *parser.ExistsExpr, schema Schema, row Row, ctx *Context) (Tri, error) {
	rows, _, err := runSubquery(n.Subquery, schema, row, ctx)
	if err != nil {
		return TriFalse, err
	}
	result := triFromBool(len(rows) > 0)
	if n.Not {
		return triNot(result), nil
	}
	return result, nil
}

func evalScalarSubquery(sel *parser.SelectStmt, schema Schema, row Row, ctx *Context) (types.Value, error) {
	rows, outSchema, err := runSubquery(sel, schema, row, ctx)
	if err != nil {
		return types.Value{}, err
	}
	if len(rows) == 0 {
		return types.NewNull(), nil
	}
	if len(rows) > 1 {
		return types.Value{}, &SubqueryCardinalityError{Message: "scalar subquery returned more than one row"}
	}
	if len(outSchema) > 1 {
		return types.Value{}, &SubqueryCardinalityError{Message: "scalar subquery returned more than one column"}
	}
	return rows[0].Values[0], nil
}
