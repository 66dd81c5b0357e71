package parser

import (
	"fmt"
	"strings"

	"rustql/internal/lexer"
)

var opText = map[lexer.TokenType]string{
	lexer.OR: "OR", lexer.AND: "AND",
	lexer.EQ: "=", lexer.NEQ: "!=", lexer.LT: "<", lexer.LTE: "<=",
	lexer.GT: ">", lexer.GTE: ">=",
	lexer.PLUS: "+", lexer.MINUS: "-", lexer.STAR: "*", lexer.SLASH: "/",
	lexer.NOT: "NOT",
}

// Render prints an expression as SQL-ish text, used for the residual
// predicate shown by EXPLAIN's Filter nodes (spec.md §6).
func Render(e Expression) string {
	switch n := e.(type) {
	case nil:
		return ""
	case *Literal:
		return n.Value.String()
	case *ColumnRef:
		if n.Table != "" {
			return n.Table + "." + n.Name
		}
		return n.Name
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", Render(n.Left), opText[n.Op], Render(n.Right))
	case *UnaryExpr:
		if n.Op == lexer.NOT {
			return fmt.Sprintf("NOT %s", Render(n.Expr))
		}
		return fmt.Sprintf("-%s", Render(n.Expr))
	case *IsNullExpr:
		if n.Not {
			return fmt.Sprintf("%s IS NOT NULL", Render(n.Expr))
		}
		return fmt.Sprintf("%s IS NULL", Render(n.Expr))
	case *InExpr:
		kw := "IN"
		if n.Not {
			kw = "NOT IN"
		}
		if n.Subquery != nil {
			return fmt.Sprintf("%s %s (subquery)", Render(n.Expr), kw)
		}
		parts := make([]string, len(n.List))
		for i, v := range n.List {
			parts[i] = Render(v)
		}
		return fmt.Sprintf("%s %s (%s)", Render(n.Expr), kw, strings.Join(parts, ", "))
	case *LikeExpr:
		kw := "LIKE"
		if n.Not {
			kw = "NOT LIKE"
		}
		return fmt.Sprintf("%s %s %s", Render(n.Expr), kw, Render(n.Pattern))
	case *BetweenExpr:
		kw := "BETWEEN"
		if n.Not {
			kw = "NOT BETWEEN"
		}
		return fmt.Sprintf("%s %s %s AND %s", Render(n.Expr), kw, Render(n.Low), Render(n.High))
	case *ExistsExpr:
		if n.Not {
			return "NOT EXISTS (subquery)"
		}
		return "EXISTS (subquery)"
	case *AggregateExpr:
		if n.Star {
			return n.Func + "(*)"
		}
		d := ""
		if n.Distinct {
			d = "DISTINCT "
		}
		return fmt.Sprintf("%s(%s%s)", n.Func, d, Render(n.Arg))
	case *SubqueryExpr:
		return "(subquery)"
	}
	return "?"
}

// ProjectionName is the column name a projection contributes to the
// output row layout when no alias is given.
func ProjectionName(p Projection) string {
	if p.Alias != "" {
		return p.Alias
	}
	if ref, ok := p.Expr.(*ColumnRef); ok {
		return ref.Name
	}
	return Render(p.Expr)
}
