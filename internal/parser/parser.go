// parser.go is a recursive-descent parser with precedence-climbing
// expression parsing (spec.md §4.2). Grounded on the teacher's
// cur/peek token parser (tur/pkg/sql/parser); helpers raise a
// ParseError via panic and the exported entry points recover it into
// a normal error return, which keeps the many nested "expect this
// token" checks from drowning the grammar in plumbing.
package parser

import (
	"strconv"

	"rustql/internal/lexer"
	"rustql/internal/types"
)

type Parser struct {
	lex  *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
}

func New(input string) *Parser {
	p := &Parser{lex: lexer.New(input)}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
	if p.cur.Type == lexer.ILLEGAL {
		if le := p.lex.Err(); le != nil {
			panic(le)
		}
	}
}

func (p *Parser) unexpected(expected string) {
	raise(p.cur.Pos, expected, p.cur.Literal)
}

func (p *Parser) expect(tt lexer.TokenType, name string) {
	if p.cur.Type != tt {
		p.unexpected(name)
	}
	p.next()
}

func (p *Parser) ident(what string) string {
	if p.cur.Type != lexer.IDENT {
		p.unexpected(what)
	}
	s := p.cur.Literal
	p.next()
	return s
}

// ParseStatement parses exactly one statement, consuming a single
// trailing semicolon if present.
func ParseStatement(input string) (stmt Statement, err error) {
	defer recoverParseError(&err)
	p := New(input)
	stmt = p.parseStatement()
	if p.cur.Type == lexer.SEMICOLON {
		p.next()
	}
	return stmt, nil
}

// ParseBatch parses a semicolon-separated batch of statements.
func ParseBatch(input string) (stmts []Statement, err error) {
	defer recoverParseError(&err)
	p := New(input)
	for p.cur.Type != lexer.EOF {
		stmts = append(stmts, p.parseStatement())
		if p.cur.Type == lexer.SEMICOLON {
			p.next()
		} else if p.cur.Type != lexer.EOF {
			p.unexpected("';' or end of input")
		}
	}
	return stmts, nil
}

func (p *Parser) parseStatement() Statement {
	switch p.cur.Type {
	case lexer.SELECT:
		return p.parseSelect()
	case lexer.EXPLAIN:
		p.next()
		if p.cur.Type != lexer.SELECT {
			p.unexpected("SELECT")
		}
		return &ExplainStmt{Select: p.parseSelect()}
	case lexer.CREATE:
		p.next()
		switch p.cur.Type {
		case lexer.TABLE:
			return p.parseCreateTable()
		case lexer.INDEX:
			return p.parseCreateIndex()
		default:
			p.unexpected("TABLE or INDEX")
		}
	case lexer.DROP:
		p.next()
		switch p.cur.Type {
		case lexer.TABLE:
			p.next()
			return &DropTableStmt{Name: p.ident("table name")}
		case lexer.INDEX:
			p.next()
			return &DropIndexStmt{IndexName: p.ident("index name")}
		default:
			p.unexpected("TABLE or INDEX")
		}
	case lexer.ALTER:
		p.next()
		return p.parseAlterTable()
	case lexer.INSERT:
		return p.parseInsert()
	case lexer.UPDATE:
		return p.parseUpdate()
	case lexer.DELETE:
		return p.parseDelete()
	case lexer.BEGIN:
		p.next()
		if p.cur.Type == lexer.TRANSACTION {
			p.next()
		}
		return &BeginStmt{}
	case lexer.COMMIT:
		p.next()
		return &CommitStmt{}
	case lexer.ROLLBACK:
		p.next()
		return &RollbackStmt{}
	}
	p.unexpected("a statement")
	panic("unreachable")
}

// --- CREATE TABLE / ALTER TABLE / CREATE INDEX ---

func (p *Parser) parseCreateTable() Statement {
	p.expect(lexer.TABLE, "TABLE")
	name := p.ident("table name")
	p.expect(lexer.LPAREN, "(")
	var cols []ColumnDef
	for {
		cols = append(cols, p.parseColumnDef())
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	p.expect(lexer.RPAREN, ")")
	return &CreateTableStmt{Name: name, Columns: cols}
}

func (p *Parser) parseColumnDef() ColumnDef {
	name := p.ident("column name")
	typ := p.parseTypeKeyword()
	col := ColumnDef{Name: name, Type: typ}
	if p.cur.Type == lexer.FOREIGN {
		p.next()
		p.expect(lexer.KEY, "KEY")
		p.expect(lexer.REFERENCES, "REFERENCES")
		parentTable := p.ident("parent table name")
		p.expect(lexer.LPAREN, "(")
		parentCol := p.ident("parent column name")
		p.expect(lexer.RPAREN, ")")
		fk := &ForeignKeyDef{ParentTable: parentTable, ParentColumn: parentCol}
		for p.cur.Type == lexer.ON {
			p.next()
			switch p.cur.Type {
			case lexer.DELETE:
				p.next()
				fk.OnDelete = p.parseFKAction()
			case lexer.UPDATE:
				p.next()
				fk.OnUpdate = p.parseFKAction()
			default:
				p.unexpected("DELETE or UPDATE")
			}
		}
		col.ForeignKey = fk
	}
	return col
}

func (p *Parser) parseFKAction() FKAction {
	switch p.cur.Type {
	case lexer.CASCADE:
		p.next()
		return Cascade
	case lexer.RESTRICT:
		p.next()
		return Restrict
	case lexer.SET:
		p.next()
		p.expect(lexer.NULL, "NULL")
		return SetNull
	case lexer.NO:
		p.next()
		p.expect(lexer.ACTION, "ACTION")
		return NoAction
	}
	p.unexpected("CASCADE, RESTRICT, SET NULL or NO ACTION")
	panic("unreachable")
}

func (p *Parser) parseTypeKeyword() types.Kind {
	switch p.cur.Type {
	case lexer.INTEGER_TYPE, lexer.INT_TYPE:
		p.next()
		return types.Integer
	case lexer.FLOAT_TYPE:
		p.next()
		return types.Float
	case lexer.TEXT_TYPE:
		p.next()
		return types.Text
	case lexer.BOOLEAN_TYPE:
		p.next()
		return types.Boolean
	case lexer.DATE_TYPE:
		p.next()
		return types.Date
	case lexer.TIME_TYPE:
		p.next()
		return types.Time
	case lexer.DATETIME_TYPE:
		p.next()
		return types.DateTime
	}
	p.unexpected("a column type")
	panic("unreachable")
}

func (p *Parser) parseAlterTable() Statement {
	p.expect(lexer.TABLE, "TABLE")
	name := p.ident("table name")
	var op AlterOp
	switch p.cur.Type {
	case lexer.ADD:
		p.next()
		if p.cur.Type == lexer.COLUMN {
			p.next()
		}
		op = AddColumnOp{Column: p.parseColumnDef()}
	case lexer.DROP:
		p.next()
		if p.cur.Type == lexer.COLUMN {
			p.next()
		}
		op = DropColumnOp{Name: p.ident("column name")}
	case lexer.RENAME:
		p.next()
		if p.cur.Type == lexer.COLUMN {
			p.next()
		}
		old := p.ident("column name")
		p.expect(lexer.TO, "TO")
		op = RenameColumnOp{Old: old, New: p.ident("new column name")}
	default:
		p.unexpected("ADD, DROP or RENAME")
	}
	return &AlterTableStmt{Name: name, Op: op}
}

func (p *Parser) parseCreateIndex() Statement {
	p.expect(lexer.INDEX, "INDEX")
	name := p.ident("index name")
	p.expect(lexer.ON, "ON")
	table := p.ident("table name")
	p.expect(lexer.LPAREN, "(")
	col := p.ident("column name")
	p.expect(lexer.RPAREN, ")")
	return &CreateIndexStmt{IndexName: name, Table: table, Column: col}
}

// --- INSERT / UPDATE / DELETE ---

func (p *Parser) parseInsert() Statement {
	p.expect(lexer.INSERT, "INSERT")
	p.expect(lexer.INTO, "INTO")
	table := p.ident("table name")
	var cols []string
	if p.cur.Type == lexer.LPAREN {
		p.next()
		for {
			cols = append(cols, p.ident("column name"))
			if p.cur.Type == lexer.COMMA {
				p.next()
				continue
			}
			break
		}
		p.expect(lexer.RPAREN, ")")
	}
	p.expect(lexer.VALUES, "VALUES")
	var rows [][]Expression
	for {
		p.expect(lexer.LPAREN, "(")
		var row []Expression
		for {
			row = append(row, p.parseExpr())
			if p.cur.Type == lexer.COMMA {
				p.next()
				continue
			}
			break
		}
		p.expect(lexer.RPAREN, ")")
		rows = append(rows, row)
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	return &InsertStmt{Table: table, Columns: cols, Rows: rows}
}

func (p *Parser) parseUpdate() Statement {
	p.expect(lexer.UPDATE, "UPDATE")
	table := p.ident("table name")
	p.expect(lexer.SET, "SET")
	var assigns []Assignment
	for {
		col := p.ident("column name")
		p.expect(lexer.EQ, "=")
		assigns = append(assigns, Assignment{Column: col, Value: p.parseExpr()})
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	var where Expression
	if p.cur.Type == lexer.WHERE {
		p.next()
		where = p.parseExpr()
	}
	return &UpdateStmt{Table: table, Assignments: assigns, Where: where}
}

func (p *Parser) parseDelete() Statement {
	p.expect(lexer.DELETE, "DELETE")
	p.expect(lexer.FROM, "FROM")
	table := p.ident("table name")
	var where Expression
	if p.cur.Type == lexer.WHERE {
		p.next()
		where = p.parseExpr()
	}
	return &DeleteStmt{Table: table, Where: where}
}

// --- SELECT ---

func (p *Parser) parseSelect() *SelectStmt {
	p.expect(lexer.SELECT, "SELECT")
	distinct := false
	if p.cur.Type == lexer.DISTINCT {
		distinct = true
		p.next()
	}
	projections := p.parseProjections()
	p.expect(lexer.FROM, "FROM")
	from := p.parseTableRef()

	var joins []JoinClause
	for isJoinStart(p.cur.Type) {
		joins = append(joins, p.parseJoin())
	}

	var where Expression
	if p.cur.Type == lexer.WHERE {
		p.next()
		where = p.parseExpr()
	}

	var groupBy []Expression
	if p.cur.Type == lexer.GROUP {
		p.next()
		p.expect(lexer.BY, "BY")
		groupBy = p.parseExprList()
	}

	var having Expression
	if p.cur.Type == lexer.HAVING {
		p.next()
		having = p.parseExpr()
	}

	var orderBy []OrderTerm
	if p.cur.Type == lexer.ORDER {
		p.next()
		p.expect(lexer.BY, "BY")
		orderBy = p.parseOrderByList()
	}

	var limit, offset *int64
	if p.cur.Type == lexer.LIMIT {
		p.next()
		n := p.parseIntLiteral()
		limit = &n
	}
	if p.cur.Type == lexer.OFFSET {
		p.next()
		n := p.parseIntLiteral()
		offset = &n
	}

	return &SelectStmt{
		Distinct:    distinct,
		Projections: projections,
		From:        from,
		Joins:       joins,
		Where:       where,
		GroupBy:     groupBy,
		Having:      having,
		OrderBy:     orderBy,
		Limit:       limit,
		Offset:      offset,
	}
}

func isJoinStart(tt lexer.TokenType) bool {
	switch tt {
	case lexer.JOIN, lexer.INNER, lexer.LEFT, lexer.RIGHT, lexer.FULL:
		return true
	}
	return false
}

func (p *Parser) parseJoin() JoinClause {
	kind := InnerJoin
	switch p.cur.Type {
	case lexer.INNER:
		p.next()
	case lexer.LEFT:
		p.next()
		kind = LeftJoin
		if p.cur.Type == lexer.OUTER {
			p.next()
		}
	case lexer.RIGHT:
		p.next()
		kind = RightJoin
		if p.cur.Type == lexer.OUTER {
			p.next()
		}
	case lexer.FULL:
		p.next()
		kind = FullJoin
		if p.cur.Type == lexer.OUTER {
			p.next()
		}
	}
	p.expect(lexer.JOIN, "JOIN")
	table := p.parseTableRef()
	p.expect(lexer.ON, "ON")
	on := p.parseExpr()
	return JoinClause{Kind: kind, Table: table, On: on}
}

func (p *Parser) parseProjections() []Projection {
	var out []Projection
	for {
		if p.cur.Type == lexer.STAR {
			p.next()
			out = append(out, Projection{Star: true})
		} else {
			expr := p.parseExpr()
			alias := ""
			if p.cur.Type == lexer.AS {
				p.next()
				alias = p.ident("alias")
			} else if p.cur.Type == lexer.IDENT {
				alias = p.cur.Literal
				p.next()
			}
			out = append(out, Projection{Expr: expr, Alias: alias})
		}
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	return out
}

func (p *Parser) parseTableRef() TableRef {
	name := p.ident("table name")
	alias := ""
	if p.cur.Type == lexer.AS {
		p.next()
		alias = p.ident("alias")
	} else if p.cur.Type == lexer.IDENT {
		alias = p.cur.Literal
		p.next()
	}
	return TableRef{Name: name, Alias: alias}
}

func (p *Parser) parseExprList() []Expression {
	list := []Expression{p.parseExpr()}
	for p.cur.Type == lexer.COMMA {
		p.next()
		list = append(list, p.parseExpr())
	}
	return list
}

func (p *Parser) parseOrderByList() []OrderTerm {
	var terms []OrderTerm
	for {
		expr := p.parseExpr()
		desc := false
		if p.cur.Type == lexer.ASC {
			p.next()
		} else if p.cur.Type == lexer.DESC {
			desc = true
			p.next()
		}
		terms = append(terms, OrderTerm{Expr: expr, Desc: desc})
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	return terms
}

func (p *Parser) parseIntLiteral() int64 {
	if p.cur.Type != lexer.INT {
		p.unexpected("an integer")
	}
	n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
	if err != nil {
		p.unexpected("an integer")
	}
	p.next()
	return n
}

// --- Expressions ---

func (p *Parser) parseExpr() Expression { return p.parseOr() }

func (p *Parser) parseOr() Expression {
	left := p.parseAnd()
	for p.cur.Type == lexer.OR {
		p.next()
		left = &BinaryExpr{Left: left, Op: lexer.OR, Right: p.parseAnd()}
	}
	return left
}

func (p *Parser) parseAnd() Expression {
	left := p.parseNot()
	for p.cur.Type == lexer.AND {
		p.next()
		left = &BinaryExpr{Left: left, Op: lexer.AND, Right: p.parseNot()}
	}
	return left
}

func (p *Parser) parseNot() Expression {
	if p.cur.Type == lexer.NOT {
		p.next()
		if p.cur.Type == lexer.EXISTS {
			p.next()
			return p.parseExistsTail(true)
		}
		return &UnaryExpr{Op: lexer.NOT, Expr: p.parseNot()}
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() Expression {
	if p.cur.Type == lexer.EXISTS {
		p.next()
		return p.parseExistsTail(false)
	}
	left := p.parseAdditive()
	switch p.cur.Type {
	case lexer.EQ, lexer.NEQ, lexer.LT, lexer.LTE, lexer.GT, lexer.GTE:
		op := p.cur.Type
		p.next()
		return &BinaryExpr{Left: left, Op: op, Right: p.parseAdditive()}
	case lexer.IS:
		p.next()
		not := false
		if p.cur.Type == lexer.NOT {
			not = true
			p.next()
		}
		p.expect(lexer.NULL, "NULL")
		return &IsNullExpr{Expr: left, Not: not}
	case lexer.NOT:
		p.next()
		switch p.cur.Type {
		case lexer.IN:
			return p.parseIn(left, true)
		case lexer.LIKE:
			return p.parseLike(left, true)
		case lexer.BETWEEN:
			return p.parseBetween(left, true)
		}
		p.unexpected("IN, LIKE or BETWEEN")
	case lexer.IN:
		return p.parseIn(left, false)
	case lexer.LIKE:
		return p.parseLike(left, false)
	case lexer.BETWEEN:
		return p.parseBetween(left, false)
	}
	return left
}

func (p *Parser) parseIn(left Expression, not bool) Expression {
	p.expect(lexer.IN, "IN")
	p.expect(lexer.LPAREN, "(")
	if p.cur.Type == lexer.SELECT {
		sub := p.parseSelect()
		p.expect(lexer.RPAREN, ")")
		return &InExpr{Expr: left, Not: not, Subquery: sub}
	}
	var list []Expression
	for {
		list = append(list, p.parseExpr())
		if p.cur.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	p.expect(lexer.RPAREN, ")")
	return &InExpr{Expr: left, Not: not, List: list}
}

func (p *Parser) parseLike(left Expression, not bool) Expression {
	p.expect(lexer.LIKE, "LIKE")
	return &LikeExpr{Expr: left, Not: not, Pattern: p.parseAdditive()}
}

func (p *Parser) parseBetween(left Expression, not bool) Expression {
	p.expect(lexer.BETWEEN, "BETWEEN")
	low := p.parseAdditive()
	p.expect(lexer.AND, "AND")
	high := p.parseAdditive()
	return &BetweenExpr{Expr: left, Not: not, Low: low, High: high}
}

func (p *Parser) parseExistsTail(not bool) Expression {
	p.expect(lexer.LPAREN, "(")
	if p.cur.Type != lexer.SELECT {
		p.unexpected("SELECT")
	}
	sub := p.parseSelect()
	p.expect(lexer.RPAREN, ")")
	return &ExistsExpr{Not: not, Subquery: sub}
}

func (p *Parser) parseAdditive() Expression {
	left := p.parseMultiplicative()
	for p.cur.Type == lexer.PLUS || p.cur.Type == lexer.MINUS {
		op := p.cur.Type
		p.next()
		left = &BinaryExpr{Left: left, Op: op, Right: p.parseMultiplicative()}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expression {
	left := p.parseUnary()
	for p.cur.Type == lexer.STAR || p.cur.Type == lexer.SLASH {
		op := p.cur.Type
		p.next()
		left = &BinaryExpr{Left: left, Op: op, Right: p.parseUnary()}
	}
	return left
}

func (p *Parser) parseUnary() Expression {
	if p.cur.Type == lexer.MINUS {
		p.next()
		return &UnaryExpr{Op: lexer.MINUS, Expr: p.parseUnary()}
	}
	return p.parsePrimary()
}

var aggregateFuncs = map[lexer.TokenType]string{
	lexer.COUNT: "COUNT",
	lexer.SUM:   "SUM",
	lexer.AVG:   "AVG",
	lexer.MIN:   "MIN",
	lexer.MAX:   "MAX",
}

func (p *Parser) parsePrimary() Expression {
	switch p.cur.Type {
	case lexer.INT:
		n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			p.unexpected("a valid integer literal")
		}
		p.next()
		return &Literal{Value: types.NewInteger(n)}
	case lexer.FLOAT:
		f, err := strconv.ParseFloat(p.cur.Literal, 64)
		if err != nil {
			p.unexpected("a valid float literal")
		}
		p.next()
		return &Literal{Value: types.NewFloat(f)}
	case lexer.STRING:
		s := p.cur.Literal
		p.next()
		return &Literal{Value: types.NewText(s)}
	case lexer.TRUE:
		p.next()
		return &Literal{Value: types.NewBoolean(true)}
	case lexer.FALSE:
		p.next()
		return &Literal{Value: types.NewBoolean(false)}
	case lexer.NULL:
		p.next()
		return &Literal{Value: types.NewNull()}
	case lexer.COUNT, lexer.SUM, lexer.AVG, lexer.MIN, lexer.MAX:
		fn := aggregateFuncs[p.cur.Type]
		p.next()
		p.expect(lexer.LPAREN, "(")
		agg := &AggregateExpr{Func: fn}
		if fn == "COUNT" && p.cur.Type == lexer.STAR {
			agg.Star = true
			p.next()
		} else {
			if p.cur.Type == lexer.DISTINCT {
				agg.Distinct = true
				p.next()
			}
			agg.Arg = p.parseExpr()
		}
		p.expect(lexer.RPAREN, ")")
		return agg
	case lexer.IDENT:
		name := p.cur.Literal
		p.next()
		if p.cur.Type == lexer.DOT {
			p.next()
			col := p.ident("column name")
			return &ColumnRef{Table: name, Name: col}
		}
		return &ColumnRef{Name: name}
	case lexer.LPAREN:
		p.next()
		if p.cur.Type == lexer.SELECT {
			sub := p.parseSelect()
			p.expect(lexer.RPAREN, ")")
			return &SubqueryExpr{Select: sub}
		}
		expr := p.parseExpr()
		p.expect(lexer.RPAREN, ")")
		return expr
	}
	p.unexpected("an expression")
	panic("unreachable")
}
