package parser

import (
	"strings"

	"github.com/electwix/sqlvet/internal/query/ast"
	"github.com/electwix/sqlvet/internal/tokenizer"
)

// niladic names parse as calls rather than column references.
var niladic = map[string]struct{}{
	"CURRENT_DATE":      {},
	"CURRENT_TIME":      {},
	"CURRENT_TIMESTAMP": {},
	"CURRENT_USER":      {},
	"LOCALTIME":         {},
	"LOCALTIMESTAMP":    {},
	"SESSION_USER":      {},
}

// typedLiterals prefix a string literal, as in DATE '2024-01-01'.
var typedLiterals = map[string]struct{}{
	"DATE":      {},
	"INTERVAL":  {},
	"TIME":      {},
	"TIMESTAMP": {},
	"UUID":      {},
}

func (p *parser) parseExprList() []ast.Expr {
	var list []ast.Expr
	for {
		list = append(list, p.parseExpr())
		if !p.acceptSymbol(",") {
			return list
		}
	}
}

func (p *parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.at("OR") {
		op := p.next()
		left = &ast.BinaryExpr{Op: "OR", OpPos: op.Offset, Left: left, Right: p.parseAnd()}
	}
	return left
}

func (p *parser) parseAnd() ast.Expr {
	left := p.parseNot()
	for p.at("AND") {
		op := p.next()
		left = &ast.BinaryExpr{Op: "AND", OpPos: op.Offset, Left: left, Right: p.parseNot()}
	}
	return left
}

func (p *parser) parseNot() ast.Expr {
	if !p.at("NOT") {
		return p.parseComparison()
	}
	tok := p.next()
	if p.at("EXISTS") {
		exists := p.parseExists()
		exists.Offset = tok.Offset
		exists.Not = true
		return exists
	}
	return &ast.UnaryExpr{Offset: tok.Offset, Op: "NOT", X: p.parseNot()}
}

func (p *parser) parseComparison() ast.Expr {
	left := p.parseConcat()
	for {
		tok := p.peek()
		switch {
		case isComparison(tok):
			p.next()
			left = &ast.BinaryExpr{Op: tok.Text, OpPos: tok.Offset, Left: left, Right: p.parseConcat()}
		case tok.Is("IS"):
			left = p.parseIs(left)
		case tok.Is("NOT") && isNegatable(p.peekAt(1)):
			p.next()
			left = p.parseNegatable(left, true)
		case isNegatable(tok):
			left = p.parseNegatable(left, false)
		default:
			return left
		}
	}
}

func isComparison(tok tokenizer.Token) bool {
	if tok.Kind != tokenizer.KindSymbol {
		return false
	}
	switch tok.Text {
	case "=", "==", "!=", "<>", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func isNegatable(tok tokenizer.Token) bool {
	return tok.Is("IN") || tok.Is("BETWEEN") || tok.Is("LIKE") || tok.Is("ILIKE") ||
		tok.Is("GLOB") || tok.Is("REGEXP")
}

func (p *parser) parseIs(left ast.Expr) ast.Expr {
	isTok := p.next()
	not := p.accept("NOT")
	switch {
	case p.accept("NULL"):
		return &ast.IsNullExpr{X: left, Not: not}
	case p.at("DISTINCT"):
		p.next()
		p.expect("FROM")
		op := "IS DISTINCT FROM"
		if not {
			op = "IS NOT DISTINCT FROM"
		}
		return &ast.BinaryExpr{Op: op, OpPos: isTok.Offset, Left: left, Right: p.parseConcat()}
	}
	op := "IS"
	if not {
		op = "IS NOT"
	}
	return &ast.BinaryExpr{Op: op, OpPos: isTok.Offset, Left: left, Right: p.parseConcat()}
}

func (p *parser) parseNegatable(left ast.Expr, not bool) ast.Expr {
	tok := p.next()
	word := strings.ToUpper(tok.Text)
	switch word {
	case "IN":
		in := &ast.InExpr{X: left, Not: not}
		if !p.expectSymbol("(") {
			return in
		}
		switch next := p.peek(); {
		case next.Is("SELECT"), next.Is("VALUES"):
			in.Query = p.parseSelect(nil)
		case next.Is("WITH"):
			p.next()
			in.Query = p.parseSelect(p.parseCTEs())
		case next.IsSymbol(")"):
		default:
			in.List = p.parseExprList()
		}
		p.expectSymbol(")")
		return in
	case "BETWEEN":
		between := &ast.BetweenExpr{X: left, Not: not, Low: p.parseConcat()}
		p.expect("AND")
		between.High = p.parseConcat()
		return between
	}
	op := word
	if not {
		op = "NOT " + word
	}
	expr := &ast.BinaryExpr{Op: op, OpPos: tok.Offset, Left: left, Right: p.parseConcat()}
	if p.accept("ESCAPE") {
		p.parseConcat()
	}
	return expr
}

func (p *parser) parseConcat() ast.Expr {
	left := p.parseAdditive()
	for p.atSymbol("||") {
		op := p.next()
		left = &ast.BinaryExpr{Op: "||", OpPos: op.Offset, Left: left, Right: p.parseAdditive()}
	}
	return left
}

func (p *parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.atSymbol("+") || p.atSymbol("-") || p.atSymbol("&") || p.atSymbol("|") {
		op := p.next()
		left = &ast.BinaryExpr{Op: op.Text, OpPos: op.Offset, Left: left, Right: p.parseMultiplicative()}
	}
	return left
}

func (p *parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for p.atSymbol("*") || p.atSymbol("/") || p.atSymbol("%") {
		op := p.next()
		left = &ast.BinaryExpr{Op: op.Text, OpPos: op.Offset, Left: left, Right: p.parseUnary()}
	}
	return left
}

func (p *parser) parseUnary() ast.Expr {
	if tok := p.peek(); tok.IsSymbol("-") || tok.IsSymbol("+") || tok.IsSymbol("~") {
		p.next()
		return &ast.UnaryExpr{Offset: tok.Offset, Op: tok.Text, X: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for {
		switch {
		case p.atSymbol("::"):
			p.next()
			x = &ast.CastExpr{Offset: x.Pos(), X: x, Type: p.parseTypeName(false)}
		case p.at("COLLATE"):
			p.next()
			if p.peek().Kind == tokenizer.KindIdentifier || p.peek().Kind == tokenizer.KindString {
				p.next()
			}
		default:
			return x
		}
	}
}

func (p *parser) parsePrimary() ast.Expr {
	tok := p.peek()
	switch tok.Kind {
	case tokenizer.KindNumber:
		p.next()
		return &ast.Literal{Offset: tok.Offset, Kind: ast.LiteralNumber, Value: tok.Text}
	case tokenizer.KindString:
		p.next()
		return &ast.Literal{Offset: tok.Offset, Kind: ast.LiteralString, Value: tokenizer.UnquoteString(tok.Text)}
	case tokenizer.KindBlob:
		p.next()
		return &ast.Literal{Offset: tok.Offset, Kind: ast.LiteralBlob, Value: tok.Text}
	case tokenizer.KindParam:
		p.next()
		return &ast.Param{Offset: tok.Offset, Name: tok.Text}
	case tokenizer.KindIdentifier:
		return p.parseIdentifierExpr()
	case tokenizer.KindKeyword:
		switch tok.Text {
		case "TRUE", "FALSE":
			p.next()
			return &ast.Literal{Offset: tok.Offset, Kind: ast.LiteralBool, Value: tok.Text}
		case "NULL":
			p.next()
			return &ast.Literal{Offset: tok.Offset, Kind: ast.LiteralNull, Value: tok.Text}
		case "CASE":
			return p.parseCase()
		case "CAST":
			return p.parseCast()
		case "EXISTS":
			return p.parseExists()
		case "LEFT", "RIGHT":
			if p.peekAt(1).IsSymbol("(") {
				p.next()
				return p.parseCall(tok)
			}
		}
	case tokenizer.KindSymbol:
		if tok.IsSymbol("(") {
			return p.parseParenExpr()
		}
	}
	bad := p.fail(tok, "expression")
	p.sync()
	return bad
}

func (p *parser) parseIdentifierExpr() ast.Expr {
	tok := p.next()
	next := p.peek()
	upper := strings.ToUpper(tok.Text)

	switch {
	case next.IsSymbol("("):
		return p.parseCall(tok)
	case next.IsSymbol("."):
		return p.parseQualifiedRef(tok)
	case next.Kind == tokenizer.KindString && !tok.IsQuoted():
		if _, ok := typedLiterals[upper]; ok {
			p.next()
			lit := &ast.Literal{Offset: next.Offset, Kind: ast.LiteralString, Value: tokenizer.UnquoteString(next.Text)}
			return &ast.CastExpr{Offset: tok.Offset, X: lit, Type: upper}
		}
	}
	if _, ok := niladic[upper]; ok && !tok.IsQuoted() {
		return &ast.FuncCall{Offset: tok.Offset, Name: upper}
	}
	return &ast.ColumnRef{Column: tokenizer.NormalizeIdentifier(tok.Text), ColumnPos: tok.Offset}
}

// parseQualifiedRef parses t.col, schema.t.col or t.* after the first name.
func (p *parser) parseQualifiedRef(first tokenizer.Token) ast.Expr {
	parts := []tokenizer.Token{first}
	for p.atSymbol(".") {
		p.next()
		tok := p.peek()
		if tok.IsSymbol("*") {
			p.next()
			qualifier := parts[len(parts)-1]
			return &ast.StarExpr{Offset: first.Offset, Table: tokenizer.NormalizeIdentifier(qualifier.Text)}
		}
		if tok.Kind != tokenizer.KindIdentifier {
			bad := p.fail(tok, "column name")
			p.sync()
			return bad
		}
		parts = append(parts, p.next())
	}
	col := parts[len(parts)-1]
	table := parts[len(parts)-2]
	return &ast.ColumnRef{
		Table:     tokenizer.NormalizeIdentifier(table.Text),
		TablePos:  table.Offset,
		Column:    tokenizer.NormalizeIdentifier(col.Text),
		ColumnPos: col.Offset,
	}
}

func (p *parser) parseCall(nameTok tokenizer.Token) ast.Expr {
	call := &ast.FuncCall{Offset: nameTok.Offset, Name: strings.ToUpper(tokenizer.NormalizeIdentifier(nameTok.Text))}
	p.expectSymbol("(")
	switch {
	case p.atSymbol("*"):
		p.next()
		call.Star = true
	case p.atSymbol(")"):
	default:
		if p.accept("DISTINCT") {
			call.Distinct = true
		}
		call.Args = p.parseExprList()
		if p.accept("ORDER") {
			p.expect("BY")
			p.parseOrderItems()
		}
	}
	p.expectSymbol(")")
	if p.at("FILTER") && p.peekAt(1).IsSymbol("(") {
		p.next()
		p.skipParens()
	}
	if p.at("OVER") {
		p.next()
		if p.atSymbol("(") {
			p.skipParens()
		} else if p.peek().Kind == tokenizer.KindIdentifier {
			p.next()
		}
	}
	return call
}

func (p *parser) parseParenExpr() ast.Expr {
	open := p.next()
	if next := p.peek(); next.Is("SELECT") || next.Is("WITH") || next.Is("VALUES") {
		var query *ast.SelectStmt
		if next.Is("WITH") {
			p.next()
			query = p.parseSelect(p.parseCTEs())
		} else {
			query = p.parseSelect(nil)
		}
		p.expectSymbol(")")
		return &ast.SubqueryExpr{Offset: open.Offset, Query: query}
	}
	first := p.parseExpr()
	if !p.atSymbol(",") {
		p.expectSymbol(")")
		return first
	}
	list := &ast.ListExpr{Offset: open.Offset, Items: []ast.Expr{first}}
	for p.acceptSymbol(",") {
		list.Items = append(list.Items, p.parseExpr())
	}
	p.expectSymbol(")")
	return list
}

func (p *parser) parseCase() ast.Expr {
	tok := p.next()
	expr := &ast.CaseExpr{Offset: tok.Offset}
	if !p.at("WHEN") {
		expr.Operand = p.parseExpr()
	}
	for p.accept("WHEN") {
		when := &ast.When{Cond: p.parseExpr()}
		p.expect("THEN")
		when.Result = p.parseExpr()
		expr.Whens = append(expr.Whens, when)
	}
	if len(expr.Whens) == 0 {
		p.fail(p.peek(), "WHEN")
	}
	if p.accept("ELSE") {
		expr.Else = p.parseExpr()
	}
	p.expect("END")
	return expr
}

func (p *parser) parseCast() ast.Expr {
	tok := p.next()
	cast := &ast.CastExpr{Offset: tok.Offset}
	if !p.expectSymbol("(") {
		cast.X = &ast.Bad{Offset: p.peek().Offset}
		return cast
	}
	cast.X = p.parseExpr()
	if p.expect("AS") {
		cast.Type = p.parseTypeName(true)
	}
	p.expectSymbol(")")
	return cast
}

func (p *parser) parseExists() *ast.ExistsExpr {
	tok := p.next()
	exists := &ast.ExistsExpr{Offset: tok.Offset}
	if !p.expectSymbol("(") {
		return exists
	}
	if p.at("WITH") {
		p.next()
		exists.Query = p.parseSelect(p.parseCTEs())
	} else {
		exists.Query = p.parseSelect(nil)
	}
	p.expectSymbol(")")
	return exists
}

// parseTypeName reads a type such as INTEGER, VARCHAR(20), NUMERIC(10, 2) or
// TEXT[]. Inside CAST(... AS type) several words are allowed, as in
// DOUBLE PRECISION.
func (p *parser) parseTypeName(multiWord bool) string {
	tok := p.peek()
	if tok.Kind != tokenizer.KindIdentifier {
		p.fail(tok, "type name")
		return ""
	}
	words := []string{strings.ToUpper(p.next().Text)}
	for multiWord && (p.peek().Kind == tokenizer.KindIdentifier || p.at("WITH")) && !strings.HasPrefix(p.peek().Text, "[") {
		words = append(words, strings.ToUpper(p.next().Text))
	}
	name := strings.Join(words, " ")
	if p.atSymbol("(") {
		var args []string
		p.next()
		for {
			arg := p.peek()
			if arg.Kind != tokenizer.KindNumber && arg.Kind != tokenizer.KindIdentifier {
				p.fail(arg, "type argument")
				break
			}
			args = append(args, p.next().Text)
			if !p.acceptSymbol(",") {
				break
			}
		}
		p.expectSymbol(")")
		name += "(" + strings.Join(args, ",") + ")"
	}
	if tok := p.peek(); tok.Kind == tokenizer.KindIdentifier && tok.Text == "[]" {
		p.next()
		name += "[]"
	}
	return name
}
