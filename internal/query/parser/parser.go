// Package parser turns one SQL statement into an ast.Stmt.
//
// The parser is recursive descent over tokenizer output and never fails: on
// an unexpected token it records an *ast.Bad marker, switches to recovering
// mode and skips ahead to the next synchronization token (a clause keyword,
// a comma, a semicolon or end of input). No further markers are recorded
// until a synchronization token has been consumed, so one mistake yields one
// syntax error rather than a cascade.
package parser

import (
	"fmt"
	"strings"

	"github.com/electwix/sqlvet/internal/extract"
	"github.com/electwix/sqlvet/internal/query/ast"
	"github.com/electwix/sqlvet/internal/tokenizer"
)

// Parse parses an extracted statement. Node offsets are relative to
// stmt.Text; use stmt.PositionAt to map them back to the source file.
func Parse(stmt extract.Statement) ast.Stmt {
	return ParseText(stmt.Text)
}

// ParseText parses a single SQL statement.
func ParseText(sql string) ast.Stmt {
	p := &parser{tokens: tokenizer.Scan(sql)}
	stmt := p.parseStatement()
	if setter, ok := stmt.(interface{ SetProblems([]*ast.Bad) }); ok {
		setter.SetProblems(p.bads)
	}
	return stmt
}

type parser struct {
	tokens     []tokenizer.Token
	pos        int
	recovering bool
	bads       []*ast.Bad
}

// otherStatements lists leading words of statements outside the validated
// subset. They parse to *ast.OtherStmt.
var otherStatements = map[string]struct{}{
	"ALTER": {}, "ANALYZE": {}, "ATTACH": {}, "BEGIN": {}, "CALL": {}, "CLUSTER": {},
	"COMMENT": {}, "COMMIT": {}, "COPY": {}, "CREATE": {}, "DEALLOCATE": {}, "DECLARE": {},
	"DETACH": {}, "DO": {}, "END": {}, "EXECUTE": {}, "GRANT": {}, "LISTEN": {},
	"LOCK": {}, "NOTIFY": {}, "PRAGMA": {}, "PREPARE": {}, "REFRESH": {}, "REINDEX": {},
	"RELEASE": {}, "REPLACE": {}, "RESET": {}, "REVOKE": {}, "ROLLBACK": {}, "SAVEPOINT": {},
	"SET": {}, "SHOW": {}, "START": {}, "USE": {}, "VACUUM": {},
}

// syncWords are the clause keywords recovery skips to.
var syncWords = map[string]struct{}{
	"FROM": {}, "WHERE": {}, "JOIN": {}, "GROUP": {}, "ORDER": {},
	"HAVING": {}, "LIMIT": {}, "SET": {}, "VALUES": {},
}

func (p *parser) parseStatement() ast.Stmt {
	start := p.peek()
	if start.Is("EXPLAIN") {
		p.next()
		if p.at("QUERY") && p.peekAt(1).Is("PLAN") {
			p.next()
			p.next()
		}
		for p.at("ANALYZE") || p.at("VERBOSE") {
			p.next()
		}
		start = p.peek()
	}

	var stmt ast.Stmt
	switch {
	case start.Kind == tokenizer.KindEOF:
		return &ast.OtherStmt{StmtBase: ast.StmtBase{Start: start.Offset}}
	case start.Is("WITH"):
		stmt = p.parseWithStatement()
	case start.Is("SELECT"), start.Is("VALUES"), start.IsSymbol("("):
		stmt = p.parseSelect(nil)
	case start.Is("INSERT"):
		stmt = p.parseInsert(nil)
	case start.Is("UPDATE"):
		stmt = p.parseUpdate(nil)
	case start.Is("DELETE"):
		stmt = p.parseDelete(nil)
	case start.Is("DROP") && p.peekAt(1).Is("TABLE"):
		stmt = p.parseDropTable()
	case start.Is("TRUNCATE"):
		stmt = p.parseTruncate()
	default:
		word := strings.ToUpper(start.Text)
		if _, ok := otherStatements[word]; ok || start.Is("DROP") {
			p.pos = len(p.tokens) - 1
			return &ast.OtherStmt{StmtBase: ast.StmtBase{Start: start.Offset}, Keyword: word}
		}
		p.errorAt(start, "unexpected %s at start of statement", describe(start))
		p.pos = len(p.tokens) - 1
		return &ast.BadStmt{StmtBase: ast.StmtBase{Start: start.Offset}}
	}

	p.acceptSymbol(";")
	if tok := p.peek(); tok.Kind != tokenizer.KindEOF {
		p.errorAt(tok, "unexpected %s after end of statement", describe(tok))
		p.pos = len(p.tokens) - 1
	}
	return stmt
}

func (p *parser) parseWithStatement() ast.Stmt {
	withTok := p.next()
	ctes := p.parseCTEs()
	tok := p.peek()
	switch {
	case tok.Is("SELECT"), tok.Is("VALUES"), tok.IsSymbol("("):
		stmt := p.parseSelect(ctes)
		stmt.Start = withTok.Offset
		return stmt
	case tok.Is("INSERT"):
		stmt := p.parseInsert(ctes)
		stmt.Start = withTok.Offset
		return stmt
	case tok.Is("UPDATE"):
		stmt := p.parseUpdate(ctes)
		stmt.Start = withTok.Offset
		return stmt
	case tok.Is("DELETE"):
		stmt := p.parseDelete(ctes)
		stmt.Start = withTok.Offset
		return stmt
	}
	p.errorAt(tok, "expected SELECT, INSERT, UPDATE or DELETE after WITH, found %s", describe(tok))
	p.pos = len(p.tokens) - 1
	return &ast.SelectStmt{StmtBase: ast.StmtBase{Start: withTok.Offset}, With: ctes}
}

func (p *parser) parseCTEs() []*ast.CTE {
	p.accept("RECURSIVE")
	var ctes []*ast.CTE
	for {
		nameTok := p.peek()
		if nameTok.Kind != tokenizer.KindIdentifier {
			p.fail(nameTok, "common table expression name")
			return ctes
		}
		p.next()
		cte := &ast.CTE{Name: tokenizer.NormalizeIdentifier(nameTok.Text), Offset: nameTok.Offset}
		if p.atSymbol("(") {
			cte.Columns = p.parseIdentList()
		}
		if !p.expect("AS") {
			return append(ctes, cte)
		}
		if p.at("NOT") {
			p.next()
		}
		p.accept("MATERIALIZED")
		if !p.expectSymbol("(") {
			return append(ctes, cte)
		}
		cte.Query = p.parseSelect(nil)
		p.expectSymbol(")")
		ctes = append(ctes, cte)
		if !p.acceptSymbol(",") {
			return ctes
		}
	}
}

func (p *parser) parseSelect(with []*ast.CTE) *ast.SelectStmt {
	stmt := &ast.SelectStmt{StmtBase: ast.StmtBase{Start: p.peek().Offset}, With: with}
	stmt.Core = p.parseSelectCore()
	for p.at("UNION") || p.at("INTERSECT") || p.at("EXCEPT") {
		op := strings.ToUpper(p.next().Text)
		if p.accept("ALL") {
			op += " ALL"
		} else if p.accept("DISTINCT") {
			op += " DISTINCT"
		}
		stmt.Compounds = append(stmt.Compounds, &ast.CompoundPart{Op: op, Core: p.parseSelectCore()})
	}
	if p.accept("ORDER") {
		p.expect("BY")
		stmt.OrderBy = p.parseOrderItems()
	}
	if p.accept("LIMIT") {
		stmt.Limit = p.parseExpr()
		if p.accept("OFFSET") {
			stmt.Offset = p.parseExpr()
		} else if p.acceptSymbol(",") {
			// MySQL LIMIT offset, count.
			stmt.Offset = stmt.Limit
			stmt.Limit = p.parseExpr()
		}
	} else if p.accept("OFFSET") {
		stmt.Offset = p.parseExpr()
	}
	return stmt
}

func (p *parser) parseSelectCore() *ast.SelectCore {
	start := p.peek()
	core := &ast.SelectCore{Start: start.Offset}

	if start.IsSymbol("(") {
		p.next()
		inner := p.parseSelect(nil)
		p.expectSymbol(")")
		if inner.Core != nil {
			return inner.Core
		}
		return core
	}
	if p.accept("VALUES") {
		core.Values = p.parseValueRows()
		return core
	}
	if !p.expect("SELECT") {
		p.sync()
		return core
	}
	if p.accept("DISTINCT") {
		core.Distinct = true
	} else {
		p.accept("ALL")
	}
	core.Items = p.parseSelectItems()

	if p.accept("FROM") {
		core.From = p.parseTableRefs()
	}
	if p.accept("WHERE") {
		core.Where = p.parseExpr()
	}
	if p.accept("GROUP") {
		p.expect("BY")
		core.GroupBy = p.parseExprList()
	}
	if p.accept("HAVING") {
		core.Having = p.parseExpr()
	}
	return core
}

func (p *parser) parseSelectItems() []*ast.SelectItem {
	var items []*ast.SelectItem
	for {
		items = append(items, p.parseSelectItem())
		if !p.acceptSymbol(",") {
			return items
		}
	}
}

func (p *parser) parseSelectItem() *ast.SelectItem {
	tok := p.peek()
	if tok.IsSymbol("*") {
		p.next()
		return &ast.SelectItem{Expr: &ast.StarExpr{Offset: tok.Offset}}
	}
	if tok.Kind == tokenizer.KindIdentifier && p.peekAt(1).IsSymbol(".") && p.peekAt(2).IsSymbol("*") {
		p.next()
		p.next()
		p.next()
		return &ast.SelectItem{Expr: &ast.StarExpr{Offset: tok.Offset, Table: tokenizer.NormalizeIdentifier(tok.Text)}}
	}
	item := &ast.SelectItem{Expr: p.parseExpr()}
	item.Alias, item.AliasPos = p.parseAlias()
	return item
}

// parseAlias consumes [AS] name. Bare aliases must be plain identifiers.
func (p *parser) parseAlias() (string, int) {
	if p.accept("AS") {
		tok := p.peek()
		if tok.Kind != tokenizer.KindIdentifier && tok.Kind != tokenizer.KindString {
			p.fail(tok, "alias")
			return "", 0
		}
		p.next()
		return aliasText(tok), tok.Offset
	}
	if tok := p.peek(); tok.Kind == tokenizer.KindIdentifier {
		p.next()
		return tokenizer.NormalizeIdentifier(tok.Text), tok.Offset
	}
	return "", 0
}

func aliasText(tok tokenizer.Token) string {
	if tok.Kind == tokenizer.KindString {
		return tokenizer.UnquoteString(tok.Text)
	}
	return tokenizer.NormalizeIdentifier(tok.Text)
}

func (p *parser) parseOrderItems() []*ast.OrderItem {
	var items []*ast.OrderItem
	for {
		item := &ast.OrderItem{Expr: p.parseExpr()}
		if p.accept("DESC") {
			item.Desc = true
		} else {
			p.accept("ASC")
		}
		if p.at("NULLS") {
			p.next()
			if !p.accept("FIRST") && !p.accept("LAST") {
				p.fail(p.peek(), "FIRST or LAST")
			}
		}
		items = append(items, item)
		if !p.acceptSymbol(",") {
			return items
		}
	}
}

func (p *parser) parseValueRows() [][]ast.Expr {
	var rows [][]ast.Expr
	for {
		if !p.expectSymbol("(") {
			return rows
		}
		var row []ast.Expr
		if !p.atSymbol(")") {
			row = p.parseExprList()
		}
		p.expectSymbol(")")
		rows = append(rows, row)
		if !p.acceptSymbol(",") {
			return rows
		}
	}
}

func (p *parser) parseTableRefs() []ast.TableExpr {
	var refs []ast.TableExpr
	for {
		refs = append(refs, p.parseJoinedTable())
		if !p.acceptSymbol(",") {
			return refs
		}
	}
}

func (p *parser) parseJoinedTable() ast.TableExpr {
	left := p.parseTablePrimary()
	for {
		start := p.peek()
		kind, ok := p.parseJoinKind()
		if !ok {
			return left
		}
		join := &ast.Join{Offset: start.Offset, Kind: kind, Left: left, Right: p.parseTablePrimary()}
		if p.accept("ON") {
			join.On = p.parseExpr()
		} else if p.accept("USING") {
			join.Using = p.parseIdentList()
		}
		left = join
	}
}

func (p *parser) parseJoinKind() (string, bool) {
	var words []string
	if p.accept("NATURAL") {
		words = append(words, "NATURAL")
	}
	switch {
	case p.at("LEFT"), p.at("RIGHT"), p.at("FULL"):
		words = append(words, strings.ToUpper(p.next().Text))
		if p.accept("OUTER") {
			words = append(words, "OUTER")
		}
	case p.at("INNER"), p.at("CROSS"):
		words = append(words, strings.ToUpper(p.next().Text))
	}
	if !p.at("JOIN") {
		if len(words) > 0 {
			p.fail(p.peek(), "JOIN")
			return strings.Join(words, " "), true
		}
		return "", false
	}
	p.next()
	words = append(words, "JOIN")
	return strings.Join(words, " "), true
}

func (p *parser) parseTablePrimary() ast.TableExpr {
	tok := p.peek()
	if tok.IsSymbol("(") {
		p.next()
		if next := p.peek(); next.Is("SELECT") || next.Is("WITH") || next.Is("VALUES") {
			var query *ast.SelectStmt
			if next.Is("WITH") {
				p.next()
				query = p.parseSelect(p.parseCTEs())
			} else {
				query = p.parseSelect(nil)
			}
			p.expectSymbol(")")
			alias, _ := p.parseAlias()
			return &ast.SubqueryTable{Offset: tok.Offset, Query: query, Alias: alias}
		}
		inner := p.parseJoinedTable()
		p.expectSymbol(")")
		return inner
	}
	if tok.Kind != tokenizer.KindIdentifier {
		return p.fail(tok, "table name")
	}
	name := p.parseQualifiedName()
	if p.atSymbol("(") {
		// Table-valued function; its columns are unknown.
		p.skipParens()
		alias, _ := p.parseAlias()
		return &ast.SubqueryTable{Offset: tok.Offset, Alias: alias}
	}
	ref := &ast.TableName{Offset: tok.Offset, Name: name}
	ref.Alias, ref.AliasPos = p.parseAlias()
	return ref
}

// parseTableName parses a DML target with an optional alias.
func (p *parser) parseTableName(withAlias bool) *ast.TableName {
	tok := p.peek()
	if tok.Kind != tokenizer.KindIdentifier {
		p.fail(tok, "table name")
		return nil
	}
	ref := &ast.TableName{Offset: tok.Offset, Name: p.parseQualifiedName()}
	if withAlias {
		ref.Alias, ref.AliasPos = p.parseAlias()
	}
	return ref
}

func (p *parser) parseQualifiedName() string {
	parts := []string{tokenizer.NormalizeIdentifier(p.next().Text)}
	for p.atSymbol(".") && p.peekAt(1).Kind == tokenizer.KindIdentifier {
		p.next()
		parts = append(parts, tokenizer.NormalizeIdentifier(p.next().Text))
	}
	return strings.Join(parts, ".")
}

func (p *parser) parseIdentList() []*ast.Ident {
	if !p.expectSymbol("(") {
		return nil
	}
	var idents []*ast.Ident
	for {
		tok := p.peek()
		if tok.Kind != tokenizer.KindIdentifier {
			p.fail(tok, "column name")
			break
		}
		p.next()
		idents = append(idents, &ast.Ident{Name: tokenizer.NormalizeIdentifier(tok.Text), Offset: tok.Offset})
		if !p.acceptSymbol(",") {
			break
		}
	}
	p.expectSymbol(")")
	return idents
}

func (p *parser) parseInsert(with []*ast.CTE) *ast.InsertStmt {
	start := p.next()
	stmt := &ast.InsertStmt{StmtBase: ast.StmtBase{Start: start.Offset}, With: with}
	if p.accept("OR") {
		p.next()
	}
	p.accept("IGNORE")
	if !p.expect("INTO") {
		p.sync()
		return stmt
	}
	stmt.Table = p.parseTableName(false)
	if stmt.Table != nil && p.accept("AS") {
		if tok := p.peek(); tok.Kind == tokenizer.KindIdentifier {
			p.next()
			stmt.Table.Alias, stmt.Table.AliasPos = tokenizer.NormalizeIdentifier(tok.Text), tok.Offset
		}
	}
	if p.atSymbol("(") && !p.peekAt(1).Is("SELECT") && !p.peekAt(1).Is("WITH") {
		stmt.Columns = p.parseIdentList()
	}
	switch tok := p.peek(); {
	case p.accept("VALUES"):
		stmt.Values = p.parseValueRows()
	case tok.Is("DEFAULT"):
		p.next()
		p.expect("VALUES")
	case tok.Is("SELECT"), tok.IsSymbol("("):
		stmt.Query = p.parseSelect(nil)
	case tok.Is("WITH"):
		p.next()
		stmt.Query = p.parseSelect(p.parseCTEs())
	default:
		p.fail(tok, "VALUES or SELECT")
		p.sync()
	}
	if p.at("ON") {
		// ON CONFLICT / ON DUPLICATE KEY clauses are not validated.
		for !p.atEnd() && !p.at("RETURNING") {
			p.next()
		}
	}
	if p.accept("RETURNING") {
		stmt.Returning = p.parseSelectItems()
	}
	return stmt
}

func (p *parser) parseUpdate(with []*ast.CTE) *ast.UpdateStmt {
	start := p.next()
	stmt := &ast.UpdateStmt{StmtBase: ast.StmtBase{Start: start.Offset}, With: with}
	if p.accept("OR") {
		p.next()
	}
	p.accept("ONLY")
	stmt.Table = p.parseTableName(true)
	if !p.expect("SET") {
		p.sync()
	} else {
		for {
			stmt.Set = append(stmt.Set, p.parseAssignment())
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if p.accept("FROM") {
		stmt.From = p.parseTableRefs()
	}
	if p.accept("WHERE") {
		stmt.Where = p.parseExpr()
	}
	if p.accept("RETURNING") {
		stmt.Returning = p.parseSelectItems()
	}
	return stmt
}

func (p *parser) parseAssignment() *ast.Assignment {
	tok := p.peek()
	if tok.Kind != tokenizer.KindIdentifier {
		p.fail(tok, "column name")
		p.sync()
		return &ast.Assignment{Value: &ast.Bad{Offset: tok.Offset}}
	}
	p.next()
	ref := &ast.ColumnRef{Column: tokenizer.NormalizeIdentifier(tok.Text), ColumnPos: tok.Offset}
	if p.atSymbol(".") && p.peekAt(1).Kind == tokenizer.KindIdentifier {
		p.next()
		col := p.next()
		ref.Table, ref.TablePos = ref.Column, ref.ColumnPos
		ref.Column, ref.ColumnPos = tokenizer.NormalizeIdentifier(col.Text), col.Offset
	}
	assign := &ast.Assignment{Column: ref}
	if !p.expectSymbol("=") {
		p.sync()
		assign.Value = &ast.Bad{Offset: p.peek().Offset}
		return assign
	}
	assign.Value = p.parseExpr()
	return assign
}

func (p *parser) parseDelete(with []*ast.CTE) *ast.DeleteStmt {
	start := p.next()
	stmt := &ast.DeleteStmt{StmtBase: ast.StmtBase{Start: start.Offset}, With: with}
	if !p.expect("FROM") {
		p.sync()
	} else {
		stmt.Table = p.parseTableName(true)
	}
	if p.accept("USING") {
		stmt.Using = p.parseTableRefs()
	}
	if p.accept("WHERE") {
		stmt.Where = p.parseExpr()
	}
	if p.accept("RETURNING") {
		stmt.Returning = p.parseSelectItems()
	}
	return stmt
}

func (p *parser) parseDropTable() *ast.DropTableStmt {
	start := p.next()
	p.next() // TABLE
	stmt := &ast.DropTableStmt{StmtBase: ast.StmtBase{Start: start.Offset}}
	if p.at("IF") {
		p.next()
		p.expect("EXISTS")
		stmt.IfExists = true
	}
	stmt.Tables = p.parseTableNameList()
	for p.at("CASCADE") || p.at("RESTRICT") {
		p.next()
	}
	return stmt
}

func (p *parser) parseTruncate() *ast.TruncateStmt {
	start := p.next()
	stmt := &ast.TruncateStmt{StmtBase: ast.StmtBase{Start: start.Offset}}
	p.accept("TABLE")
	p.accept("ONLY")
	stmt.Tables = p.parseTableNameList()
	for p.at("RESTART") || p.at("CONTINUE") || p.at("IDENTITY") || p.at("CASCADE") || p.at("RESTRICT") {
		p.next()
	}
	return stmt
}

func (p *parser) parseTableNameList() []*ast.TableName {
	var tables []*ast.TableName
	for {
		ref := p.parseTableName(false)
		if ref == nil {
			return tables
		}
		tables = append(tables, ref)
		if !p.acceptSymbol(",") {
			return tables
		}
	}
}

// Token helpers.

func (p *parser) peek() tokenizer.Token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) tokenizer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

// next consumes the current token. Consuming a synchronization token ends
// recovering mode.
func (p *parser) next() tokenizer.Token {
	tok := p.tokens[p.pos]
	if tok.Kind == tokenizer.KindEOF {
		return tok
	}
	p.pos++
	if isSync(tok) {
		p.recovering = false
	}
	return tok
}

func (p *parser) at(word string) bool {
	return p.peek().Is(word)
}

func (p *parser) atSymbol(sym string) bool {
	return p.peek().IsSymbol(sym)
}

func (p *parser) atEnd() bool {
	tok := p.peek()
	return tok.Kind == tokenizer.KindEOF || tok.IsSymbol(";")
}

func (p *parser) accept(word string) bool {
	if p.at(word) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptSymbol(sym string) bool {
	if p.atSymbol(sym) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(word string) bool {
	if p.accept(word) {
		return true
	}
	p.fail(p.peek(), word)
	return false
}

func (p *parser) expectSymbol(sym string) bool {
	if p.acceptSymbol(sym) {
		return true
	}
	p.fail(p.peek(), "'"+sym+"'")
	return false
}

// fail records "expected <what>" at tok and returns the marker.
func (p *parser) fail(tok tokenizer.Token, what string) *ast.Bad {
	if tok.Kind == tokenizer.KindInvalid {
		return p.errorAt(tok, "%s", tok.Message)
	}
	return p.errorAt(tok, "expected %s, found %s", what, describe(tok))
}

// errorAt records a marker unless the parser is already recovering. The
// returned node is always usable as a placeholder in the tree.
func (p *parser) errorAt(tok tokenizer.Token, format string, args ...any) *ast.Bad {
	bad := &ast.Bad{Offset: tok.Offset, Message: fmt.Sprintf(format, args...)}
	if !p.recovering {
		p.bads = append(p.bads, bad)
	}
	p.recovering = true
	return bad
}

// sync skips to the next synchronization token without consuming it.
// Parenthesized groups are skipped whole; an unmatched ')' stops the scan so
// the enclosing construct can close.
func (p *parser) sync() {
	depth := 0
	for {
		tok := p.peek()
		if tok.Kind == tokenizer.KindEOF {
			return
		}
		if depth == 0 && (isSync(tok) || tok.IsSymbol(")")) {
			return
		}
		switch {
		case tok.IsSymbol("("):
			depth++
		case tok.IsSymbol(")"):
			depth--
		}
		p.pos++
	}
}

func (p *parser) skipParens() {
	depth := 0
	for {
		tok := p.peek()
		if tok.Kind == tokenizer.KindEOF {
			p.fail(tok, "')'")
			return
		}
		p.pos++
		switch {
		case tok.IsSymbol("("):
			depth++
		case tok.IsSymbol(")"):
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func isSync(tok tokenizer.Token) bool {
	switch tok.Kind {
	case tokenizer.KindEOF:
		return true
	case tokenizer.KindSymbol:
		return tok.Text == "," || tok.Text == ";"
	case tokenizer.KindKeyword:
		_, ok := syncWords[tok.Text]
		return ok
	}
	return false
}

func describe(tok tokenizer.Token) string {
	switch tok.Kind {
	case tokenizer.KindEOF:
		return "end of input"
	case tokenizer.KindString:
		return "string " + tok.Text
	case tokenizer.KindNumber:
		return "number " + tok.Text
	}
	return "'" + tok.Text + "'"
}
