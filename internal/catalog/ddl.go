package catalog

import (
	"fmt"
	"strings"

	"github.com/electwix/sqlvet/internal/query/ast"
	"github.com/electwix/sqlvet/internal/query/parser"
	"github.com/electwix/sqlvet/internal/source"
	"github.com/electwix/sqlvet/internal/tokenizer"
)

// decodeDDL applies the CREATE TABLE, CREATE VIEW, ALTER TABLE and DROP
// TABLE statements of a SQL file to b. Other statements are skipped.
func decodeDDL(path string, data []byte, b *builder) error {
	text := string(data)
	p := &ddlParser{
		path:   path,
		text:   text,
		index:  source.NewLineIndex(data),
		tokens: tokenizer.Scan(text),
		b:      b,
	}
	return p.parse()
}

type ddlParser struct {
	path   string
	text   string
	index  *source.LineIndex
	tokens []tokenizer.Token
	pos    int
	b      *builder
}

var columnConstraintStarters = map[string]struct{}{
	"AS": {}, "AUTOINCREMENT": {}, "AUTO_INCREMENT": {}, "CHECK": {}, "COLLATE": {},
	"COMMENT": {}, "CONSTRAINT": {}, "DEFAULT": {}, "GENERATED": {}, "IDENTITY": {},
	"NOT": {}, "NULL": {}, "ON": {}, "PRIMARY": {}, "REFERENCES": {}, "UNIQUE": {},
}

func (p *ddlParser) parse() error {
	for !p.isEOF() {
		tok := p.current()
		var err error
		switch {
		case tok.IsSymbol(";"):
			p.advance()
		case tok.Is("CREATE"):
			err = p.parseCreate()
		case tok.Is("ALTER"):
			err = p.parseAlter()
		case tok.Is("DROP"):
			err = p.parseDrop()
		default:
			p.skipStatement()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *ddlParser) parseCreate() error {
	createTok := p.advance()
	if p.matchKeyword("OR") && p.peek(1).Is("REPLACE") {
		p.advance()
		p.advance()
	}
	for p.matchKeyword("TEMP") || p.matchKeyword("TEMPORARY") || p.matchKeyword("UNLOGGED") ||
		p.matchKeyword("GLOBAL") || p.matchKeyword("LOCAL") {
		p.advance()
	}
	switch {
	case p.matchKeyword("TABLE"):
		if err := p.checkStatement(); err != nil {
			return err
		}
		p.advance()
		return p.parseCreateTable()
	case p.matchKeyword("VIEW"), p.matchKeyword("MATERIALIZED") && p.peek(1).Is("VIEW"):
		if err := p.checkStatement(); err != nil {
			return err
		}
		if p.matchKeyword("MATERIALIZED") {
			p.advance()
		}
		p.advance()
		return p.parseCreateView(createTok)
	}
	p.skipStatement()
	return nil
}

func (p *ddlParser) parseCreateTable() error {
	p.skipIfNotExists()
	name, nameTok, ok := p.parseObjectName()
	if !ok {
		return p.errorAt(p.current(), "expected table name, found %s", describeToken(p.current()))
	}
	if p.matchKeyword("AS") {
		// CREATE TABLE ... AS SELECT has no declared columns.
		p.skipStatement()
		return nil
	}
	if !p.matchSymbol("(") {
		return p.errorAt(p.current(), "expected '(' after table name %s", name)
	}
	p.advance()

	table, err := NewTable(name)
	if err != nil {
		return p.errorAt(nameTok, "%v", err)
	}
	var primaryKey []string
	for {
		tok := p.current()
		switch {
		case tok.Kind == tokenizer.KindEOF:
			return p.errorAt(tok, "unterminated column list for table %s", name)
		case tok.IsSymbol(")"):
			p.advance()
			for _, col := range primaryKey {
				if idx, ok := table.index[fold(col)]; ok {
					table.Columns[idx].Nullable = false
				}
			}
			p.skipStatement()
			if err := p.b.add(table); err != nil {
				return p.errorAt(nameTok, "%v", err)
			}
			return nil
		case tok.IsSymbol(","):
			p.advance()
		case p.atTableConstraint():
			primaryKey = append(primaryKey, p.parseTableConstraint()...)
		default:
			col, colTok, err := p.parseColumnDefinition()
			if err != nil {
				return err
			}
			if err := table.addColumn(col); err != nil {
				return p.errorAt(colTok, "%v", err)
			}
		}
	}
}

// atTableConstraint reports whether the current table element is a
// constraint rather than a column. KEY and INDEX start a constraint only when
// followed by a column list, since both are valid column names.
func (p *ddlParser) atTableConstraint() bool {
	tok := p.current()
	switch {
	case tok.Is("CONSTRAINT"), tok.Is("PRIMARY"), tok.Is("FOREIGN"), tok.Is("CHECK"), tok.Is("EXCLUDE"):
		return true
	case tok.Is("UNIQUE"), tok.Is("FULLTEXT"), tok.Is("SPATIAL"):
		return true
	case tok.Is("KEY"), tok.Is("INDEX"):
		next := p.peek(1)
		return next.IsSymbol("(") || (next.Kind == tokenizer.KindIdentifier && p.peek(2).IsSymbol("("))
	}
	return false
}

// parseTableConstraint skips one table constraint and returns the columns of
// a PRIMARY KEY constraint.
func (p *ddlParser) parseTableConstraint() []string {
	var pk []string
	if p.matchKeyword("CONSTRAINT") {
		p.advance()
		if p.current().Kind == tokenizer.KindIdentifier {
			p.advance()
		}
	}
	if p.matchKeyword("PRIMARY") && p.peek(1).Is("KEY") {
		p.advance()
		p.advance()
		if p.matchSymbol("(") {
			pk = p.parseColumnNameList()
		}
	}
	p.skipElement()
	return pk
}

func (p *ddlParser) parseColumnNameList() []string {
	p.advance() // (
	var names []string
	for !p.isEOF() && !p.matchSymbol(")") {
		tok := p.advance()
		if tok.Kind == tokenizer.KindIdentifier || tok.Kind == tokenizer.KindKeyword {
			names = append(names, tokenizer.NormalizeIdentifier(tok.Text))
		}
		if p.matchSymbol("(") {
			p.skipBalancedParentheses()
		}
	}
	if p.matchSymbol(")") {
		p.advance()
	}
	return names
}

func (p *ddlParser) parseColumnDefinition() (Column, tokenizer.Token, error) {
	nameTok := p.current()
	if nameTok.Kind != tokenizer.KindIdentifier && nameTok.Kind != tokenizer.KindKeyword {
		return Column{}, nameTok, p.errorAt(nameTok, "expected column name, found %s", describeToken(nameTok))
	}
	p.advance()
	col := Column{Name: tokenizer.NormalizeIdentifier(nameTok.Text), Nullable: true}

	var typ strings.Builder
	for {
		tok := p.current()
		if tok.IsSymbol("(") && typ.Len() > 0 {
			typ.WriteString(p.typeArguments())
			continue
		}
		if tok.Kind == tokenizer.KindIdentifier && tok.Text == "[]" {
			typ.WriteString("[]")
			p.advance()
			continue
		}
		if tok.Kind != tokenizer.KindIdentifier && tok.Kind != tokenizer.KindKeyword {
			break
		}
		if _, isConstraint := columnConstraintStarters[strings.ToUpper(tok.Text)]; isConstraint {
			break
		}
		if typ.Len() > 0 {
			typ.WriteByte(' ')
		}
		typ.WriteString(tok.Text)
		p.advance()
	}
	col.Type = typ.String()

	for {
		tok := p.current()
		switch {
		case tok.Kind == tokenizer.KindEOF:
			return col, nameTok, p.errorAt(tok, "unexpected end of input in column definition for %s", col.Name)
		case tok.IsSymbol(",") || tok.IsSymbol(")") || tok.IsSymbol(";"):
			return col, nameTok, nil
		case tok.IsSymbol("("):
			p.skipBalancedParentheses()
		case tok.Is("NOT") && p.peek(1).Is("NULL"):
			p.advance()
			p.advance()
			col.Nullable = false
		case tok.Is("PRIMARY") && p.peek(1).Is("KEY"):
			p.advance()
			p.advance()
			col.Nullable = false
		default:
			p.advance()
		}
	}
}

// typeArguments consumes "(255)" or "(10, 2)" and renders it compactly.
func (p *ddlParser) typeArguments() string {
	p.advance() // (
	var args []string
	for !p.isEOF() && !p.matchSymbol(")") {
		tok := p.advance()
		if !tok.IsSymbol(",") {
			args = append(args, tok.Text)
		}
	}
	if p.matchSymbol(")") {
		p.advance()
	}
	return "(" + strings.Join(args, ",") + ")"
}

func (p *ddlParser) parseCreateView(createTok tokenizer.Token) error {
	p.skipIfNotExists()
	name, nameTok, ok := p.parseObjectName()
	if !ok {
		return p.errorAt(p.current(), "expected view name, found %s", describeToken(p.current()))
	}
	var explicit []string
	if p.matchSymbol("(") {
		explicit = p.parseColumnNameList()
	}
	if !p.matchKeyword("AS") {
		return p.errorAt(p.current(), "expected AS in view %s", name)
	}
	p.advance()

	start := p.current()
	end := start
	for !p.isEOF() && !p.matchSymbol(";") {
		end = p.advance()
	}
	if start.Kind == tokenizer.KindEOF || start.IsSymbol(";") {
		return p.errorAt(start, "view %s has no query", name)
	}
	query := p.text[start.Offset:end.End]

	cols := p.viewColumns(query)
	if len(explicit) > 0 {
		named := make([]Column, 0, len(explicit))
		for i, colName := range explicit {
			col := Column{Name: colName, Nullable: true}
			if len(cols) == len(explicit) {
				col.Type, col.Nullable = cols[i].Type, cols[i].Nullable
			}
			named = append(named, col)
		}
		cols = named
	}
	if len(cols) == 0 {
		// The query could not be understood; the view stays unknown.
		return nil
	}

	view, err := NewTable(name)
	if err != nil {
		return p.errorAt(nameTok, "%v", err)
	}
	for _, col := range cols {
		// Duplicate output names keep the first definition.
		_ = view.addColumn(col)
	}
	if err := p.b.add(view); err != nil {
		return p.errorAt(createTok, "%v", err)
	}
	return nil
}

// viewColumns derives a view's columns from its query using the tables known
// so far. Unnamed expressions are left out.
func (p *ddlParser) viewColumns(query string) []Column {
	stmt := parser.ParseText(query)
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok || len(stmt.Problems()) > 0 || sel.Core == nil {
		return nil
	}
	sources := make(map[string]*Table)
	var order []*Table
	var collect func(te ast.TableExpr)
	collect = func(te ast.TableExpr) {
		switch te := te.(type) {
		case *ast.TableName:
			if t, ok := p.b.get(te.Name); ok {
				sources[fold(te.RefName())] = t
				order = append(order, t)
			}
		case *ast.Join:
			collect(te.Left)
			collect(te.Right)
		}
	}
	for _, te := range sel.Core.From {
		collect(te)
	}

	lookup := func(ref *ast.ColumnRef) (Column, bool) {
		if ref.Table != "" {
			return sources[fold(ref.Table)].LookupColumn(ref.Column)
		}
		for _, t := range order {
			if col, ok := t.LookupColumn(ref.Column); ok {
				return col, true
			}
		}
		return Column{}, false
	}

	var cols []Column
	for _, item := range sel.Core.Items {
		switch expr := item.Expr.(type) {
		case *ast.StarExpr:
			if expr.Table == "" {
				for _, t := range order {
					cols = append(cols, t.Columns...)
				}
			} else if t, ok := sources[fold(expr.Table)]; ok {
				cols = append(cols, t.Columns...)
			}
			continue
		case *ast.ColumnRef:
			col, ok := lookup(expr)
			if !ok {
				col = Column{Name: expr.Column, Nullable: true}
			}
			if item.Alias != "" {
				col.Name = item.Alias
			}
			cols = append(cols, col)
			continue
		case *ast.CastExpr:
			if item.Alias != "" {
				cols = append(cols, Column{Name: item.Alias, Type: expr.Type, Nullable: true})
			}
			continue
		}
		if item.Alias != "" {
			cols = append(cols, Column{Name: item.Alias, Nullable: true})
		}
	}
	return cols
}

func (p *ddlParser) parseAlter() error {
	p.advance()
	if !p.matchKeyword("TABLE") {
		p.skipStatement()
		return nil
	}
	if err := p.checkStatement(); err != nil {
		return err
	}
	p.advance()
	if p.matchKeyword("IF") && p.peek(1).Is("EXISTS") {
		p.advance()
		p.advance()
	}
	if p.matchKeyword("ONLY") {
		p.advance()
	}
	name, nameTok, ok := p.parseObjectName()
	if !ok {
		return p.errorAt(p.current(), "expected table name, found %s", describeToken(p.current()))
	}
	table, ok := p.b.get(name)
	if !ok {
		return p.errorAt(nameTok, "ALTER TABLE references unknown table %s", name)
	}

	for {
		if err := p.parseAlterAction(table); err != nil {
			return err
		}
		if !p.matchSymbol(",") {
			break
		}
		p.advance()
	}
	p.skipStatement()
	return nil
}

func (p *ddlParser) parseAlterAction(table *Table) error {
	switch {
	case p.matchKeyword("ADD"):
		p.advance()
		if p.matchKeyword("COLUMN") {
			p.advance()
		}
		ifNotExists := p.skipIfNotExists()
		if p.atTableConstraint() {
			p.parseTableConstraint()
			return nil
		}
		col, colTok, err := p.parseColumnDefinition()
		if err != nil {
			return err
		}
		if _, exists := table.LookupColumn(col.Name); exists && ifNotExists {
			return nil
		}
		if err := table.addColumn(col); err != nil {
			return p.errorAt(colTok, "%v", err)
		}
	case p.matchKeyword("DROP"):
		p.advance()
		if p.matchKeyword("CONSTRAINT") {
			p.skipElement()
			return nil
		}
		if p.matchKeyword("COLUMN") {
			p.advance()
		}
		ifExists := false
		if p.matchKeyword("IF") && p.peek(1).Is("EXISTS") {
			p.advance()
			p.advance()
			ifExists = true
		}
		colTok := p.advance()
		colName := tokenizer.NormalizeIdentifier(colTok.Text)
		if !table.dropColumn(colName) && !ifExists {
			return p.errorAt(colTok, "table %s has no column %s", table.Name, colName)
		}
	case p.matchKeyword("RENAME"):
		p.advance()
		if p.matchKeyword("TO") {
			p.advance()
			newName, newTok, ok := p.parseObjectName()
			if !ok {
				return p.errorAt(p.current(), "expected new table name")
			}
			if err := p.b.rename(table.Name, newName); err != nil {
				return p.errorAt(newTok, "%v", err)
			}
			return nil
		}
		if p.matchKeyword("COLUMN") {
			p.advance()
		}
		fromTok := p.advance()
		if !p.matchKeyword("TO") {
			return p.errorAt(p.current(), "expected TO in RENAME COLUMN")
		}
		p.advance()
		toTok := p.advance()
		from, to := tokenizer.NormalizeIdentifier(fromTok.Text), tokenizer.NormalizeIdentifier(toTok.Text)
		if err := table.renameColumn(from, to); err != nil {
			return p.errorAt(fromTok, "%v", err)
		}
	}
	p.skipElement()
	return nil
}

func (p *ddlParser) parseDrop() error {
	p.advance()
	if !p.matchKeyword("TABLE") && !p.matchKeyword("VIEW") {
		p.skipStatement()
		return nil
	}
	p.advance()
	if p.matchKeyword("IF") && p.peek(1).Is("EXISTS") {
		p.advance()
		p.advance()
	}
	for {
		name, _, ok := p.parseObjectName()
		if !ok {
			break
		}
		p.b.drop(name)
		if !p.matchSymbol(",") {
			break
		}
		p.advance()
	}
	p.skipStatement()
	return nil
}

// checkStatement rejects unreadable tokens in the statement about to be
// interpreted. Skipped statements may hold syntax the scanner does not know.
func (p *ddlParser) checkStatement() error {
	depth := 0
	for i := p.pos; i < len(p.tokens); i++ {
		tok := p.tokens[i]
		switch {
		case tok.Kind == tokenizer.KindInvalid:
			return p.errorAt(tok, "%s", tok.Message)
		case tok.Kind == tokenizer.KindEOF:
			return nil
		case tok.IsSymbol("("):
			depth++
		case tok.IsSymbol(")"):
			depth--
		case tok.IsSymbol(";") && depth <= 0:
			return nil
		}
	}
	return nil
}

func (p *ddlParser) skipIfNotExists() bool {
	if p.matchKeyword("IF") && p.peek(1).Is("NOT") && p.peek(2).Is("EXISTS") {
		p.advance()
		p.advance()
		p.advance()
		return true
	}
	return false
}

// parseObjectName reads name or schema.name and returns the last part.
func (p *ddlParser) parseObjectName() (string, tokenizer.Token, bool) {
	tok := p.current()
	if tok.Kind != tokenizer.KindIdentifier {
		return "", tok, false
	}
	p.advance()
	name, nameTok := tokenizer.NormalizeIdentifier(tok.Text), tok
	for p.matchSymbol(".") && p.peek(1).Kind == tokenizer.KindIdentifier {
		p.advance()
		nameTok = p.advance()
		name = tokenizer.NormalizeIdentifier(nameTok.Text)
	}
	return name, nameTok, true
}

// skipElement advances to the ',' or ')' closing the current table element
// or alter action, or to the end of the statement.
func (p *ddlParser) skipElement() {
	for !p.isEOF() {
		tok := p.current()
		if tok.IsSymbol(",") || tok.IsSymbol(")") || tok.IsSymbol(";") {
			return
		}
		if tok.IsSymbol("(") {
			p.skipBalancedParentheses()
			continue
		}
		p.advance()
	}
}

func (p *ddlParser) skipBalancedParentheses() {
	depth := 0
	for !p.isEOF() {
		tok := p.advance()
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

// skipStatement advances past the next top-level ';'. Trigger bodies
// (BEGIN ... END) are skipped whole; a leading BEGIN opens a transaction.
func (p *ddlParser) skipStatement() {
	first := p.pos
	depth := 0
	for !p.isEOF() {
		leading := p.pos == first
		tok := p.advance()
		switch {
		case tok.Is("BEGIN") && !leading, tok.Is("CASE") && depth > 0:
			depth++
		case tok.Is("END") && depth > 0:
			depth--
		case tok.IsSymbol(";") && depth == 0:
			return
		}
	}
}

func (p *ddlParser) errorAt(tok tokenizer.Token, format string, args ...any) error {
	return &LoadError{Path: p.path, Pos: p.index.Position(tok.Offset), Err: fmt.Errorf(format, args...)}
}

func (p *ddlParser) matchKeyword(word string) bool {
	return p.current().Is(word)
}

func (p *ddlParser) matchSymbol(sym string) bool {
	return p.current().IsSymbol(sym)
}

func (p *ddlParser) current() tokenizer.Token {
	return p.tokens[p.pos]
}

func (p *ddlParser) peek(n int) tokenizer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *ddlParser) advance() tokenizer.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != tokenizer.KindEOF {
		p.pos++
	}
	return tok
}

func (p *ddlParser) isEOF() bool {
	return p.current().Kind == tokenizer.KindEOF
}

func describeToken(tok tokenizer.Token) string {
	if tok.Kind == tokenizer.KindEOF {
		return "end of input"
	}
	return "'" + tok.Text + "'"
}
