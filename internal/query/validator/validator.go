// Package validator resolves the table and column references of parsed
// statements against a catalog and reports what does not resolve.
//
// Every query level gets a scope holding the tables of its FROM clause, its
// DML target, its CTEs and derived tables. Subqueries get a child scope that
// falls back to the enclosing one, so correlated references resolve. Tables
// that cannot be resolved still enter the scope as opaque entries; columns
// that could belong to them are not reported.
package validator

import (
	"fmt"
	"strings"

	"github.com/electwix/sqlvet/internal/catalog"
	"github.com/electwix/sqlvet/internal/diagnostics"
	"github.com/electwix/sqlvet/internal/extract"
	"github.com/electwix/sqlvet/internal/query/ast"
	"github.com/electwix/sqlvet/internal/query/parser"
	"github.com/electwix/sqlvet/internal/source"
	"github.com/electwix/sqlvet/internal/suggest"
)

// Options tunes validation.
type Options struct {
	// MaxDistance is the largest edit distance for which a "did you mean"
	// suggestion is offered. Negative disables suggestions.
	MaxDistance int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{MaxDistance: suggest.DefaultMaxDistance}
}

// Positioner maps a byte offset within the statement text to a position in
// the checked file. extract.Statement implements it.
type Positioner interface {
	PositionAt(offset int) source.Position
}

// Validator checks statements against one catalog. It holds no mutable
// state and may be shared by concurrent checks.
type Validator struct {
	catalog *catalog.Catalog
	opts    Options
}

// New creates a validator for cat.
func New(cat *catalog.Catalog, opts Options) *Validator {
	return &Validator{catalog: cat, opts: opts}
}

// ValidateStatement parses stmt and validates the result.
func (v *Validator) ValidateStatement(stmt extract.Statement) []diagnostics.Issue {
	return v.Validate(stmt, parser.Parse(stmt))
}

// Validate returns the issues of tree ordered by position, with exact
// duplicates removed. Syntax error markers are reported verbatim; the rest of
// the tree is still checked.
func (v *Validator) Validate(at Positioner, tree ast.Stmt) []diagnostics.Issue {
	if tree == nil {
		return nil
	}
	r := &validation{v: v, at: at, issues: diagnostics.NewCollection()}
	for _, bad := range tree.Problems() {
		r.report(diagnostics.KindSyntaxError, bad.Offset, bad.Message)
	}

	switch s := tree.(type) {
	case *ast.SelectStmt:
		r.query(nil, s)
	case *ast.InsertStmt:
		r.insert(s)
	case *ast.UpdateStmt:
		r.update(s)
	case *ast.DeleteStmt:
		r.delete(s)
	case *ast.DropTableStmt:
		r.dropTables(s.Tables, s.IfExists)
	case *ast.TruncateStmt:
		r.dropTables(s.Tables, false)
	}
	return r.issues.Sorted()
}

// validation is the state of one Validate call.
type validation struct {
	v      *Validator
	at     Positioner
	issues *diagnostics.Collection
}

func (r *validation) report(kind diagnostics.Kind, offset int, message string) {
	r.issues.Add(diagnostics.New(kind, r.at.PositionAt(offset), message))
}

// reportNear reports an issue with the candidate closest to name as the
// suggestion, if one is close enough.
func (r *validation) reportNear(kind diagnostics.Kind, offset int, message, name string, candidates []string) {
	issue := diagnostics.New(kind, r.at.PositionAt(offset), message)
	if best, ok := suggest.Closest(name, candidates, r.v.opts.MaxDistance); ok {
		issue = issue.WithSuggestion(best)
	}
	r.issues.Add(issue)
}

// query validates a SELECT and returns its output columns as an unnamed
// entry.
func (r *validation) query(parent *queryScope, s *ast.SelectStmt) *scopeEntry {
	if s == nil || s.Core == nil {
		return opaqueEntry("", "")
	}
	scope := r.withScope(parent, s.With)
	out, first := r.selectCore(scope, s.Core)
	for _, part := range s.Compounds {
		if part.Core != nil {
			r.selectCore(scope, part.Core)
		}
	}

	// ORDER BY of a compound query names output columns.
	if len(s.Compounds) > 0 {
		for _, col := range out.columns {
			first.addAlias(col)
		}
	}
	first.aliasesVisible = true
	for _, item := range s.OrderBy {
		r.expr(first, item.Expr)
	}
	r.expr(scope, s.Limit)
	r.expr(scope, s.Offset)
	return out
}

// withScope opens the scope of a statement and registers its CTEs. A CTE is
// visible to its own query, so recursive references resolve.
func (r *validation) withScope(parent *queryScope, ctes []*ast.CTE) *queryScope {
	scope := newScope(parent)
	for _, cte := range ctes {
		key := fold(cte.Name)
		scope.ctes[key] = cteEntry(cte, nil)
		scope.ctes[key] = cteEntry(cte, r.query(scope, cte.Query))
	}
	return scope
}

// cteEntry builds the entry of a CTE from its query output. A nil out stands
// for a query not validated yet.
func cteEntry(cte *ast.CTE, out *scopeEntry) *scopeEntry {
	if len(cte.Columns) == 0 {
		if out == nil {
			return opaqueEntry(cte.Name, cte.Name)
		}
		e := out.renamed(cte.Name)
		e.table = cte.Name
		return e
	}
	e := newScopeEntry(cte.Name, cte.Name)
	typed := out != nil && !out.opaque && len(out.columns) == len(cte.Columns)
	for i, id := range cte.Columns {
		col := scopeColumn{name: id.Name}
		if typed {
			col.typ = out.columns[i].typ
		}
		e.add(col)
	}
	return e
}

func (r *validation) selectCore(scope *queryScope, core *ast.SelectCore) (*scopeEntry, *queryScope) {
	cs := newScope(scope)
	for _, te := range core.From {
		r.tableExpr(cs, te)
	}

	out := newScopeEntry("", "")
	for _, row := range core.Values {
		for _, e := range row {
			r.expr(cs, e)
		}
	}
	if len(core.Values) > 0 && len(core.Items) == 0 {
		for i := range core.Values[0] {
			out.add(scopeColumn{name: fmt.Sprintf("column%d", i+1)})
		}
	}

	for _, item := range core.Items {
		r.selectItem(cs, item, out)
	}
	r.expr(cs, core.Where)

	cs.aliasesVisible = true
	for _, e := range core.GroupBy {
		r.expr(cs, e)
	}
	r.expr(cs, core.Having)
	return out, cs
}

// selectItem validates one select-list or RETURNING item and appends its
// output columns to out.
func (r *validation) selectItem(cs *queryScope, item *ast.SelectItem, out *scopeEntry) {
	if item == nil || item.Expr == nil {
		return
	}
	if star, ok := item.Expr.(*ast.StarExpr); ok {
		r.star(cs, star, out)
		return
	}

	op := r.expr(cs, item.Expr)
	name := item.Alias
	if name == "" {
		if ref, ok := item.Expr.(*ast.ColumnRef); ok {
			name = ref.Column
		}
	}
	if name == "" {
		return
	}
	col := scopeColumn{name: name, typ: op.typ}
	out.add(col)
	if item.Alias != "" {
		cs.addAlias(col)
	}
}

func (r *validation) star(cs *queryScope, star *ast.StarExpr, out *scopeEntry) {
	expand := func(e *scopeEntry) {
		if e.opaque {
			out.opaque = true
		}
		for _, col := range e.columns {
			out.add(col)
		}
	}
	if star.Table == "" {
		for _, e := range cs.entries {
			expand(e)
		}
		return
	}
	e, ok := cs.entry(star.Table)
	if !ok {
		r.reportNear(diagnostics.KindUnknownTable, star.Offset,
			fmt.Sprintf("Table or alias '%s' not found", star.Table), star.Table, cs.refNames())
		out.opaque = true
		return
	}
	expand(e)
}

// tableExpr adds the tables of one FROM item to cs and returns them.
func (r *validation) tableExpr(cs *queryScope, te ast.TableExpr) []*scopeEntry {
	switch t := te.(type) {
	case *ast.TableName:
		e := r.tableName(cs, t)
		cs.add(e)
		return []*scopeEntry{e}

	case *ast.SubqueryTable:
		var e *scopeEntry
		if t.Query == nil {
			// Table-valued function; its columns are unknown.
			e = opaqueEntry(t.Alias, t.Alias)
		} else {
			e = r.query(cs.parent, t.Query).renamed(t.Alias)
			e.table = t.Alias
		}
		cs.add(e)
		return []*scopeEntry{e}

	case *ast.Join:
		left := r.tableExpr(cs, t.Left)
		right := r.tableExpr(cs, t.Right)
		r.expr(cs, t.On)
		for _, id := range t.Using {
			r.usingColumn(cs, id, left, right)
		}
		if strings.HasPrefix(t.Kind, "NATURAL") {
			markNatural(cs, left, right)
		}
		return append(left, right...)
	}
	return nil
}

// tableName resolves a table reference to a CTE or a catalog table. Unknown
// tables are reported and yield an opaque entry.
func (r *validation) tableName(cs *queryScope, t *ast.TableName) *scopeEntry {
	ref := t.Alias
	if ref == "" {
		ref = lastPart(t.Name)
	}
	if !strings.Contains(t.Name, ".") {
		if cte, ok := cs.lookupCTE(t.Name); ok {
			return cte.renamed(ref)
		}
	}
	if table, ok := r.v.catalog.LookupTable(t.Name); ok {
		return tableEntry(ref, table)
	}

	candidates := append(r.v.catalog.TableNames(), cs.cteNames()...)
	r.reportNear(diagnostics.KindUnknownTable, t.Offset,
		fmt.Sprintf("Table '%s' not found", t.Name), lastPart(t.Name), candidates)
	return opaqueEntry(ref, t.Name)
}

func (r *validation) usingColumn(cs *queryScope, id *ast.Ident, left, right []*scopeEntry) {
	for _, side := range [][]*scopeEntry{left, right} {
		found := false
		var names []string
		for _, e := range side {
			found = found || e.hasColumn(id.Name)
			names = append(names, e.columnNames()...)
		}
		if !found {
			r.reportNear(diagnostics.KindUnknownColumn, id.Offset,
				fmt.Sprintf("Column '%s' not found", id.Name), id.Name, names)
			return
		}
	}
	cs.merged[fold(id.Name)] = true
}

func markNatural(cs *queryScope, left, right []*scopeEntry) {
	for _, l := range left {
		for _, col := range l.columns {
			for _, e := range right {
				if _, ok := e.columnIndex[fold(col.name)]; ok {
					cs.merged[fold(col.name)] = true
				}
			}
		}
	}
}

// dmlScope opens the scope of an INSERT, UPDATE or DELETE with its target
// table as the first entry.
func (r *validation) dmlScope(with []*ast.CTE, target *ast.TableName) (*queryScope, *scopeEntry) {
	cs := newScope(r.withScope(nil, with))
	if target == nil {
		return cs, opaqueEntry("", "")
	}
	e := r.tableName(cs, target)
	cs.add(e)
	return cs, e
}

func (r *validation) returning(cs *queryScope, items []*ast.SelectItem) {
	out := newScopeEntry("", "")
	for _, item := range items {
		r.selectItem(cs, item, out)
	}
}

func (r *validation) insert(s *ast.InsertStmt) {
	cs, target := r.dmlScope(s.With, s.Table)

	var columns []scopeColumn
	if len(s.Columns) > 0 {
		for _, id := range s.Columns {
			col, ok := target.column(id.Name)
			if !ok {
				r.reportNear(diagnostics.KindUnknownColumn, id.Offset,
					fmt.Sprintf("Column '%s' not found in table '%s'", id.Name, target.table), id.Name, target.columnNames())
			}
			columns = append(columns, col)
		}
	} else if !target.opaque {
		columns = target.columns
	}

	// VALUES rows cannot see the target table.
	values := newScope(cs.parent)
	for _, row := range s.Values {
		for i, e := range row {
			r.expr(values, e)
			if i < len(columns) && columns[i].name != "" {
				r.checkAssignment(columns[i], e)
			}
		}
	}
	if s.Query != nil {
		r.query(cs.parent, s.Query)
	}
	r.returning(cs, s.Returning)
}

func (r *validation) update(s *ast.UpdateStmt) {
	cs, target := r.dmlScope(s.With, s.Table)
	for _, te := range s.From {
		r.tableExpr(cs, te)
	}
	for _, a := range s.Set {
		if a == nil {
			continue
		}
		if col, ok := r.assignmentTarget(cs, target, a.Column); ok {
			r.checkAssignment(col, a.Value)
		}
		r.expr(cs, a.Value)
	}
	r.expr(cs, s.Where)
	r.returning(cs, s.Returning)
}

// assignmentTarget resolves the column of a SET entry, which must belong to
// the updated table.
func (r *validation) assignmentTarget(cs *queryScope, target *scopeEntry, ref *ast.ColumnRef) (scopeColumn, bool) {
	if ref == nil || ref.Column == "" {
		return scopeColumn{}, false
	}
	if ref.Table != "" && fold(lastPart(ref.Table)) != fold(target.name) {
		r.reportNear(diagnostics.KindUnknownTable, ref.TablePos,
			fmt.Sprintf("Table or alias '%s' not found", ref.Table), ref.Table, []string{target.name})
		return scopeColumn{}, false
	}
	col, ok := target.column(ref.Column)
	if !ok {
		r.reportNear(diagnostics.KindUnknownColumn, ref.ColumnPos,
			fmt.Sprintf("Column '%s' not found in table '%s'", ref.Column, target.table), ref.Column, target.columnNames())
		return scopeColumn{}, false
	}
	return col, true
}

func (r *validation) delete(s *ast.DeleteStmt) {
	cs, _ := r.dmlScope(s.With, s.Table)
	for _, te := range s.Using {
		r.tableExpr(cs, te)
	}
	r.expr(cs, s.Where)
	r.returning(cs, s.Returning)
}

func (r *validation) dropTables(tables []*ast.TableName, ifExists bool) {
	if ifExists {
		return
	}
	for _, t := range tables {
		if _, ok := r.v.catalog.LookupTable(t.Name); ok {
			continue
		}
		r.reportNear(diagnostics.KindUnknownTable, t.Offset,
			fmt.Sprintf("Table '%s' not found", t.Name), lastPart(t.Name), r.v.catalog.TableNames())
	}
}
