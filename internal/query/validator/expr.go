package validator

import (
	"fmt"
	"strings"

	"github.com/electwix/sqlvet/internal/diagnostics"
	"github.com/electwix/sqlvet/internal/query/ast"
	"github.com/electwix/sqlvet/internal/types"
)

// operand is what the validator knows about an evaluated expression.
type operand struct {
	typ types.Type
	// column is set when the expression is a resolved column reference.
	column string
}

// pseudoColumns exist on every table without being declared.
var pseudoColumns = map[string]bool{
	"rowid":   true,
	"_rowid_": true,
	"oid":     true,
	"ctid":    true,
}

func (r *validation) expr(scope *queryScope, e ast.Expr) operand {
	switch n := e.(type) {
	case nil:
		return operand{}

	case *ast.ColumnRef:
		return r.columnRef(scope, n)

	case *ast.BinaryExpr:
		left := r.expr(scope, n.Left)
		right := r.expr(scope, n.Right)
		switch {
		case isComparison(n.Op):
			r.compare(n.Left, left, n.Right, right, n.OpPos)
			return operand{typ: types.Type{Family: types.FamilyBoolean}}
		case n.Op == "AND" || n.Op == "OR" || strings.Contains(n.Op, "LIKE") || strings.HasPrefix(n.Op, "IS"):
			return operand{typ: types.Type{Family: types.FamilyBoolean}}
		case n.Op == "||":
			return operand{typ: types.Type{Family: types.FamilyText}}
		}
		return operand{}

	case *ast.UnaryExpr:
		x := r.expr(scope, n.X)
		if n.Op == "NOT" {
			return operand{typ: types.Type{Family: types.FamilyBoolean}}
		}
		return operand{typ: x.typ}

	case *ast.IsNullExpr:
		r.expr(scope, n.X)
		return operand{typ: types.Type{Family: types.FamilyBoolean}}

	case *ast.InExpr:
		x := r.expr(scope, n.X)
		for _, item := range n.List {
			r.compare(n.X, x, item, r.expr(scope, item), item.Pos())
		}
		if n.Query != nil {
			r.query(scope, n.Query)
		}
		return operand{typ: types.Type{Family: types.FamilyBoolean}}

	case *ast.BetweenExpr:
		x := r.expr(scope, n.X)
		r.compare(n.X, x, n.Low, r.expr(scope, n.Low), exprPos(n.Low))
		r.compare(n.X, x, n.High, r.expr(scope, n.High), exprPos(n.High))
		return operand{typ: types.Type{Family: types.FamilyBoolean}}

	case *ast.FuncCall:
		for _, arg := range n.Args {
			r.expr(scope, arg)
		}
		if strings.EqualFold(n.Name, "count") {
			return operand{typ: types.Type{Name: "INTEGER", Family: types.FamilyInteger}}
		}
		return operand{}

	case *ast.CaseExpr:
		subject := r.expr(scope, n.Operand)
		var result operand
		for i, w := range n.Whens {
			cond := r.expr(scope, w.Cond)
			if n.Operand != nil {
				r.compare(n.Operand, subject, w.Cond, cond, exprPos(w.Cond))
			}
			if res := r.expr(scope, w.Result); i == 0 {
				result = operand{typ: res.typ}
			}
		}
		r.expr(scope, n.Else)
		return result

	case *ast.CastExpr:
		r.expr(scope, n.X)
		return operand{typ: types.Classify(n.Type)}

	case *ast.SubqueryExpr:
		out := r.query(scope, n.Query)
		if !out.opaque && len(out.columns) == 1 {
			return operand{typ: out.columns[0].typ}
		}
		return operand{}

	case *ast.ExistsExpr:
		r.query(scope, n.Query)
		return operand{typ: types.Type{Family: types.FamilyBoolean}}

	case *ast.ListExpr:
		for _, item := range n.Items {
			r.expr(scope, item)
		}
		return operand{}
	}
	// Literals, parameters, stars and syntax error markers carry nothing to
	// resolve.
	return operand{}
}

func (r *validation) columnRef(scope *queryScope, ref *ast.ColumnRef) operand {
	if ref.Table != "" {
		return r.qualifiedColumn(scope, ref)
	}
	if strings.EqualFold(ref.Column, "DEFAULT") {
		return operand{}
	}
	if col, ok := scope.alias(ref.Column); ok {
		return operand{typ: col.typ}
	}

	found := scope.lookup(ref.Column)
	switch found.result {
	case scopeLookupOK:
		return operand{typ: found.column.typ, column: found.column.name}
	case scopeLookupAmbiguous:
		r.report(diagnostics.KindAmbiguousColumn, ref.ColumnPos,
			fmt.Sprintf("Column '%s' is ambiguous: found in %s", ref.Column, candidateLabels(found.candidates)))
		return operand{}
	}
	if pseudoColumns[fold(ref.Column)] && scope.hasConcrete() {
		return operand{}
	}
	r.reportNear(diagnostics.KindUnknownColumn, ref.ColumnPos,
		fmt.Sprintf("Column '%s' not found", ref.Column), ref.Column, scope.columnNames())
	return operand{}
}

func (r *validation) qualifiedColumn(scope *queryScope, ref *ast.ColumnRef) operand {
	found := scope.lookupQualified(ref.Table, ref.Column)
	switch found.result {
	case scopeLookupOK:
		return operand{typ: found.column.typ, column: ref.Table + "." + found.column.name}
	case scopeLookupAliasNotFound:
		r.reportNear(diagnostics.KindUnknownTable, ref.TablePos,
			fmt.Sprintf("Table or alias '%s' not found", ref.Table), ref.Table, scope.refNames())
		return operand{}
	}
	if pseudoColumns[fold(ref.Column)] {
		return operand{}
	}
	r.reportNear(diagnostics.KindUnknownColumn, ref.ColumnPos,
		fmt.Sprintf("Column '%s' not found in table '%s'", ref.Column, found.entry.table),
		ref.Column, found.entry.columnNames())
	return operand{}
}

// compare checks the two sides of a comparison. A resolved column compared
// with a literal must accept the literal; two resolved columns must have
// comparable families.
func (r *validation) compare(lx ast.Expr, l operand, rx ast.Expr, rt operand, opPos int) {
	if l.column != "" {
		if lit, offset, ok := literalOf(rx); ok {
			r.checkLiteral(l, lit, offset, types.CheckComparison)
			return
		}
	}
	if rt.column != "" {
		if lit, offset, ok := literalOf(lx); ok {
			r.checkLiteral(rt, lit, offset, types.CheckComparison)
			return
		}
	}
	if l.column != "" && rt.column != "" && !types.Comparable(l.typ, rt.typ) {
		r.report(diagnostics.KindTypeMismatch, opPos,
			fmt.Sprintf("Type mismatch: cannot compare column '%s' (%s) with column '%s' (%s)",
				l.column, typeName(l.typ), rt.column, typeName(rt.typ)))
	}
}

// checkAssignment checks a value stored into col by INSERT or UPDATE.
func (r *validation) checkAssignment(col scopeColumn, value ast.Expr) {
	lit, offset, ok := literalOf(value)
	if !ok {
		return
	}
	r.checkLiteral(operand{typ: col.typ, column: col.name}, lit, offset, types.CheckAssignment)
}

func (r *validation) checkLiteral(col operand, lit types.Literal, offset int, check func(types.Type, types.Literal) error) {
	if err := check(col.typ, lit); err != nil {
		r.report(diagnostics.KindTypeMismatch, offset,
			fmt.Sprintf("Type mismatch for column '%s' (%s): %v", col.column, typeName(col.typ), err))
	}
}

// literalOf returns the constant value of e, treating a signed number as a
// single literal.
func literalOf(e ast.Expr) (types.Literal, int, bool) {
	switch n := e.(type) {
	case *ast.Literal:
		return types.Literal{Kind: literalKind(n.Kind), Value: n.Value}, n.Offset, true
	case *ast.UnaryExpr:
		lit, ok := n.X.(*ast.Literal)
		if !ok || lit.Kind != ast.LiteralNumber || (n.Op != "-" && n.Op != "+") {
			return types.Literal{}, 0, false
		}
		value := lit.Value
		if n.Op == "-" {
			value = "-" + value
		}
		return types.Literal{Kind: types.LiteralNumber, Value: value}, n.Offset, true
	}
	return types.Literal{}, 0, false
}

func literalKind(k ast.LiteralKind) types.LiteralKind {
	switch k {
	case ast.LiteralString:
		return types.LiteralString
	case ast.LiteralNumber:
		return types.LiteralNumber
	case ast.LiteralBlob:
		return types.LiteralBlob
	case ast.LiteralBool:
		return types.LiteralBool
	default:
		return types.LiteralNull
	}
}

func isComparison(op string) bool {
	switch op {
	case "=", "==", "!=", "<>", "<", "<=", ">", ">=", "IS DISTINCT FROM", "IS NOT DISTINCT FROM":
		return true
	}
	return false
}

func typeName(t types.Type) string {
	if t.Name != "" {
		return t.Name
	}
	return t.Family.String()
}

func exprPos(e ast.Expr) int {
	if e == nil {
		return 0
	}
	return e.Pos()
}
