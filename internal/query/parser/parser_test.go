package parser

import (
	"strings"
	"testing"

	"github.com/electwix/sqlvet/internal/query/ast"
)

func mustSelect(t *testing.T, sql string) *ast.SelectStmt {
	t.Helper()
	stmt := ParseText(sql)
	if probs := stmt.Problems(); len(probs) != 0 {
		t.Fatalf("unexpected syntax errors for %q: %+v", sql, probs[0])
	}
	sel, ok := stmt.(*ast.SelectStmt)
	if !ok {
		t.Fatalf("expected *ast.SelectStmt, got %T", stmt)
	}
	return sel
}

func TestParseSelectSuccess(t *testing.T) {
	sel := mustSelect(t, `SELECT u.id, u.name AS full_name, COUNT(o.id) total_orders
FROM users u
JOIN orders o ON o.user_id = u.id
WHERE u.status = :status AND u.score > ? AND u.id = ?1;`)

	core := sel.Core
	if len(core.Items) != 3 {
		t.Fatalf("expected 3 select items, got %d", len(core.Items))
	}
	first, ok := core.Items[0].Expr.(*ast.ColumnRef)
	if !ok || first.Table != "u" || first.Column != "id" {
		t.Fatalf("unexpected first item %#v", core.Items[0].Expr)
	}
	if first.TablePos != 7 || first.ColumnPos != 9 {
		t.Errorf("unexpected offsets %d/%d", first.TablePos, first.ColumnPos)
	}
	if core.Items[1].Alias != "full_name" {
		t.Errorf("expected alias full_name, got %q", core.Items[1].Alias)
	}
	call, ok := core.Items[2].Expr.(*ast.FuncCall)
	if !ok || call.Name != "COUNT" || len(call.Args) != 1 {
		t.Fatalf("unexpected third item %#v", core.Items[2].Expr)
	}
	if core.Items[2].Alias != "total_orders" {
		t.Errorf("expected bare alias total_orders, got %q", core.Items[2].Alias)
	}

	if len(core.From) != 1 {
		t.Fatalf("expected one FROM item, got %d", len(core.From))
	}
	join, ok := core.From[0].(*ast.Join)
	if !ok || join.Kind != "JOIN" {
		t.Fatalf("expected join, got %#v", core.From[0])
	}
	left := join.Left.(*ast.TableName)
	right := join.Right.(*ast.TableName)
	if left.Name != "users" || left.Alias != "u" || right.Name != "orders" || right.Alias != "o" {
		t.Fatalf("unexpected join tables %+v %+v", left, right)
	}
	if join.On == nil || core.Where == nil {
		t.Fatalf("expected ON and WHERE expressions")
	}
}

func TestParseCompoundAndTrailingClauses(t *testing.T) {
	sel := mustSelect(t, `SELECT id FROM a UNION ALL SELECT id FROM b ORDER BY id DESC NULLS LAST LIMIT 10 OFFSET 5`)
	if len(sel.Compounds) != 1 || sel.Compounds[0].Op != "UNION ALL" {
		t.Fatalf("unexpected compounds %+v", sel.Compounds)
	}
	if len(sel.OrderBy) != 1 || !sel.OrderBy[0].Desc {
		t.Fatalf("unexpected ORDER BY %+v", sel.OrderBy)
	}
	if sel.Limit == nil || sel.Offset == nil {
		t.Fatalf("expected LIMIT and OFFSET")
	}
}

func TestParseWithRecursiveCTE(t *testing.T) {
	sel := mustSelect(t, `WITH RECURSIVE ancestors(id, depth) AS (
    SELECT id, 0 FROM users WHERE id = :target_id
    UNION ALL
    SELECT p.parent_id, a.depth + 1
    FROM parents p
    JOIN ancestors a ON a.id = p.child_id
)
SELECT id, depth FROM ancestors;`)

	if sel.Start != 0 {
		t.Errorf("statement should start at WITH, got %d", sel.Start)
	}
	if len(sel.With) != 1 {
		t.Fatalf("expected 1 CTE, got %d", len(sel.With))
	}
	cte := sel.With[0]
	if cte.Name != "ancestors" || len(cte.Columns) != 2 || cte.Columns[1].Name != "depth" {
		t.Fatalf("unexpected CTE %+v", cte)
	}
	if cte.Query == nil || len(cte.Query.Compounds) != 1 {
		t.Fatalf("expected compound CTE body")
	}
}

func TestParseExpressions(t *testing.T) {
	tests := []string{
		"SELECT * FROM t WHERE a IS NOT NULL AND b NOT IN (1, 2, 3) AND c BETWEEN 1 AND 5",
		"SELECT * FROM t WHERE name NOT LIKE 'a%' ESCAPE '!' OR name ILIKE :pattern",
		"SELECT CASE WHEN a > 0 THEN 'pos' ELSE 'neg' END AS sign FROM t",
		"SELECT CAST(a AS DOUBLE PRECISION), b::text, -c, d || 'x' FROM t",
		"SELECT * FROM t WHERE EXISTS (SELECT 1 FROM u WHERE u.id = t.id)",
		"SELECT * FROM t WHERE NOT EXISTS (SELECT 1 FROM u) AND id IN (SELECT id FROM v)",
		"SELECT (SELECT max(id) FROM u) AS top, count(*), count(DISTINCT a) FROM t",
		"SELECT t.* FROM t WHERE created_at > DATE '2024-01-01' AND updated_at < CURRENT_TIMESTAMP",
		"SELECT row_number() OVER (PARTITION BY a ORDER BY b) FROM t",
		"SELECT left(name, 3) FROM t",
		"SELECT * FROM (SELECT id FROM t) AS sub WHERE sub.id = 1",
		"SELECT * FROM a LEFT OUTER JOIN b USING (id) CROSS JOIN c",
		"SELECT a, count(*) FROM t GROUP BY a HAVING count(*) > 1",
		"VALUES (1, 'a'), (2, 'b')",
		"EXPLAIN QUERY PLAN SELECT * FROM t",
	}
	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			mustSelect(t, sql)
		})
	}
}

func TestParseDML(t *testing.T) {
	stmt := ParseText("UPDATE employees SET employee_id = 'hi', name = :name WHERE id = 1")
	upd, ok := stmt.(*ast.UpdateStmt)
	if !ok || len(stmt.Problems()) != 0 {
		t.Fatalf("expected clean update, got %T %+v", stmt, stmt.Problems())
	}
	if upd.Table.Name != "employees" || len(upd.Set) != 2 {
		t.Fatalf("unexpected update %+v", upd)
	}
	if upd.Set[0].Column.Column != "employee_id" || upd.Set[0].Column.ColumnPos != 21 {
		t.Fatalf("unexpected first assignment %+v", upd.Set[0].Column)
	}
	lit, ok := upd.Set[0].Value.(*ast.Literal)
	if !ok || lit.Kind != ast.LiteralString || lit.Value != "hi" {
		t.Fatalf("unexpected assignment value %#v", upd.Set[0].Value)
	}

	stmt = ParseText("INSERT INTO users (id, name) VALUES (1, 'a'), (2, 'b') RETURNING id")
	ins, ok := stmt.(*ast.InsertStmt)
	if !ok || len(stmt.Problems()) != 0 {
		t.Fatalf("expected clean insert, got %T %+v", stmt, stmt.Problems())
	}
	if len(ins.Columns) != 2 || len(ins.Values) != 2 || len(ins.Returning) != 1 {
		t.Fatalf("unexpected insert %+v", ins)
	}

	stmt = ParseText("INSERT INTO archive SELECT * FROM users ON CONFLICT (id) DO NOTHING")
	if ins, ok := stmt.(*ast.InsertStmt); !ok || ins.Query == nil || len(stmt.Problems()) != 0 {
		t.Fatalf("expected insert from select, got %T %+v", stmt, stmt.Problems())
	}

	stmt = ParseText("DELETE FROM users u WHERE u.id = $1")
	if del, ok := stmt.(*ast.DeleteStmt); !ok || del.Table.Alias != "u" || len(stmt.Problems()) != 0 {
		t.Fatalf("unexpected delete %T %+v", stmt, stmt.Problems())
	}

	stmt = ParseText("DROP TABLE IF EXISTS employes, other CASCADE")
	drop, ok := stmt.(*ast.DropTableStmt)
	if !ok || !drop.IfExists || len(drop.Tables) != 2 || drop.Tables[0].Offset != 21 {
		t.Fatalf("unexpected drop %T %+v", stmt, stmt)
	}

	stmt = ParseText("TRUNCATE TABLE departmnts")
	trunc, ok := stmt.(*ast.TruncateStmt)
	if !ok || len(trunc.Tables) != 1 || trunc.Tables[0].Name != "departmnts" {
		t.Fatalf("unexpected truncate %T %+v", stmt, stmt)
	}
}

func TestParseOtherStatements(t *testing.T) {
	for _, sql := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY)",
		"ALTER TABLE users ADD COLUMN email TEXT",
		"DROP INDEX idx_users",
		"BEGIN",
		"",
	} {
		stmt := ParseText(sql)
		if _, ok := stmt.(*ast.OtherStmt); !ok {
			t.Errorf("%q: expected *ast.OtherStmt, got %T", sql, stmt)
		}
		if len(stmt.Problems()) != 0 {
			t.Errorf("%q: unexpected problems %+v", sql, stmt.Problems())
		}
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		offsets []int
		message string
	}{
		{name: "truncated where", sql: "SELECT * FROM users WHERE", offsets: []int{25}, message: "expected expression, found end of input"},
		{name: "truncated with trailing space", sql: "SELECT * FROM users WHERE  \n ", offsets: []int{25}},
		{name: "dangling comma before FROM", sql: "SELECT a, FROM t", offsets: []int{10}, message: "expected expression, found 'FROM'"},
		{name: "operator without operand", sql: "SELECT a +, b FROM t", offsets: []int{10}},
		{name: "two independent errors", sql: "SELECT a, FROM t WHERE", offsets: []int{10, 22}},
		{name: "unterminated string", sql: "SELECT 'open FROM t", offsets: []int{7}, message: "unterminated string literal"},
		{name: "misspelled keyword", sql: "SELEC * FROM t", offsets: []int{0}, message: "unexpected 'SELEC' at start of statement"},
		{name: "trailing garbage", sql: "SELECT * FORM users", offsets: []int{9}},
		{name: "missing SET", sql: "UPDATE t x = 1", offsets: []int{11}},
		{name: "unclosed paren", sql: "SELECT * FROM t WHERE id IN (1, 2", offsets: []int{33}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs := ParseText(tt.sql).Problems()
			if len(probs) != len(tt.offsets) {
				t.Fatalf("expected %d problems, got %d: %+v", len(tt.offsets), len(probs), probs)
			}
			for i, off := range tt.offsets {
				if probs[i].Offset != off {
					t.Errorf("problem %d at %d, want %d (%s)", i, probs[i].Offset, off, probs[i].Message)
				}
			}
			if tt.message != "" && probs[0].Message != tt.message {
				t.Errorf("message = %q, want %q", probs[0].Message, tt.message)
			}
		})
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"(((((",
		")))",
		"SELECT",
		"WITH",
		"WITH x AS (",
		"SELECT * FROM (SELECT",
		"INSERT INTO",
		"UPDATE",
		"DELETE",
		"SELECT CASE",
		"SELECT CAST(",
		"SELECT a FROM t JOIN",
		"SELECT a FROM t NATURAL",
		"SELECT x::",
		"INSERT INTO t (a, b VALUES",
		strings.Repeat("(", 200) + "1",
		"SELECT 1 ~~ X'ABC'",
	}
	for _, in := range inputs {
		stmt := ParseText(in)
		if stmt == nil {
			t.Fatalf("nil statement for %q", in)
		}
	}
}
