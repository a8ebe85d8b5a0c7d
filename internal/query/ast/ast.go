// Package ast defines the syntax tree produced by the statement parser.
//
// Every node records the byte offset of its first token within the statement
// text. Parents own their children; the tree has no back references. Parse
// failures are represented by *Bad markers, which the parser also collects on
// the enclosing statement so they can be reported without walking the tree.
package ast

// Node is implemented by every syntax tree node.
type Node interface {
	Pos() int
}

// Stmt is a parsed statement.
type Stmt interface {
	Node
	// Problems returns the syntax error markers recorded while parsing, in
	// source order.
	Problems() []*Bad
	stmtNode()
}

// Expr is a scalar expression.
type Expr interface {
	Node
	exprNode()
}

// TableExpr is an item of a FROM clause.
type TableExpr interface {
	Node
	tableExprNode()
}

// StmtBase carries what all statements share.
type StmtBase struct {
	Start int
	Bads  []*Bad
}

// Pos returns the offset of the statement's first token.
func (s *StmtBase) Pos() int { return s.Start }

// Problems returns the recorded syntax error markers.
func (s *StmtBase) Problems() []*Bad { return s.Bads }

// SetProblems replaces the recorded syntax error markers.
func (s *StmtBase) SetProblems(bads []*Bad) { s.Bads = bads }

func (*StmtBase) stmtNode() {}

// Bad marks the point where parsing failed.
type Bad struct {
	Offset  int
	Message string
}

func (b *Bad) Pos() int     { return b.Offset }
func (*Bad) exprNode()      {}
func (*Bad) tableExprNode() {}

// Ident is a bare name with its position, used for column lists.
type Ident struct {
	Name   string
	Offset int
}

func (i *Ident) Pos() int { return i.Offset }

// CTE is one WITH clause entry.
type CTE struct {
	Name    string
	Offset  int
	Columns []*Ident
	Query   *SelectStmt
}

func (c *CTE) Pos() int { return c.Offset }

// SelectStmt is a query, possibly compound, with its trailing clauses.
type SelectStmt struct {
	StmtBase
	With      []*CTE
	Core      *SelectCore
	Compounds []*CompoundPart
	OrderBy   []*OrderItem
	Limit     Expr
	Offset    Expr
}

// CompoundPart is one UNION/INTERSECT/EXCEPT arm.
type CompoundPart struct {
	Op   string
	Core *SelectCore
}

// SelectCore is a single SELECT ... FROM ... block. A VALUES row list used
// as a query is a core with Values set and no items.
type SelectCore struct {
	Start    int
	Distinct bool
	Items    []*SelectItem
	From     []TableExpr
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	Values   [][]Expr
}

func (c *SelectCore) Pos() int { return c.Start }

// SelectItem is one entry of a select list or RETURNING clause.
type SelectItem struct {
	Expr     Expr
	Alias    string
	AliasPos int
}

func (s *SelectItem) Pos() int { return s.Expr.Pos() }

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// TableName references a catalog table or a CTE.
type TableName struct {
	Offset   int
	Name     string
	Alias    string
	AliasPos int
}

func (t *TableName) Pos() int     { return t.Offset }
func (*TableName) tableExprNode() {}

// RefName returns the name the table is referred to by within its query.
func (t *TableName) RefName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// SubqueryTable is a derived table in FROM.
type SubqueryTable struct {
	Offset int
	Query  *SelectStmt
	Alias  string
}

func (s *SubqueryTable) Pos() int     { return s.Offset }
func (*SubqueryTable) tableExprNode() {}

// Join combines two table expressions.
type Join struct {
	Offset int
	Kind   string
	Left   TableExpr
	Right  TableExpr
	On     Expr
	Using  []*Ident
}

func (j *Join) Pos() int     { return j.Offset }
func (*Join) tableExprNode() {}

// ColumnRef is a possibly qualified column reference.
type ColumnRef struct {
	Table     string
	TablePos  int
	Column    string
	ColumnPos int
}

// Pos returns the offset of the qualifier if present, else of the column.
func (c *ColumnRef) Pos() int {
	if c.Table != "" {
		return c.TablePos
	}
	return c.ColumnPos
}
func (*ColumnRef) exprNode() {}

// StarExpr is * or t.*.
type StarExpr struct {
	Offset int
	Table  string
}

func (s *StarExpr) Pos() int { return s.Offset }
func (*StarExpr) exprNode()  {}

// LiteralKind classifies literal values.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBlob
	LiteralBool
	LiteralNull
)

func (k LiteralKind) String() string {
	switch k {
	case LiteralString:
		return "string"
	case LiteralNumber:
		return "number"
	case LiteralBlob:
		return "blob"
	case LiteralBool:
		return "boolean"
	case LiteralNull:
		return "null"
	default:
		return "unknown"
	}
}

// Literal is a constant. Value holds the unquoted text for strings and the
// source text otherwise.
type Literal struct {
	Offset int
	Kind   LiteralKind
	Value  string
}

func (l *Literal) Pos() int { return l.Offset }
func (*Literal) exprNode()  {}

// Param is a bind parameter.
type Param struct {
	Offset int
	Name   string
}

func (p *Param) Pos() int { return p.Offset }
func (*Param) exprNode()  {}

// BinaryExpr covers comparisons, logical operators, arithmetic and LIKE.
type BinaryExpr struct {
	Op    string
	OpPos int
	Left  Expr
	Right Expr
}

func (b *BinaryExpr) Pos() int { return b.Left.Pos() }
func (*BinaryExpr) exprNode()  {}

// UnaryExpr is NOT x or -x.
type UnaryExpr struct {
	Offset int
	Op     string
	X      Expr
}

func (u *UnaryExpr) Pos() int { return u.Offset }
func (*UnaryExpr) exprNode()  {}

// IsNullExpr is x IS [NOT] NULL.
type IsNullExpr struct {
	X   Expr
	Not bool
}

func (i *IsNullExpr) Pos() int { return i.X.Pos() }
func (*IsNullExpr) exprNode()  {}

// InExpr is x [NOT] IN (list) or x [NOT] IN (subquery).
type InExpr struct {
	X     Expr
	Not   bool
	List  []Expr
	Query *SelectStmt
}

func (i *InExpr) Pos() int { return i.X.Pos() }
func (*InExpr) exprNode()  {}

// BetweenExpr is x [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	X    Expr
	Not  bool
	Low  Expr
	High Expr
}

func (b *BetweenExpr) Pos() int { return b.X.Pos() }
func (*BetweenExpr) exprNode()  {}

// FuncCall is name(args). Star is set for count(*).
type FuncCall struct {
	Offset   int
	Name     string
	Args     []Expr
	Star     bool
	Distinct bool
}

func (f *FuncCall) Pos() int { return f.Offset }
func (*FuncCall) exprNode()  {}

// When is one CASE arm.
type When struct {
	Cond   Expr
	Result Expr
}

// CaseExpr is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	Offset  int
	Operand Expr
	Whens   []*When
	Else    Expr
}

func (c *CaseExpr) Pos() int { return c.Offset }
func (*CaseExpr) exprNode()  {}

// CastExpr is CAST(x AS type) or x::type.
type CastExpr struct {
	Offset int
	X      Expr
	Type   string
}

func (c *CastExpr) Pos() int { return c.Offset }
func (*CastExpr) exprNode()  {}

// SubqueryExpr is a parenthesized query used as a value.
type SubqueryExpr struct {
	Offset int
	Query  *SelectStmt
}

func (s *SubqueryExpr) Pos() int { return s.Offset }
func (*SubqueryExpr) exprNode()  {}

// ExistsExpr is [NOT] EXISTS (query).
type ExistsExpr struct {
	Offset int
	Not    bool
	Query  *SelectStmt
}

func (e *ExistsExpr) Pos() int { return e.Offset }
func (*ExistsExpr) exprNode()  {}

// ListExpr is a parenthesized row of values, (a, b).
type ListExpr struct {
	Offset int
	Items  []Expr
}

func (l *ListExpr) Pos() int { return l.Offset }
func (*ListExpr) exprNode()  {}

// Assignment is one SET column = value entry.
type Assignment struct {
	Column *ColumnRef
	Value  Expr
}

// InsertStmt is INSERT INTO t [(cols)] VALUES ... | query.
type InsertStmt struct {
	StmtBase
	With      []*CTE
	Table     *TableName
	Columns   []*Ident
	Values    [][]Expr
	Query     *SelectStmt
	Returning []*SelectItem
}

// UpdateStmt is UPDATE t SET ... [FROM ...] [WHERE ...].
type UpdateStmt struct {
	StmtBase
	With      []*CTE
	Table     *TableName
	Set       []*Assignment
	From      []TableExpr
	Where     Expr
	Returning []*SelectItem
}

// DeleteStmt is DELETE FROM t [USING ...] [WHERE ...].
type DeleteStmt struct {
	StmtBase
	With      []*CTE
	Table     *TableName
	Using     []TableExpr
	Where     Expr
	Returning []*SelectItem
}

// DropTableStmt is DROP TABLE [IF EXISTS] t, ....
type DropTableStmt struct {
	StmtBase
	IfExists bool
	Tables   []*TableName
}

// TruncateStmt is TRUNCATE [TABLE] t, ....
type TruncateStmt struct {
	StmtBase
	Tables []*TableName
}

// OtherStmt is a statement outside the validated subset, such as CREATE.
type OtherStmt struct {
	StmtBase
	Keyword string
}

// BadStmt is a statement whose leading token was not understood.
type BadStmt struct {
	StmtBase
}
