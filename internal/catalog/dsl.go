package catalog

import (
	"errors"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/electwix/sqlvet/internal/source"
)

// The .schema manifest DSL:
//
//	# comment
//	table users {
//	  id: integer!
//	  email: varchar(255)!
//	  tags: text[]
//	}
//
// A trailing ! marks a column NOT NULL. Commas between columns are optional.

//nolint:govet // Participle struct tags are DSL, not reflect tags
type dslFile struct {
	Tables []*dslTable `@@*`
}

//nolint:govet // Participle struct tags are DSL, not reflect tags
type dslTable struct {
	Pos     lexer.Position
	Name    string       `"table" @(Ident | Quoted)`
	Columns []*dslColumn `"{" ( @@ ","? )* "}"`
}

//nolint:govet // Participle struct tags are DSL, not reflect tags
type dslColumn struct {
	Pos     lexer.Position
	Name    string   `@(Ident | Quoted) ":"`
	Type    string   `@Ident`
	Args    []string `( "(" @Number ( "," @Number )* ")" )?`
	Array   bool     `@( "[" "]" )?`
	NotNull bool     `@"!"?`
}

func (c *dslColumn) typeName() string {
	var sb strings.Builder
	sb.WriteString(c.Type)
	if len(c.Args) > 0 {
		sb.WriteString("(" + strings.Join(c.Args, ",") + ")")
	}
	if c.Array {
		sb.WriteString("[]")
	}
	return sb.String()
}

//nolint:govet // Participle DSL uses unkeyed fields
var dslLexer = lexer.MustSimple([]lexer.SimpleRule{
	{"Whitespace", `[ \t\r\n]+`},
	{"Comment", `(#|//)[^\n]*`},
	{"Quoted", `"[^"]+"`},
	{"Ident", `[A-Za-z_][A-Za-z0-9_]*`},
	{"Number", `[0-9]+`},
	{"Punct", `[{}():,!\[\]]`},
})

var dslParser = sync.OnceValue(func() *participle.Parser[dslFile] {
	return participle.MustBuild[dslFile](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.Unquote("Quoted"),
		// A column is committed once its name is read, so a missing ":" or
		// type is reported where it belongs rather than at the closing brace.
		participle.UseLookahead(0),
	)
})

func decodeManifest(path string, data []byte, b *builder) error {
	file, err := dslParser().ParseBytes(path, data)
	if err != nil {
		le := &LoadError{Path: path, Err: err}
		var perr participle.Error
		if errors.As(err, &perr) {
			pos := perr.Position()
			le.Pos = source.Position{Line: pos.Line, Column: pos.Column - 1}
			le.Err = errors.New(perr.Message())
		}
		return le
	}
	for _, dt := range file.Tables {
		cols := make([]Column, 0, len(dt.Columns))
		for _, dc := range dt.Columns {
			cols = append(cols, Column{Name: dc.Name, Type: dc.typeName(), Nullable: !dc.NotNull})
		}
		t, err := NewTable(dt.Name, cols...)
		if err != nil {
			return &LoadError{Path: path, Pos: source.Position{Line: dt.Pos.Line, Column: dt.Pos.Column - 1}, Err: err}
		}
		if err := b.add(t); err != nil {
			return &LoadError{Path: path, Pos: source.Position{Line: dt.Pos.Line, Column: dt.Pos.Column - 1}, Err: err}
		}
	}
	return nil
}
