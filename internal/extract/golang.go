package extract

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"golang.org/x/tools/go/ast/inspector"
)

// scanGo collects the string literals and comments of a Go file. Literals
// joined with + are concatenated. A file with syntax errors contributes the
// literals of whatever go/parser recovered.
func scanGo(path string, src []byte) hostFile {
	out := hostFile{comments: make(map[int][]string)}
	fset := token.NewFileSet()
	file, _ := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if file == nil {
		return out
	}
	for _, group := range file.Comments {
		for _, c := range group.List {
			line := fset.Position(c.Pos()).Line
			out.comments[line] = append(out.comments[line], c.Text)
		}
	}

	in := inspector.New([]*ast.File{file})
	types := []ast.Node{(*ast.BinaryExpr)(nil), (*ast.BasicLit)(nil)}
	in.Nodes(types, func(n ast.Node, push bool) bool {
		if !push {
			return false
		}
		switch n := n.(type) {
		case *ast.BinaryExpr:
			parts, ok := concatenation(n)
			if !ok {
				return true
			}
			var joined *literal
			for _, part := range parts {
				lit, ok := decodeGoString(fset, part)
				if !ok {
					return true
				}
				if joined == nil {
					joined = lit
				} else {
					joined.join(lit)
				}
			}
			out.literals = append(out.literals, joined)
			return false
		case *ast.BasicLit:
			if lit, ok := decodeGoString(fset, n); ok {
				out.literals = append(out.literals, lit)
			}
		}
		return true
	})
	return out
}

// concatenation flattens "a" + "b" + ... when every operand is a string
// literal.
func concatenation(expr *ast.BinaryExpr) ([]*ast.BasicLit, bool) {
	if expr.Op != token.ADD {
		return nil, false
	}
	var parts []*ast.BasicLit
	var walk func(e ast.Expr) bool
	walk = func(e ast.Expr) bool {
		switch e := e.(type) {
		case *ast.BasicLit:
			if e.Kind != token.STRING {
				return false
			}
			parts = append(parts, e)
			return true
		case *ast.ParenExpr:
			return walk(e.X)
		case *ast.BinaryExpr:
			return e.Op == token.ADD && walk(e.X) && walk(e.Y)
		}
		return false
	}
	if !walk(expr) {
		return nil, false
	}
	return parts, true
}

// decodeGoString decodes a string literal, recording the file offset each
// decoded byte came from. Every byte of an escape sequence maps to its
// backslash.
func decodeGoString(fset *token.FileSet, lit *ast.BasicLit) (*literal, bool) {
	if lit.Kind != token.STRING || len(lit.Value) < 2 {
		return nil, false
	}
	pos := fset.Position(lit.Pos())
	base := pos.Offset
	out := &literal{line: pos.Line}
	raw := lit.Value
	body := raw[1 : len(raw)-1]

	if raw[0] == '`' {
		for i := 0; i < len(body); i++ {
			if body[i] == '\r' {
				continue
			}
			out.appendByte(body[i], base+1+i)
		}
		out.finish(base + len(raw) - 1)
		return out, true
	}

	rest := body
	for len(rest) > 0 {
		at := base + 1 + len(body) - len(rest)
		value, multibyte, tail, err := strconv.UnquoteChar(rest, '"')
		if err != nil {
			return nil, false
		}
		if !multibyte {
			// ASCII, \x and octal escapes decode to a single byte.
			out.appendByte(byte(value), at)
		} else {
			out.appendString(string(value), at)
		}
		rest = tail
	}
	out.finish(base + len(raw) - 1)
	return out, true
}
