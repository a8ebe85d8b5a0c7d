// Package extract finds SQL statements in source files.
//
// Plain .sql files are split on top-level semicolons. Python and Go files are
// scanned for string literals that are marked as SQL by a nearby comment or
// that look like SQL. Each Statement remembers where every byte of its text
// came from, so positions inside the statement map back to the original file
// even through escape sequences and concatenated literals.
package extract

import (
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/electwix/sqlvet/internal/source"
)

// Kind identifies how a file is scanned for SQL.
type Kind int

const (
	// KindNone marks files that hold no SQL this package understands.
	KindNone Kind = iota
	KindSQL
	KindPython
	KindGo
)

func (k Kind) String() string {
	switch k {
	case KindSQL:
		return "sql"
	case KindPython:
		return "python"
	case KindGo:
		return "go"
	default:
		return "none"
	}
}

// KindFromPath maps a file extension to a Kind.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sql":
		return KindSQL
	case ".py":
		return KindPython
	case ".go":
		return KindGo
	default:
		return KindNone
	}
}

// ParseKind parses a --kind flag value.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sql":
		return KindSQL, nil
	case "python", "py":
		return KindPython, nil
	case "go", "golang":
		return KindGo, nil
	}
	return KindNone, fmt.Errorf("unknown source kind %q (want sql, python or go)", s)
}

// Options controls how host-language literals are recognized as SQL.
type Options struct {
	// Markers are comment words that flag the literal on the same line or the
	// line below as SQL, as in "# sql" or "// sql".
	Markers []string
	// Heuristic also accepts literals starting with a DML or DROP/TRUNCATE
	// keyword.
	Heuristic bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Markers: []string{"sql"}, Heuristic: true}
}

// Statement is one SQL statement found in a file.
type Statement struct {
	Path string
	Text string
	// Start is the position of the first character of Text.
	Start source.Position

	index *source.LineIndex
	// offsets maps each byte of Text, plus the end of Text, to a file offset.
	// When nil, Text is a verbatim slice of the file starting at base.
	offsets []int
	base    int
}

// FromText wraps standalone SQL text as a statement of a file holding only
// that text.
func FromText(path, text string) Statement {
	stmt := Statement{Path: path, Text: text, index: source.NewLineIndex([]byte(text))}
	stmt.Start = stmt.PositionAt(0)
	return stmt
}

// PositionAt maps a byte offset within Text to a position in the original
// file. Offsets outside Text are clamped, so the result is always inside the
// file.
func (s Statement) PositionAt(offset int) source.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s.Text) {
		offset = len(s.Text)
	}
	fileOffset := s.base + offset
	if s.offsets != nil {
		fileOffset = s.offsets[offset]
	}
	if s.index == nil {
		return source.Position{Line: 1, Column: fileOffset}
	}
	return s.index.Position(fileOffset)
}

// Extract returns the statements of src. The sequence is lazy and single-use:
// ranging over it a second time yields nothing. Unparseable host files yield
// whatever could be recovered, possibly nothing.
func Extract(path string, src []byte, kind Kind, opts Options) iter.Seq[Statement] {
	var used atomic.Bool
	return func(yield func(Statement) bool) {
		if used.Swap(true) {
			return
		}
		idx := source.NewLineIndex(src)
		switch kind {
		case KindSQL:
			splitSQL(path, src, idx, yield)
		case KindPython:
			emitLiterals(path, idx, opts, scanPython(src), yield)
		case KindGo:
			emitLiterals(path, idx, opts, scanGo(path, src), yield)
		}
	}
}

// literal is a decoded host-language string, possibly several concatenated
// pieces.
type literal struct {
	text    []byte
	offsets []int
	// line is the 1-based line of the opening quote of the first piece.
	line int
}

func (l *literal) appendByte(b byte, offset int) {
	l.text = append(l.text, b)
	l.offsets = append(l.offsets, offset)
}

func (l *literal) appendString(s string, offset int) {
	for i := 0; i < len(s); i++ {
		l.appendByte(s[i], offset)
	}
}

// finish records the offset of the closing quote as the end position.
func (l *literal) finish(end int) {
	l.offsets = append(l.offsets, end)
}

// join appends next, dropping this literal's end entry.
func (l *literal) join(next *literal) {
	l.offsets = append(l.offsets[:len(l.text)], next.offsets...)
	l.text = append(l.text, next.text...)
}

// hostFile is what a host-language scanner hands back: literals in source
// order and comments by line.
type hostFile struct {
	literals []*literal
	comments map[int][]string
}

func emitLiterals(path string, idx *source.LineIndex, opts Options, file hostFile, yield func(Statement) bool) {
	for _, lit := range file.literals {
		text := string(lit.text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if !isSQL(text, lit.line, file.comments, opts) {
			continue
		}
		stmt := Statement{Path: path, Text: text, index: idx, offsets: lit.offsets}
		stmt.Start = stmt.PositionAt(0)
		if !yield(stmt) {
			return
		}
	}
}

func isSQL(text string, line int, comments map[int][]string, opts Options) bool {
	for _, l := range []int{line, line - 1} {
		for _, c := range comments[l] {
			if opts.isMarker(c) {
				return true
			}
		}
	}
	if opts.markedInText(text) {
		return true
	}
	return opts.Heuristic && looksLikeSQL(text)
}

func (o Options) isMarker(comment string) bool {
	body := strings.TrimSpace(comment)
	switch {
	case strings.HasPrefix(body, "//"), strings.HasPrefix(body, "--"):
		body = body[2:]
	case strings.HasPrefix(body, "#"):
		body = body[1:]
	case strings.HasPrefix(body, "/*"):
		body = strings.TrimSuffix(body[2:], "*/")
	}
	body = strings.ToLower(strings.TrimSpace(body))
	for _, marker := range o.Markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker == "" {
			continue
		}
		if body == marker || strings.HasPrefix(body, marker+":") || strings.HasPrefix(body, marker+" ") {
			return true
		}
	}
	return false
}

// markedInText reports a leading "-- sql" or "/* sql */" inside the literal.
func (o Options) markedInText(text string) bool {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "--"):
		line, _, _ := strings.Cut(trimmed, "\n")
		return o.isMarker(line)
	case strings.HasPrefix(trimmed, "/*"):
		end := strings.Index(trimmed, "*/")
		if end < 0 {
			return false
		}
		return o.isMarker(trimmed[:end+2])
	}
	return false
}

var sqlPrefixes = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "DROP", "TRUNCATE"}

func looksLikeSQL(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	for _, kw := range sqlPrefixes {
		if len(trimmed) <= len(kw) || !strings.EqualFold(trimmed[:len(kw)], kw) {
			continue
		}
		switch trimmed[len(kw)] {
		case ' ', '\t', '\r', '\n':
			return true
		}
	}
	return false
}
