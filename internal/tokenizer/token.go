// Package tokenizer scans SQL text into tokens carrying byte offsets.
package tokenizer

import (
	"strconv"
	"strings"
)

// Kind represents the classification of a scanned token.
type Kind int

const (
	// KindInvalid represents input the scanner could not classify, such as an
	// unterminated string. Message explains why.
	KindInvalid Kind = iota
	// KindIdentifier represents bare or quoted identifiers, including
	// non-reserved words such as type names.
	KindIdentifier
	// KindKeyword represents reserved SQL keywords normalized to uppercase.
	KindKeyword
	// KindNumber represents numeric literals.
	KindNumber
	// KindString represents string literals using single quotes.
	KindString
	// KindBlob represents blob literals of the form X'...'.
	KindBlob
	// KindParam represents bind parameters: ?, ?1, :name, $1, %s, %(name)s.
	KindParam
	// KindSymbol represents punctuation or operator symbols.
	KindSymbol
	// KindEOF marks the logical end of the input.
	KindEOF
)

// Token is a unit emitted by the scanner. Offset and End are byte offsets into
// the scanned text, End exclusive.
type Token struct {
	Kind    Kind
	Text    string
	Offset  int
	End     int
	Message string
}

// Is reports whether the token is the given word, case-insensitively. Both
// reserved keywords and plain identifiers match, so callers can test for
// non-reserved words such as PRIMARY or KEY.
func (t Token) Is(word string) bool {
	if t.Kind != KindKeyword && t.Kind != KindIdentifier {
		return false
	}
	return strings.EqualFold(t.Text, word)
}

// IsSymbol reports whether the token is the given punctuation.
func (t Token) IsSymbol(sym string) bool {
	return t.Kind == KindSymbol && t.Text == sym
}

// IsQuoted reports whether an identifier token was written with quotes.
func (t Token) IsQuoted() bool {
	if t.Kind != KindIdentifier || t.Text == "" {
		return false
	}
	switch t.Text[0] {
	case '"', '`', '[':
		return true
	}
	return false
}

// IsKeyword reports whether s is a reserved keyword.
func IsKeyword(s string) bool {
	if s == "" {
		return false
	}
	_, ok := keywords[strings.ToUpper(s)]
	return ok
}

// NormalizeIdentifier removes optional quoting from identifiers while unescaping content.
func NormalizeIdentifier(text string) string {
	if len(text) < 2 {
		return text
	}
	switch text[0] {
	case '"':
		if text[len(text)-1] != '"' {
			return text
		}
		return strings.ReplaceAll(text[1:len(text)-1], `""`, `"`)
	case '[':
		if text[len(text)-1] != ']' {
			return text
		}
		return text[1 : len(text)-1]
	case '`':
		if text[len(text)-1] != '`' {
			return text
		}
		return strings.ReplaceAll(text[1:len(text)-1], "``", "`")
	default:
		return text
	}
}

// UnquoteString returns the content of a single-quoted SQL string literal.
func UnquoteString(text string) string {
	if len(text) < 2 || text[0] != '\'' || text[len(text)-1] != '\'' {
		return text
	}
	return strings.ReplaceAll(text[1:len(text)-1], "''", "'")
}

var keywords = map[string]struct{}{
	"ALL":       {},
	"ALTER":     {},
	"AND":       {},
	"AS":        {},
	"ASC":       {},
	"BETWEEN":   {},
	"BY":        {},
	"CASE":      {},
	"CAST":      {},
	"CREATE":    {},
	"CROSS":     {},
	"DELETE":    {},
	"DESC":      {},
	"DISTINCT":  {},
	"DROP":      {},
	"ELSE":      {},
	"END":       {},
	"EXCEPT":    {},
	"EXISTS":    {},
	"FALSE":     {},
	"FROM":      {},
	"FULL":      {},
	"GROUP":     {},
	"HAVING":    {},
	"ILIKE":     {},
	"IN":        {},
	"INNER":     {},
	"INSERT":    {},
	"INTERSECT": {},
	"INTO":      {},
	"IS":        {},
	"JOIN":      {},
	"LEFT":      {},
	"LIKE":      {},
	"LIMIT":     {},
	"NATURAL":   {},
	"NOT":       {},
	"NULL":      {},
	"OFFSET":    {},
	"ON":        {},
	"OR":        {},
	"ORDER":     {},
	"OUTER":     {},
	"RETURNING": {},
	"RIGHT":     {},
	"SELECT":    {},
	"SET":       {},
	"TABLE":     {},
	"THEN":      {},
	"TRUE":      {},
	"TRUNCATE":  {},
	"UNION":     {},
	"UPDATE":    {},
	"USING":     {},
	"VALUES":    {},
	"WHEN":      {},
	"WHERE":     {},
	"WITH":      {},
}

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindIdentifier:
		return "Identifier"
	case KindKeyword:
		return "Keyword"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindBlob:
		return "Blob"
	case KindParam:
		return "Param"
	case KindSymbol:
		return "Symbol"
	case KindEOF:
		return "EOF"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}
