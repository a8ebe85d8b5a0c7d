package extract

import (
	"github.com/electwix/sqlvet/internal/source"
	"github.com/electwix/sqlvet/internal/tokenizer"
)

// splitSQL yields the statements of a .sql file. Semicolons inside strings,
// quoted identifiers, comments and CREATE TRIGGER bodies do not split.
// Statement text runs from the first token to the last, so leading comments
// are excluded and comment-only chunks are skipped.
func splitSQL(path string, src []byte, idx *source.LineIndex, yield func(Statement) bool) {
	text := string(src)
	tokens := tokenizer.Scan(text)

	first := -1
	depth := 0
	emit := func(last int) bool {
		if first < 0 {
			return true
		}
		start, end := tokens[first].Offset, tokens[last].End
		first = -1
		depth = 0
		stmt := Statement{Path: path, Text: text[start:end], index: idx, base: start}
		stmt.Start = stmt.PositionAt(0)
		return yield(stmt)
	}

	for i, tok := range tokens {
		if tok.Kind == tokenizer.KindEOF {
			emit(i - 1)
			return
		}
		if tok.IsSymbol(";") && depth == 0 {
			if !emit(i - 1) {
				return
			}
			continue
		}
		if first < 0 {
			first = i
		}
		if tokens[first].Is("CREATE") {
			switch {
			case tok.Is("BEGIN"), tok.Is("CASE") && depth > 0:
				depth++
			case tok.Is("END") && depth > 0:
				depth--
			}
		}
	}
}
