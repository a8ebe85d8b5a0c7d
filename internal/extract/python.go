package extract

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"
)

// scanPython collects the string literals and comments of a Python file.
// Adjacent literals on one logical line are concatenated as Python does: a
// newline separates them unless a bracket is open or the line ends in a
// backslash. Bytes literals are skipped.
// f-string replacement fields are replaced by a ? parameter.
func scanPython(src []byte) hostFile {
	s := &pyScanner{src: src, line: 1, file: hostFile{comments: make(map[int][]string)}}
	s.scan()
	return s.file
}

type pyScanner struct {
	src  []byte
	pos  int
	line int
	file hostFile
	// depth counts the open (, [ and { outside strings and comments.
	depth int

	// last is the literal that a following adjacent literal joins onto.
	last    *literal
	lastEnd int
}

type pyPrefix struct {
	raw, bytes, format bool
}

func (s *pyScanner) scan() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.line++
			s.pos++
		case c == '#':
			start := s.pos
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
			s.file.comments[s.line] = append(s.file.comments[s.line], string(s.src[start:s.pos]))
		case c == '\'' || c == '"':
			s.scanString(s.pos, pyPrefix{})
		case isPyIdentStart(c):
			start := s.pos
			for s.pos < len(s.src) && isPyIdentPart(s.src[s.pos]) {
				s.pos++
			}
			if s.pos < len(s.src) && (s.src[s.pos] == '\'' || s.src[s.pos] == '"') {
				if prefix, ok := parsePyPrefix(string(s.src[start:s.pos])); ok {
					s.scanString(start, prefix)
				}
			}
		case c == '(' || c == '[' || c == '{':
			s.depth++
			s.pos++
		case c == ')' || c == ']' || c == '}':
			if s.depth > 0 {
				s.depth--
			}
			s.pos++
		case c >= utf8.RuneSelf:
			// Non-ASCII identifiers.
			_, size := utf8.DecodeRune(s.src[s.pos:])
			s.pos += size
		default:
			s.pos++
		}
	}
}

func parsePyPrefix(word string) (pyPrefix, bool) {
	if len(word) > 2 {
		return pyPrefix{}, false
	}
	var p pyPrefix
	for _, r := range strings.ToLower(word) {
		switch r {
		case 'r':
			p.raw = true
		case 'b':
			p.bytes = true
		case 'f':
			p.format = true
		case 'u':
			if len(word) != 1 {
				return pyPrefix{}, false
			}
		default:
			return pyPrefix{}, false
		}
	}
	if p.bytes && p.format {
		return pyPrefix{}, false
	}
	return p, true
}

// scanString scans a literal whose opening quote is at s.pos; start is where
// its prefix begins.
func (s *pyScanner) scanString(start int, prefix pyPrefix) {
	quote := s.src[s.pos]
	triple := s.pos+2 < len(s.src) && s.src[s.pos+1] == quote && s.src[s.pos+2] == quote
	startLine := s.line
	if triple {
		s.pos += 3
	} else {
		s.pos++
	}

	lit := &literal{line: startLine}
	closed := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == quote {
			if !triple {
				lit.finish(s.pos)
				s.pos++
				closed = true
				break
			}
			if s.pos+2 < len(s.src) && s.src[s.pos+1] == quote && s.src[s.pos+2] == quote {
				lit.finish(s.pos)
				s.pos += 3
				closed = true
				break
			}
		}
		if c == '\n' {
			if !triple {
				break
			}
			s.line++
		}
		switch {
		case c == '\\':
			s.scanEscape(lit, prefix)
		case prefix.format && c == '{':
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == '{' {
				lit.appendByte('{', s.pos)
				s.pos += 2
				continue
			}
			if !s.skipReplacementField(lit) {
				s.last = nil
				return
			}
		case prefix.format && c == '}' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '}':
			lit.appendByte('}', s.pos)
			s.pos += 2
		default:
			lit.appendByte(c, s.pos)
			s.pos++
		}
	}
	if !closed || prefix.bytes {
		s.last = nil
		return
	}

	if s.last != nil && s.onlyTrivia(s.lastEnd, start) {
		s.last.join(lit)
	} else {
		s.file.literals = append(s.file.literals, lit)
		s.last = lit
	}
	s.lastEnd = s.pos
}

var pyEscapes = map[byte]byte{
	'n': '\n', 't': '\t', 'r': '\r', 'a': '\a', 'b': '\b', 'f': '\f', 'v': '\v',
	'\\': '\\', '\'': '\'', '"': '"',
}

func (s *pyScanner) scanEscape(lit *literal, prefix pyPrefix) {
	at := s.pos
	if s.pos+1 >= len(s.src) {
		lit.appendByte('\\', at)
		s.pos++
		return
	}
	next := s.src[s.pos+1]
	if prefix.raw {
		// Raw strings keep the backslash; an escaped quote does not close.
		lit.appendByte('\\', at)
		if next == '\n' {
			s.line++
		}
		lit.appendByte(next, s.pos+1)
		s.pos += 2
		return
	}
	if b, ok := pyEscapes[next]; ok {
		lit.appendByte(b, at)
		s.pos += 2
		return
	}
	switch {
	case next == '\n':
		s.line++
		s.pos += 2
	case next == '\r':
		s.pos += 2
		if s.pos < len(s.src) && s.src[s.pos] == '\n' {
			s.line++
			s.pos++
		}
	case next == 'x':
		s.appendCodePoint(lit, at, 2)
	case next == 'u':
		s.appendCodePoint(lit, at, 4)
	case next == 'U':
		s.appendCodePoint(lit, at, 8)
	case next == 'N':
		// Named escapes are kept as a placeholder character.
		lit.appendByte('?', at)
		if end := bytes.IndexByte(s.src[s.pos:], '}'); end >= 0 {
			s.pos += end + 1
		} else {
			s.pos += 2
		}
	case next >= '0' && next <= '7':
		n := 1
		for n < 3 && s.pos+1+n < len(s.src) && s.src[s.pos+1+n] >= '0' && s.src[s.pos+1+n] <= '7' {
			n++
		}
		v, _ := strconv.ParseUint(string(s.src[s.pos+1:s.pos+1+n]), 8, 32)
		lit.appendString(string(rune(v)), at)
		s.pos += 1 + n
	default:
		// Unknown escapes keep the backslash.
		lit.appendByte('\\', at)
		s.pos++
	}
}

// appendCodePoint decodes \xHH, \uHHHH or \UHHHHHHHH. Malformed escapes are
// kept verbatim.
func (s *pyScanner) appendCodePoint(lit *literal, at, digits int) {
	const skip = 2
	end := s.pos + skip + digits
	if end > len(s.src) {
		lit.appendByte('\\', at)
		s.pos++
		return
	}
	v, err := strconv.ParseUint(string(s.src[s.pos+skip:end]), 16, 32)
	if err != nil {
		lit.appendByte('\\', at)
		s.pos++
		return
	}
	lit.appendString(string(rune(v)), at)
	s.pos = end
}

// skipReplacementField consumes an f-string {expression} and emits a ?
// parameter in its place. It reports false when the field is unterminated.
func (s *pyScanner) skipReplacementField(lit *literal) bool {
	at := s.pos
	depth := 0
	var inQuote byte
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == '{' || c == '[' || c == '(':
			depth++
		case c == '}' || c == ']' || c == ')':
			depth--
			if depth == 0 {
				s.pos++
				lit.appendByte('?', at)
				return true
			}
		case c == '\n':
			s.line++
		}
		s.pos++
	}
	return false
}

// onlyTrivia reports whether src[from:to] holds nothing but whitespace, line
// continuations and comments, and stays on one logical line.
func (s *pyScanner) onlyTrivia(from, to int) bool {
	for i := from; i < to; i++ {
		switch c := s.src[i]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
		case c == '\n':
			if s.depth == 0 {
				return false
			}
		case c == '\\' && i+1 < to && s.src[i+1] == '\n':
			i++
		case c == '\\' && i+2 < to && s.src[i+1] == '\r' && s.src[i+2] == '\n':
			i += 2
		case c == '#':
			for i+1 < to && s.src[i+1] != '\n' {
				i++
			}
		default:
			return false
		}
	}
	return true
}

func isPyIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isPyIdentPart(c byte) bool {
	return isPyIdentStart(c) || (c >= '0' && c <= '9')
}
