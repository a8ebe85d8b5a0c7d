package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const eofRune = -1

// Scan tokenizes src and returns the token stream. It never fails: malformed
// input produces KindInvalid tokens and scanning continues after them. The
// stream always ends with a KindEOF token whose Offset is the end of the last
// real token, so diagnostics at end of input point at the truncation point
// rather than at trailing whitespace.
func Scan(src string) []Token {
	s := &scanner{src: src, tokens: make([]Token, 0, len(src)/4+1)}
	s.scan()
	end := 0
	if n := len(s.tokens); n > 0 {
		end = s.tokens[n-1].End
	}
	s.tokens = append(s.tokens, Token{Kind: KindEOF, Offset: end, End: end})
	return s.tokens
}

type scanner struct {
	src    string
	index  int
	tokens []Token
}

func (s *scanner) scan() {
	for s.index < len(s.src) {
		r := s.peek()
		switch {
		case unicode.IsSpace(r):
			s.advance()
		case r == '-' && s.peekNext() == '-':
			s.consumeLineComment()
		case r == '#' && s.peekNext() != '>':
			// MySQL-style line comment.
			s.consumeLineComment()
		case r == '/' && s.peekNext() == '*':
			s.consumeBlockComment()
		case r == '\'':
			s.consumeQuoted(KindString, '\'', "unterminated string literal")
		case (r == 'x' || r == 'X') && s.peekNext() == '\'':
			s.consumeBlobLiteral()
		case r == '"':
			s.consumeQuoted(KindIdentifier, '"', "unterminated quoted identifier")
		case r == '`':
			s.consumeQuoted(KindIdentifier, '`', "unterminated quoted identifier")
		case r == '[':
			s.consumeQuoted(KindIdentifier, ']', "unterminated quoted identifier")
		case r == '?':
			s.consumeQuestionParam()
		case r == ':' && isIdentifierStart(s.peekNext()):
			s.consumeNamedParam()
		case r == '$' && isDigit(s.peekNext()):
			s.consumeNamedParam()
		case r == '%' && (s.peekNext() == 's' || s.peekNext() == '('):
			s.consumePyformatParam()
		case isIdentifierStart(r):
			s.consumeIdentifier()
		case isDigit(r) || (r == '.' && isDigit(s.peekNext())):
			s.consumeNumber()
		case isSymbolRune(r):
			s.consumeSymbol()
		default:
			start := s.index
			s.advance()
			s.emitInvalid(start, "unexpected character "+quoteRune(r))
		}
	}
}

func (s *scanner) consumeLineComment() {
	for {
		r := s.peek()
		if r == eofRune || r == '\n' {
			return
		}
		s.advance()
	}
}

func (s *scanner) consumeBlockComment() {
	start := s.index
	s.advance() // '/'
	s.advance() // '*'
	for {
		if s.index >= len(s.src) {
			s.emitInvalid(start, "unterminated block comment")
			return
		}
		if s.peek() == '*' && s.peekNext() == '/' {
			s.advance()
			s.advance()
			return
		}
		s.advance()
	}
}

// consumeQuoted scans a quoted literal ending at closing, where a doubled
// closing rune escapes itself.
func (s *scanner) consumeQuoted(kind Kind, closing rune, unterminated string) {
	start := s.index
	s.advance() // opening quote
	for {
		if s.index >= len(s.src) {
			s.emitInvalid(start, unterminated)
			return
		}
		r := s.advance()
		if r == closing {
			if s.peek() == closing {
				s.advance()
				continue
			}
			break
		}
	}
	s.emit(kind, s.src[start:s.index], start)
}

func (s *scanner) consumeBlobLiteral() {
	start := s.index
	s.advance() // X or x
	s.advance() // opening quote
	for {
		if s.index >= len(s.src) {
			s.emitInvalid(start, "unterminated blob literal")
			return
		}
		if s.advance() == '\'' {
			break
		}
	}
	text := s.src[start:s.index]
	payload := text[2 : len(text)-1]
	if len(payload)%2 != 0 {
		s.emitInvalidText(text, start, "blob literal must contain an even number of hex digits")
		return
	}
	for i := 0; i < len(payload); i++ {
		if !isHexDigit(rune(payload[i])) {
			s.emitInvalidText(text, start, "blob literal contains non-hex digit")
			return
		}
	}
	s.emit(KindBlob, text, start)
}

func (s *scanner) consumeNumber() {
	start := s.index
	s.advanceDigits()
	if s.peek() == '.' {
		s.advance()
		s.advanceDigits()
	}
	if next := s.peek(); next == 'e' || next == 'E' {
		s.advance()
		if sign := s.peek(); sign == '+' || sign == '-' {
			s.advance()
		}
		s.advanceDigits()
	}
	s.emit(KindNumber, s.src[start:s.index], start)
}

func (s *scanner) consumeQuestionParam() {
	start := s.index
	s.advance()
	s.advanceDigits()
	s.emit(KindParam, s.src[start:s.index], start)
}

func (s *scanner) consumeNamedParam() {
	start := s.index
	s.advance() // ':' or '$'
	for isIdentifierPart(s.peek()) {
		s.advance()
	}
	s.emit(KindParam, s.src[start:s.index], start)
}

func (s *scanner) consumePyformatParam() {
	start := s.index
	s.advance() // '%'
	if s.peek() == '(' {
		rparen := strings.IndexByte(s.src[s.index:], ')')
		if rparen < 0 || s.index+rparen+1 >= len(s.src) || s.src[s.index+rparen+1] != 's' {
			s.emit(KindSymbol, "%", start)
			return
		}
		for i := 0; i <= rparen+1; i++ {
			s.advance()
		}
		s.emit(KindParam, s.src[start:s.index], start)
		return
	}
	// %s only when not followed by more identifier characters (e.g. "% size").
	if isIdentifierPart(s.peekNext()) {
		s.emit(KindSymbol, "%", start)
		return
	}
	s.advance() // 's'
	s.emit(KindParam, s.src[start:s.index], start)
}

func (s *scanner) consumeIdentifier() {
	start := s.index
	s.advance()
	for isIdentifierPart(s.peek()) {
		s.advance()
	}
	text := s.src[start:s.index]
	if IsKeyword(text) {
		s.emit(KindKeyword, strings.ToUpper(text), start)
		return
	}
	s.emit(KindIdentifier, text, start)
}

func (s *scanner) consumeSymbol() {
	start := s.index
	first := s.advance()
	next := s.peek()
	switch first {
	case '<':
		if next == '=' || next == '>' {
			s.advance()
		}
	case '>', '!', '=':
		if next == '=' {
			s.advance()
		}
	case '|':
		if next == '|' {
			s.advance()
		}
	case ':':
		if next == ':' {
			s.advance()
		}
	}
	s.emit(KindSymbol, s.src[start:s.index], start)
}

func (s *scanner) advanceDigits() {
	for isDigit(s.peek()) {
		s.advance()
	}
}

func (s *scanner) emit(kind Kind, text string, start int) {
	s.tokens = append(s.tokens, Token{Kind: kind, Text: text, Offset: start, End: s.index})
}

func (s *scanner) emitInvalid(start int, message string) {
	s.emitInvalidText(s.src[start:s.index], start, message)
}

func (s *scanner) emitInvalidText(text string, start int, message string) {
	s.tokens = append(s.tokens, Token{Kind: KindInvalid, Text: text, Offset: start, End: s.index, Message: message})
}

func (s *scanner) peek() rune {
	if s.index >= len(s.src) {
		return eofRune
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.index:])
	return r
}

func (s *scanner) peekNext() rune {
	if s.index >= len(s.src) {
		return eofRune
	}
	_, size := utf8.DecodeRuneInString(s.src[s.index:])
	next := s.index + size
	if next >= len(s.src) {
		return eofRune
	}
	r, _ := utf8.DecodeRuneInString(s.src[next:])
	return r
}

func (s *scanner) advance() rune {
	if s.index >= len(s.src) {
		return eofRune
	}
	r, size := utf8.DecodeRuneInString(s.src[s.index:])
	s.index += size
	return r
}

func quoteRune(r rune) string {
	return "'" + string(r) + "'"
}

func isIdentifierStart(r rune) bool {
	return r == '_' || r == '@' || unicode.IsLetter(r)
}

func isIdentifierPart(r rune) bool {
	return isIdentifierStart(r) || r == '$' || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isSymbolRune(r rune) bool {
	switch r {
	case '(', ')', ',', ';', '.', '*', '=', '+', '-', '/', '%', '<', '>', '!', ':', ']', '{', '}', '|', '&', '^', '~':
		return true
	}
	return false
}
