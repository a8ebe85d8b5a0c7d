// Package source maps byte offsets in a file to editor positions.
package source

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Position identifies a location in an original source file. Line is 1-based,
// Column is 0-based and counted in characters.
type Position struct {
	Line   int
	Column int
}

// String returns the line:column form used in text output.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// LineIndex converts byte offsets of one file into positions.
type LineIndex struct {
	src    string
	starts []int
}

// NewLineIndex indexes the line starts of src. Both "\n" and "\r\n" end a line.
func NewLineIndex(src []byte) *LineIndex {
	idx := &LineIndex{src: string(src), starts: []int{0}}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx.starts = append(idx.starts, i+1)
		}
	}
	return idx
}

// LineLength returns the length, in characters, of the 1-based line, excluding
// its terminator. Out of range lines have length zero.
func (l *LineIndex) LineLength(line int) int {
	if line < 1 || line > len(l.starts) {
		return 0
	}
	start, end := l.lineBounds(line)
	return utf8.RuneCountInString(l.src[start:end])
}

// Position returns the position of the byte offset. Offsets outside the file
// are clamped to its first or last character so the result is always a valid
// editor location.
func (l *LineIndex) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(l.src) {
		offset = len(l.src)
	}
	line := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset })
	start, end := l.lineBounds(line)
	if offset > end {
		offset = end
	}
	// An offset inside a multi-byte character counts its leading bytes as
	// characters, which can overshoot the line.
	column := min(utf8.RuneCountInString(l.src[start:offset]), utf8.RuneCountInString(l.src[start:end]))
	return Position{Line: line, Column: column}
}

// Contains reports whether pos lies within the file: line >= 1, column >= 0 and
// column no greater than the line's length.
func (l *LineIndex) Contains(pos Position) bool {
	if pos.Line < 1 || pos.Line > len(l.starts) || pos.Column < 0 {
		return false
	}
	return pos.Column <= l.LineLength(pos.Line)
}

func (l *LineIndex) lineBounds(line int) (int, int) {
	start := l.starts[line-1]
	end := len(l.src)
	if line < len(l.starts) {
		end = l.starts[line] - 1
	}
	if end > start && l.src[end-1] == '\r' {
		end--
	}
	return start, end
}
