package diagnostics

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/electwix/sqlvet/internal/source"
)

// ContextExtractor extracts source lines around an issue. It is safe for
// concurrent use.
type ContextExtractor struct {
	mu sync.Mutex
	// Cache of file contents to avoid re-reading files
	cache map[string][]string
}

// NewContextExtractor creates a new context extractor.
func NewContextExtractor() *ContextExtractor {
	return &ContextExtractor{
		cache: make(map[string][]string),
	}
}

// Add primes the cache with content already read by the caller.
func (e *ContextExtractor) Add(path string, content []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache[path] = splitLines(content)
}

// ExtractContext extracts lines around pos. Returns the context lines and the
// position within those lines.
func (e *ContextExtractor) ExtractContext(path string, pos source.Position, contextLines int) (Context, error) {
	lines, err := e.getLines(path)
	if err != nil {
		return Context{}, err
	}

	if pos.Line < 1 || pos.Line > len(lines) {
		return Context{}, fmt.Errorf("line %d out of range [1, %d]", pos.Line, len(lines))
	}

	startLine := max(pos.Line-contextLines, 1)
	endLine := min(pos.Line+contextLines, len(lines))

	return Context{
		Lines:       append([]string(nil), lines[startLine-1:endLine]...),
		StartLine:   startLine,
		ErrorLine:   pos.Line,
		ErrorColumn: pos.Column,
	}, nil
}

func (e *ContextExtractor) getLines(path string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lines, ok := e.cache[path]; ok {
		return lines, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	lines := splitLines(content)
	e.cache[path] = lines
	return lines, nil
}

func splitLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// Context represents extracted code context.
type Context struct {
	Lines     []string
	StartLine int
	ErrorLine int
	// ErrorColumn is 0-based and counted in characters.
	ErrorColumn int
}

// IsEmpty returns true if the context has no lines.
func (c Context) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Format renders the context with line numbers and a caret under the error
// column.
func (c Context) Format() string {
	if c.IsEmpty() {
		return ""
	}

	var b strings.Builder
	maxLineNum := c.StartLine + len(c.Lines) - 1
	lineNumWidth := len(fmt.Sprintf("%d", maxLineNum))

	for i, line := range c.Lines {
		lineNum := c.StartLine + i
		isErrorLine := lineNum == c.ErrorLine

		if isErrorLine {
			fmt.Fprintf(&b, "> %*d | ", lineNumWidth, lineNum)
		} else {
			fmt.Fprintf(&b, "  %*d | ", lineNumWidth, lineNum)
		}
		b.WriteString(line)
		b.WriteString("\n")

		if isErrorLine {
			b.WriteString(strings.Repeat(" ", lineNumWidth+5))
			col := 0
			for _, r := range line {
				if col >= c.ErrorColumn {
					break
				}
				// Tabs are kept so the caret lines up in the terminal.
				if r == '\t' {
					b.WriteByte('\t')
				} else {
					b.WriteByte(' ')
				}
				col++
			}
			b.WriteString("^\n")
		}
	}

	return b.String()
}

// ExtractLine extracts a specific line from content.
func ExtractLine(content []byte, lineNum int) (string, error) {
	lines := splitLines(content)
	if lineNum < 1 || lineNum > len(lines) {
		return "", fmt.Errorf("line %d out of range [1, %d]", lineNum, len(lines))
	}
	return lines[lineNum-1], nil
}
