// Package diagnostics defines the issues sqlvet reports and renders them as
// the JSON contract consumed by editor integrations or as terminal text.
package diagnostics

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/electwix/sqlvet/internal/source"
)

// Kind classifies an issue.
type Kind int

const (
	// KindUnspecified is the zero value, used for issues decoded from JSON
	// since the contract does not carry the kind.
	KindUnspecified Kind = iota
	// KindUnknownTable is a table reference missing from the catalog.
	KindUnknownTable
	// KindUnknownColumn is a column reference missing from every table in scope.
	KindUnknownColumn
	// KindAmbiguousColumn is an unqualified column found in several tables.
	KindAmbiguousColumn
	// KindTypeMismatch is an operand of an incompatible type family.
	KindTypeMismatch
	// KindSyntaxError is a span the parser could not understand.
	KindSyntaxError
)

// String returns the kind as shown in text output.
func (k Kind) String() string {
	switch k {
	case KindUnknownTable:
		return "unknown-table"
	case KindUnknownColumn:
		return "unknown-column"
	case KindAmbiguousColumn:
		return "ambiguous-column"
	case KindTypeMismatch:
		return "type-mismatch"
	case KindSyntaxError:
		return "syntax-error"
	default:
		return "issue"
	}
}

// Code returns the stable error code of the kind.
func (k Kind) Code() string {
	switch k {
	case KindUnknownTable:
		return "E001"
	case KindUnknownColumn:
		return "E002"
	case KindAmbiguousColumn:
		return "E003"
	case KindTypeMismatch:
		return "E004"
	case KindSyntaxError:
		return "E005"
	default:
		return ""
	}
}

// CodeDescription returns a human-readable description for an error code.
func CodeDescription(code string) string {
	switch code {
	case "E001":
		return "Table not found in schema"
	case "E002":
		return "Column not found in any table in scope"
	case "E003":
		return "Column name is ambiguous"
	case "E004":
		return "Incompatible types"
	case "E005":
		return "SQL syntax error"
	default:
		return "Unknown error code"
	}
}

// Issue is one finding anchored to a position in the checked file.
type Issue struct {
	Kind       Kind
	Message    string
	Pos        source.Position
	Suggestion *string
}

// New creates an issue without a suggestion.
func New(kind Kind, pos source.Position, message string) Issue {
	return Issue{Kind: kind, Message: message, Pos: pos}
}

// WithSuggestion returns a copy of the issue carrying suggestion.
func (i Issue) WithSuggestion(suggestion string) Issue {
	i.Suggestion = &suggestion
	return i
}

// SuggestionText returns the suggestion or "".
func (i Issue) SuggestionText() string {
	if i.Suggestion == nil {
		return ""
	}
	return *i.Suggestion
}

// Equal reports whether two issues carry the same values.
func (i Issue) Equal(other Issue) bool {
	if i.Kind != other.Kind || i.Message != other.Message || i.Pos != other.Pos {
		return false
	}
	if (i.Suggestion == nil) != (other.Suggestion == nil) {
		return false
	}
	return i.Suggestion == nil || *i.Suggestion == *other.Suggestion
}

// String returns "line:column: kind: message".
func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Pos, i.Kind, i.Message)
}

// FileIssues groups the issues of one checked file.
type FileIssues struct {
	Path   string
	Issues []Issue
}

// Collection accumulates issues in insertion order.
type Collection struct {
	issues []Issue
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Add appends an issue.
func (c *Collection) Add(issue Issue) {
	c.issues = append(c.issues, issue)
}

// Len returns the number of issues.
func (c *Collection) Len() int {
	return len(c.issues)
}

// ByKind returns the issues of one kind.
func (c *Collection) ByKind(kind Kind) []Issue {
	var out []Issue
	for _, issue := range c.issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

// Sorted returns the issues ordered by position. Issues at the same position
// keep insertion order and exact duplicates are dropped.
func (c *Collection) Sorted() []Issue {
	return Normalize(c.issues)
}

// Normalize sorts issues by line then column, keeping insertion order for
// ties, and removes exact duplicates. The input is not modified.
func Normalize(issues []Issue) []Issue {
	sorted := slices.Clone(issues)
	slices.SortStableFunc(sorted, func(a, b Issue) int {
		return comparePosition(a.Pos, b.Pos)
	})
	out := sorted[:0]
	for _, issue := range sorted {
		if !containsAtPos(out, issue) {
			out = append(out, issue)
		}
	}
	return out
}

// containsAtPos reports whether issues already ends with a run of issues at
// issue's position that includes an equal one.
func containsAtPos(issues []Issue, issue Issue) bool {
	for j := len(issues) - 1; j >= 0 && issues[j].Pos == issue.Pos; j-- {
		if issues[j].Equal(issue) {
			return true
		}
	}
	return false
}

func comparePosition(a, b source.Position) int {
	if c := cmp.Compare(a.Line, b.Line); c != 0 {
		return c
	}
	return cmp.Compare(a.Column, b.Column)
}

// Summary counts issues per kind.
type Summary struct {
	Total  int
	ByKind map[Kind]int
	Files  int
}

// Summarize counts the issues of several files.
func Summarize(files []FileIssues) Summary {
	s := Summary{ByKind: make(map[Kind]int)}
	for _, f := range files {
		if len(f.Issues) > 0 {
			s.Files++
		}
		for _, issue := range f.Issues {
			s.Total++
			s.ByKind[issue.Kind]++
		}
	}
	return s
}
