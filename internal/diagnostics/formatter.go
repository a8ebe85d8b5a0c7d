package diagnostics

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders issues as terminal text, one issue per line:
//
//	path:line:col: kind: message (did you mean "x"?)
type Formatter struct {
	// ShowSuggestions controls whether to display suggestions.
	ShowSuggestions bool
	// ShowCode controls whether to display error codes.
	ShowCode bool
	// ShowContext controls whether to display the offending source line.
	ShowContext bool
	// Colorize controls whether to use ANSI color codes.
	Colorize bool
	// ContextLines is the number of lines shown around the error line.
	ContextLines int
	// Context supplies source lines; files are read on demand when nil.
	Context *ContextExtractor
}

// NewFormatter creates a formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowSuggestions: true,
	}
}

// NewVerboseFormatter creates a formatter that also prints codes and source
// context.
func NewVerboseFormatter() *Formatter {
	return &Formatter{
		ShowSuggestions: true,
		ShowCode:        true,
		ShowContext:     true,
		ContextLines:    1,
	}
}

// Format formats a single issue of the file at path.
func (f *Formatter) Format(path string, issue Issue) string {
	var b strings.Builder
	f.formatIssue(&b, path, issue)
	return b.String()
}

// WriteAll writes the issues of every file.
func (f *Formatter) WriteAll(w io.Writer, files []FileIssues) error {
	var b strings.Builder
	for _, file := range files {
		for _, issue := range file.Issues {
			f.formatIssue(&b, file.Path, issue)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// PrintSummary prints a one-line summary, or nothing when there are no issues.
// With ShowCode it also lists what each reported code means.
func (f *Formatter) PrintSummary(w io.Writer, files []FileIssues) {
	summary := Summarize(files)
	if summary.Total == 0 {
		return
	}

	parts := make([]string, 0, len(summary.ByKind))
	for kind := KindUnspecified; kind <= KindSyntaxError; kind++ {
		if n := summary.ByKind[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kind))
		}
	}
	headline := fmt.Sprintf("%d issue(s) in %d file(s)", summary.Total, summary.Files)
	_, _ = fmt.Fprintf(w, "\n%s (%s)\n", f.paint(headline, color.Bold), strings.Join(parts, ", "))
	if !f.ShowCode {
		return
	}
	for kind := KindUnspecified; kind <= KindSyntaxError; kind++ {
		if code := kind.Code(); code != "" && summary.ByKind[kind] > 0 {
			_, _ = fmt.Fprintf(w, "  %s %s\n", f.paint("["+code+"]", color.FgMagenta), CodeDescription(code))
		}
	}
}

func (f *Formatter) formatIssue(b *strings.Builder, path string, issue Issue) {
	location := fmt.Sprintf("%d:%d", issue.Pos.Line, issue.Pos.Column)
	if path != "" {
		location = path + ":" + location
	}
	fmt.Fprintf(b, "%s: %s: %s", f.paint(location, color.FgCyan), f.paint(issue.Kind.String(), f.kindColor(issue.Kind)), issue.Message)

	if f.ShowSuggestions && issue.Suggestion != nil {
		fmt.Fprintf(b, " (did you mean %s?)", f.paint(fmt.Sprintf("%q", *issue.Suggestion), color.FgGreen))
	}
	if f.ShowCode && issue.Kind.Code() != "" {
		fmt.Fprintf(b, " %s", f.paint("["+issue.Kind.Code()+"]", color.FgMagenta))
	}
	b.WriteString("\n")

	if f.ShowContext && path != "" {
		f.formatContext(b, path, issue)
	}
}

func (f *Formatter) formatContext(b *strings.Builder, path string, issue Issue) {
	extractor := f.Context
	if extractor == nil {
		extractor = NewContextExtractor()
	}
	ctx, err := extractor.ExtractContext(path, issue.Pos, f.ContextLines)
	if err != nil || ctx.IsEmpty() {
		return
	}
	for _, line := range strings.SplitAfter(strings.TrimSuffix(ctx.Format(), "\n"), "\n") {
		fmt.Fprintf(b, "  %s %s", f.paint("|", color.FgBlue), line)
	}
	b.WriteString("\n")
}

func (f *Formatter) kindColor(k Kind) color.Attribute {
	switch k {
	case KindSyntaxError:
		return color.FgMagenta
	case KindTypeMismatch, KindAmbiguousColumn:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

func (f *Formatter) paint(s string, attr color.Attribute) string {
	if !f.Colorize {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}
