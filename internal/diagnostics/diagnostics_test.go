package diagnostics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/electwix/sqlvet/internal/source"
)

func pos(line, col int) source.Position {
	return source.Position{Line: line, Column: col}
}

func TestKindStringAndCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
		code string
	}{
		{KindUnknownTable, "unknown-table", "E001"},
		{KindUnknownColumn, "unknown-column", "E002"},
		{KindAmbiguousColumn, "ambiguous-column", "E003"},
		{KindTypeMismatch, "type-mismatch", "E004"},
		{KindSyntaxError, "syntax-error", "E005"},
		{KindUnspecified, "issue", ""},
		{Kind(99), "issue", ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.kind.Code(); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
		})
	}
	if CodeDescription("E001") != "Table not found in schema" {
		t.Errorf("unexpected description for E001")
	}
	if CodeDescription("E999") != "Unknown error code" {
		t.Errorf("unexpected description for unknown code")
	}
}

func TestNormalizeOrdersAndDeduplicates(t *testing.T) {
	table := New(KindUnknownTable, pos(1, 14), "Table 'usrs' not found").WithSuggestion("users")
	column := New(KindUnknownColumn, pos(1, 14), "Column 'x' not found")
	early := New(KindSyntaxError, pos(1, 2), "unexpected")
	later := New(KindUnknownColumn, pos(3, 0), "Column 'y' not found")

	got := Normalize([]Issue{later, table, column, early, table, later})
	want := []Issue{early, table, column, later}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeKeepsDifferentSuggestions(t *testing.T) {
	a := New(KindUnknownColumn, pos(1, 0), "Column 'x' not found").WithSuggestion("a")
	b := New(KindUnknownColumn, pos(1, 0), "Column 'x' not found").WithSuggestion("b")
	if got := Normalize([]Issue{a, b}); len(got) != 2 {
		t.Fatalf("expected both issues, got %v", got)
	}
}

func TestCollection(t *testing.T) {
	c := NewCollection()
	c.Add(New(KindUnknownColumn, pos(2, 0), "b"))
	c.Add(New(KindUnknownTable, pos(1, 0), "a"))
	c.Add(New(KindUnknownTable, pos(1, 0), "a"))

	if c.Len() != 3 {
		t.Fatalf("Len() = %d", c.Len())
	}
	if got := len(c.ByKind(KindUnknownTable)); got != 2 {
		t.Fatalf("ByKind(UnknownTable) = %d", got)
	}
	sorted := c.Sorted()
	if len(sorted) != 2 || sorted[0].Message != "a" {
		t.Fatalf("Sorted() = %v", sorted)
	}
}

func TestMarshalEmpty(t *testing.T) {
	data, err := Marshal(nil)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"errors":[]}` {
		t.Fatalf("Marshal(nil) = %s", data)
	}
}

func TestMarshalContract(t *testing.T) {
	issues := []Issue{
		New(KindUnknownTable, pos(1, 14), "Table 'usrs' not found").WithSuggestion("users"),
		New(KindSyntaxError, pos(2, 0), "expected expression, found end of input"),
	}
	data, err := Marshal(issues)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"errors":[` +
		`{"line":1,"column":14,"message":"Table 'usrs' not found","suggestion":"users"},` +
		`{"line":2,"column":0,"message":"expected expression, found end of input","suggestion":null}]}`
	if string(data) != want {
		t.Fatalf("Marshal() =\n%s\nwant\n%s", data, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	issues := []Issue{
		New(KindUnknownTable, pos(1, 14), "Table 'usrs' not found").WithSuggestion("users"),
		New(KindAmbiguousColumn, pos(1, 7), `Column 'id' is ambiguous: found in users, orders`),
		New(KindTypeMismatch, pos(4, 22), "Type mismatch \"quoted\" \\ and unicode é"),
	}
	var buf bytes.Buffer
	if err := Encode(&buf, issues); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Fatalf("Encode should end with a newline: %q", buf.String())
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := make([]Issue, len(issues))
	for i, issue := range issues {
		issue.Kind = KindUnspecified
		want[i] = issue
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeFilesAddsPath(t *testing.T) {
	files := []FileIssues{
		{Path: "a.sql", Issues: []Issue{New(KindUnknownTable, pos(1, 0), "x")}},
		{Path: "clean.sql"},
		{Path: "b.py", Issues: []Issue{New(KindUnknownColumn, pos(3, 4), "y"), New(KindUnknownColumn, pos(5, 4), "z")}},
	}
	var buf bytes.Buffer
	if err := EncodeFiles(&buf, files); err != nil {
		t.Fatalf("EncodeFiles: %v", err)
	}
	if !strings.Contains(buf.String(), `{"file":"a.sql","line":1,"column":0,"message":"x","suggestion":null}`) {
		t.Fatalf("missing file field: %s", buf.String())
	}

	decoded, err := DecodeFiles(&buf)
	if err != nil {
		t.Fatalf("DecodeFiles: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Path != "a.sql" || decoded[1].Path != "b.py" || len(decoded[1].Issues) != 2 {
		t.Fatalf("unexpected grouping: %+v", decoded)
	}

	buf.Reset()
	if err := EncodeFiles(&buf, nil); err != nil {
		t.Fatalf("EncodeFiles(nil): %v", err)
	}
	if buf.String() != "{\"errors\":[]}\n" {
		t.Fatalf("EncodeFiles(nil) = %q", buf.String())
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"not json":         `errors`,
		"missing errors":   `{"issues":[]}`,
		"line zero":        `{"errors":[{"line":0,"column":0,"message":"m","suggestion":null}]}`,
		"negative column":  `{"errors":[{"line":1,"column":-1,"message":"m","suggestion":null}]}`,
		"wrong field type": `{"errors":[{"line":"1","column":0,"message":"m","suggestion":null}]}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(input)); err == nil {
				t.Fatalf("expected error for %s", input)
			}
		})
	}
}

func TestFormatter(t *testing.T) {
	f := NewFormatter()
	issue := New(KindUnknownTable, pos(1, 14), "Table 'usrs' not found").WithSuggestion("users")

	got := f.Format("q.sql", issue)
	want := "q.sql:1:14: unknown-table: Table 'usrs' not found (did you mean \"users\"?)\n"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}

	f.ShowSuggestions = false
	f.ShowCode = true
	got = f.Format("", issue)
	if got != "1:14: unknown-table: Table 'usrs' not found [E001]\n" {
		t.Fatalf("Format() = %q", got)
	}

	f.Colorize = true
	if got := f.Format("q.sql", issue); !strings.Contains(got, "\x1b[") {
		t.Fatalf("expected ANSI codes with Colorize, got %q", got)
	}
}

func TestFormatterContext(t *testing.T) {
	ctx := NewContextExtractor()
	ctx.Add("q.sql", []byte("-- header\nSELECT * FROM usrs\n"))

	f := NewVerboseFormatter()
	f.ContextLines = 0
	f.Context = ctx

	var buf bytes.Buffer
	files := []FileIssues{{Path: "q.sql", Issues: []Issue{New(KindUnknownTable, pos(2, 14), "Table 'usrs' not found")}}}
	if err := f.WriteAll(&buf, files); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"q.sql:2:14: unknown-table", "[E001]", "> 2 | SELECT * FROM usrs", strings.Repeat(" ", 6+14) + "^"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	f.PrintSummary(&buf, files)
	if !strings.Contains(buf.String(), "1 issue(s) in 1 file(s) (1 unknown-table)") {
		t.Errorf("unexpected summary %q", buf.String())
	}
	if !strings.Contains(buf.String(), "  [E001] Table not found in schema\n") {
		t.Errorf("summary %q should explain E001", buf.String())
	}
	if strings.Contains(buf.String(), "[E002]") {
		t.Errorf("summary %q lists a code with no issues", buf.String())
	}
	buf.Reset()
	f.PrintSummary(&buf, []FileIssues{{Path: "clean.sql"}})
	if buf.Len() != 0 {
		t.Errorf("expected no summary for a clean run, got %q", buf.String())
	}
}

func TestContextOutOfRange(t *testing.T) {
	ctx := NewContextExtractor()
	ctx.Add("q.sql", []byte("SELECT 1"))
	if _, err := ctx.ExtractContext("q.sql", pos(5, 0), 1); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err := ctx.ExtractContext("/nonexistent/file.sql", pos(1, 0), 1); err == nil {
		t.Fatalf("expected read error")
	}
}
