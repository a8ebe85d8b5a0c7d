package cli

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const usersSchema = `{"users": {"columns": [
  {"name": "id", "type": "integer", "nullable": false},
  {"name": "name", "type": "text"}
]}}`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := Run(context.Background(), args, stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func TestCheckJSONSingleFile(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT id FROM usrs")

	code, stdout, stderr := runCLI(t, "check", query, "--json-output", "--schema", schema)
	if code != ExitOK {
		t.Fatalf("exit code = %d, want 0; stderr=%q", code, stderr)
	}
	if stderr != "" {
		t.Fatalf("unexpected stderr output: %q", stderr)
	}
	want := `{"errors":[{"line":1,"column":15,"message":"Table 'usrs' not found","suggestion":"users"}]}` + "\n"
	if stdout != want {
		t.Fatalf("stdout = %q, want %q", stdout, want)
	}
}

func TestCheckCleanRun(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	query := writeFile(t, filepath.Join(dir, "app.py"), "q = \"SELECT id, name FROM users WHERE id = 1\"\n")

	code, stdout, stderr := runCLI(t, "check", query, "--json", "-s", schema, "--fail-on-issues")
	if code != ExitOK || stderr != "" {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if stdout != "{\"errors\":[]}\n" {
		t.Fatalf("stdout = %q, want an empty errors document", stdout)
	}
}

func TestCheckFailOnIssues(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT nme FROM users")

	code, stdout, stderr := runCLI(t, "check", query, "--json", "--schema", schema, "--fail-on-issues")
	if code != ExitIssues {
		t.Fatalf("exit code = %d, want %d", code, ExitIssues)
	}
	if stderr != "" {
		t.Fatalf("unexpected stderr output: %q", stderr)
	}
	if !strings.Contains(stdout, `"message":"Column 'nme' not found"`) {
		t.Fatalf("stdout %q missing the issue", stdout)
	}
}

func TestCheckDirectory(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "db", "schema.json"), usersSchema)
	src := filepath.Join(dir, "src")
	bad := writeFile(t, filepath.Join(src, "bad.sql"), "SELECT id FROM usrs;")
	writeFile(t, filepath.Join(src, "good.sql"), "SELECT id FROM users;")
	writeFile(t, filepath.Join(src, "vendor", "skip.sql"), "SELECT id FROM nowhere;")

	code, stdout, stderr := runCLI(t, "check", src, "--json", "--schema", schema)
	if code != ExitOK {
		t.Fatalf("exit code = %d; stderr=%q", code, stderr)
	}
	if !strings.Contains(stdout, `"file":"`+bad+`"`) {
		t.Fatalf("stdout %q should name %s", stdout, bad)
	}
	if strings.Count(stdout, `"line"`) != 1 {
		t.Fatalf("expected exactly one issue, got %q", stdout)
	}
}

func TestCheckText(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT id FROM usrs")

	code, stdout, _ := runCLI(t, "check", query, "--schema", schema, "--no-color")
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	want := query + `:1:15: unknown-table: Table 'usrs' not found (did you mean "users"?)`
	if !strings.Contains(stdout, want) {
		t.Fatalf("stdout %q missing %q", stdout, want)
	}
	if !strings.Contains(stdout, "1 issue(s) in 1 file(s)") {
		t.Fatalf("stdout %q missing summary", stdout)
	}
}

func TestCheckTextContext(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT id FROM usrs")

	code, stdout, _ := runCLI(t, "check", query, "--schema", schema, "--no-color", "--context")
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"[E001]", "> 1 | SELECT id FROM usrs", "[E001] Table not found in schema"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout %q missing %q", stdout, want)
		}
	}
}

func TestCheckConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	configPath := writeFile(t, filepath.Join(dir, "sqlvet.toml"), "schemas = [\"schema.json\"]\n\n[suggest]\nmax_distance = 0\n")
	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT id FROM usrs")

	code, stdout, stderr := runCLI(t, "check", query, "--json", "--config", configPath)
	if code != ExitOK {
		t.Fatalf("exit code = %d; stderr=%q", code, stderr)
	}
	if !strings.Contains(stdout, `"suggestion":null`) {
		t.Fatalf("max_distance = 0 should disable suggestions, got %q", stdout)
	}

	code, stdout, _ = runCLI(t, "check", query, "--json", "--config", configPath, "--max-distance", "2")
	if code != ExitOK || !strings.Contains(stdout, `"suggestion":"users"`) {
		t.Fatalf("--max-distance should override the file, got %d %q", code, stdout)
	}
}

func TestCheckUnknownConfigKeyWarns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	configPath := writeFile(t, filepath.Join(dir, "sqlvet.toml"), "schemas = [\"schema.json\"]\nretries = 3\n")
	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT id FROM users")

	code, stdout, stderr := runCLI(t, "check", query, "--json", "--config", configPath)
	if code != ExitOK || stdout != "{\"errors\":[]}\n" {
		t.Fatalf("exit code = %d, stdout = %q", code, stdout)
	}
	if !strings.Contains(stderr, "retries") {
		t.Fatalf("stderr %q should warn about the unknown key", stderr)
	}
}

func TestCheckFailures(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT id FROM users")
	strictConfig := writeFile(t, filepath.Join(dir, "strict.toml"), "schemas = [\"schema.json\"]\nretries = 3\n")
	broken := writeFile(t, filepath.Join(dir, "broken.json"), `{"users": [`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing schema", []string{"check", query, "--schema", filepath.Join(dir, "missing.json")}, "missing.json"},
		{"malformed schema", []string{"check", query, "--schema", broken}, "broken.json"},
		{"missing target", []string{"check", filepath.Join(dir, "nope.sql"), "--schema", schema}, "nope.sql"},
		{"unknown flag", []string{"check", query, "--bogus"}, "bogus"},
		{"missing argument", []string{"check"}, "arg"},
		{"bad kind", []string{"check", query, "--schema", schema, "--kind", "cobol"}, "cobol"},
		{"negative distance", []string{"check", query, "--schema", schema, "--max-distance", "-1"}, "max-distance"},
		{"strict config", []string{"check", query, "--config", strictConfig, "--strict-config"}, "unknown configuration keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, append(tt.args, "--json")...)
			if code != ExitFailure {
				t.Fatalf("exit code = %d, want %d", code, ExitFailure)
			}
			if stdout != "" {
				t.Fatalf("stdout should stay empty on failure, got %q", stdout)
			}
			if !strings.HasPrefix(stderr, "sqlvet: ") || !strings.Contains(stderr, tt.want) {
				t.Fatalf("stderr %q should mention %q", stderr, tt.want)
			}
		})
	}
}

func TestVerboseLogsRunID(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT id FROM users")

	code, _, stderr := runCLI(t, "check", query, "--json", "--schema", schema, "-v")
	if code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "run_id=") || !strings.Contains(stderr, "catalog loaded") {
		t.Fatalf("stderr %q should carry debug logs with a run_id", stderr)
	}
}

func TestIntrospectSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE customers (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_ = db.Close()

	manifest := filepath.Join(dir, "schema.yaml")
	code, stdout, stderr := runCLI(t, "introspect", "sqlite://"+dbPath, "--out", manifest)
	if code != ExitOK {
		t.Fatalf("exit code = %d; stderr=%q", code, stderr)
	}
	if stdout != "" {
		t.Fatalf("stdout should be empty with --out, got %q", stdout)
	}

	query := writeFile(t, filepath.Join(dir, "q.sql"), "SELECT emial FROM customers")
	code, stdout, _ = runCLI(t, "check", query, "--json", "--schema", manifest)
	if code != ExitOK || !strings.Contains(stdout, `"suggestion":"email"`) {
		t.Fatalf("check against the introspected manifest: %d %q", code, stdout)
	}
}

func TestIntrospectRejectsUnknownDSN(t *testing.T) {
	code, stdout, stderr := runCLI(t, "introspect", "redis://localhost")
	if code != ExitFailure || stdout != "" || !strings.Contains(stderr, "unsupported connection string") {
		t.Fatalf("got %d %q %q", code, stdout, stderr)
	}
}

func TestIntrospectFormat(t *testing.T) {
	tests := []struct {
		opts    IntrospectOptions
		want    string
		wantErr bool
	}{
		{IntrospectOptions{}, "json", false},
		{IntrospectOptions{Out: "schema.yml"}, "yaml", false},
		{IntrospectOptions{Format: "yaml", Out: "schema.json"}, "yaml", false},
		{IntrospectOptions{Format: "sql"}, "", true},
		{IntrospectOptions{Format: "xml"}, "", true},
	}
	for _, tt := range tests {
		got, err := manifestFormat(&tt.opts)
		if (err != nil) != tt.wantErr {
			t.Fatalf("manifestFormat(%+v) error = %v", tt.opts, err)
		}
		if string(got) != tt.want {
			t.Fatalf("manifestFormat(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWatchStopsWhenOutputFails(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	writeFile(t, filepath.Join(dir, "src", "q.sql"), "SELECT id FROM usrs")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stderr := &bytes.Buffer{}
	code := Run(ctx, []string{"watch", filepath.Join(dir, "src"), "--schema", schema, "--json"}, failingWriter{}, stderr)
	if ctx.Err() != nil {
		t.Fatalf("watch kept running after its output failed")
	}
	if code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}
	if !strings.Contains(stderr.String(), "write run 1") || !strings.Contains(stderr.String(), "broken pipe") {
		t.Fatalf("stderr %q should report the write failure", stderr.String())
	}
}

func TestWatchPrintsInitialRun(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, filepath.Join(dir, "schema.json"), usersSchema)
	writeFile(t, filepath.Join(dir, "src", "q.sql"), "SELECT id FROM usrs")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := Run(ctx, []string{"watch", filepath.Join(dir, "src"), "--schema", schema, "--no-color"}, stdout, stderr)
	if code != ExitOK {
		t.Fatalf("exit code = %d; stderr=%q", code, stderr)
	}
	for _, want := range []string{"# run 1: 1 issue(s) in 1 of 1 file(s)", "unknown-table: Table 'usrs' not found"} {
		if !strings.Contains(stdout.String(), want) {
			t.Fatalf("stdout %q missing %q", stdout, want)
		}
	}
}
