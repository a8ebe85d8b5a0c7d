package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/electwix/sqlvet/internal/source"
)

var ignoreIndex = cmpopts.IgnoreUnexported(Table{})

func columnsOf(t *testing.T, c *Catalog, table string) []Column {
	t.Helper()
	tbl, ok := c.LookupTable(table)
	if !ok {
		t.Fatalf("table %s not found; have %v", table, c.TableNames())
	}
	return tbl.Columns
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	users, err := NewTable("Users", Column{Name: "ID", Type: "integer"}, Column{Name: "email", Type: "text", Nullable: true})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	c, err := New(users)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, name := range []string{"users", "USERS", "public.users", "Public.Users"} {
		if _, ok := c.LookupTable(name); !ok {
			t.Errorf("LookupTable(%q) failed", name)
		}
	}
	if typ, ok := c.LookupColumn("users", "id"); !ok || typ != "integer" {
		t.Errorf("LookupColumn(users, id) = %q, %v", typ, ok)
	}
	if _, ok := c.LookupColumn("users", "missing"); ok {
		t.Errorf("expected missing column lookup to fail")
	}
	if _, ok := c.LookupColumn("ghosts", "id"); ok {
		t.Errorf("expected unknown table lookup to fail")
	}
	if tbl, _ := c.LookupTable("users"); tbl.Name != "Users" {
		t.Errorf("declared casing lost: %q", tbl.Name)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	if _, err := NewTable("t", Column{Name: "a"}, Column{Name: "A"}); err == nil {
		t.Fatalf("expected duplicate column error")
	}
	if _, err := NewTable(" "); err == nil {
		t.Fatalf("expected empty table name error")
	}
	a, _ := NewTable("t")
	b, _ := NewTable("T")
	if _, err := New(a, b); err == nil {
		t.Fatalf("expected duplicate table error")
	}
}

func TestDecodeJSON(t *testing.T) {
	src := `{
  "orders": {"columns": [{"name": "id", "type": "integer", "nullable": false}]},
  "users": {"columns": [{"name": "id", "type": "integer"}, {"name": "email", "type": "text"}]}
}`
	c, err := Decode(strings.NewReader(src), "schema.json", FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff([]string{"orders", "users"}, c.TableNames()); diff != "" {
		t.Fatalf("table order mismatch (-want +got):\n%s", diff)
	}
	want := []Column{{Name: "id", Type: "integer", Nullable: true}, {Name: "email", Type: "text", Nullable: true}}
	if diff := cmp.Diff(want, columnsOf(t, c, "users")); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
	if cols := columnsOf(t, c, "orders"); cols[0].Nullable {
		t.Fatalf("explicit nullable=false ignored")
	}
}

func TestDecodeYAMLKeepsOrder(t *testing.T) {
	src := `zebra:
  columns:
    - name: id
      type: integer
      nullable: false
apple:
  columns:
    - name: name
      type: text
`
	c, err := Decode(strings.NewReader(src), "schema.yaml", FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff([]string{"zebra", "apple"}, c.TableNames()); diff != "" {
		t.Fatalf("table order mismatch (-want +got):\n%s", diff)
	}
	want := []Column{{Name: "id", Type: "integer", Nullable: false}}
	if diff := cmp.Diff(want, columnsOf(t, c, "zebra")); diff != "" {
		t.Fatalf("zebra mismatch (-want +got):\n%s", diff)
	}
}

const ddlSchema = `-- application schema
BEGIN;
CREATE TABLE IF NOT EXISTS public.users (
  id INTEGER PRIMARY KEY,
  email VARCHAR(255) NOT NULL UNIQUE,
  balance NUMERIC(10, 2) DEFAULT 0,
  created_at TIMESTAMP WITH TIME ZONE,
  tags TEXT[],
  CONSTRAINT users_email_key UNIQUE (email)
);
CREATE TABLE orders (
  id BIGINT,
  user_id INTEGER REFERENCES users(id),
  "Total" DOUBLE PRECISION,
  key TEXT,
  PRIMARY KEY (id),
  FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);
CREATE INDEX idx_orders_user ON orders(user_id);
INSERT INTO users VALUES (1, 'a;b');
CREATE TRIGGER trg AFTER INSERT ON orders BEGIN UPDATE users SET balance = 0; END;
CREATE VIEW user_emails AS SELECT u.id AS user_id, email FROM users u;
ALTER TABLE orders ADD COLUMN status TEXT NOT NULL;
ALTER TABLE orders RENAME COLUMN key TO note;
CREATE TABLE tmp (x INT);
DROP TABLE IF EXISTS tmp;
COMMIT;
`

func TestDecodeDDL(t *testing.T) {
	c, err := Decode(strings.NewReader(ddlSchema), "schema.sql", FormatSQL)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff([]string{"users", "orders", "user_emails"}, c.TableNames()); diff != "" {
		t.Fatalf("tables mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		table string
		want  []Column
	}{
		{
			table: "users",
			want: []Column{
				{Name: "id", Type: "INTEGER", Nullable: false},
				{Name: "email", Type: "VARCHAR(255)", Nullable: false},
				{Name: "balance", Type: "NUMERIC(10,2)", Nullable: true},
				{Name: "created_at", Type: "TIMESTAMP WITH TIME ZONE", Nullable: true},
				{Name: "tags", Type: "TEXT[]", Nullable: true},
			},
		},
		{
			table: "orders",
			want: []Column{
				{Name: "id", Type: "BIGINT", Nullable: false},
				{Name: "user_id", Type: "INTEGER", Nullable: true},
				{Name: "Total", Type: "DOUBLE PRECISION", Nullable: true},
				{Name: "note", Type: "TEXT", Nullable: true},
				{Name: "status", Type: "TEXT", Nullable: false},
			},
		},
		{
			table: "user_emails",
			want: []Column{
				{Name: "user_id", Type: "INTEGER", Nullable: false},
				{Name: "email", Type: "VARCHAR(255)", Nullable: false},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, columnsOf(t, c, tt.table)); diff != "" {
				t.Fatalf("columns mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeDDLViewColumnList(t *testing.T) {
	src := "CREATE TABLE t (a INT, b TEXT);\nCREATE VIEW v (x, y) AS SELECT * FROM t;\nCREATE VIEW w AS SELECT count(*) AS n, CAST(a AS TEXT) AS s FROM t;"
	c, err := Decode(strings.NewReader(src), "views.sql", FormatSQL)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []Column{{Name: "x", Type: "INT", Nullable: true}, {Name: "y", Type: "TEXT", Nullable: true}}
	if diff := cmp.Diff(want, columnsOf(t, c, "v")); diff != "" {
		t.Fatalf("v mismatch (-want +got):\n%s", diff)
	}
	want = []Column{{Name: "n", Nullable: true}, {Name: "s", Type: "TEXT", Nullable: true}}
	if diff := cmp.Diff(want, columnsOf(t, c, "w")); diff != "" {
		t.Fatalf("w mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeManifestDSL(t *testing.T) {
	src := `# users
table users {
  id: integer!
  email: varchar(255)!,
  tags: text[]
}

table "Order Items" {
  price: numeric(10, 2)
}
`
	c, err := Decode(strings.NewReader(src), "app.schema", FormatManifest)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []Column{
		{Name: "id", Type: "integer", Nullable: false},
		{Name: "email", Type: "varchar(255)", Nullable: false},
		{Name: "tags", Type: "text[]", Nullable: true},
	}
	if diff := cmp.Diff(want, columnsOf(t, c, "users")); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Column{{Name: "price", Type: "numeric(10,2)", Nullable: true}}, columnsOf(t, c, "order items")); diff != "" {
		t.Fatalf("order items mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		src     string
		wantPos source.Position
		wantMsg string
	}{
		{
			name:    "ddl missing paren",
			format:  FormatSQL,
			src:     "CREATE TABLE users id INTEGER;",
			wantPos: source.Position{Line: 1, Column: 19},
			wantMsg: "expected '('",
		},
		{
			name:    "ddl unterminated string",
			format:  FormatSQL,
			src:     "CREATE TABLE t (a TEXT DEFAULT 'x);",
			wantPos: source.Position{Line: 1, Column: 31},
			wantMsg: "unterminated string literal",
		},
		{
			name:    "ddl alter unknown table",
			format:  FormatSQL,
			src:     "ALTER TABLE ghosts ADD COLUMN x INT;",
			wantPos: source.Position{Line: 1, Column: 12},
			wantMsg: "unknown table ghosts",
		},
		{
			name:    "ddl duplicate column",
			format:  FormatSQL,
			src:     "CREATE TABLE t (\n  a INT,\n  a TEXT\n);",
			wantPos: source.Position{Line: 3, Column: 2},
			wantMsg: "duplicate column a",
		},
		{
			name:    "dsl missing colon",
			format:  FormatManifest,
			src:     "table users {\n  id integer\n}\n",
			wantPos: source.Position{Line: 2, Column: 5},
			wantMsg: "unexpected",
		},
		{
			name:    "dsl missing type",
			format:  FormatManifest,
			src:     "table users {\n  id: !\n}\n",
			wantPos: source.Position{Line: 2, Column: 6},
			wantMsg: "unexpected",
		},
		{
			name:    "yaml not a mapping",
			format:  FormatYAML,
			src:     "- users\n",
			wantPos: source.Position{Line: 1, Column: 0},
			wantMsg: "expected a mapping",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src), "input", tt.format)
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
			if le.Pos != tt.wantPos {
				t.Errorf("position = %v, want %v (%v)", le.Pos, tt.wantPos, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestDecodeJSONSyntaxErrorHasLine(t *testing.T) {
	_, err := Decode(strings.NewReader("{\n  \"users\": nope\n}"), "bad.json", FormatJSON)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if le.Pos.Line != 2 {
		t.Fatalf("expected error on line 2, got %v", le.Pos)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFilesAppliesMigrationsInOrder(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{"users": {"columns": [{"name": "id", "type": "integer"}]}}`)
	migration := writeFile(t, dir, "002_add_age.sql", "ALTER TABLE users ADD age INT NOT NULL;\nALTER TABLE users RENAME TO members;")
	extra := writeFile(t, dir, "extra.schema", "table audit { at: timestamp }")

	c, err := LoadFiles([]string{base, migration, extra})
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if diff := cmp.Diff([]string{"members", "audit"}, c.TableNames()); diff != "" {
		t.Fatalf("tables mismatch (-want +got):\n%s", diff)
	}
	want := []Column{{Name: "id", Type: "integer", Nullable: true}, {Name: "age", Type: "INT", Nullable: false}}
	if diff := cmp.Diff(want, columnsOf(t, c, "members")); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.LookupTable("users"); ok {
		t.Fatalf("renamed table still visible under its old name")
	}
}

func TestLoadFilesErrors(t *testing.T) {
	dir := t.TempDir()
	dup := writeFile(t, dir, "dup.json", `{"users": {"columns": []}}`)
	txt := writeFile(t, dir, "schema.txt", "")

	tests := map[string][]string{
		"no sources":        nil,
		"missing file":      {filepath.Join(dir, "missing.json")},
		"unknown extension": {txt},
		"duplicate table":   {dup, dup},
	}
	for name, paths := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFiles(paths)
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	orig, err := Decode(strings.NewReader(ddlSchema), "schema.sql", FormatSQL)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, orig, format); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			back, err := Decode(&buf, "roundtrip", format)
			if err != nil {
				t.Fatalf("Decode encoded output: %v", err)
			}
			for _, tbl := range orig.Tables() {
				if diff := cmp.Diff(tbl.Columns, columnsOf(t, back, tbl.Name)); diff != "" {
					t.Errorf("%s mismatch (-want +got):\n%s", tbl.Name, diff)
				}
			}
		})
	}
	if err := Encode(&bytes.Buffer{}, orig, FormatSQL); err == nil {
		t.Fatalf("expected error encoding as sql")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"a.json":     FormatJSON,
		"a.YML":      FormatYAML,
		"a.yaml":     FormatYAML,
		"m/001.sql":  FormatSQL,
		"x.ddl":      FormatSQL,
		"app.schema": FormatManifest,
	}
	for path, want := range tests {
		if got, ok := FormatFromPath(path); !ok || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v", path, got, ok)
		}
	}
	if _, ok := FormatFromPath("a.txt"); ok {
		t.Errorf("expected .txt to be rejected")
	}
	if f, err := ParseFormat("YML"); err != nil || f != FormatYAML {
		t.Errorf("ParseFormat(YML) = %q, %v", f, err)
	}
}

func TestCatalogSnapshotIsIndependent(t *testing.T) {
	c, err := Decode(strings.NewReader(ddlSchema), "schema.sql", FormatSQL)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tables := c.Tables()
	tables[0] = nil
	if diff := cmp.Diff(c.Tables()[0], columnsTable(t, c, "users"), ignoreIndex); diff != "" {
		t.Fatalf("Tables() exposed internal slice:\n%s", diff)
	}
}

func columnsTable(t *testing.T, c *Catalog, name string) *Table {
	t.Helper()
	tbl, ok := c.LookupTable(name)
	if !ok {
		t.Fatalf("table %s not found", name)
	}
	return tbl
}
