package fileset

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

func TestResolverResolveSuccess(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"schemas/books.sql":        &fstest.MapFile{Mode: fs.ModePerm},
		"schemas/users.sql":        &fstest.MapFile{Mode: fs.ModePerm},
		"queries/find_user.sql":    &fstest.MapFile{Mode: fs.ModePerm},
		"queries/list_users.sql":   &fstest.MapFile{Mode: fs.ModePerm},
		"queries/archive.sql":      &fstest.MapFile{Mode: fs.ModePerm},
		"queries/legacy/query.sql": &fstest.MapFile{Mode: fs.ModePerm},
	}

	resolver := NewResolver(fsys)
	patterns := []string{
		"schemas/*.sql",
		"queries/*.sql",
		"queries/find_user.sql",
	}

	paths, err := resolver.Resolve(patterns)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	// Pattern order is kept; matches of one pattern are sorted.
	expected := []string{
		"schemas/books.sql",
		"schemas/users.sql",
		"queries/archive.sql",
		"queries/find_user.sql",
		"queries/list_users.sql",
	}

	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d (%v)", len(expected), len(paths), paths)
	}

	for i, want := range expected {
		if paths[i] != want {
			t.Fatalf("unexpected path at %d: want %q, got %q", i, want, paths[i])
		}
	}
}

func TestResolverResolveNoMatches(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"queries/find_user.sql": &fstest.MapFile{Mode: fs.ModePerm},
	}

	resolver := NewResolver(fsys)
	patterns := []string{
		"schemas/*.sql",
		"queries/nope.sql",
	}

	_, err := resolver.Resolve(patterns)
	if err == nil {
		t.Fatal("expected error for missing patterns")
	}

	var noMatchErr NoMatchError
	if !errors.As(err, &noMatchErr) {
		t.Fatalf("expected NoMatchError, got %T: %v", err, err)
	}

	if len(noMatchErr.Patterns) != 2 {
		t.Fatalf("unexpected patterns length: %v", noMatchErr.Patterns)
	}

	if noMatchErr.Patterns[0] != "schemas/*.sql" || noMatchErr.Patterns[1] != "queries/nope.sql" {
		t.Fatalf("unexpected missing patterns: %v", noMatchErr.Patterns)
	}
}

func TestResolverResolveInvalidPattern(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(fstest.MapFS{})

	_, err := resolver.Resolve([]string{"["})
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}

	var patternErr PatternError
	if !errors.As(err, &patternErr) {
		t.Fatalf("expected PatternError, got %T: %v", err, err)
	}

	if patternErr.Pattern != "[" {
		t.Fatalf("unexpected pattern on error: %q", patternErr.Pattern)
	}
}

func TestResolverResolveNoPatterns(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(fstest.MapFS{})

	_, err := resolver.Resolve(nil)
	if !errors.Is(err, ErrNoPatterns) {
		t.Fatalf("expected ErrNoPatterns, got %v", err)
	}
}

func TestOSResolverReturnsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "schema", "001_init.sql"), "CREATE TABLE a (id int);")
	writeTestFile(t, filepath.Join(dir, "schema", "002_more.sql"), "CREATE TABLE b (id int);")

	resolver, err := NewOSResolver(dir)
	if err != nil {
		t.Fatalf("NewOSResolver: %v", err)
	}
	paths, err := resolver.Resolve([]string{"schema/*.sql", filepath.Join(dir, "schema", "001_init.sql")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{
		filepath.Join(dir, "schema", "001_init.sql"),
		filepath.Join(dir, "schema", "002_more.sql"),
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewOSResolver(filepath.Join(dir, "schema", "001_init.sql")); err == nil {
		t.Fatalf("expected error for a file base")
	}
}
