// Package fileset resolves the files sqlvet reads: schema sources named by
// glob patterns and the check targets found by walking directories.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves glob patterns against an fs.FS and rewrites the discovered
// paths using a join function.
type Resolver struct {
	fsys fs.FS
	join func(name string) string
}

// ErrNoPatterns indicates that Resolve was invoked without any glob patterns.
var ErrNoPatterns = errors.New("fileset: no patterns provided")

// PatternError wraps syntax issues reported while evaluating a glob pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e PatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q: %v", e.Pattern, e.Err)
}

func (e PatternError) Unwrap() error { return e.Err }

// NoMatchError describes which patterns failed to yield any results.
type NoMatchError struct {
	Patterns []string
}

func (e NoMatchError) Error() string {
	return "patterns matched no files: " + strings.Join(e.Patterns, ", ")
}

// NewResolver constructs a Resolver against fsys that returns match names
// unchanged. Useful for tests.
func NewResolver(fsys fs.FS) Resolver {
	return Resolver{
		fsys: fsys,
		join: func(name string) string { return name },
	}
}

// NewOSResolver constructs a Resolver rooted at base that returns absolute OS
// paths for each match.
func NewOSResolver(base string) (Resolver, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return Resolver{}, fmt.Errorf("resolve base %q: %w", base, err)
	}

	info, err := os.Stat(absBase)
	if err != nil {
		return Resolver{}, fmt.Errorf("stat base %q: %w", absBase, err)
	}
	if !info.IsDir() {
		return Resolver{}, fmt.Errorf("base %q is not a directory", absBase)
	}

	return Resolver{
		fsys: os.DirFS(absBase),
		join: func(name string) string {
			if filepath.IsAbs(name) {
				return filepath.Clean(name)
			}
			return filepath.Join(absBase, filepath.FromSlash(name))
		},
	}, nil
}

// Resolve evaluates each glob pattern and returns the matches de-duplicated.
// Patterns keep the order they are given in and the matches of one pattern
// are sorted, so schema migrations apply in the order they are listed.
// Absolute patterns are matched against the OS filesystem.
func (r Resolver) Resolve(patterns []string) ([]string, error) {
	if r.fsys == nil {
		return nil, errors.New("fileset: resolver has no filesystem")
	}
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}

	joinFn := r.join
	if joinFn == nil {
		joinFn = func(name string) string { return name }
	}

	var combined, missing []string
	for _, pattern := range patterns {
		matches, err := r.glob(pattern)
		if err != nil {
			return nil, PatternError{Pattern: pattern, Err: err}
		}
		if len(matches) == 0 {
			missing = append(missing, pattern)
			continue
		}
		for _, match := range matches {
			if filepath.IsAbs(match) {
				combined = append(combined, filepath.Clean(match))
				continue
			}
			combined = append(combined, joinFn(match))
		}
	}

	if len(missing) > 0 {
		return nil, NoMatchError{Patterns: missing}
	}
	return dedupePreserveOrder(combined), nil
}

func (r Resolver) glob(pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return filepath.Glob(pattern)
	}
	return fs.Glob(r.fsys, filepath.ToSlash(filepath.Clean(pattern)))
}

func dedupePreserveOrder(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		result = append(result, path)
	}
	return result
}
