// Package check runs extraction, parsing and validation over files.
//
// A Checker shares one read-only catalog between concurrent file checks.
// Each file is checked synchronously with its own trees and issue list;
// CheckPaths fans out over files with a bounded worker group and returns the
// results in input order. Watch re-checks files as they change.
package check

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/electwix/sqlvet/internal/cache"
	"github.com/electwix/sqlvet/internal/catalog"
	"github.com/electwix/sqlvet/internal/diagnostics"
	"github.com/electwix/sqlvet/internal/extract"
	"github.com/electwix/sqlvet/internal/fileset"
	"github.com/electwix/sqlvet/internal/query/ast"
	"github.com/electwix/sqlvet/internal/query/parser"
	"github.com/electwix/sqlvet/internal/query/validator"
)

const (
	defaultWorkers   = 4
	defaultCacheSize = 4096
)

// Options configures a Checker.
type Options struct {
	Validator validator.Options
	Extract   extract.Options
	// Kind forces how files are scanned; KindNone infers it from the file
	// extension.
	Kind extract.Kind
	// Workers bounds the files checked at once by CheckPaths.
	Workers int
	// CacheSize bounds the parse trees kept between runs. Zero selects the
	// default; negative disables the cache.
	CacheSize int
	Logger    *slog.Logger
	Hooks     Hooks
}

// FileError reports a check target that could not be read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("check %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Checker validates files against a catalog. It is safe for concurrent use;
// SetCatalog swaps the catalog for checks started afterwards.
type Checker struct {
	opts      Options
	logger    *slog.Logger
	trees     *cache.Memory[ast.Stmt]
	validator atomic.Pointer[validator.Validator]
}

// New creates a checker for cat.
func New(cat *catalog.Catalog, opts Options) *Checker {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Checker{opts: opts, logger: logger}
	switch {
	case opts.CacheSize == 0:
		c.trees = cache.NewMemory[ast.Stmt](defaultCacheSize)
	case opts.CacheSize > 0:
		c.trees = cache.NewMemory[ast.Stmt](opts.CacheSize)
	}
	c.SetCatalog(cat)
	return c
}

// SetCatalog replaces the catalog. Checks already running keep the catalog
// they started with.
func (c *Checker) SetCatalog(cat *catalog.Catalog) {
	c.validator.Store(validator.New(cat, c.opts.Validator))
}

// Kind returns how path is scanned.
func (c *Checker) Kind(path string) extract.Kind {
	if c.opts.Kind != extract.KindNone {
		return c.opts.Kind
	}
	return extract.KindFromPath(path)
}

// CheckSource returns the issues of src, read from path, ordered by
// position.
func (c *Checker) CheckSource(path string, src []byte) []diagnostics.Issue {
	return c.checkSource(c.validator.Load(), path, src)
}

func (c *Checker) checkSource(v *validator.Validator, path string, src []byte) []diagnostics.Issue {
	issues := diagnostics.NewCollection()
	statements := 0
	for stmt := range extract.Extract(path, src, c.Kind(path), c.opts.Extract) {
		statements++
		for _, issue := range v.Validate(stmt, c.parse(stmt)) {
			issues.Add(issue)
		}
	}
	c.logger.Debug("checked file", "path", path, "statements", statements, "issues", issues.Len())
	return issues.Sorted()
}

// parse returns the tree of stmt, reusing the tree of an identical statement
// text when one is cached.
func (c *Checker) parse(stmt extract.Statement) ast.Stmt {
	if c.trees == nil {
		return parser.Parse(stmt)
	}
	key := cache.ComputeKey(stmt.Text)
	if tree, ok := c.trees.Get(key); ok {
		return tree
	}
	tree := parser.Parse(stmt)
	c.trees.Set(key, tree)
	return tree
}

// CacheStats returns the parse cache hit and miss counts.
func (c *Checker) CacheStats() (hits, misses uint64) {
	if c.trees == nil {
		return 0, 0
	}
	return c.trees.Stats()
}

// CheckFile reads and checks one file.
func (c *Checker) CheckFile(ctx context.Context, path string) (diagnostics.FileIssues, error) {
	return c.checkFile(ctx, c.validator.Load(), path)
}

func (c *Checker) checkFile(ctx context.Context, v *validator.Validator, path string) (diagnostics.FileIssues, error) {
	result := diagnostics.FileIssues{Path: path}
	if c.opts.Hooks.BeforeFile != nil {
		if err := c.opts.Hooks.BeforeFile(ctx, path); err != nil {
			return result, err
		}
	}
	src, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return result, &FileError{Path: path, Err: err}
	}
	result.Issues = c.checkSource(v, path, src)
	if c.opts.Hooks.AfterFile != nil {
		if err := c.opts.Hooks.AfterFile(ctx, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// CheckPaths checks paths concurrently and returns their results in the
// order of paths. The first error cancels the remaining checks.
func (c *Checker) CheckPaths(ctx context.Context, paths []string) ([]diagnostics.FileIssues, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	v := c.validator.Load()
	results := make([]diagnostics.FileIssues, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(c.opts.Workers, len(paths)))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := c.checkFile(gctx, v, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Targets returns the files to check for target: target itself when it is a
// file, otherwise the files below it with a known kind. A forced kind keeps
// only the files of that kind.
func (c *Checker) Targets(target string) ([]string, error) {
	files, err := fileset.Walk(target, c.wanted)
	if err != nil {
		return nil, &FileError{Path: target, Err: err}
	}
	return files, nil
}

// wanted reports whether a file found by walking a directory is checked.
func (c *Checker) wanted(path string) bool {
	kind := extract.KindFromPath(path)
	if kind == extract.KindNone {
		return false
	}
	return c.opts.Kind == extract.KindNone || c.opts.Kind == kind
}
