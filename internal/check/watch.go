package check

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/electwix/sqlvet/internal/catalog"
	"github.com/electwix/sqlvet/internal/diagnostics"
	"github.com/electwix/sqlvet/internal/fileset"
)

// DefaultDebounce is how long a file must stay quiet before Watch checks it.
const DefaultDebounce = 150 * time.Millisecond

// fullRun keys runs over every target, after startup or a catalog reload.
const fullRun = ""

// WatchOptions configures Watch.
type WatchOptions struct {
	// Target is the file or directory to check.
	Target string
	// Schemas are the catalog sources. A change to one reloads the catalog
	// and checks every target again.
	Schemas  []string
	Debounce time.Duration
	// Report receives every run that was not superseded. Calls are
	// serialized.
	Report func(Run)
}

// Run is the result of one check started by Watch.
type Run struct {
	// Generation increases with every run Watch starts.
	Generation uint64
	// Full is set when every target was checked.
	Full  bool
	Files []diagnostics.FileIssues
}

// Watch checks the target once, then again whenever a file under it or a
// schema source changes, until ctx is done. Changes are debounced per file.
// A run whose file was changed again, or that a later full run covers, is
// dropped instead of reported. A schema reload that fails keeps the previous
// catalog.
func (c *Checker) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Report == nil {
		return errors.New("check: watch needs a Report function")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	target, err := filepath.Abs(opts.Target)
	if err != nil {
		return &FileError{Path: opts.Target, Err: err}
	}
	info, err := os.Stat(target)
	if err != nil {
		return &FileError{Path: opts.Target, Err: err}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	w := &watchState{
		c:         c,
		opts:      opts,
		target:    target,
		dirTarget: info.IsDir(),
		schemas:   make(map[string]struct{}, len(opts.Schemas)),
		latest:    make(map[string]uint64),
		timers:    make(map[string]*time.Timer),
		fired:     make(chan string),
		done:      make(chan struct{}),
	}
	dirs, err := fileset.Dirs(target)
	if err != nil {
		return &FileError{Path: opts.Target, Err: err}
	}
	for _, schema := range opts.Schemas {
		abs, err := filepath.Abs(schema)
		if err != nil {
			return err
		}
		w.schemas[abs] = struct{}{}
		dirs = append(dirs, filepath.Dir(abs))
	}
	watched := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		if _, ok := watched[dir]; ok {
			continue
		}
		watched[dir] = struct{}{}
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	if err := w.run(ctx, fullRun, w.begin(fullRun), false); err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(watcher, event)
		case key := <-w.fired:
			gen := w.begin(key)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := w.run(ctx, key, gen, key == fullRun); err != nil && ctx.Err() == nil {
					c.logger.Warn("watch check failed", "err", err)
				}
			}()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watcher error", "err", err)
		}
	}
}

// watchState is the bookkeeping of one Watch call.
type watchState struct {
	c         *Checker
	opts      WatchOptions
	target    string
	dirTarget bool
	schemas   map[string]struct{}

	mu         sync.Mutex
	generation uint64
	lastFull   uint64
	latest     map[string]uint64
	timers     map[string]*time.Timer

	reportMu sync.Mutex
	fired    chan string
	done     chan struct{}
}

func (w *watchState) handle(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	name := filepath.Clean(event.Name)

	if _, ok := w.schemas[name]; ok {
		w.c.logger.Debug("schema changed", "path", name)
		w.schedule(fullRun)
		return
	}
	if !w.covers(name) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if !fileset.Skipped(filepath.Base(name)) {
				w.addDirs(watcher, name)
			}
			return
		}
	}
	if w.dirTarget && !w.c.wanted(name) {
		return
	}
	w.schedule(name)
}

// covers reports whether path is the target or lies below the target
// outside skipped directories.
func (w *watchState) covers(path string) bool {
	if !w.dirTarget {
		return path == w.target
	}
	rel, err := filepath.Rel(w.target, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range parts[:len(parts)-1] {
		if fileset.Skipped(part) {
			return false
		}
	}
	return true
}

func (w *watchState) addDirs(watcher *fsnotify.Watcher, dir string) {
	dirs, err := fileset.Dirs(dir)
	if err != nil {
		w.c.logger.Debug("watch new directory", "path", dir, "err", err)
		return
	}
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			w.c.logger.Warn("watch new directory", "path", d, "err", err)
		}
	}
}

// schedule (re)starts the debounce timer of key.
func (w *watchState) schedule(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[key]; ok {
		t.Stop()
	}
	w.timers[key] = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case w.fired <- key:
		case <-w.done:
		}
	})
}

func (w *watchState) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.timers {
		t.Stop()
	}
	close(w.done)
}

// begin assigns the next generation to a run of key.
func (w *watchState) begin(key string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generation++
	w.latest[key] = w.generation
	return w.generation
}

// covered marks every run older than the full run gen as superseded.
func (w *watchState) covered(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastFull = max(w.lastFull, gen)
}

func (w *watchState) superseded(key string, gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest[key] != gen || gen < w.lastFull
}

func (w *watchState) run(ctx context.Context, key string, gen uint64, reload bool) error {
	if reload && !w.reload(ctx) {
		return nil
	}

	files := []string{key}
	if key == fullRun {
		targets, err := w.c.Targets(w.target)
		if err != nil {
			return err
		}
		files = targets
		w.covered(gen)
	}
	results, err := w.c.CheckPaths(ctx, files)
	if err != nil {
		if key != fullRun && errors.Is(err, os.ErrNotExist) {
			w.c.logger.Debug("changed file is gone", "path", key)
			return nil
		}
		return err
	}

	w.reportMu.Lock()
	defer w.reportMu.Unlock()
	if w.superseded(key, gen) {
		w.c.logger.Debug("dropping superseded run", "generation", gen, "path", key)
		return nil
	}
	hits, misses := w.c.CacheStats()
	w.c.logger.Debug("run finished", "generation", gen, "files", len(results), "cache_hits", hits, "cache_misses", misses)
	w.opts.Report(Run{Generation: gen, Full: key == fullRun, Files: results})
	return nil
}

// reload loads the schema sources into a new catalog and installs it. On
// failure the previous catalog stays in use.
func (w *watchState) reload(ctx context.Context) bool {
	cat, err := catalog.LoadFiles(w.opts.Schemas)
	if err != nil {
		w.c.logger.Error("schema reload failed, keeping previous catalog", "err", err)
		return false
	}
	if hook := w.c.opts.Hooks.AfterReload; hook != nil {
		if err := hook(ctx, cat); err != nil {
			w.c.logger.Error("schema reload rejected, keeping previous catalog", "err", err)
			return false
		}
	}
	w.c.SetCatalog(cat)
	w.c.logger.Debug("catalog reloaded", "tables", cat.Len())
	return true
}
