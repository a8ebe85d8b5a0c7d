// Package config loads and validates the sqlvet configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/electwix/sqlvet/internal/fileset"
	"github.com/electwix/sqlvet/internal/suggest"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "sqlvet.toml"

// DefaultSchema is the schema manifest used when nothing else is configured.
const DefaultSchema = "schema.json"

const (
	defaultWorkers  = 4
	defaultDebounce = 150 * time.Millisecond
)

// ErrUnknownKeys is wrapped by the error returned for unknown keys in strict
// mode.
var ErrUnknownKeys = errors.New("unknown configuration keys")

// Error reports an unreadable or invalid configuration file. Line and Column
// are set for TOML syntax errors.
type Error struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// SuggestConfig tunes "did you mean" suggestions.
type SuggestConfig struct {
	MaxDistance *int `toml:"max_distance"`
}

// ExtractConfig tunes how SQL is found in host-language files.
type ExtractConfig struct {
	Markers   []string `toml:"markers"`
	Heuristic *bool    `toml:"heuristic"`
}

// CheckConfig tunes directory checks and watch mode.
type CheckConfig struct {
	Workers    int `toml:"workers"`
	DebounceMS int `toml:"debounce_ms"`
}

// Config mirrors the sqlvet.toml schema.
type Config struct {
	Schemas []string      `toml:"schemas"`
	Suggest SuggestConfig `toml:"suggest"`
	Extract ExtractConfig `toml:"extract"`
	Check   CheckConfig   `toml:"check"`
}

// Plan is the resolved configuration used by the rest of the program.
type Plan struct {
	// Path is the configuration file the plan was loaded from, or "" for
	// defaults.
	Path string
	// Schemas are the schema sources in load order, as absolute paths.
	Schemas     []string
	MaxDistance int
	Markers     []string
	Heuristic   bool
	Workers     int
	Debounce    time.Duration
}

// Default returns the plan used without a configuration file.
func Default() Plan {
	return Plan{
		MaxDistance: suggest.DefaultMaxDistance,
		Markers:     []string{"sql"},
		Heuristic:   true,
		Workers:     defaultWorkers,
		Debounce:    defaultDebounce,
	}
}

// LoadOptions tunes config loading behavior.
type LoadOptions struct {
	// Strict turns unknown keys into an error.
	Strict bool
	// Resolver expands schema patterns; defaults to one rooted at the
	// directory of the configuration file.
	Resolver *fileset.Resolver
}

// Result wraps a loaded plan alongside any non-fatal warnings.
type Result struct {
	Plan     Plan
	Warnings []string
}

// Discover loads explicit when it is set. Otherwise it loads FileName from
// dir if present and falls back to Default.
func Discover(dir, explicit string, opts LoadOptions) (Result, error) {
	if explicit != "" {
		return Load(explicit, opts)
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Plan: Default()}, nil
		}
		return Result{}, &Error{Path: path, Err: err}
	}
	return Load(path, opts)
}

// Load reads, validates, and resolves a sqlvet configuration file.
func Load(path string, opts LoadOptions) (Result, error) {
	var res Result

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return res, &Error{Path: path, Err: err}
	}

	cfg, unknown, err := decode(data)
	if err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			line, column := decodeErr.Position()
			return res, &Error{Path: path, Line: line, Column: column, Err: err}
		}
		return res, &Error{Path: path, Err: err}
	}
	if len(unknown) > 0 {
		err := fmt.Errorf("%w: %s", ErrUnknownKeys, strings.Join(unknown, ", "))
		if opts.Strict {
			return res, &Error{Path: path, Err: err}
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", path, err))
	}

	plan, err := resolve(path, cfg, opts)
	if err != nil {
		return res, &Error{Path: path, Err: err}
	}
	res.Plan = plan
	return res, nil
}

// decode unmarshals data and lists the keys that match no field, sorted and
// dotted ("check.retries").
func decode(data []byte) (Config, []string, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err := dec.Decode(&cfg)
	if err == nil {
		return cfg, nil, nil
	}

	var strict *toml.StrictMissingError
	if !errors.As(err, &strict) {
		return Config{}, nil, err
	}
	unknown := make([]string, 0, len(strict.Errors))
	for _, e := range strict.Errors {
		unknown = append(unknown, strings.Join(e.Key(), "."))
	}
	slices.Sort(unknown)
	unknown = slices.Compact(unknown)

	cfg = Config{}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, nil, err
	}
	return cfg, unknown, nil
}

func resolve(path string, cfg Config, opts LoadOptions) (Plan, error) {
	plan := Default()
	abs, err := filepath.Abs(path)
	if err != nil {
		return plan, fmt.Errorf("resolve config path: %w", err)
	}
	plan.Path = abs

	if cfg.Suggest.MaxDistance != nil {
		if *cfg.Suggest.MaxDistance < 0 {
			return plan, fmt.Errorf("suggest.max_distance must not be negative, got %d", *cfg.Suggest.MaxDistance)
		}
		plan.MaxDistance = *cfg.Suggest.MaxDistance
	}

	if cfg.Extract.Markers != nil {
		for _, marker := range cfg.Extract.Markers {
			if strings.TrimSpace(marker) == "" {
				return plan, errors.New("extract.markers must not contain empty entries")
			}
		}
		plan.Markers = slices.Clone(cfg.Extract.Markers)
	}
	if cfg.Extract.Heuristic != nil {
		plan.Heuristic = *cfg.Extract.Heuristic
	}

	switch {
	case cfg.Check.Workers < 0:
		return plan, fmt.Errorf("check.workers must not be negative, got %d", cfg.Check.Workers)
	case cfg.Check.Workers > 0:
		plan.Workers = cfg.Check.Workers
	}
	switch {
	case cfg.Check.DebounceMS < 0:
		return plan, fmt.Errorf("check.debounce_ms must not be negative, got %d", cfg.Check.DebounceMS)
	case cfg.Check.DebounceMS > 0:
		plan.Debounce = time.Duration(cfg.Check.DebounceMS) * time.Millisecond
	}

	if len(cfg.Schemas) == 0 {
		return plan, nil
	}
	var resolver fileset.Resolver
	if opts.Resolver != nil {
		resolver = *opts.Resolver
	} else {
		resolver, err = fileset.NewOSResolver(filepath.Dir(abs))
		if err != nil {
			return plan, err
		}
	}
	plan.Schemas, err = resolvePatterns(resolver, "schemas", cfg.Schemas)
	if err != nil {
		return plan, err
	}
	return plan, nil
}

func resolvePatterns(resolver fileset.Resolver, field string, patterns []string) ([]string, error) {
	paths, err := resolver.Resolve(patterns)
	if err != nil {
		var noMatchErr fileset.NoMatchError
		if errors.As(err, &noMatchErr) {
			return nil, fmt.Errorf("%s patterns matched no files: %s", field, strings.Join(noMatchErr.Patterns, ", "))
		}

		var patternErr fileset.PatternError
		if errors.As(err, &patternErr) {
			return nil, fmt.Errorf("%s: invalid glob pattern %q: %w", field, patternErr.Pattern, patternErr.Err)
		}

		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return paths, nil
}
