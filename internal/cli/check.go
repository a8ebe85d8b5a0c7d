package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/electwix/sqlvet/internal/catalog"
	"github.com/electwix/sqlvet/internal/check"
	"github.com/electwix/sqlvet/internal/diagnostics"
	"github.com/electwix/sqlvet/internal/extract"
	"github.com/electwix/sqlvet/internal/query/validator"
)

func newCheckCmd(global *Options) *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check TARGET",
		Short: "Check a file or directory once",
		Long: `Check the SQL of a file, or of every .sql, .py and .go file below a
directory, and print the issues found.

Exit status is 0 when the check ran, 1 with --fail-on-issues when issues
were found and 2 when the check could not run.`,
		Example: `  # JSON for editor integrations
  sqlvet check app/queries.py --json-output

  # Several schema sources, applied in order
  sqlvet check . --schema schema/001_init.sql --schema schema/002_orders.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, global, opts, args[0])
		},
	}
	opts.register(cmd.Flags())
	return cmd
}

// session is what check and watch share once flags and configuration are
// resolved.
type session struct {
	settings settings
	checker  *check.Checker
	logger   *slog.Logger
}

func newSession(cmd *cobra.Command, global *Options, opts *CheckOptions, hooks check.Hooks) (*session, error) {
	logger := loggerFrom(cmd)
	s, err := resolve(cmd, global, opts)
	if err != nil {
		return nil, err
	}
	for _, warning := range s.warnings {
		logger.Warn(warning)
	}

	cat, err := catalog.LoadFiles(s.plan.Schemas)
	if err != nil {
		return nil, err
	}
	logger.Debug("catalog loaded", "schemas", s.plan.Schemas, "tables", cat.Len())

	checker := check.New(cat, check.Options{
		Validator: validator.Options{MaxDistance: s.plan.MaxDistance},
		Extract:   extract.Options{Markers: s.plan.Markers, Heuristic: s.plan.Heuristic},
		Kind:      s.kind,
		Workers:   s.plan.Workers,
		Logger:    logger,
		Hooks:     loggingHooks(logger).Chain(hooks),
	})
	return &session{settings: s, checker: checker, logger: logger}, nil
}

// loggingHooks traces a run at debug level.
func loggingHooks(logger *slog.Logger) check.Hooks {
	return check.Hooks{
		BeforeFile: func(_ context.Context, path string) error {
			logger.Debug("checking file", "path", path)
			return nil
		},
		AfterReload: func(_ context.Context, cat *catalog.Catalog) error {
			logger.Info("catalog reloaded", "tables", cat.Len())
			return nil
		},
	}
}

func runCheck(cmd *cobra.Command, global *Options, opts *CheckOptions, target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return &check.FileError{Path: target, Err: err}
	}
	sess, err := newSession(cmd, global, opts, check.Hooks{})
	if err != nil {
		return err
	}

	files, err := sess.checker.Targets(target)
	if err != nil {
		return err
	}
	results, err := sess.checker.CheckPaths(cmd.Context(), files)
	if err != nil {
		return err
	}

	if err := writeResults(cmd.OutOrStdout(), opts, results, info.IsDir()); err != nil {
		return err
	}
	if opts.FailOnIssues && diagnostics.Summarize(results).Total > 0 {
		return errIssuesFound
	}
	return nil
}

// writeResults prints one JSON document or the text lines of results. A
// single-file JSON document carries no "file" fields.
func writeResults(w io.Writer, opts *CheckOptions, results []diagnostics.FileIssues, multi bool) error {
	if opts.JSON {
		if !multi {
			var issues []diagnostics.Issue
			if len(results) > 0 {
				issues = results[0].Issues
			}
			return diagnostics.Encode(w, issues)
		}
		return diagnostics.EncodeFiles(w, results)
	}

	f := newFormatter(opts)
	if err := f.WriteAll(w, results); err != nil {
		return fmt.Errorf("write issues: %w", err)
	}
	f.PrintSummary(w, results)
	return nil
}

// newFormatter colours text unless disabled by flag, by NO_COLOR or because
// stdout is not a terminal.
func newFormatter(opts *CheckOptions) *diagnostics.Formatter {
	f := diagnostics.NewFormatter()
	if opts.Context {
		f = diagnostics.NewVerboseFormatter()
	}
	f.Colorize = !opts.NoColor && !color.NoColor
	return f
}
