package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/electwix/sqlvet/internal/check"
	"github.com/electwix/sqlvet/internal/diagnostics"
)

func newWatchCmd(global *Options) *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "watch TARGET",
		Short: "Check again whenever a file or schema source changes",
		Long: `Check TARGET once, then again whenever a file below it or one of the
schema sources changes. Each run prints one JSON document (with
--json-output) or a block of text lines. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, global, opts, args[0])
		},
	}
	opts.register(cmd.Flags())
	return cmd
}

func runWatch(cmd *cobra.Command, global *Options, opts *CheckOptions, target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return &check.FileError{Path: target, Err: err}
	}
	sess, err := newSession(cmd, global, opts, check.Hooks{})
	if err != nil {
		return err
	}

	// A failed write means nobody reads the output any more: stop watching.
	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	report := func(run check.Run) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := writeRun(out, opts, run, info.IsDir()); err != nil {
			cancel(fmt.Errorf("write run %d: %w", run.Generation, err))
		}
	}

	err = sess.checker.Watch(ctx, check.WatchOptions{
		Target:   target,
		Schemas:  sess.settings.plan.Schemas,
		Debounce: sess.settings.plan.Debounce,
		Report:   report,
	})
	if err != nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	return nil
}

func writeRun(w io.Writer, opts *CheckOptions, run check.Run, multi bool) error {
	if opts.JSON {
		return writeResults(w, opts, run.Files, multi)
	}
	summary := diagnostics.Summarize(run.Files)
	if _, err := fmt.Fprintf(w, "# run %d: %d issue(s) in %d of %d file(s)\n", run.Generation, summary.Total, summary.Files, len(run.Files)); err != nil {
		return err
	}
	return newFormatter(opts).WriteAll(w, run.Files)
}
