// Package cli implements the sqlvet command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/electwix/sqlvet/internal/logging"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitIssues  = 1
	ExitFailure = 2
)

// errIssuesFound ends a --fail-on-issues run that reported issues. The issues
// are already printed, so no message accompanies it.
var errIssuesFound = errors.New("issues found")

// Version is set at build time.
var Version = "dev"

// loggerKey stores the run's logger in the command context.
type loggerKey struct{}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	global := &Options{}
	root := &cobra.Command{
		Use:   "sqlvet",
		Short: "Static validation of SQL against a schema",
		Long: `sqlvet finds SQL in .sql files and in string literals of Python and Go
files, resolves table and column references against a static schema and
reports unknown names, ambiguous columns, type mismatches and syntax errors
with their exact position.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := logging.New(logging.Options{Verbose: global.Verbose, Writer: cmd.ErrOrStderr()})
			logger = logging.WithRunID(logger)
			logger.Debug("starting", "command", cmd.Name(), "version", Version)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	global.register(root.PersistentFlags())

	root.AddCommand(newCheckCmd(global))
	root.AddCommand(newWatchCmd(global))
	root.AddCommand(newIntrospectCmd())
	return root
}

// Run executes the command line args and returns the process exit code.
// Diagnostics go to stdout; failures are reported on stderr and leave stdout
// empty.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errIssuesFound):
		return ExitIssues
	default:
		_, _ = fmt.Fprintf(stderr, "sqlvet: %v\n", err)
		return ExitFailure
	}
}

func loggerFrom(cmd *cobra.Command) *slog.Logger {
	if logger, ok := cmd.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}
