package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/electwix/sqlvet/internal/config"
	"github.com/electwix/sqlvet/internal/extract"
)

// Options holds the flags shared by every command.
type Options struct {
	ConfigPath   string
	StrictConfig bool
	Verbose      bool
}

func (o *Options) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigPath, "config", "c", "", "Path to configuration file (default: ./"+config.FileName+" when present)")
	fs.BoolVar(&o.StrictConfig, "strict-config", false, "Treat unknown configuration keys as errors")
	fs.BoolVarP(&o.Verbose, "verbose", "v", false, "Enable debug logging on stderr")
}

// CheckOptions holds the flags of check and watch.
type CheckOptions struct {
	JSON         bool
	Schemas      []string
	Kind         string
	MaxDistance  int
	FailOnIssues bool
	NoColor      bool
	Context      bool
}

func (o *CheckOptions) register(fs *pflag.FlagSet) {
	fs.BoolVar(&o.JSON, "json-output", false, "Print issues as a JSON document")
	fs.BoolVar(&o.JSON, "json", false, "Alias for --json-output")
	fs.StringArrayVarP(&o.Schemas, "schema", "s", nil, "Schema source (.json, .yaml, .sql, .schema); repeatable, loaded in order")
	fs.StringVar(&o.Kind, "kind", "", "Scan files as sql, python or go instead of using the extension")
	fs.IntVar(&o.MaxDistance, "max-distance", 0, "Largest edit distance for suggestions (0 disables them)")
	fs.BoolVar(&o.FailOnIssues, "fail-on-issues", false, "Exit with status 1 when issues are found")
	fs.BoolVar(&o.NoColor, "no-color", false, "Disable coloured text output")
	fs.BoolVar(&o.Context, "context", false, "Show issue codes and the offending source line in text output")
}

// settings is the configuration plan with command-line overrides applied.
type settings struct {
	plan     config.Plan
	warnings []string
	kind     extract.Kind
}

// resolve loads the configuration and applies the flags that were set on
// cmd on top of it.
func resolve(cmd *cobra.Command, global *Options, opts *CheckOptions) (settings, error) {
	var s settings
	wd, err := os.Getwd()
	if err != nil {
		return s, fmt.Errorf("working directory: %w", err)
	}
	res, err := config.Discover(wd, global.ConfigPath, config.LoadOptions{Strict: global.StrictConfig})
	if err != nil {
		return s, err
	}
	s.plan = res.Plan
	s.warnings = res.Warnings

	if len(opts.Schemas) > 0 {
		s.plan.Schemas = opts.Schemas
	}
	if len(s.plan.Schemas) == 0 {
		s.plan.Schemas = []string{config.DefaultSchema}
	}
	if cmd.Flags().Changed("max-distance") {
		if opts.MaxDistance < 0 {
			return s, fmt.Errorf("--max-distance must not be negative, got %d", opts.MaxDistance)
		}
		s.plan.MaxDistance = opts.MaxDistance
	}
	if opts.Kind != "" {
		kind, err := extract.ParseKind(opts.Kind)
		if err != nil {
			return s, err
		}
		s.kind = kind
	}
	return s, nil
}
