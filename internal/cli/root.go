package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/seq"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	MaxLength int
	MaxDepth  int
	Journal   string // journal database path; empty disables recording
	Catalog   string // catalog file path; needed for @name inputs

	// Logger is installed by the root command. Commands run on their own
	// (as in tests) fall back to a discarding logger.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the strata CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "strata",
		Short: "strata - sparse sequence flattening and set algebra",
		Long: `Evaluate flat, flatMap, toSpliced, set algebra and iterator chains over
sparse stores loaded from JSON, YAML or CUE literals.

Inputs are JSON, YAML or CUE file paths, "-" for JSON on stdin, js:<expr>
for a JavaScript array, or @name for a store saved in the catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.MaxLength < 0 || opts.MaxDepth < 0 {
				return NewExitError(ExitCommandError, "--max-length and --max-depth must be non-negative")
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.IntVar(&opts.MaxLength, "max-length", 0, "maximum length of any produced store (0 = unlimited)")
	flags.IntVar(&opts.MaxDepth, "max-depth", 0, "maximum nesting depth the flattener descends (0 = unlimited)")
	flags.StringVar(&opts.Journal, "journal", "", "record evaluations in this SQLite journal")
	flags.StringVar(&opts.Catalog, "catalog", "", "catalog file for @name inputs and the catalog command")

	// Add subcommands
	cmd.AddCommand(NewFlatCommand(opts))
	cmd.AddCommand(NewSpliceCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewIterCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}

// Limits returns the engine limits from the global flags.
func (o *RootOptions) Limits() seq.Limits {
	return seq.Limits{MaxLength: o.MaxLength, MaxDepth: o.MaxDepth}
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout(), Verbose: o.Verbose}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
