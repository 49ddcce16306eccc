package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/journal"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Op    string
	Limit int
}

// JournalListing is the JSON payload of the journal command.
type JournalListing struct {
	Total   int             `json:"total"`
	Entries []journal.Entry `json:"entries"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded evaluations",
		Long: `List the evaluations recorded in the --journal database, oldest first.
Each entry shows its op, arguments, input and output digests and outcome.

Examples:
  strata --journal runs.db journal
  strata --journal runs.db journal --op union --limit 5
  strata --journal runs.db journal --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Op, "op", "", "only show this operation")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent n entries (0 = all)")

	return cmd
}

func runJournal(cmd *cobra.Command, opts *JournalOptions) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.journal == nil {
		return s.commandError(ErrCodeJournal, "journal", errors.New("--journal is required"))
	}
	if opts.Limit < 0 {
		return s.commandError(ErrCodeInvalidArgument, "--limit", fmt.Errorf("must be non-negative, got %d", opts.Limit))
	}

	entries, err := s.journal.List(s.ctx(), opts.Op, opts.Limit)
	if err != nil {
		return s.commandError(ErrCodeJournal, "list journal", err)
	}
	total, err := s.journal.Count(s.ctx())
	if err != nil {
		return s.commandError(ErrCodeJournal, "count journal", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(JournalListing{Total: total, Entries: entries})
	}

	w := cmd.OutOrStdout()
	for _, e := range entries {
		status := string(e.Outcome)
		if e.ErrorCode != "" {
			status += " " + e.ErrorCode
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.Seq, e.ID, e.Op, e.Args, status)
		if opts.Verbose {
			fmt.Fprintf(w, "\tinputs: %s\n", strings.Join(e.InputDigests, ", "))
			if e.OutputDigest != "" {
				fmt.Fprintf(w, "\toutput: %s (%d)\n", e.OutputDigest, e.OutputLen)
			}
		}
	}
	fmt.Fprintf(w, "%d of %d entries\n", len(entries), total)
	return nil
}
