package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/harness"
	"github.com/roach88/strata/internal/seq"
	"github.com/roach88/strata/internal/splice"
)

// SpliceOptions holds flags for the splice command.
type SpliceOptions struct {
	*RootOptions
	Start  int
	Delete int
	Insert string // input whose elements are inserted
}

// NewSpliceCommand creates the splice command.
func NewSpliceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SpliceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "splice <input>",
		Short: "Copy a store with a range replaced",
		Long: `Return a copy of the input with --delete elements removed at --start and
the elements of --insert put in their place, like Array.prototype.toSpliced.
The input is not modified. A negative --start counts from the end; without
--delete everything from --start on is removed.

Examples:
  strata splice data.json --start 1 --delete 2
  strata splice data.json --start -1 --insert extra.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplice(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Start, "start", 0, "position to splice at; negative counts from the end")
	cmd.Flags().IntVar(&opts.Delete, "delete", 0, "number of elements to remove (default: all from start)")
	cmd.Flags().StringVar(&opts.Insert, "insert", "", "input whose elements are inserted")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func runSplice(cmd *cobra.Command, opts *SpliceOptions, arg string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	in, err := s.input(arg)
	if err != nil {
		return err
	}

	var items []seq.Value
	if opts.Insert != "" {
		insert, err := s.input(opts.Insert)
		if err != nil {
			return err
		}
		for i := range insert.Len() {
			v, ok := insert.Get(i)
			if !ok {
				return s.commandError(ErrCodeLoadFailed, "--insert", errors.New("inserted elements must not be holes"))
			}
			items = append(items, v)
		}
	}

	start := splice.RelativeIndex(opts.Start, in.Len())
	deleteCount := in.Len() - start
	if cmd.Flags().Changed("delete") {
		deleteCount = opts.Delete
	}

	engine := splice.New(splice.WithLimits(opts.Limits()))
	return s.eval(evaluation{
		op:     harness.OpToSpliced,
		args:   append([]seq.Value{seq.Int(opts.Start), seq.Int(deleteCount)}, items...),
		inputs: []seq.Value{in},
		run: func() (seq.Value, error) {
			return storeResult(engine.Splice(in, start, deleteCount, items...))
		},
	})
}
