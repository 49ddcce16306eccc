package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/flatten"
	"github.com/roach88/strata/internal/harness"
	"github.com/roach88/strata/internal/seq"
)

// FlatOptions holds flags for the flat command.
type FlatOptions struct {
	*RootOptions
	Depth     int
	Unbounded bool
	ArrayLike bool
	FlatMap   string // JS callback; switches to flatMap
}

// NewFlatCommand creates the flat command.
func NewFlatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FlatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "flat <input>",
		Short: "Flatten nested stores to a depth",
		Long: `Flatten an input store the way Array.prototype.flat does: nested stores
are expanded up to --depth levels and holes are skipped. Depth 0 copies the
input unchanged, holes included.

With --flat-map the callback runs first and its results are flattened one
level, like Array.prototype.flatMap.

Examples:
  strata flat data.json
  strata flat data.yaml --depth 3
  strata flat data.cue --unbounded --max-length 10000
  strata flat "js:[1, {length: 2, 0: 'a'}]" --array-like
  strata flat @saved --flat-map "(x, i) => [x, i]"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlat(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", flatten.DefaultDepth, "levels of nesting to expand")
	cmd.Flags().BoolVar(&opts.Unbounded, "unbounded", false, "expand every level")
	cmd.Flags().BoolVar(&opts.ArrayLike, "array-like", false, "expand array-like JS objects from js: inputs")
	cmd.Flags().StringVar(&opts.FlatMap, "flat-map", "", "JS callback (value, index) applied before flattening one level")
	cmd.MarkFlagsMutuallyExclusive("depth", "unbounded")
	cmd.MarkFlagsMutuallyExclusive("depth", "flat-map")
	cmd.MarkFlagsMutuallyExclusive("unbounded", "flat-map")

	return cmd
}

func runFlat(cmd *cobra.Command, opts *FlatOptions, arg string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()
	s.arrayLike = opts.ArrayLike

	in, err := s.input(arg)
	if err != nil {
		return err
	}

	fopts := []flatten.Option{flatten.WithLimits(opts.Limits())}
	if opts.ArrayLike {
		fopts = append(fopts, flatten.WithArrayLike())
	}
	f := flatten.New(fopts...)

	if opts.FlatMap != "" {
		fn, err := s.callback("flat-map", opts.FlatMap)
		if err != nil {
			return err
		}
		return s.eval(evaluation{
			op:     harness.OpFlatMap,
			args:   []seq.Value{seq.Text(opts.FlatMap)},
			inputs: []seq.Value{in},
			run:    func() (seq.Value, error) { return storeResult(f.FlatMap(in, fn)) },
		})
	}

	depth := opts.Depth
	if opts.Unbounded {
		depth = flatten.Unbounded
	}
	return s.eval(evaluation{
		op:     harness.OpFlat,
		args:   []seq.Value{seq.Int(depth)},
		inputs: []seq.Value{in},
		run:    func() (seq.Value, error) { return storeResult(f.Flatten(in, depth)) },
	})
}
