package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/jsbridge"
	"github.com/roach88/strata/internal/pull"
	"github.com/roach88/strata/internal/seq"
)

// opIter names chained iterator evaluations in the journal.
const opIter = "iter"

// IterOptions holds flags for the iter command.
type IterOptions struct {
	*RootOptions
	Filter string
	Map    string
	Drop   int
	Take   int
	Some   string
	Every  string
	Find   string
	Async  bool
}

// NewIterCommand creates the iter command.
func NewIterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "iter <input>",
		Short: "Run an iterator helper chain over a store",
		Long: `Pull the present elements of the input through a lazy iterator chain.
Adapters apply in a fixed order: --filter, --map, --drop, --take. Without a
terminal flag the remaining elements are collected into a store; --some,
--every and --find stop pulling as soon as the answer is known.

Callbacks are JS function expressions called as (value, index).

With --async every pull runs on its own goroutine, one at a time, and the
command can be interrupted while a pull is pending.

Examples:
  strata iter data.json --filter "(x) => x > 2" --take 3
  strata iter data.json --map "(x, i) => [i, x]"
  strata iter data.json --drop 1 --find "(x) => typeof x === 'string'"
  strata iter "js:[1, 2, 3]" --map "(x) => x * 10" --async`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIter(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "keep elements for which the callback is truthy")
	cmd.Flags().StringVar(&opts.Map, "map", "", "replace each element with the callback result")
	cmd.Flags().IntVar(&opts.Drop, "drop", 0, "skip the first n elements")
	cmd.Flags().IntVar(&opts.Take, "take", 0, "stop after n elements")
	cmd.Flags().StringVar(&opts.Some, "some", "", "print whether any element satisfies the callback")
	cmd.Flags().StringVar(&opts.Every, "every", "", "print whether every element satisfies the callback")
	cmd.Flags().StringVar(&opts.Find, "find", "", "print the first element satisfying the callback")
	cmd.Flags().BoolVar(&opts.Async, "async", false, "pull asynchronously")
	cmd.MarkFlagsMutuallyExclusive("some", "every", "find")
	cmd.MarkFlagsMutuallyExclusive("async", "some")
	cmd.MarkFlagsMutuallyExclusive("async", "every")
	cmd.MarkFlagsMutuallyExclusive("async", "find")

	return cmd
}

func runIter(cmd *cobra.Command, opts *IterOptions, arg string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	in, err := s.input(arg)
	if err != nil {
		return err
	}

	compile := func(flag, src string) (jsbridge.Callback, error) {
		if src == "" {
			return nil, nil
		}
		return s.callback(flag, src)
	}
	var filter, mapper, some, every, find jsbridge.Callback
	for _, c := range []struct {
		dst  *jsbridge.Callback
		flag string
		src  string
	}{
		{&filter, "filter", opts.Filter},
		{&mapper, "map", opts.Map},
		{&some, "some", opts.Some},
		{&every, "every", opts.Every},
		{&find, "find", opts.Find},
	} {
		if *c.dst, err = compile(c.flag, c.src); err != nil {
			return err
		}
	}

	hasDrop, hasTake := cmd.Flags().Changed("drop"), cmd.Flags().Changed("take")

	chain := func() (*pull.Iterator[seq.Value], error) {
		it := pull.FromStore(in)
		if filter != nil {
			if it, err = it.Filter(filter.Predicate()); err != nil {
				return nil, err
			}
		}
		if mapper != nil {
			if it, err = pull.Map(it, mapper); err != nil {
				return nil, err
			}
		}
		if hasDrop {
			if it, err = it.Drop(opts.Drop); err != nil {
				return nil, err
			}
		}
		if hasTake {
			if it, err = it.Take(opts.Take); err != nil {
				return nil, err
			}
		}
		return it, nil
	}

	run := func() (seq.Value, error) {
		it, err := chain()
		if err != nil {
			return nil, err
		}
		switch {
		case some != nil:
			ok, err := it.Some(some.Predicate())
			return seq.Bool(ok), err
		case every != nil:
			ok, err := it.Every(every.Predicate())
			return seq.Bool(ok), err
		case find != nil:
			v, found, err := it.Find(find.Predicate())
			if err != nil {
				return nil, err
			}
			if !found {
				return seq.Undefined{}, nil
			}
			return v, nil
		case opts.Async:
			return collectAsync(s, it, opts.Limits())
		}
		return storeResult(pull.ToStore(it, opts.Limits()))
	}

	return s.eval(evaluation{
		op: opIter,
		args: []seq.Value{
			seq.Text(opts.Filter), seq.Text(opts.Map), countArg(hasDrop, opts.Drop), countArg(hasTake, opts.Take),
			seq.Text(opts.Some), seq.Text(opts.Every), seq.Text(opts.Find),
		},
		inputs: []seq.Value{in},
		run:    run,
	})
}

// collectAsync drains it through an async iterator bound to the command's
// context.
func collectAsync(s *session, it *pull.Iterator[seq.Value], limits seq.Limits) (seq.Value, error) {
	ait := pull.Go[seq.Value](it)
	vals, err := pull.ToSliceAsync(s.ctx(), ait)
	if err != nil {
		return nil, err
	}
	if err := limits.CheckLength(opIter, len(vals)); err != nil {
		return nil, err
	}
	return seq.New(vals...), nil
}

// countArg records an unset count as null.
func countArg(set bool, n int) seq.Value {
	if !set {
		return seq.Null{}
	}
	return seq.Int(n)
}
