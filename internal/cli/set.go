package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/harness"
	"github.com/roach88/strata/internal/keyset"
	"github.com/roach88/strata/internal/seq"
)

// setOps maps command-line names to operation names.
var setOps = map[string]string{
	"union":                harness.OpUnion,
	"intersection":         harness.OpIntersection,
	"difference":           harness.OpDifference,
	"symmetric-difference": harness.OpSymmetricDifference,
	"subset":               harness.OpIsSubsetOf,
	"superset":             harness.OpIsSupersetOf,
	"disjoint":             harness.OpIsDisjointFrom,
}

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	Equality      string
	OtherEquality string
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}
	names := slices.Sorted(maps.Keys(setOps))

	cmd := &cobra.Command{
		Use:   "set <op> <a> <b>",
		Short: "Combine or compare two key sets",
		Long: fmt.Sprintf(`Build key sets from two inputs and apply a set operation.

Operations: %s

union, intersection, difference and symmetric-difference print the result
set as a store in insertion order. subset, superset and disjoint print a
boolean. Both operands must use the same equality; an @name stored with
"catalog put --set" keeps the equality it was saved with.

Equalities: sameValueZero (default), structural, and either one with a
+NFC, +NFD, +NFKC or +NFKD suffix to compare text after normalization.

Examples:
  strata set union a.json b.json
  strata set subset a.yaml b.yaml --equality structural
  strata set intersection @left @right`, strings.Join(names, ", ")),
		Args:          cobra.ExactArgs(3),
		ValidArgs:     names,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Equality, "equality", keyset.SameValueZero.Name(), "equality for both operands")
	cmd.Flags().StringVar(&opts.OtherEquality, "other-equality", "", "equality for the second operand (default: --equality)")

	return cmd
}

func runSet(cmd *cobra.Command, opts *SetOptions, args []string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	op, ok := setOps[args[0]]
	if !ok {
		return s.commandError(ErrCodeInvalidArgument, "set", fmt.Errorf("unknown operation %q", args[0]))
	}
	eq, err := s.equality("equality", opts.Equality)
	if err != nil {
		return err
	}
	otherEq := eq
	if opts.OtherEquality != "" {
		if otherEq, err = s.equality("other-equality", opts.OtherEquality); err != nil {
			return err
		}
	}

	a, err := s.setInput(args[1], eq)
	if err != nil {
		return err
	}
	b, err := s.setInput(args[2], otherEq)
	if err != nil {
		return err
	}

	engine := keyset.NewEngine(keyset.WithLimits(opts.Limits()))
	return s.eval(evaluation{
		op:     op,
		args:   []seq.Value{seq.Text(a.Equality().Name()), seq.Text(b.Equality().Name())},
		inputs: []seq.Value{a.ToStore(), b.ToStore()},
		run:    func() (seq.Value, error) { return applySet(engine, op, a, b) },
	})
}

func applySet(e *keyset.Engine, op string, a, b *keyset.Set) (seq.Value, error) {
	var (
		set *keyset.Set
		rel bool
		err error
	)
	switch op {
	case harness.OpUnion:
		set, err = e.Union(a, b)
	case harness.OpIntersection:
		set, err = e.Intersection(a, b)
	case harness.OpDifference:
		set, err = e.Difference(a, b)
	case harness.OpSymmetricDifference:
		set, err = e.SymmetricDifference(a, b)
	case harness.OpIsSubsetOf:
		rel, err = e.IsSubsetOf(a, b)
	case harness.OpIsSupersetOf:
		rel, err = e.IsSupersetOf(a, b)
	case harness.OpIsDisjointFrom:
		rel, err = e.IsDisjointFrom(a, b)
	}
	if err != nil {
		return nil, err
	}
	if set == nil {
		return seq.Bool(rel), nil
	}
	return set.ToStore(), nil
}

// equality resolves an equality flag.
func (s *session) equality(flag, name string) (keyset.Equality, error) {
	eq, ok := keyset.Lookup(name)
	if !ok {
		return nil, s.commandError(ErrCodeInvalidArgument, "--"+flag, fmt.Errorf("unknown equality %q", name))
	}
	return eq, nil
}

