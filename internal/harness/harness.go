package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/dop251/goja"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/flatten"
	"github.com/roach88/strata/internal/journal"
	"github.com/roach88/strata/internal/jsbridge"
	"github.com/roach88/strata/internal/keyset"
	"github.com/roach88/strata/internal/loader"
	"github.com/roach88/strata/internal/pull"
	"github.com/roach88/strata/internal/seq"
	"github.com/roach88/strata/internal/splice"
	"github.com/roach88/strata/internal/testutil"
)

// jsTag marks an input literal that is evaluated as JS.
const jsTag = "!js"

// Harness is the scenario execution engine for one scenario.
//
// Thread-safety: a Harness owns a goja runtime and must only be used by one
// goroutine. RunAll gives every scenario its own Harness.
type Harness struct {
	scenario  *Scenario
	clock     *testutil.DeterministicClock
	logger    *slog.Logger
	journal   *journal.Journal
	refs      *seq.RefTable
	bridge    *jsbridge.Bridge
	flattener *flatten.Flattener
	splicer   *splice.Engine
	sets      *keyset.Engine
	values    map[string]*seq.Store
}

type config struct {
	logger  *slog.Logger
	journal *journal.Journal
}

// Option configures a scenario run.
type Option func(*config)

// WithLogger sets the logger. By default logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithJournal records every step's evaluation in j. A journal may be shared
// by concurrent runs.
func WithJournal(j *journal.Journal) Option {
	return func(c *config) { c.journal = j }
}

// outcome is a step's result. set is non-nil for set-producing operations.
type outcome struct {
	value seq.Value
	set   *keyset.Set
}

// call is a prepared step: its recorded arguments and the evaluation.
type call struct {
	args []seq.Value
	run  func() (outcome, error)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Convert input literals (YAML or !js) into stores
// 2. Execute steps in order, tracing each one with a deterministic seq
// 3. Check each step's expect clause
// 4. Evaluate assertions against the trace and journal
//
// A step that fails without expecting to stops the run. The returned error
// is reserved for scenarios that cannot be executed at all, such as an
// input literal that does not parse or a fn that does not compile.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	cfg := config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs unless injected
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := newHarness(scenario, cfg)
	result := NewResult()
	result.Values = h.values

	if err := h.loadInputs(); err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}
	if err := h.executeSteps(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Journal: cfg.journal}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"steps", len(result.Trace),
		"errors", len(result.Errors))
	return result, nil
}

// RunAll runs scenarios with at most parallelism running at once; zero or
// less means no bound. Results are returned in input order. The first
// scenario that cannot be executed cancels the others.
func RunAll(ctx context.Context, scenarios []*Scenario, parallelism int, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := Run(ctx, s, opts...)
			if err != nil {
				if s != nil {
					return fmt.Errorf("%s: %w", s.Name, err)
				}
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func newHarness(s *Scenario, cfg config) *Harness {
	bopts := []jsbridge.Option{jsbridge.WithLimits(s.Limits)}
	fopts := []flatten.Option{flatten.WithLimits(s.Limits)}
	if s.ArrayLike {
		bopts = append(bopts, jsbridge.WithArrayLike())
		fopts = append(fopts, flatten.WithArrayLike())
	}
	return &Harness{
		scenario:  s,
		clock:     testutil.NewDeterministicClock(0),
		logger:    cfg.logger,
		journal:   cfg.journal,
		refs:      seq.NewRefTable(),
		bridge:    jsbridge.New(goja.New(), bopts...),
		flattener: flatten.New(fopts...),
		splicer:   splice.New(splice.WithLimits(s.Limits)),
		sets:      keyset.NewEngine(keyset.WithLimits(s.Limits)),
		values:    make(map[string]*seq.Store, len(s.Inputs)),
	}
}

// loadInputs converts input literals in name order so !js inputs run
// deterministically.
func (h *Harness) loadInputs() error {
	for _, name := range slices.Sorted(maps.Keys(h.scenario.Inputs)) {
		node := h.scenario.Inputs[name]
		st, err := h.literal(&node)
		if err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
		h.values[name] = st
	}
	return nil
}

// literal converts a store literal.
func (h *Harness) literal(n *yaml.Node) (*seq.Store, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == jsTag {
		v, err := h.bridge.Eval(n.Value)
		if err != nil {
			return nil, err
		}
		st, ok := v.(*seq.Store)
		if !ok {
			return nil, fmt.Errorf("!js literal evaluated to %s, not an array", seq.Describe(v))
		}
		return st, nil
	}
	v, err := h.value(n)
	if err != nil {
		return nil, err
	}
	st, ok := v.(*seq.Store)
	if !ok {
		return nil, fmt.Errorf("line %d: expected a sequence, got %s", n.Line, seq.Describe(v))
	}
	return st, nil
}

// value converts a literal that must not be a hole.
func (h *Harness) value(n *yaml.Node) (seq.Value, error) {
	slot, err := loader.FromYAML(n, h.refs)
	if err != nil {
		return nil, err
	}
	v, ok := slot.Value()
	if !ok {
		return nil, fmt.Errorf("line %d: a hole is not a value", n.Line)
	}
	return v, nil
}

// executeSteps runs the steps in order, stopping at the first unexpected
// failure.
func (h *Harness) executeSteps(ctx context.Context, result *Result) error {
	for i, st := range h.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		cont, err := h.executeStep(ctx, i, st, result)
		if err != nil {
			return fmt.Errorf("steps[%d] %s: %w", i, st.Op, err)
		}
		if !cont {
			break
		}
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, i int, st Step, result *Result) (bool, error) {
	in, ok := h.values[st.Input]
	if !ok {
		result.AddError(fmt.Sprintf("steps[%d] %s: input %q has no value", i, st.Op, st.Input))
		return false, nil
	}
	var other *seq.Store
	if st.Other != "" {
		if other, ok = h.values[st.Other]; !ok {
			result.AddError(fmt.Sprintf("steps[%d] %s: other %q has no value", i, st.Op, st.Other))
			return false, nil
		}
	}

	c, err := h.prepare(st, in, other)
	if err != nil {
		return false, err
	}

	seqNo := h.clock.Next()
	out, evalErr := c.run()

	args, err := seq.MarshalCanonical(seq.New(c.args...))
	if err != nil {
		return false, fmt.Errorf("trace args: %w", err)
	}
	ev := TraceEvent{
		Seq:   seqNo,
		Op:    st.Op,
		Input: st.Input,
		Other: st.Other,
		Args:  args,
	}
	if evalErr != nil {
		ev.Error = errorCode(evalErr)
	} else if ev.Output, err = seq.MarshalCanonical(out.value); err != nil {
		return false, fmt.Errorf("trace output: %w", err)
	}
	result.AddTrace(ev)

	if h.journal != nil {
		inputs := []seq.Value{in}
		if other != nil {
			inputs = append(inputs, other)
		}
		if _, err := h.journal.Record(ctx, journal.Evaluation{
			Op:     st.Op,
			Args:   c.args,
			Inputs: inputs,
			Output: out.value,
			Err:    evalErr,
		}); err != nil {
			return false, fmt.Errorf("journal: %w", err)
		}
	}

	h.logger.Debug("step executed",
		"scenario", h.scenario.Name,
		"index", i,
		"op", st.Op,
		"seq", seqNo,
		"error", ev.Error)

	return h.check(i, st, out, evalErr, result), nil
}

// prepare resolves a step's arguments. Errors here are scenario errors,
// not evaluation failures.
func (h *Harness) prepare(st Step, in, other *seq.Store) (call, error) {
	switch {
	case st.Op == OpFlat:
		depth := flatten.DefaultDepth
		if st.Depth != nil {
			depth = *st.Depth
		}
		return call{
			args: []seq.Value{seq.Int(depth)},
			run:  func() (outcome, error) { return storeOutcome(h.flattener.Flatten(in, depth)) },
		}, nil

	case st.Op == OpToSpliced:
		items := make([]seq.Value, len(st.Items))
		for k := range st.Items {
			v, err := h.value(&st.Items[k])
			if err != nil {
				return call{}, fmt.Errorf("items[%d]: %w", k, err)
			}
			items[k] = v
		}
		start := splice.RelativeIndex(*st.Start, in.Len())
		deleteCount := in.Len() - start
		if st.Delete != nil {
			deleteCount = *st.Delete
		}
		return call{
			args: append([]seq.Value{seq.Int(*st.Start), seq.Int(deleteCount)}, items...),
			run: func() (outcome, error) {
				return storeOutcome(h.splicer.Splice(in, start, deleteCount, items...))
			},
		}, nil

	case isBinary(st.Op):
		eq := equality(st.Equality)
		otherEq := eq
		args := []seq.Value{seq.Text(eq.Name())}
		if st.OtherEquality != "" {
			otherEq = equality(st.OtherEquality)
			args = append(args, seq.Text(otherEq.Name()))
		}
		return call{
			args: args,
			run: func() (outcome, error) {
				return h.setOp(st.Op, keyset.FromStore(eq, in), keyset.FromStore(otherEq, other))
			},
		}, nil

	case slices.Contains(countOps, st.Op):
		n := *st.N
		return call{
			args: []seq.Value{seq.Int(n)},
			run:  func() (outcome, error) { return h.iterate(st.Op, in, nil, n) },
		}, nil

	case slices.Contains(fnOps, st.Op):
		fn, err := h.bridge.Func(st.Fn)
		if err != nil {
			return call{}, err
		}
		return call{
			args: []seq.Value{seq.Text(st.Fn)},
			run: func() (outcome, error) {
				if st.Op == OpFlatMap {
					return storeOutcome(h.flattener.FlatMap(in, fn))
				}
				return h.iterate(st.Op, in, fn, 0)
			},
		}, nil
	}
	return call{}, fmt.Errorf("unknown op %q", st.Op)
}

func (h *Harness) setOp(op string, a, b *keyset.Set) (outcome, error) {
	var (
		set *keyset.Set
		rel bool
		err error
	)
	switch op {
	case OpUnion:
		set, err = h.sets.Union(a, b)
	case OpIntersection:
		set, err = h.sets.Intersection(a, b)
	case OpDifference:
		set, err = h.sets.Difference(a, b)
	case OpSymmetricDifference:
		set, err = h.sets.SymmetricDifference(a, b)
	case OpIsSubsetOf:
		rel, err = h.sets.IsSubsetOf(a, b)
	case OpIsSupersetOf:
		rel, err = h.sets.IsSupersetOf(a, b)
	case OpIsDisjointFrom:
		rel, err = h.sets.IsDisjointFrom(a, b)
	}
	if err != nil {
		return outcome{}, err
	}
	if set == nil {
		return outcome{value: seq.Bool(rel)}, nil
	}
	return outcome{value: set.ToStore(), set: set}, nil
}

// iterate runs an adapter chain over in. Adapters are lazy; nothing is
// pulled until the terminal drains or short-circuits.
func (h *Harness) iterate(op string, in *seq.Store, fn jsbridge.Callback, n int) (outcome, error) {
	it := pull.FromStore(in)
	switch op {
	case OpMap:
		return h.drain(pull.Map(it, fn))
	case OpFilter:
		return h.drain(it.Filter(fn.Predicate()))
	case OpTake:
		return h.drain(it.Take(n))
	case OpDrop:
		return h.drain(it.Drop(n))
	case OpSome, OpEvery:
		test := it.Some
		if op == OpEvery {
			test = it.Every
		}
		ok, err := test(fn.Predicate())
		if err != nil {
			return outcome{}, err
		}
		return outcome{value: seq.Bool(ok)}, nil
	case OpFind:
		v, found, err := it.Find(fn.Predicate())
		if err != nil {
			return outcome{}, err
		}
		if !found {
			v = seq.Undefined{}
		}
		return outcome{value: v}, nil
	}
	_ = it.Close()
	return outcome{}, fmt.Errorf("unknown iterator op %q", op)
}

func (h *Harness) drain(it *pull.Iterator[seq.Value], err error) (outcome, error) {
	if err != nil {
		return outcome{}, err
	}
	return storeOutcome(pull.ToStore(it, h.scenario.Limits))
}

func storeOutcome(s *seq.Store, err error) (outcome, error) {
	if err != nil {
		return outcome{}, err
	}
	return outcome{value: s}, nil
}

// check applies the step's expect clause and reports whether the run
// continues.
func (h *Harness) check(i int, st Step, out outcome, evalErr error, result *Result) bool {
	label := fmt.Sprintf("steps[%d] %s", i, st.Op)
	e := st.Expect

	if evalErr != nil {
		if e != nil && e.Error != "" {
			if code := errorCode(evalErr); code != e.Error {
				result.AddError(fmt.Sprintf("%s: expected error %s, got %s: %v", label, e.Error, code, evalErr))
			}
			return true
		}
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, evalErr))
		return false
	}

	if s, ok := out.value.(*seq.Store); ok && st.As != "" {
		h.values[st.As] = s
	}
	if e == nil {
		return true
	}
	if e.Error != "" {
		result.AddError(fmt.Sprintf("%s: expected error %s, got %s", label, e.Error, canonicalString(out.value)))
		return true
	}
	for _, msg := range h.compare(e, out) {
		result.AddError(label + ": " + msg)
	}
	return true
}

func (h *Harness) compare(e *Expect, out outcome) []string {
	var msgs []string
	st, isStore := out.value.(*seq.Store)

	if e.Store != nil {
		want, err := h.literal(e.Store)
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("store: bad literal: %v", err))
		} else if w, g := canonicalString(want), canonicalString(out.value); w != g {
			msgs = append(msgs, fmt.Sprintf("store: expected %s, got %s", w, g))
		}
	}

	if e.Length != nil {
		switch {
		case !isStore:
			msgs = append(msgs, fmt.Sprintf("length: result is %s, not a store", seq.Describe(out.value)))
		case st.Len() != *e.Length:
			msgs = append(msgs, fmt.Sprintf("length: expected %d, got %d", *e.Length, st.Len()))
		}
	}

	if e.Size != nil {
		switch {
		case out.set == nil:
			msgs = append(msgs, "size: result is not a set")
		case out.set.Size() != *e.Size:
			msgs = append(msgs, fmt.Sprintf("size: expected %d, got %d", *e.Size, out.set.Size()))
		}
	}

	if len(e.Has) > 0 {
		container := out.set
		if container == nil && isStore {
			container = keyset.FromStore(keyset.Structural, st)
		}
		for k := range e.Has {
			v, err := h.value(&e.Has[k])
			switch {
			case err != nil:
				msgs = append(msgs, fmt.Sprintf("has[%d]: bad literal: %v", k, err))
			case container == nil:
				msgs = append(msgs, fmt.Sprintf("has: result is %s, not a store", seq.Describe(out.value)))
			case !container.Has(v):
				msgs = append(msgs, fmt.Sprintf("has: %s not in result", canonicalString(v)))
			}
		}
	}

	if e.Value != nil {
		want, err := h.value(e.Value)
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("value: bad literal: %v", err))
		} else if !seq.Equal(want, out.value) {
			msgs = append(msgs, fmt.Sprintf("value: expected %s, got %s", canonicalString(want), canonicalString(out.value)))
		}
	}
	return msgs
}

func equality(name string) keyset.Equality {
	if name == "" {
		return keyset.SameValueZero
	}
	eq, ok := keyset.Lookup(name)
	if !ok {
		return keyset.SameValueZero
	}
	return eq
}

// errorCode maps an evaluation error to its trace code. Errors that do not
// carry an engine code came from a JS callback or host object.
func errorCode(err error) string {
	if code := seq.CodeOf(err); code != "" {
		return string(code)
	}
	return codeUpstream
}

func canonicalString(v seq.Value) string {
	b, err := seq.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
