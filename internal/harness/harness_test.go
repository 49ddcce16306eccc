package harness

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/journal"
	"github.com/roach88/strata/internal/seq"
	"github.com/roach88/strata/internal/testutil"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_ChainsNamedResults(t *testing.T) {
	s := mustParse(t, `
name: chain
description: a step's named result feeds the next step
inputs:
  a: [[1, [2]], [3]]
steps:
  - op: flat
    input: a
    as: flat1
  - op: flat
    input: flat1
    as: flat2
    expect:
      store: [1, 2, 3]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "flat1", result.Trace[1].Input)
	assert.Equal(t, `[1,2,3]`, string(seq.MustMarshalCanonical(result.Values["flat2"])))
}

func TestRun_ExpectationFailures(t *testing.T) {
	tests := []struct {
		name    string
		step    string
		message string
	}{
		{
			name:    "store",
			step:    "op: flat\n    input: a\n    expect: {store: [1]}",
			message: "store: expected [1], got [1,2,2]",
		},
		{
			name:    "length",
			step:    "op: flat\n    input: a\n    expect: {length: 9}",
			message: "length: expected 9, got 3",
		},
		{
			name:    "size on a store",
			step:    "op: flat\n    input: a\n    expect: {size: 2}",
			message: "size: result is not a set",
		},
		{
			name:    "size",
			step:    "op: union\n    input: a\n    other: a\n    expect: {size: 3}",
			message: "size: expected 3, got 2",
		},
		{
			name:    "has",
			step:    "op: flat\n    input: a\n    expect: {has: [7]}",
			message: "has: 7 not in result",
		},
		{
			name:    "value",
			step:    "op: isDisjointFrom\n    input: a\n    other: a\n    expect: {value: true}",
			message: "value: expected true, got false",
		},
		{
			name:    "error expected but none",
			step:    "op: flat\n    input: a\n    expect: {error: INVALID_ARGUMENT}",
			message: "expected error INVALID_ARGUMENT, got [1,2,2]",
		},
		{
			name:    "wrong error code",
			step:    "op: map\n    input: a\n    fn: \"() => { throw 1 }\"\n    expect: {error: INVALID_ARGUMENT}",
			message: "expected error INVALID_ARGUMENT, got UPSTREAM_FAILURE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustParse(t, "name: n\ndescription: d\ninputs:\n  a: [[1, 2], 2]\nsteps:\n  - "+tt.step+"\n")

			result, err := Run(t.Context(), s)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.message)
		})
	}
}

func TestRun_UnexpectedErrorStopsRun(t *testing.T) {
	s := mustParse(t, `
name: stop
description: d
limits: {max_depth: 1}
inputs:
  a: [[[1]]]
steps:
  - op: flat
    input: a
    depth: -1
  - op: flat
    input: a
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, string(seq.ErrCodeResourceExhausted), result.Trace[0].Error)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_FailedStepLeavesNameUnbound(t *testing.T) {
	s := mustParse(t, `
name: unbound
description: d
inputs:
  a: [1]
steps:
  - op: map
    input: a
    fn: "() => { throw new Error('x') }"
    as: mapped
    expect: {error: UPSTREAM_FAILURE}
  - op: flat
    input: mapped
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Trace, 1)
	assert.Contains(t, result.Errors[0], `input "mapped" has no value`)
}

func TestRun_JSInputsAndArrayLikes(t *testing.T) {
	s := mustParse(t, `
name: js
description: array-likes from JS expand only with array_like
array_like: true
inputs:
  a: !js "[0, {length: 3, 0: 'a', 2: 'c'}, , 4]"
steps:
  - op: flat
    input: a
    expect:
      store: [0, a, c, 4]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	s.ArrayLike = false
	result, err = Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass, "a plain object ref stays a single element")
}

func TestRun_ScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad fn", "inputs: {a: [1]}\nsteps: [{op: map, input: a, fn: \"(\"}]"},
		{"js input not an array", "inputs: {a: !js \"1\"}\nsteps: [{op: flat, input: a}]"},
		{"scalar input", "inputs: {a: 1}\nsteps: [{op: flat, input: a}]"},
		{"hole item", "inputs: {a: [1]}\nsteps: [{op: toSpliced, input: a, start: 0, items: [!hole]}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustParse(t, "name: n\ndescription: d\n"+tt.src+"\n")
			_, err := Run(t.Context(), s)
			assert.Error(t, err)
		})
	}

	_, err := Run(t.Context(), nil)
	assert.Error(t, err)
}

func TestRun_ContextCancelled(t *testing.T) {
	s := mustParse(t, "name: n\ndescription: d\ninputs: {a: [1]}\nsteps: [{op: flat, input: a}]\n")
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_RecordsToJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"),
		journal.WithSequencer(testutil.NewDeterministicClock(0)),
		journal.WithIDs(testutil.NewSequentialIDs("ev")))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	s := mustParse(t, `
name: journaled
description: d
inputs:
  a: [1, 2, 3]
steps:
  - op: take
    input: a
    n: 2
  - op: map
    input: a
    fn: "() => { throw new Error('x') }"
    expect: {error: UPSTREAM_FAILURE}
assertions:
  - type: journal_count
    op: take
    count: 1
`)

	result, err := Run(t.Context(), s, WithJournal(j))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	entries, err := j.List(t.Context(), "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ev-0001", entries[0].ID)
	assert.Equal(t, "[2]", entries[0].Args)
	assert.Equal(t, 2, entries[0].OutputLen)
	assert.Equal(t, journal.OutcomeError, entries[1].Outcome)
	assert.Equal(t, journal.CodeUpstream, entries[1].ErrorCode)
	assert.Equal(t, seq.MustDigest(seq.DomainStore, result.Values["a"]), entries[1].InputDigests[0])
}

func TestRun_JournalCountWithoutJournal(t *testing.T) {
	s := mustParse(t, `
name: n
description: d
inputs: {a: [1]}
steps: [{op: flat, input: a}]
assertions: [{type: journal_count, op: flat, count: 1}]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "requires a journal")
}

func TestRunAll(t *testing.T) {
	var scenarios []*Scenario
	for _, name := range []string{"one", "two", "three", "four"} {
		scenarios = append(scenarios, mustParse(t, "name: "+name+`
description: d
inputs: {a: [[1], [2]]}
steps: [{op: flat, input: a, expect: {store: [1, 2]}}]
`))
	}

	results, err := RunAll(t.Context(), scenarios, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.Pass, r.Errors)
		assert.Equal(t, int64(1), r.Trace[0].Seq, "every scenario has its own clock")
	}
}

func TestRunAll_SharedJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	var scenarios []*Scenario
	for range 8 {
		scenarios = append(scenarios, mustParse(t, `
name: shared
description: d
inputs: {a: [1, 2]}
steps: [{op: drop, input: a, n: 1}]
`))
	}

	_, err = RunAll(t.Context(), scenarios, 0, WithJournal(j))
	require.NoError(t, err)
	n, err := j.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestRunAll_FirstErrorWins(t *testing.T) {
	bad := mustParse(t, "name: bad\ndescription: d\ninputs: {a: [1]}\nsteps: [{op: map, input: a, fn: \"(\"}]\n")
	good := mustParse(t, "name: good\ndescription: d\ninputs: {a: [1]}\nsteps: [{op: flat, input: a}]\n")

	_, err := RunAll(t.Context(), []*Scenario{good, bad}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad:")
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := mustParse(t, "name: logged\ndescription: d\ninputs: {a: [1]}\nsteps: [{op: flat, input: a}]\n")
	_, err := Run(t.Context(), s, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "step executed")
	assert.Contains(t, buf.String(), "scenario=logged")
}
