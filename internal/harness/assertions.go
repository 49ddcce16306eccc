package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/strata/internal/journal"
)

// AssertionContext provides what non-trace assertions query.
type AssertionContext struct {
	Ctx     context.Context
	Journal *journal.Journal
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			status := string(event.Output)
			if event.Error != "" {
				status = "error " + event.Error
			}
			fmt.Fprintf(&buf, "  [%d] %s(%s) %s -> %s\n", event.Seq, event.Op, event.Input, event.Args, status)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertJournalCount:
			err = assertJournalCount(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceContains checks that an event for the op exists, on the given
// input if one is named.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Op == assertion.Op && (assertion.Input == "" || event.Input == assertion.Input) {
			return nil
		}
	}

	expected := assertion.Op
	if assertion.Input != "" {
		expected += " on " + assertion.Input
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the ops occur in the given relative order.
// Other events may be interleaved.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Ops) && event.Op == assertion.Ops[next] {
			next++
		}
	}
	if next == len(assertion.Ops) {
		return nil
	}

	seen := make([]string, len(trace))
	for i, event := range trace {
		seen[i] = event.Op
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(assertion.Ops, " -> "),
		Actual:   fmt.Sprintf("%s (missing %s)", strings.Join(seen, " -> "), assertion.Ops[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that the op occurs exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertJournalCount checks the number of journal entries for the op. A
// journal shared between runs counts every run's entries.
func assertJournalCount(actx *AssertionContext, assertion Assertion) error {
	if actx == nil || actx.Journal == nil {
		return fmt.Errorf("journal_count assertion requires a journal")
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	entries, err := actx.Journal.List(ctx, assertion.Op, 0)
	if err != nil {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("list journal entries for %s", assertion.Op),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(entries) != assertion.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journal entries for %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d entries", len(entries)),
		}
	}
	return nil
}
