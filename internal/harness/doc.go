// Package harness runs YAML conformance scenarios against the strata
// engines.
//
// A scenario names its input stores, applies a list of steps to them and
// checks each step's outcome. Every step is appended to a trace; the trace
// can be compared against a golden file so a behaviour change shows up as
// a diff.
//
// # Scenario Format
//
//	name: flatten_basics
//	description: "flat(1) expands one level and keeps holes"
//	limits: { max_length: 1000 }
//	inputs:
//	  a: [1, !hole, [2, [3]]]
//	  js: !js "[0, {length: 2, 0: 'x'}]"
//	steps:
//	  - op: flat
//	    input: a
//	    depth: 1
//	    as: a1
//	    expect:
//	      store: [1, 2, [3]]
//	      length: 3
//	  - op: union
//	    input: a1
//	    other: a
//	    equality: structural
//	    expect:
//	      size: 4
//	      has: [1, [3]]
//	assertions:
//	  - type: trace_count
//	    op: flat
//	    count: 1
//
// Input literals use the loader's YAML vocabulary (!hole, !undefined,
// !ref). A scalar tagged !js is evaluated in the scenario's JS runtime
// instead, which is how array-like host objects enter a scenario.
//
// # Operations
//
//   - flat (depth, -1 for unbounded), flatMap (fn)
//   - toSpliced (start, delete, items)
//   - union, intersection, difference, symmetricDifference (other,
//     equality, other_equality)
//   - isSubsetOf, isSupersetOf, isDisjointFrom (other, equality)
//   - map, filter (fn), take, drop (n), some, every, find (fn)
//
// fn is a JS function expression such as "(x, i) => x * 2".
//
// # Assertion Types
//
//   - trace_contains: an op appears in the trace, optionally on a given input
//   - trace_order: ops appear in the given relative order
//   - trace_count: an op appears exactly N times
//   - journal_count: the attached journal holds exactly N entries for an op
package harness
