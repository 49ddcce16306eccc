package harness

import (
	"encoding/json"

	"github.com/roach88/strata/internal/journal"
	"github.com/roach88/strata/internal/seq"
)

const codeUpstream = journal.CodeUpstream

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Op    string `json:"op"`
	Input string `json:"input"`
	Other string `json:"other,omitempty"`

	// Args is the canonical JSON of the step's scalar arguments.
	Args json.RawMessage `json:"args"`

	// Output is the canonical JSON of the result. Empty on failure.
	Output json.RawMessage `json:"output,omitempty"`

	// Error is the failure's error code. Empty on success.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Values holds the inputs and every named step result.
	Values map[string]*seq.Store `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Values: make(map[string]*seq.Store),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
