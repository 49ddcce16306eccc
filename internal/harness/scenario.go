package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/flatten"
	"github.com/roach88/strata/internal/keyset"
	"github.com/roach88/strata/internal/seq"
)

// Scenario defines a conformance scenario: named input stores and the
// steps applied to them.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Limits bound every engine the scenario uses.
	Limits seq.Limits `yaml:"limits,omitempty"`

	// ArrayLike lets the flattener expand array-like host objects created
	// by !js inputs.
	ArrayLike bool `yaml:"array_like,omitempty"`

	// Inputs maps names to store literals.
	Inputs map[string]yaml.Node `yaml:"inputs"`

	// Steps run in order. A step's result can be named with As and used as
	// a later step's input.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step applies one operation.
type Step struct {
	Op    string `yaml:"op"`
	Input string `yaml:"input"`
	Other string `yaml:"other,omitempty"`

	Depth         *int        `yaml:"depth,omitempty"`
	Start         *int        `yaml:"start,omitempty"`
	Delete        *int        `yaml:"delete,omitempty"`
	Items         []yaml.Node `yaml:"items,omitempty"`
	Fn            string      `yaml:"fn,omitempty"`
	N             *int        `yaml:"n,omitempty"`
	Equality      string      `yaml:"equality,omitempty"`
	OtherEquality string      `yaml:"other_equality,omitempty"`

	// As names the result so later steps can use it as input.
	As string `yaml:"as,omitempty"`

	// Expect checks the result. If nil the step only has to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies a step's expected outcome. Only the fields that are set
// are checked.
type Expect struct {
	// Store is the expected result store, compared by canonical JSON.
	Store *yaml.Node `yaml:"store,omitempty"`

	// Length is the expected length of a store result.
	Length *int `yaml:"length,omitempty"`

	// Size is the expected size of a set result.
	Size *int `yaml:"size,omitempty"`

	// Has lists values the result must contain.
	Has []yaml.Node `yaml:"has,omitempty"`

	// Value is the expected scalar result of a relation, some, every or find.
	Value *yaml.Node `yaml:"value,omitempty"`

	// Error is the expected error code. UPSTREAM_FAILURE matches errors
	// raised by JS callbacks or host objects.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the attached journal.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the operation name (trace_contains, trace_count, journal_count).
	Op string `yaml:"op,omitempty"`

	// Input optionally narrows trace_contains to one input name.
	Input string `yaml:"input,omitempty"`

	// Ops is the expected relative order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertJournalCount  = "journal_count"
)

// Operation names. They double as journal op names.
const (
	OpFlat                = "flat"
	OpFlatMap             = "flatMap"
	OpToSpliced           = "toSpliced"
	OpUnion               = "union"
	OpIntersection        = "intersection"
	OpDifference          = "difference"
	OpSymmetricDifference = "symmetricDifference"
	OpIsSubsetOf          = "isSubsetOf"
	OpIsSupersetOf        = "isSupersetOf"
	OpIsDisjointFrom      = "isDisjointFrom"
	OpMap                 = "map"
	OpFilter              = "filter"
	OpTake                = "take"
	OpDrop                = "drop"
	OpSome                = "some"
	OpEvery               = "every"
	OpFind                = "find"
)

var (
	setOps      = []string{OpUnion, OpIntersection, OpDifference, OpSymmetricDifference}
	relationOps = []string{OpIsSubsetOf, OpIsSupersetOf, OpIsDisjointFrom}
	fnOps       = []string{OpFlatMap, OpMap, OpFilter, OpSome, OpEvery, OpFind}
	countOps    = []string{OpTake, OpDrop}
)

func isBinary(op string) bool {
	return slices.Contains(setOps, op) || slices.Contains(relationOps, op)
}

func knownOp(op string) bool {
	return op == OpFlat || op == OpToSpliced || isBinary(op) ||
		slices.Contains(fnOps, op) || slices.Contains(countOps, op)
}

var errorCodes = []string{
	string(seq.ErrCodeInvalidArgument),
	string(seq.ErrCodeResourceExhausted),
	string(seq.ErrCodeCapabilityMismatch),
	codeUpstream,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// step only reads names defined before it.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("inputs map is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Limits.MaxLength < 0 || s.Limits.MaxDepth < 0 {
		return fmt.Errorf("limits must be non-negative")
	}

	defined := make(map[string]bool, len(s.Inputs))
	for name := range s.Inputs {
		defined[name] = true
	}
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], defined); err != nil {
			return err
		}
		if s.Steps[i].As != "" {
			defined[s.Steps[i].As] = true
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, st *Step, defined map[string]bool) error {
	if st.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", i)
	}
	if !knownOp(st.Op) {
		return fmt.Errorf("steps[%d]: unknown op %q", i, st.Op)
	}
	if st.Input == "" {
		return fmt.Errorf("steps[%d]: input is required", i)
	}
	if !defined[st.Input] {
		return fmt.Errorf("steps[%d]: input %q is not defined", i, st.Input)
	}

	switch {
	case isBinary(st.Op):
		if st.Other == "" {
			return fmt.Errorf("steps[%d]: other is required for %s", i, st.Op)
		}
		if !defined[st.Other] {
			return fmt.Errorf("steps[%d]: other %q is not defined", i, st.Other)
		}
		for _, name := range []string{st.Equality, st.OtherEquality} {
			if name == "" {
				continue
			}
			if _, ok := keyset.Lookup(name); !ok {
				return fmt.Errorf("steps[%d]: unknown equality %q", i, name)
			}
		}
	case slices.Contains(fnOps, st.Op):
		if st.Fn == "" {
			return fmt.Errorf("steps[%d]: fn is required for %s", i, st.Op)
		}
	case slices.Contains(countOps, st.Op):
		if st.N == nil {
			return fmt.Errorf("steps[%d]: n is required for %s", i, st.Op)
		}
	case st.Op == OpToSpliced:
		if st.Start == nil {
			return fmt.Errorf("steps[%d]: start is required for %s", i, st.Op)
		}
	case st.Op == OpFlat:
		if st.Depth != nil && *st.Depth < flatten.Unbounded {
			return fmt.Errorf("steps[%d]: depth must be >= 0, or -1 for unbounded", i)
		}
	}

	if e := st.Expect; e != nil && e.Error != "" && !slices.Contains(errorCodes, e.Error) {
		return fmt.Errorf("steps[%d].expect: unknown error code %q", i, e.Error)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount, AssertJournalCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
