// Package splice implements the non-mutating splice of a store: delete a
// contiguous run of positions and insert new values in its place.
package splice

import (
	"github.com/roach88/strata/internal/seq"
)

const opSplice = "toSpliced"

// Engine applies splices under caller-supplied limits.
type Engine struct {
	limits seq.Limits
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimits sets the output length ceiling. MaxDepth is ignored.
func WithLimits(l seq.Limits) Option {
	return func(e *Engine) {
		e.limits = l
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Splice splices s with the default Engine.
func Splice(s *seq.Store, start, deleteCount int, items ...seq.Value) (*seq.Store, error) {
	return defaultEngine.Splice(s, start, deleteCount, items...)
}

// Splice returns s[0:start] ++ items ++ s[start+deleteCount:].
//
// start is clamped into [0, s.Len()] and deleteCount into
// [0, s.Len()-start]. Copied ranges keep their holes in place and values
// keep their identity. The output length is checked against MaxLength
// before anything is allocated.
func (e *Engine) Splice(s *seq.Store, start, deleteCount int, items ...seq.Value) (*seq.Store, error) {
	if s == nil {
		return nil, seq.InvalidArgument(opSplice, "store is nil")
	}

	length := s.Len()
	start = clamp(start, 0, length)
	deleteCount = clamp(deleteCount, 0, length-start)

	outLen := length - deleteCount + len(items)
	if err := e.limits.CheckLength(opSplice, outLen); err != nil {
		return nil, err
	}

	// Inserted values pin every prefix position to a slot, holes included.
	prefix := min(s.Extent(), start)
	if len(items) > 0 {
		prefix = start
	}
	b := seq.NewBuilder(prefix + len(items) + max(0, s.Extent()-start-deleteCount))
	b.AppendRange(s, 0, start)
	for _, v := range items {
		b.Append(v)
	}
	b.AppendRange(s, start+deleteCount, length)
	return b.Build(), nil
}

// RelativeIndex resolves a relative position against length: negative
// values count back from the end. The result is clamped into [0, length].
func RelativeIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	return clamp(i, 0, length)
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
