package keyset

import (
	"github.com/roach88/strata/internal/seq"
)

// Engine evaluates set algebra under caller-supplied limits. Every
// operation is pure: operands are never modified and results are fresh
// sets that take the left operand's equality.
type Engine struct {
	limits seq.Limits
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimits caps the size of produced sets. Only MaxLength applies.
func WithLimits(l seq.Limits) Option {
	return func(e *Engine) {
		e.limits = l
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// Union returns the keys of a or b with the default Engine.
func Union(a, b *Set) (*Set, error) { return defaultEngine.Union(a, b) }

// Intersection returns the keys of both a and b with the default Engine.
func Intersection(a, b *Set) (*Set, error) { return defaultEngine.Intersection(a, b) }

// Difference returns the keys of a not in b with the default Engine.
func Difference(a, b *Set) (*Set, error) { return defaultEngine.Difference(a, b) }

// SymmetricDifference returns the keys in exactly one of a and b with the
// default Engine.
func SymmetricDifference(a, b *Set) (*Set, error) { return defaultEngine.SymmetricDifference(a, b) }

// IsSubsetOf reports whether every key of a is in b.
func IsSubsetOf(a, b *Set) (bool, error) { return defaultEngine.IsSubsetOf(a, b) }

// IsSupersetOf reports whether every key of b is in a.
func IsSupersetOf(a, b *Set) (bool, error) { return defaultEngine.IsSupersetOf(a, b) }

// IsDisjointFrom reports whether a and b share no key.
func IsDisjointFrom(a, b *Set) (bool, error) { return defaultEngine.IsDisjointFrom(a, b) }

// check validates an operand pair.
func check(op string, a, b *Set) error {
	if a == nil || b == nil {
		return seq.InvalidArgument(op, "set is nil")
	}
	if a.eq.Name() != b.eq.Name() {
		return seq.CapabilityMismatch(op, a.eq.Name(), b.eq.Name())
	}
	return nil
}

// smaller orders the operands by size; ties keep a first.
func smaller(a, b *Set) (small, large *Set) {
	if b.size < a.size {
		return b, a
	}
	return a, b
}

// countIn returns how many keys of s are in other.
func countIn(s, other *Set) int {
	n := 0
	for k := range s.Values() {
		if other.Has(k) {
			n++
		}
	}
	return n
}

// Union returns a's keys in a's order followed by b's new keys in b's
// order. The exact size is computed by probing the smaller operand against
// the larger before the result is allocated.
func (e *Engine) Union(a, b *Set) (*Set, error) {
	const op = "union"
	if err := check(op, a, b); err != nil {
		return nil, err
	}

	small, large := smaller(a, b)
	size := a.size + b.size - countIn(small, large)
	if err := e.limits.CheckLength(op, size); err != nil {
		return nil, err
	}

	out := NewWithCapacity(a.eq, size)
	for k := range a.Values() {
		out.insert(k, a.eq.Hash(k))
	}
	for k := range b.Values() {
		if !a.Has(k) {
			out.insert(k, a.eq.Hash(k))
		}
	}
	return out, nil
}

// Intersection iterates the smaller operand and probes the larger, so the
// work is bounded by min(|a|, |b|). Keys keep the smaller operand's order.
func (e *Engine) Intersection(a, b *Set) (*Set, error) {
	const op = "intersection"
	if err := check(op, a, b); err != nil {
		return nil, err
	}

	small, large := smaller(a, b)
	size := countIn(small, large)
	if err := e.limits.CheckLength(op, size); err != nil {
		return nil, err
	}

	out := NewWithCapacity(a.eq, size)
	for k := range small.Values() {
		if large.Has(k) {
			out.insert(k, a.eq.Hash(k))
		}
	}
	return out, nil
}

// Difference returns a's keys that are not in b, in a's order. When b is
// the smaller operand only b is probed against a to size the result.
func (e *Engine) Difference(a, b *Set) (*Set, error) {
	const op = "difference"
	if err := check(op, a, b); err != nil {
		return nil, err
	}

	small, large := smaller(a, b)
	size := a.size - countIn(small, large)
	if err := e.limits.CheckLength(op, size); err != nil {
		return nil, err
	}

	if a.size <= b.size {
		out := NewWithCapacity(a.eq, size)
		for k := range a.Values() {
			if !b.Has(k) {
				out.insert(k, a.eq.Hash(k))
			}
		}
		return out, nil
	}

	out := a.Clone()
	for k := range b.Values() {
		out.Delete(k)
	}
	return out, nil
}

// SymmetricDifference returns a's keys not in b, then b's keys not in a.
func (e *Engine) SymmetricDifference(a, b *Set) (*Set, error) {
	const op = "symmetricDifference"
	if err := check(op, a, b); err != nil {
		return nil, err
	}

	small, large := smaller(a, b)
	shared := countIn(small, large)
	size := a.size + b.size - 2*shared
	if err := e.limits.CheckLength(op, size); err != nil {
		return nil, err
	}

	out := NewWithCapacity(a.eq, size)
	for k := range a.Values() {
		if !b.Has(k) {
			out.insert(k, a.eq.Hash(k))
		}
	}
	for k := range b.Values() {
		if !a.Has(k) {
			out.insert(k, a.eq.Hash(k))
		}
	}
	return out, nil
}

// IsSubsetOf reports whether every key of a is in b. A larger a fails
// without probing.
func (e *Engine) IsSubsetOf(a, b *Set) (bool, error) {
	if err := check("isSubsetOf", a, b); err != nil {
		return false, err
	}
	if a.size > b.size {
		return false, nil
	}
	return countIn(a, b) == a.size, nil
}

// IsSupersetOf reports whether every key of b is in a.
func (e *Engine) IsSupersetOf(a, b *Set) (bool, error) {
	if err := check("isSupersetOf", a, b); err != nil {
		return false, err
	}
	if a.size < b.size {
		return false, nil
	}
	return countIn(b, a) == b.size, nil
}

// IsDisjointFrom reports whether a and b share no key, probing from the
// smaller operand and stopping at the first shared key.
func (e *Engine) IsDisjointFrom(a, b *Set) (bool, error) {
	if err := check("isDisjointFrom", a, b); err != nil {
		return false, err
	}
	small, large := smaller(a, b)
	for k := range small.Values() {
		if large.Has(k) {
			return false, nil
		}
	}
	return true, nil
}
