// Package flatten implements depth-bounded flattening of nested stores.
//
// Flattening walks a store left to right, depth first. Holes are skipped,
// recognised nested containers are expanded while depth remains, and every
// other present value is appended unchanged. Depth 0 is a raw copy that
// keeps holes in place.
//
// The walk uses an explicit stack, so deeply nested input never grows the
// Go call stack.
package flatten

import (
	"github.com/roach88/strata/internal/seq"
)

const (
	// Unbounded expands nested containers at every level.
	Unbounded = -1

	// DefaultDepth is the depth used when a caller does not specify one.
	DefaultDepth = 1
)

const (
	opFlat    = "flat"
	opFlatMap = "flatMap"
)

// Recognizer decides whether a present value is a container the flattener
// may expand, and returns its read capability if so.
type Recognizer func(v seq.Value) (seq.ArrayLike, bool)

// Stores recognises only *seq.Store. This is the default.
func Stores(v seq.Value) (seq.ArrayLike, bool) {
	s, ok := v.(*seq.Store)
	return s, ok
}

// ArrayLikes recognises *seq.Store and any *seq.Ref whose Host implements
// seq.ArrayLike (for example a JS proxy wrapping an array).
func ArrayLikes(v seq.Value) (seq.ArrayLike, bool) {
	switch x := v.(type) {
	case *seq.Store:
		return x, true
	case *seq.Ref:
		if al, ok := x.Host.(seq.ArrayLike); ok {
			return al, true
		}
	}
	return nil, false
}

// Flattener flattens stores under a fixed recognition policy and limits.
// A Flattener holds no per-call state and is safe for concurrent use.
type Flattener struct {
	recognize  Recognizer
	storesOnly bool
	limits     seq.Limits
}

// Option configures a Flattener.
type Option func(*Flattener)

// WithArrayLike makes the flattener expand array-like host references in
// addition to stores.
func WithArrayLike() Option {
	return func(f *Flattener) {
		f.recognize = ArrayLikes
		f.storesOnly = false
	}
}

// WithRecognizer installs a custom recognition policy.
func WithRecognizer(r Recognizer) Option {
	return func(f *Flattener) {
		if r != nil {
			f.recognize = r
			f.storesOnly = false
		}
	}
}

// WithLimits sets the output length and nesting ceilings.
//
// Default: seq.Unlimited
func WithLimits(l seq.Limits) Option {
	return func(f *Flattener) {
		f.limits = l
	}
}

// New creates a Flattener. With no options it recognises only stores and
// enforces no limits.
func New(opts ...Option) *Flattener {
	f := &Flattener{
		recognize:  Stores,
		storesOnly: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var defaultFlattener = New()

// Flatten flattens s to depth with the default Flattener.
func Flatten(s *seq.Store, depth int) (*seq.Store, error) {
	return defaultFlattener.Flatten(s, depth)
}

// FlatMap maps then flattens one level with the default Flattener.
func FlatMap(s *seq.Store, fn func(v seq.Value, i int) (seq.Value, error)) (*seq.Store, error) {
	return defaultFlattener.FlatMap(s, fn)
}

// Flatten returns a new store holding s flattened to depth.
//
// depth must be >= 0 or Unbounded; anything else is InvalidArgument and no
// work is done. When only stores are recognised the exact output length is
// computed before anything is allocated, so exceeding MaxLength fails
// without building a partial result. With host array-likes the output is
// built in a single pass and abandoned as soon as a ceiling is crossed.
//
// Errors returned by array-like hosts are passed through unchanged.
func (f *Flattener) Flatten(s *seq.Store, depth int) (*seq.Store, error) {
	if s == nil {
		return nil, seq.InvalidArgument(opFlat, "store is nil")
	}
	if depth < Unbounded {
		return nil, seq.InvalidArgument(opFlat, "depth %d is negative", depth)
	}
	if depth == 0 {
		if err := f.limits.CheckLength(opFlat, s.Len()); err != nil {
			return nil, err
		}
		return s.Slice(0, s.Len()), nil
	}
	return f.flatten(opFlat, s, depth)
}

func (f *Flattener) flatten(op string, s *seq.Store, depth int) (*seq.Store, error) {
	size := 0
	if f.storesOnly {
		budget := f.limits.NewBudget(op)
		err := f.walk(op, s, depth, func(seq.Value) error {
			return budget.Add(1)
		})
		if err != nil {
			return nil, err
		}
		size = budget.Current()
	}

	b := seq.NewBuilder(size)
	budget := f.limits.NewBudget(op)
	err := f.walk(op, s, depth, func(v seq.Value) error {
		if err := budget.Add(1); err != nil {
			return err
		}
		b.Append(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// FlatMap calls fn for every present value of s, with its position, and
// flattens the results by one level: a recognised container result
// contributes its present elements, anything else contributes itself.
// An error from fn is returned unchanged and the partial output dropped.
func (f *Flattener) FlatMap(s *seq.Store, fn func(v seq.Value, i int) (seq.Value, error)) (*seq.Store, error) {
	if s == nil {
		return nil, seq.InvalidArgument(opFlatMap, "store is nil")
	}
	if fn == nil {
		return nil, seq.InvalidArgument(opFlatMap, "callback is nil")
	}

	mapped := seq.NewBuilder(s.Count())
	for i, v := range s.All() {
		out, err := fn(v, i)
		if err != nil {
			return nil, err
		}
		mapped.Append(out)
	}
	return f.flatten(opFlatMap, mapped.Build(), 1)
}

// frame is one container being expanded.
type frame struct {
	src   seq.ArrayLike
	key   seq.Value
	n     int
	i     int
	depth int // remaining depth for this container's children
}

// walk visits s depth first and calls emit for every value that survives
// flattening. depth is > 0 or Unbounded.
func (f *Flattener) walk(op string, s *seq.Store, depth int, emit func(seq.Value) error) error {
	stack := []frame{{src: s, key: s, n: s.Extent(), depth: depth}}
	// Containers currently on the stack, keyed by store or ref identity.
	active := map[seq.Value]struct{}{s: {}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.i >= top.n {
			delete(active, top.key)
			stack = stack[:len(stack)-1]
			continue
		}

		i := top.i
		top.i++
		v, present, err := top.src.Index(i)
		if err != nil {
			return err
		}
		if !present {
			continue
		}

		if top.depth != 0 {
			if child, ok := f.recognize(v); ok {
				if err := f.limits.CheckDepth(op, len(stack)); err != nil {
					return err
				}
				if _, cyclic := active[v]; cyclic {
					return seq.Cyclic(op)
				}
				n, err := extent(child)
				if err != nil {
					return err
				}
				active[v] = struct{}{}
				stack = append(stack, frame{src: child, key: v, n: n, depth: remaining(top.depth)})
				continue
			}
		}

		if err := emit(v); err != nil {
			return err
		}
	}
	return nil
}

// extent is how many positions of a container need reading. A store's
// implicit hole tail holds nothing to emit, so only its slots are read.
func extent(al seq.ArrayLike) (int, error) {
	if s, ok := al.(*seq.Store); ok {
		return s.Extent(), nil
	}
	n, err := al.Length()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

func remaining(depth int) int {
	if depth == Unbounded {
		return Unbounded
	}
	return depth - 1
}
