package seq

// Limits are the resource ceilings an embedding caller supplies.
// A zero field means "no ceiling". The engines enforce no hard-coded limit
// of their own.
type Limits struct {
	// MaxLength caps the length of any produced store or key set.
	MaxLength int `yaml:"max_length,omitempty" json:"max_length,omitempty"`

	// MaxDepth caps how many nested stores the flattener may descend into.
	MaxDepth int `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`
}

// Unlimited is the zero Limits.
var Unlimited = Limits{}

// CheckLength returns ResourceExhausted if n exceeds MaxLength.
func (l Limits) CheckLength(op string, n int) error {
	if l.MaxLength > 0 && n > l.MaxLength {
		return ResourceExhausted(op, "max_length", n, l.MaxLength)
	}
	return nil
}

// CheckDepth returns ResourceExhausted if depth exceeds MaxDepth.
func (l Limits) CheckDepth(op string, depth int) error {
	if l.MaxDepth > 0 && depth > l.MaxDepth {
		return ResourceExhausted(op, "max_depth", depth, l.MaxDepth)
	}
	return nil
}

// Budget counts produced elements against MaxLength incrementally, for
// producers whose final size is unknown up front.
//
// Each Budget belongs to exactly one operation and is not safe for
// concurrent use.
type Budget struct {
	op      string
	max     int
	current int
}

// NewBudget creates a budget for op bounded by l.MaxLength.
func (l Limits) NewBudget(op string) *Budget {
	return &Budget{op: op, max: l.MaxLength}
}

// Add accounts for n more elements and fails once the ceiling is passed.
// Adding zero or a negative count is a no-op.
func (b *Budget) Add(n int) error {
	if n <= 0 {
		return nil
	}
	b.current += n
	if b.max > 0 && b.current > b.max {
		return ResourceExhausted(b.op, "max_length", b.current, b.max)
	}
	return nil
}

// Current returns the count accounted so far.
func (b *Budget) Current() int {
	return b.current
}
