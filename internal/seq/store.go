package seq

import (
	"iter"
	"strings"
	"sync/atomic"
)

// Slot is one position of a Store: either Present(value) or a Hole.
// The zero Slot is a hole.
type Slot struct {
	v Value
}

// Present returns a slot holding v. A nil v is stored as Undefined.
func Present(v Value) Slot {
	if v == nil {
		v = Undefined{}
	}
	return Slot{v: v}
}

// Hole returns an empty slot.
func Hole() Slot { return Slot{} }

// IsHole reports whether the slot has no value.
func (s Slot) IsHole() bool { return s.v == nil }

// Value returns the slot's value and whether it is present.
func (s Slot) Value() (Value, bool) { return s.v, s.v != nil }

// ArrayLike is the read capability the flattener expands.
// *Store implements it and never returns an error; host adapters (for
// example JS proxies) may fail on any access.
type ArrayLike interface {
	Length() (int, error)
	Index(i int) (v Value, present bool, err error)
}

var storeIDs atomic.Uint64

// Store is an ordered, possibly sparse sequence of slots.
//
// Slots at positions >= len(slots) and < length are holes, which lets a
// store of a large length with few present values stay small.
//
// INVARIANTS:
//   - len(slots) <= length
//   - a Store is never mutated after Build
type Store struct {
	id     uint64
	length int
	slots  []Slot
}

// New creates a dense store holding vals in order.
func New(vals ...Value) *Store {
	b := NewBuilder(len(vals))
	for _, v := range vals {
		b.Append(v)
	}
	return b.Build()
}

// FromSlots creates a store from explicit slots.
func FromSlots(slots ...Slot) *Store {
	b := NewBuilder(len(slots))
	for _, s := range slots {
		b.AppendSlot(s)
	}
	return b.Build()
}

// Sparse creates a store of the given length where every slot is a hole.
func Sparse(length int) *Store {
	b := NewBuilder(0)
	b.SetLength(length)
	return b.Build()
}

// ID returns a process-unique identifier for this store instance.
// Two stores with equal contents have different IDs.
func (s *Store) ID() uint64 { return s.id }

// Len returns the authoritative length, including holes.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return s.length
}

// Extent returns the number of positions backed by slots. Every position at
// or beyond Extent and below Len is a hole.
func (s *Store) Extent() int {
	if s == nil {
		return 0
	}
	return len(s.slots)
}

// Count returns the number of present slots.
func (s *Store) Count() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, slot := range s.slots {
		if !slot.IsHole() {
			n++
		}
	}
	return n
}

// At returns the slot at i. Out of range positions read as holes.
func (s *Store) At(i int) Slot {
	if s == nil || i < 0 || i >= len(s.slots) {
		return Hole()
	}
	return s.slots[i]
}

// Get returns the value at i and whether the slot is present.
func (s *Store) Get(i int) (Value, bool) {
	return s.At(i).Value()
}

// IsHole reports whether position i is a hole.
func (s *Store) IsHole(i int) bool {
	return s.At(i).IsHole()
}

// Length implements ArrayLike.
func (s *Store) Length() (int, error) { return s.Len(), nil }

// Index implements ArrayLike.
func (s *Store) Index(i int) (Value, bool, error) {
	v, ok := s.Get(i)
	return v, ok, nil
}

// Slots yields every position in 0..Len()-1, holes included.
func (s *Store) Slots() iter.Seq2[int, Slot] {
	return func(yield func(int, Slot) bool) {
		for i := 0; i < s.Len(); i++ {
			if !yield(i, s.At(i)) {
				return
			}
		}
	}
}

// All yields present values with their positions, skipping holes.
func (s *Store) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		if s == nil {
			return
		}
		for i, slot := range s.slots {
			if slot.IsHole() {
				continue
			}
			if !yield(i, slot.v) {
				return
			}
		}
	}
}

// Values yields one value per position, reading holes as Undefined.
// This is the array-iterator view of a store.
func (s *Store) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for i := 0; i < s.Len(); i++ {
			v, ok := s.Get(i)
			if !ok {
				v = Undefined{}
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Slice returns a raw copy of positions [start, end), holes preserved.
// Bounds are clamped into [0, Len()].
func (s *Store) Slice(start, end int) *Store {
	start = clamp(start, 0, s.Len())
	end = clamp(end, start, s.Len())
	b := NewBuilder(0)
	b.AppendRange(s, start, end)
	return b.Build()
}

// String renders the store for diagnostics, e.g. [1, <hole>, [2, 3]].
func (s *Store) String() string {
	var sb strings.Builder
	writeDebug(&sb, s)
	return sb.String()
}

func writeDebug(sb *strings.Builder, s *Store) {
	sb.WriteByte('[')
	for i, slot := range s.Slots() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, ok := slot.Value()
		if !ok {
			sb.WriteString("<hole>")
			continue
		}
		sb.WriteString(Describe(v))
	}
	sb.WriteByte(']')
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

// Builder assembles a Store. The zero Builder is ready to use.
// A Builder must not be used after Build.
type Builder struct {
	slots  []Slot
	length int
}

// NewBuilder returns a builder with capacity for n slots.
func NewBuilder(n int) *Builder {
	if n < 0 {
		n = 0
	}
	return &Builder{slots: make([]Slot, 0, n)}
}

// Len returns the current length.
func (b *Builder) Len() int { return b.length }

// Grow ensures room for n more present slots without reallocation.
func (b *Builder) Grow(n int) {
	if n <= 0 {
		return
	}
	need := b.length + n
	if cap(b.slots) < need {
		grown := make([]Slot, len(b.slots), need)
		copy(grown, b.slots)
		b.slots = grown
	}
}

// Append adds a present value.
func (b *Builder) Append(v Value) {
	b.materialize()
	b.slots = append(b.slots, Present(v))
	b.length++
}

// AppendHole adds a hole. Trailing holes cost no memory.
func (b *Builder) AppendHole() {
	b.length++
}

// AppendSlot adds a slot, present or hole.
func (b *Builder) AppendSlot(s Slot) {
	if s.IsHole() {
		b.AppendHole()
		return
	}
	b.Append(s.v)
}

// AppendRange copies positions [start, end) of src, holes preserved.
// The caller guarantees 0 <= start <= end <= src.Len().
func (b *Builder) AppendRange(src *Store, start, end int) {
	if start >= end {
		return
	}
	denseEnd := min(end, len(src.slots))
	if start < denseEnd {
		b.materialize()
		b.slots = append(b.slots, src.slots[start:denseEnd]...)
		b.length += denseEnd - start
		start = denseEnd
	}
	// Remaining positions fall in src's implicit hole tail.
	b.length += end - start
}

// SetLength extends the builder with trailing holes up to n.
// It never truncates.
func (b *Builder) SetLength(n int) {
	if n > b.length {
		b.length = n
	}
}

// Build returns the finished store.
func (b *Builder) Build() *Store {
	slots := b.slots
	// Trim trailing holes so they live in the implicit tail.
	for len(slots) > 0 && slots[len(slots)-1].IsHole() {
		slots = slots[:len(slots)-1]
	}
	s := &Store{
		id:     storeIDs.Add(1),
		length: b.length,
		slots:  slots,
	}
	b.slots = nil
	b.length = 0
	return s
}

// materialize turns implicit trailing holes into explicit hole slots so a
// present value can be appended after them.
func (b *Builder) materialize() {
	for len(b.slots) < b.length {
		b.slots = append(b.slots, Hole())
	}
}
