// Package keyset implements key sets with a pluggable equality capability
// and the set algebra over them (union, intersection, difference and the
// subset relations).
//
// A Set remembers insertion order so enumeration is stable, but the
// algebra only promises membership and size.
package keyset

import (
	"iter"

	"github.com/roach88/strata/internal/seq"
)

// Set is a collection of unique keys under one Equality.
//
// INVARIANTS:
//   - no two live entries are Equal
//   - size == number of live entries
//
// A Set is not safe for concurrent mutation. Concurrent reads are safe.
type Set struct {
	eq      Equality
	index   map[uint64][]int // hash -> positions in keys
	keys    []seq.Value      // insertion order; nil marks a deleted entry
	size    int
	deleted int
}

// New creates an empty set. A nil eq means SameValueZero.
func New(eq Equality) *Set {
	return NewWithCapacity(eq, 0)
}

// NewWithCapacity creates an empty set sized for n keys.
func NewWithCapacity(eq Equality, n int) *Set {
	if eq == nil {
		eq = SameValueZero
	}
	if n < 0 {
		n = 0
	}
	return &Set{
		eq:    eq,
		index: make(map[uint64][]int, n),
		keys:  make([]seq.Value, 0, n),
	}
}

// Of creates a set holding vals, keeping the first of any equal keys.
func Of(eq Equality, vals ...seq.Value) *Set {
	s := NewWithCapacity(eq, len(vals))
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

// FromStore creates a set from the values of st. Holes read as Undefined,
// the same as iterating the store.
func FromStore(eq Equality, st *seq.Store) *Set {
	s := NewWithCapacity(eq, st.Len())
	for v := range st.Values() {
		s.Add(v)
	}
	return s
}

// Equality returns the set's equality capability.
func (s *Set) Equality() Equality { return s.eq }

// Size returns the number of keys.
func (s *Set) Size() int { return s.size }

// Has reports whether v is a key.
func (s *Set) Has(v seq.Value) bool {
	v = keyOf(v)
	_, ok := s.find(v, s.eq.Hash(v))
	return ok
}

// Add inserts v and reports whether it was new.
func (s *Set) Add(v seq.Value) bool {
	v = keyOf(v)
	h := s.eq.Hash(v)
	if _, ok := s.find(v, h); ok {
		return false
	}
	s.insert(v, h)
	return true
}

// Delete removes v and reports whether it was present.
func (s *Set) Delete(v seq.Value) bool {
	v = keyOf(v)
	h := s.eq.Hash(v)
	pos, ok := s.find(v, h)
	if !ok {
		return false
	}

	bucket := s.index[h]
	for i, p := range bucket {
		if p == pos {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(s.index, h)
	} else {
		s.index[h] = bucket
	}

	s.keys[pos] = nil
	s.size--
	s.deleted++
	if s.deleted > len(s.keys)/2 {
		s.compact()
	}
	return true
}

// Values yields the keys in insertion order.
func (s *Set) Values() iter.Seq[seq.Value] {
	return func(yield func(seq.Value) bool) {
		for _, k := range s.keys {
			if k == nil {
				continue
			}
			if !yield(k) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := NewWithCapacity(s.eq, s.size)
	for k := range s.Values() {
		c.insert(k, s.eq.Hash(k))
	}
	return c
}

// ToStore returns the keys as a dense store in insertion order.
func (s *Set) ToStore() *seq.Store {
	b := seq.NewBuilder(s.size)
	for k := range s.Values() {
		b.Append(k)
	}
	return b.Build()
}

// keyOf maps a nil value to Undefined, the key a missing value stands for.
func keyOf(v seq.Value) seq.Value {
	if v == nil {
		return seq.Undefined{}
	}
	return v
}

// find returns the position of the live key equal to v.
func (s *Set) find(v seq.Value, h uint64) (int, bool) {
	for _, p := range s.index[h] {
		if s.eq.Equal(s.keys[p], v) {
			return p, true
		}
	}
	return 0, false
}

// insert appends a key known to be absent.
func (s *Set) insert(v seq.Value, h uint64) {
	s.index[h] = append(s.index[h], len(s.keys))
	s.keys = append(s.keys, v)
	s.size++
}

// compact drops deleted entries and rebuilds the index.
func (s *Set) compact() {
	keys := make([]seq.Value, 0, s.size)
	index := make(map[uint64][]int, s.size)
	for _, k := range s.keys {
		if k == nil {
			continue
		}
		h := s.eq.Hash(k)
		index[h] = append(index[h], len(keys))
		keys = append(keys, k)
	}
	s.keys = keys
	s.index = index
	s.deleted = 0
}
