package pull

import (
	"github.com/roach88/strata/internal/seq"
)

// ForEach calls fn once per item in pull order until the iterator is
// exhausted. The first error from the upstream or from fn stops the drain
// and is returned; an fn error also closes the upstream.
func (it *Iterator[T]) ForEach(fn func(v T, i int) error) error {
	if fn == nil {
		return closeWith(it, seq.InvalidArgument("forEach", "callback is nil"))
	}
	for i := 0; ; i++ {
		v, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(v, i); err != nil {
			return closeWith(it, err)
		}
	}
}

// ToSlice drains the iterator into a slice. On error the partial slice is
// discarded.
func (it *Iterator[T]) ToSlice() ([]T, error) {
	var out []T
	for {
		v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// ToStore drains it into a store with one present slot per item. The store
// never contains holes. Crossing limits.MaxLength stops the drain, closes
// the upstream and returns ResourceExhausted.
func ToStore(it *Iterator[seq.Value], limits seq.Limits) (*seq.Store, error) {
	b := seq.NewBuilder(0)
	budget := limits.NewBudget("toArray")
	for {
		v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return b.Build(), nil
		}
		if err := budget.Add(1); err != nil {
			return nil, closeWith(it, err)
		}
		b.Append(v)
	}
}

// Reduce folds the items into acc.
func Reduce[T, A any](it *Iterator[T], fn func(acc A, v T, i int) (A, error), initial A) (A, error) {
	if fn == nil {
		return initial, closeWith(it, seq.InvalidArgument("reduce", "callback is nil"))
	}
	acc := initial
	for i := 0; ; i++ {
		v, ok, err := it.Next()
		if err != nil {
			return initial, err
		}
		if !ok {
			return acc, nil
		}
		acc, err = fn(acc, v, i)
		if err != nil {
			return initial, closeWith(it, err)
		}
	}
}

// Some reports whether fn returns true for any item. It stops and closes
// the upstream at the first match.
func (it *Iterator[T]) Some(fn func(v T, i int) (bool, error)) (bool, error) {
	_, found, err := it.find("some", fn)
	return found, err
}

// Every reports whether fn returns true for all items. It stops and closes
// the upstream at the first miss.
func (it *Iterator[T]) Every(fn func(v T, i int) (bool, error)) (bool, error) {
	if fn == nil {
		return false, closeWith(it, seq.InvalidArgument("every", "callback is nil"))
	}
	_, missed, err := it.find("every", func(v T, i int) (bool, error) {
		ok, err := fn(v, i)
		return !ok, err
	})
	if err != nil {
		return false, err
	}
	return !missed, nil
}

// Find returns the first item for which fn returns true.
func (it *Iterator[T]) Find(fn func(v T, i int) (bool, error)) (T, bool, error) {
	return it.find("find", fn)
}

func (it *Iterator[T]) find(op string, fn func(T, int) (bool, error)) (T, bool, error) {
	var zero T
	if fn == nil {
		return zero, false, closeWith(it, seq.InvalidArgument(op, "callback is nil"))
	}
	for i := 0; ; i++ {
		v, ok, err := it.Next()
		if err != nil {
			return zero, false, err
		}
		if !ok {
			return zero, false, nil
		}
		match, err := fn(v, i)
		if err != nil {
			return zero, false, closeWith(it, err)
		}
		if match {
			return v, true, it.Close()
		}
	}
}
