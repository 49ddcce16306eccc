package pull

import (
	"github.com/roach88/strata/internal/seq"
)

// mapper applies fn to every upstream item.
type mapper[T, U any] struct {
	up    *Iterator[T]
	fn    func(T, int) (U, error)
	index int
}

func (m *mapper[T, U]) Next() (U, bool, error) {
	var zero U
	v, ok, err := m.up.Next()
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := m.fn(v, m.index)
	m.index++
	if err != nil {
		return zero, false, closeWith(m.up, err)
	}
	return out, true, nil
}

func (m *mapper[T, U]) Close() error { return m.up.Close() }

// Map returns an iterator that yields fn(v, i) for each upstream item v,
// where i counts the items this adapter has mapped. Each Next pulls exactly
// one upstream item.
func Map[T, U any](it *Iterator[T], fn func(v T, i int) (U, error)) (*Iterator[U], error) {
	if fn == nil {
		return nil, closeWith(it, seq.InvalidArgument("map", "callback is nil"))
	}
	return From[U](&mapper[T, U]{up: it, fn: fn}), nil
}

// filterer yields upstream items accepted by fn.
type filterer[T any] struct {
	up    *Iterator[T]
	fn    func(T, int) (bool, error)
	index int
}

func (f *filterer[T]) Next() (T, bool, error) {
	var zero T
	for {
		v, ok, err := f.up.Next()
		if err != nil || !ok {
			return zero, false, err
		}
		keep, err := f.fn(v, f.index)
		f.index++
		if err != nil {
			return zero, false, closeWith(f.up, err)
		}
		if keep {
			return v, true, nil
		}
	}
}

func (f *filterer[T]) Close() error { return f.up.Close() }

// Filter yields the items for which fn returns true.
func (it *Iterator[T]) Filter(fn func(v T, i int) (bool, error)) (*Iterator[T], error) {
	if fn == nil {
		return nil, closeWith(it, seq.InvalidArgument("filter", "callback is nil"))
	}
	return From[T](&filterer[T]{up: it, fn: fn}), nil
}

// taker yields at most remaining items.
type taker[T any] struct {
	up        *Iterator[T]
	remaining int
}

func (t *taker[T]) Next() (T, bool, error) {
	var zero T
	if t.remaining == 0 {
		return zero, false, t.up.Close()
	}
	t.remaining--
	return t.up.Next()
}

func (t *taker[T]) Close() error { return t.up.Close() }

// Take yields at most n items, then closes the upstream without pulling
// from it again.
func (it *Iterator[T]) Take(n int) (*Iterator[T], error) {
	if n < 0 {
		return nil, closeWith(it, seq.InvalidArgument("take", "count %d is negative", n))
	}
	return From[T](&taker[T]{up: it, remaining: n}), nil
}

// dropper skips the first n items.
type dropper[T any] struct {
	up      *Iterator[T]
	pending int
}

func (d *dropper[T]) Next() (T, bool, error) {
	var zero T
	for d.pending > 0 {
		d.pending--
		_, ok, err := d.up.Next()
		if err != nil || !ok {
			return zero, false, err
		}
	}
	return d.up.Next()
}

func (d *dropper[T]) Close() error { return d.up.Close() }

// Drop skips the first n items. Skipping happens on the first pull.
func (it *Iterator[T]) Drop(n int) (*Iterator[T], error) {
	if n < 0 {
		return nil, closeWith(it, seq.InvalidArgument("drop", "count %d is negative", n))
	}
	return From[T](&dropper[T]{up: it, pending: n}), nil
}

// flatMapper yields the items of each inner producer in turn.
type flatMapper[T, U any] struct {
	up    *Iterator[T]
	fn    func(T, int) (Producer[U], error)
	inner *Iterator[U]
	index int
}

func (f *flatMapper[T, U]) Next() (U, bool, error) {
	var zero U
	for {
		if f.inner != nil {
			v, ok, err := f.inner.Next()
			if err != nil {
				return zero, false, closeWith(f.up, err)
			}
			if ok {
				return v, true, nil
			}
			f.inner = nil
		}

		v, ok, err := f.up.Next()
		if err != nil || !ok {
			return zero, false, err
		}
		p, err := f.fn(v, f.index)
		f.index++
		if err != nil {
			return zero, false, closeWith(f.up, err)
		}
		f.inner = From(p)
	}
}

func (f *flatMapper[T, U]) Close() error {
	if f.inner != nil {
		_ = f.inner.Close()
		f.inner = nil
	}
	return f.up.Close()
}

// FlatMap maps each upstream item to a producer and yields that producer's
// items before pulling the next upstream item.
func FlatMap[T, U any](it *Iterator[T], fn func(v T, i int) (Producer[U], error)) (*Iterator[U], error) {
	if fn == nil {
		return nil, closeWith(it, seq.InvalidArgument("flatMap", "callback is nil"))
	}
	return From[U](&flatMapper[T, U]{up: it, fn: fn}), nil
}
