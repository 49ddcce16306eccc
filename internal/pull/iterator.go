package pull

import (
	"iter"

	"github.com/roach88/strata/internal/seq"
)

// Producer yields items one at a time. ok == false means the producer is
// exhausted; the value is then meaningless.
type Producer[T any] interface {
	Next() (value T, ok bool, err error)
}

// Closer is implemented by producers that hold resources or need to be told
// when a consumer stops early.
type Closer interface {
	Close() error
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc[T any] func() (T, bool, error)

// Next implements Producer.
func (f ProducerFunc[T]) Next() (T, bool, error) { return f() }

// Iterator is the single owner of an upstream producer.
//
// INVARIANTS:
//   - done never flips back to false
//   - at most one Next is in progress at a time
type Iterator[T any] struct {
	src  Producer[T]
	done bool
	busy bool
}

// From wraps p. Wrapping an *Iterator returns it unchanged.
func From[T any](p Producer[T]) *Iterator[T] {
	if it, ok := p.(*Iterator[T]); ok {
		return it
	}
	if p == nil {
		return Empty[T]()
	}
	return &Iterator[T]{src: p}
}

// FromFunc wraps a next function.
func FromFunc[T any](fn func() (T, bool, error)) *Iterator[T] {
	if fn == nil {
		return Empty[T]()
	}
	return From[T](ProducerFunc[T](fn))
}

// Empty returns an exhausted iterator.
func Empty[T any]() *Iterator[T] {
	return &Iterator[T]{done: true}
}

// FromSlice yields the elements of xs in order.
func FromSlice[T any](xs []T) *Iterator[T] {
	i := 0
	return FromFunc(func() (T, bool, error) {
		if i >= len(xs) {
			var zero T
			return zero, false, nil
		}
		v := xs[i]
		i++
		return v, true, nil
	})
}

// FromStore yields one value per position of s, reading holes as
// Undefined.
func FromStore(s *seq.Store) *Iterator[seq.Value] {
	i := 0
	return FromFunc(func() (seq.Value, bool, error) {
		if i >= s.Len() {
			return nil, false, nil
		}
		v, ok := s.Get(i)
		i++
		if !ok {
			v = seq.Undefined{}
		}
		return v, true, nil
	})
}

// seqProducer pulls from a range-over-func iterator.
type seqProducer[T any] struct {
	next func() (T, bool)
	stop func()
}

func (p *seqProducer[T]) Next() (T, bool, error) {
	v, ok := p.next()
	return v, ok, nil
}

func (p *seqProducer[T]) Close() error {
	p.stop()
	return nil
}

// FromSeq adapts a range-over-func iterator. The iterator runs only as far
// as it is pulled; closing the result stops it.
func FromSeq[T any](s iter.Seq[T]) *Iterator[T] {
	next, stop := iter.Pull(s)
	return From[T](&seqProducer[T]{next: next, stop: stop})
}

// Next pulls the next item.
func (it *Iterator[T]) Next() (T, bool, error) {
	var zero T
	if it.done {
		return zero, false, nil
	}
	if it.busy {
		return zero, false, seq.InvalidArgument("next", "iterator is already running")
	}

	it.busy = true
	v, ok, err := it.src.Next()
	it.busy = false

	if err != nil || !ok {
		it.done = true
		return zero, false, err
	}
	return v, true, nil
}

// Close marks the iterator done and closes the upstream if it is a Closer.
// Closing an exhausted or already closed iterator does nothing.
func (it *Iterator[T]) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	if c, ok := it.src.(Closer); ok {
		return c.Close()
	}
	return nil
}

// Done reports whether the iterator is exhausted, failed or closed.
func (it *Iterator[T]) Done() bool {
	return it.done
}

// Seq returns a range-over-func view. A failure is yielded once as the
// error half of the pair and ends the range. Breaking out of the range
// closes the iterator.
func (it *Iterator[T]) Seq() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, ok, err := it.Next()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			if !yield(v, nil) {
				_ = it.Close()
				return
			}
		}
	}
}

// closeWith closes it and returns err. Close errors are dropped in favour of
// err, which is the failure the caller must see.
func closeWith[T any](it *Iterator[T], err error) error {
	_ = it.Close()
	return err
}
