package pull

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/strata/internal/seq"
)

// Future is the pending result of one asynchronous pull. It settles exactly
// once.
type Future[T any] struct {
	ready chan struct{}
	once  sync.Once
	value T
	ok    bool
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{ready: make(chan struct{})}
}

// Settled returns a future that has already settled.
func Settled[T any](v T, ok bool, err error) *Future[T] {
	f := newFuture[T]()
	f.settle(v, ok, err)
	return f
}

func (f *Future[T]) settle(v T, ok bool, err error) {
	f.once.Do(func() {
		f.value, f.ok, f.err = v, ok, err
		close(f.ready)
	})
}

// Await blocks until the future settles or ctx is done. A cancelled wait
// returns ctx.Err(); the future itself stays pending.
func (f *Future[T]) Await(ctx context.Context) (T, bool, error) {
	select {
	case <-f.ready:
		return f.value, f.ok, f.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Pending reports whether the future has not settled yet.
func (f *Future[T]) Pending() bool {
	select {
	case <-f.ready:
		return false
	default:
		return true
	}
}

// AsyncProducer issues pulls that settle later.
type AsyncProducer[T any] interface {
	Next(ctx context.Context) *Future[T]
}

// AsyncFunc adapts a blocking next function to AsyncProducer. Every pull
// runs on its own goroutine.
type AsyncFunc[T any] func(ctx context.Context) (T, bool, error)

// Next implements AsyncProducer.
func (fn AsyncFunc[T]) Next(ctx context.Context) *Future[T] {
	f := newFuture[T]()
	go func() {
		f.settle(fn(ctx))
	}()
	return f
}

// AsyncIterator owns an asynchronous producer.
//
// INVARIANTS:
//   - at most one pull is outstanding
//   - done never flips back to false
//   - the upstream is closed at most once, and never after it finished
//     on its own
type AsyncIterator[T any] struct {
	src      AsyncProducer[T]
	closer   Closer
	inflight *Future[T]
	mu       sync.Mutex
	done     bool
	// finished is set once the upstream ended or was closed.
	finished bool
	// deferClose waits for a pending pull before closing an upstream that
	// is not safe to close concurrently with it.
	deferClose bool
	closeMu    sync.Mutex
}

// FromAsync wraps p.
func FromAsync[T any](p AsyncProducer[T]) *AsyncIterator[T] {
	if it, ok := p.(*AsyncIterator[T]); ok {
		return it
	}
	return &AsyncIterator[T]{src: p}
}

// Go lifts a synchronous producer. Each pull runs p.Next on its own
// goroutine; a cancelled context abandons the wait, not the pull.
func Go[T any](p Producer[T]) *AsyncIterator[T] {
	it := From(p)
	return &AsyncIterator[T]{
		src: AsyncFunc[T](func(context.Context) (T, bool, error) {
			return it.Next()
		}),
		closer:     it,
		deferClose: true,
	}
}

// FromChan yields values received from ch until it is closed.
func FromChan[T any](ch <-chan T) *AsyncIterator[T] {
	return FromAsync[T](AsyncFunc[T](func(ctx context.Context) (T, bool, error) {
		select {
		case v, ok := <-ch:
			return v, ok, nil
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		}
	}))
}

// Next issues one pull. Calling Next while the previous pull is still
// pending yields a future that fails with InvalidArgument.
func (it *AsyncIterator[T]) Next(ctx context.Context) *Future[T] {
	var zero T
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.done {
		return Settled(zero, false, nil)
	}
	if it.inflight != nil && it.inflight.Pending() {
		return Settled[T](zero, false, seq.InvalidArgument("next", "previous pull is still pending"))
	}

	upstream := it.src.Next(ctx)
	f := newFuture[T]()
	it.inflight = f
	go func() {
		<-upstream.ready
		v, ok, err := upstream.value, upstream.ok, upstream.err
		if err != nil || !ok {
			it.mu.Lock()
			it.done = true
			// An abandoned pull leaves the upstream open.
			if !isCancellation(err) {
				it.finished = true
			}
			it.mu.Unlock()
			v = zero
			ok = false
		}
		f.settle(v, ok, err)
	}()
	return f
}

// Close marks the iterator done and closes the upstream if it is a Closer.
// An upstream that ended on its own is not closed; one whose last pull was
// cancelled is. A producer lifted by Go with a pull still running is closed
// once that pull settles, and Close returns nil.
func (it *AsyncIterator[T]) Close() error {
	it.closeMu.Lock()
	defer it.closeMu.Unlock()

	it.mu.Lock()
	if it.finished {
		it.mu.Unlock()
		return nil
	}
	it.done = true
	it.finished = true
	pending := it.inflight
	it.mu.Unlock()

	if it.deferClose && pending != nil && pending.Pending() {
		go func() {
			<-pending.ready
			_ = it.closeUpstream()
		}()
		return nil
	}
	return it.closeUpstream()
}

func (it *AsyncIterator[T]) closeUpstream() error {
	if it.closer != nil {
		return it.closer.Close()
	}
	if c, ok := it.src.(Closer); ok {
		return c.Close()
	}
	return nil
}

// MapAsync applies fn to each upstream item once it has settled.
func MapAsync[T, U any](it *AsyncIterator[T], fn func(ctx context.Context, v T, i int) (U, error)) (*AsyncIterator[U], error) {
	if fn == nil {
		return nil, asyncCloseWith(it, seq.InvalidArgument("map", "callback is nil"))
	}
	index := 0
	return &AsyncIterator[U]{
		src: AsyncFunc[U](func(ctx context.Context) (U, bool, error) {
			var zero U
			v, ok, err := it.Next(ctx).Await(ctx)
			if err != nil {
				return zero, false, asyncCloseWith(it, err)
			}
			if !ok {
				return zero, false, nil
			}
			out, err := fn(ctx, v, index)
			index++
			if err != nil {
				return zero, false, asyncCloseWith(it, err)
			}
			return out, true, nil
		}),
		closer: it,
	}, nil
}

// ForEachAsync awaits every pull in turn and calls fn for each item. A
// failed pull, an fn error or ctx cancellation stops the drain at once and
// is returned unchanged.
func ForEachAsync[T any](ctx context.Context, it *AsyncIterator[T], fn func(ctx context.Context, v T, i int) error) error {
	if fn == nil {
		return asyncCloseWith(it, seq.InvalidArgument("forEach", "callback is nil"))
	}
	for i := 0; ; i++ {
		v, ok, err := it.Next(ctx).Await(ctx)
		if err != nil {
			return asyncCloseWith(it, err)
		}
		if !ok {
			return nil
		}
		if err := fn(ctx, v, i); err != nil {
			return asyncCloseWith(it, err)
		}
	}
}

// ToSliceAsync awaits every pull in turn and collects the items.
func ToSliceAsync[T any](ctx context.Context, it *AsyncIterator[T]) ([]T, error) {
	var out []T
	err := ForEachAsync(ctx, it, func(_ context.Context, v T, _ int) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func asyncCloseWith[T any](it *AsyncIterator[T], err error) error {
	_ = it.Close()
	return err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
