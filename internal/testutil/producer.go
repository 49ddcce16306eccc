package testutil

import "errors"

// ErrInjected is the default failure returned by RecordingProducer.
var ErrInjected = errors.New("injected producer failure")

// RecordingProducer yields Items in order and records how it was driven.
//
// Set FailAt >= 0 to make the pull with that zero-based number fail with
// Err (or ErrInjected). Set Endless to repeat Items forever, which models a
// generator with no known length.
//
// It implements the pull.Producer and pull.Closer contracts without
// importing the pull package.
type RecordingProducer[T any] struct {
	Items   []T
	Endless bool
	FailAt  int
	Err     error

	Pulls    int
	Closes   int
	pos      int
	finished bool
}

// NewRecordingProducer creates a producer over items that never fails.
func NewRecordingProducer[T any](items ...T) *RecordingProducer[T] {
	return &RecordingProducer[T]{Items: items, FailAt: -1}
}

// Next yields the next item.
func (p *RecordingProducer[T]) Next() (T, bool, error) {
	var zero T
	n := p.Pulls
	p.Pulls++
	if p.FailAt >= 0 && n == p.FailAt {
		if p.Err != nil {
			return zero, false, p.Err
		}
		return zero, false, ErrInjected
	}
	if p.finished || len(p.Items) == 0 {
		p.finished = true
		return zero, false, nil
	}
	if p.pos >= len(p.Items) {
		if !p.Endless {
			p.finished = true
			return zero, false, nil
		}
		p.pos = 0
	}
	v := p.Items[p.pos]
	p.pos++
	return v, true, nil
}

// Close records the call.
func (p *RecordingProducer[T]) Close() error {
	p.Closes++
	return nil
}

// Ints returns 0..n-1.
func Ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
