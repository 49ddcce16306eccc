package jsbridge

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/roach88/strata/internal/pull"
	"github.com/roach88/strata/internal/seq"
)

// jsIterator pulls from a JS iterator object. Close calls the iterator's
// return() method when it has one, the way a for-of loop does on break.
type jsIterator struct {
	b    *Bridge
	it   *goja.Object
	next goja.Callable
	done bool
}

// Iterator wraps a JS iterator, or anything with a Symbol.iterator method,
// as a pull iterator. Exceptions thrown by next() or return() are returned
// as *goja.Exception.
func (b *Bridge) Iterator(v goja.Value) (*pull.Iterator[seq.Value], error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, seq.InvalidArgument(opFromJS, "not iterable: %v", v)
	}
	itv, err := b.call(b.iter, v)
	if err != nil {
		return nil, err
	}
	it, ok := itv.(*goja.Object)
	if !ok {
		return nil, seq.InvalidArgument(opFromJS, "iterator is not an object")
	}
	next, ok := goja.AssertFunction(it.Get("next"))
	if !ok {
		return nil, seq.InvalidArgument(opFromJS, "iterator has no next method")
	}
	return pull.From[seq.Value](&jsIterator{b: b, it: it, next: next}), nil
}

func (j *jsIterator) Next() (seq.Value, bool, error) {
	res, err := j.next(j.it)
	if err != nil {
		j.done = true
		return nil, false, err
	}
	obj, ok := res.(*goja.Object)
	if !ok {
		j.done = true
		return nil, false, fmt.Errorf("jsbridge: iterator result %s is not an object", res)
	}
	if obj.Get("done").ToBoolean() {
		j.done = true
		return nil, false, nil
	}
	v, err := j.b.ToValue(obj.Get("value"))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (j *jsIterator) Close() error {
	if j.done {
		return nil
	}
	j.done = true
	ret, ok := goja.AssertFunction(j.it.Get("return"))
	if !ok {
		return nil
	}
	_, err := ret(j.it)
	return err
}

// Callback is a compiled JS function usable wherever the engines take a
// (value, index) callback.
type Callback func(v seq.Value, i int) (seq.Value, error)

// Func compiles a JS function expression such as "(x, i) => x * 2".
// The function is called with the converted value and the index; its
// result is converted back. Thrown exceptions are returned as
// *goja.Exception.
func (b *Bridge) Func(src string) (Callback, error) {
	fv, err := b.vm.RunString("(" + src + ")")
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	fn, ok := goja.AssertFunction(fv)
	if !ok {
		return nil, seq.InvalidArgument("callback", "%q is not a function", src)
	}
	return func(v seq.Value, i int) (seq.Value, error) {
		out, err := fn(goja.Undefined(), b.FromValue(v), b.vm.ToValue(i))
		if err != nil {
			return nil, err
		}
		return b.ToValue(out)
	}, nil
}

// Predicate adapts the callback to a filter: the result is tested for JS
// truthiness.
func (c Callback) Predicate() func(v seq.Value, i int) (bool, error) {
	return func(v seq.Value, i int) (bool, error) {
		out, err := c(v, i)
		if err != nil {
			return false, err
		}
		return truthy(out), nil
	}
}

func truthy(v seq.Value) bool {
	switch x := v.(type) {
	case nil, seq.Null, seq.Undefined:
		return false
	case seq.Bool:
		return bool(x)
	case seq.Int:
		return x != 0
	case seq.Float:
		return x == x && x != 0
	case seq.Text:
		return x != ""
	}
	return true
}
