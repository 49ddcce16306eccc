// Package jsbridge converts between goja values and seq values so JS
// arrays, array-likes, iterators and functions can feed the engines.
//
// A Bridge is bound to one goja.Runtime and, like the runtime, is not safe
// for concurrent use.
package jsbridge

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/roach88/strata/internal/seq"
)

const opFromJS = "fromJS"

// helpers are evaluated once per Bridge. Property access goes through JS so
// getters, proxy traps and thrown exceptions behave exactly as in script.
const helpersSrc = `({
	has: (o, i) => i in o,
	get: (o, k) => o[k],
	isArray: (o) => Array.isArray(o),
	isArrayLike: (o) => typeof o === 'object' && o !== null && 'length' in o,
	iter: (o) => typeof o.next === 'function' ? o : o[Symbol.iterator](),
	indices: (o, n) => Object.getOwnPropertyNames(o)
		.filter((k) => { const i = Number(k); return String(i >>> 0) === k && i < n; })
		.map(Number)
		.sort((x, y) => x - y),
})`

// sparseScanMin is the length from which arrays are walked by their own
// index keys instead of position by position.
const sparseScanMin = 1 << 16

// Bridge converts values for a single runtime.
type Bridge struct {
	vm        *goja.Runtime
	arrayLike bool
	limits    seq.Limits

	refs    map[*goja.Object]*seq.Ref
	objects map[*seq.Ref]*goja.Object

	has         goja.Callable
	get         goja.Callable
	isArray     goja.Callable
	isArrayLike goja.Callable
	iter        goja.Callable
	indices     goja.Callable
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithArrayLike converts non-array objects with a length property into refs
// whose Host is a lazy seq.ArrayLike view, so a flattener created with
// flatten.WithArrayLike expands them. Arrays that reach themselves are
// converted the same way instead of failing.
func WithArrayLike() Option {
	return func(b *Bridge) { b.arrayLike = true }
}

// WithLimits caps the length of arrays converted eagerly.
func WithLimits(l seq.Limits) Option {
	return func(b *Bridge) { b.limits = l }
}

// New creates a Bridge for vm. It panics if vm is nil.
func New(vm *goja.Runtime, opts ...Option) *Bridge {
	if vm == nil {
		panic("jsbridge: runtime must not be nil")
	}
	b := &Bridge{
		vm:      vm,
		refs:    make(map[*goja.Object]*seq.Ref),
		objects: make(map[*seq.Ref]*goja.Object),
	}
	for _, opt := range opts {
		opt(b)
	}

	h, err := vm.RunString(helpersSrc)
	if err != nil {
		panic(fmt.Sprintf("jsbridge: helpers: %v", err))
	}
	obj := h.ToObject(vm)
	b.has = mustFunc(obj, "has")
	b.get = mustFunc(obj, "get")
	b.isArray = mustFunc(obj, "isArray")
	b.isArrayLike = mustFunc(obj, "isArrayLike")
	b.iter = mustFunc(obj, "iter")
	b.indices = mustFunc(obj, "indices")
	return b
}

func mustFunc(obj *goja.Object, name string) goja.Callable {
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		panic("jsbridge: helper " + name + " is not a function")
	}
	return fn
}

// Runtime returns the bound runtime.
func (b *Bridge) Runtime() *goja.Runtime { return b.vm }

// Eval runs src and converts its completion value.
func (b *Bridge) Eval(src string) (seq.Value, error) {
	v, err := b.vm.RunString(src)
	if err != nil {
		return nil, err
	}
	return b.ToValue(v)
}

// ToValue converts a JS value. Arrays become stores with holes wherever an
// index is not "in" the array; an array reached more than once within one
// conversion becomes the same store each time. Functions and plain objects
// become refs, the same ref every time for the same object.
func (b *Bridge) ToValue(v goja.Value) (seq.Value, error) {
	return b.toValue(v, newConversion())
}

// conversion tracks the arrays of one ToValue call. Stores are snapshots,
// so they are shared only within the call that made them.
type conversion struct {
	active map[*goja.Object]struct{}
	stores map[*goja.Object]*seq.Store
}

func newConversion() *conversion {
	return &conversion{
		active: make(map[*goja.Object]struct{}),
		stores: make(map[*goja.Object]*seq.Store),
	}
}

// ToStore converts a JS array into a store.
func (b *Bridge) ToStore(v goja.Value) (*seq.Store, error) {
	sv, err := b.ToValue(v)
	if err != nil {
		return nil, err
	}
	s, ok := sv.(*seq.Store)
	if !ok {
		return nil, seq.InvalidArgument(opFromJS, "expected an array, got %s", seq.Describe(sv))
	}
	return s, nil
}

func (b *Bridge) toValue(v goja.Value, c *conversion) (seq.Value, error) {
	if v == nil || goja.IsUndefined(v) {
		return seq.Undefined{}, nil
	}
	if goja.IsNull(v) {
		return seq.Null{}, nil
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		switch x := v.Export().(type) {
		case bool:
			return seq.Bool(x), nil
		case int64:
			return seq.Int(x), nil
		case float64:
			return seq.Float(x), nil
		case string:
			return seq.Text(x), nil
		}
		// Symbols and bigints pass through opaquely.
		return seq.NewRef(v.String(), v), nil
	}

	isArray, err := b.call(b.isArray, obj)
	if err != nil {
		return nil, err
	}
	if isArray.ToBoolean() {
		if st, ok := c.stores[obj]; ok {
			return st, nil
		}
		if _, cyclic := c.active[obj]; cyclic {
			if b.arrayLike {
				return b.ref(obj, true), nil
			}
			return nil, seq.Cyclic(opFromJS)
		}
		c.active[obj] = struct{}{}
		defer delete(c.active, obj)
		st, err := b.array(obj, c)
		if err != nil {
			return nil, err
		}
		c.stores[obj] = st
		return st, nil
	}

	if b.arrayLike {
		if _, fn := goja.AssertFunction(obj); !fn {
			likes, err := b.call(b.isArrayLike, obj)
			if err != nil {
				return nil, err
			}
			if likes.ToBoolean() {
				return b.ref(obj, true), nil
			}
		}
	}
	return b.ref(obj, false), nil
}

// array converts a JS array eagerly.
func (b *Bridge) array(obj *goja.Object, c *conversion) (*seq.Store, error) {
	n, err := b.length(obj)
	if err != nil {
		return nil, err
	}
	if err := b.limits.CheckLength(opFromJS, n); err != nil {
		return nil, err
	}
	if n >= sparseScanMin {
		return b.sparseArray(obj, n, c)
	}

	out := seq.NewBuilder(0)
	for i := 0; i < n; i++ {
		v, present, err := b.index(obj, i)
		if err != nil {
			return nil, err
		}
		if !present {
			out.AppendHole()
			continue
		}
		sv, err := b.toValue(v, c)
		if err != nil {
			return nil, err
		}
		out.Append(sv)
	}
	return out.Build(), nil
}

// sparseArray converts a long array by visiting only its own index keys,
// so runs of holes cost nothing to skip. Indices inherited from the
// prototype chain are not seen on this path.
func (b *Bridge) sparseArray(obj *goja.Object, n int, c *conversion) (*seq.Store, error) {
	keys, err := b.call(b.indices, obj, b.vm.ToValue(n))
	if err != nil {
		return nil, err
	}
	exported, _ := keys.Export().([]any)

	out := seq.NewBuilder(0)
	for _, k := range exported {
		var i int
		switch x := k.(type) {
		case int64:
			i = int(x)
		case float64:
			i = int(x)
		default:
			continue
		}
		v, present, err := b.index(obj, i)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		sv, err := b.toValue(v, c)
		if err != nil {
			return nil, err
		}
		out.SetLength(i)
		out.Append(sv)
	}
	out.SetLength(n)
	return out.Build(), nil
}

// ref returns the cached ref for obj, creating it on first sight.
func (b *Bridge) ref(obj *goja.Object, view bool) *seq.Ref {
	if r, ok := b.refs[obj]; ok {
		return r
	}
	label := obj.ClassName()
	var host any = obj
	if view {
		host = &arrayView{b: b, obj: obj}
	}
	r := seq.NewRef(label, host)
	b.refs[obj] = r
	b.objects[r] = obj
	return r
}

func (b *Bridge) length(obj *goja.Object) (int, error) {
	lv, err := b.call(b.get, obj, b.vm.ToValue("length"))
	if err != nil {
		return 0, err
	}
	n := lv.ToInteger()
	if n < 0 {
		n = 0
	}
	return int(n), nil
}

func (b *Bridge) index(obj *goja.Object, i int) (goja.Value, bool, error) {
	key := b.vm.ToValue(i)
	present, err := b.call(b.has, obj, key)
	if err != nil {
		return nil, false, err
	}
	if !present.ToBoolean() {
		return nil, false, nil
	}
	v, err := b.call(b.get, obj, key)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (b *Bridge) call(fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	return fn(goja.Undefined(), args...)
}

// arrayView exposes a JS array-like object lazily. Every access runs
// through the runtime, so host failures surface at the access that
// triggered them.
type arrayView struct {
	b   *Bridge
	obj *goja.Object
}

func (a *arrayView) Length() (int, error) {
	return a.b.length(a.obj)
}

func (a *arrayView) Index(i int) (seq.Value, bool, error) {
	v, present, err := a.b.index(a.obj, i)
	if err != nil || !present {
		return nil, false, err
	}
	c := newConversion()
	c.active[a.obj] = struct{}{}
	sv, err := a.b.toValue(v, c)
	if err != nil {
		return nil, false, err
	}
	return sv, true, nil
}

// FromValue converts a seq value into JS. Stores become sparse arrays: a
// hole is an index that is not "in" the array. Refs made by this bridge
// return their original object.
func (b *Bridge) FromValue(v seq.Value) goja.Value {
	switch x := v.(type) {
	case nil, seq.Undefined:
		return goja.Undefined()
	case seq.Null:
		return goja.Null()
	case seq.Bool:
		return b.vm.ToValue(bool(x))
	case seq.Int:
		return b.vm.ToValue(int64(x))
	case seq.Float:
		return b.vm.ToValue(float64(x))
	case seq.Text:
		return b.vm.ToValue(string(x))
	case *seq.Store:
		arr := b.vm.NewArray()
		for i, elem := range x.All() {
			_ = arr.Set(strconv.Itoa(i), b.FromValue(elem))
		}
		_ = arr.Set("length", x.Len())
		return arr
	case *seq.Ref:
		if obj, ok := b.objects[x]; ok {
			return obj
		}
		if gv, ok := x.Host.(goja.Value); ok {
			return gv
		}
		return b.vm.ToValue(x)
	}
	return goja.Undefined()
}
