package seq

import (
	"math"
	"strconv"
	"strings"
)

// SameValueZero reports whether a and b are the same key.
//
// Numbers compare by numeric value across Int and Float, NaN equals NaN and
// +0 equals -0. Text compares by content. Stores and refs compare by
// identity. Null and Undefined are only equal to themselves.
func SameValueZero(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		return sameNumber(a, b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Null, Undefined:
		return true
	case Bool:
		return x == b.(Bool)
	case Text:
		return x == b.(Text)
	case *Store:
		return x == b.(*Store)
	case *Ref:
		return x == b.(*Ref)
	}
	return false
}

// Equal reports structural equality: stores are compared slot by slot with
// holes positional, everything else follows SameValueZero except that Int
// and Float never compare equal to each other.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	x, ok := a.(*Store)
	if !ok {
		return SameValueZero(a, b)
	}
	y := b.(*Store)
	if x == y {
		return true
	}
	if x == nil || y == nil {
		return x.Len() == 0 && y.Len() == 0
	}
	if x.Len() != y.Len() {
		return false
	}
	n := max(len(x.slots), len(y.slots))
	for i := 0; i < n; i++ {
		va, okA := x.Get(i)
		vb, okB := y.Get(i)
		if okA != okB {
			return false
		}
		if okA && !Equal(va, vb) {
			return false
		}
	}
	return true
}

func isNumber(v Value) bool {
	k := v.Kind()
	return k == KindInt || k == KindFloat
}

func sameNumber(a, b Value) bool {
	ai, aInt := a.(Int)
	bi, bInt := b.(Int)
	switch {
	case aInt && bInt:
		return ai == bi
	case aInt:
		return floatEqualsInt(b.(Float), ai)
	case bInt:
		return floatEqualsInt(a.(Float), bi)
	}
	fa, fb := float64(a.(Float)), float64(b.(Float))
	if math.IsNaN(fa) && math.IsNaN(fb) {
		return true
	}
	return fa == fb
}

func floatEqualsInt(f Float, i Int) bool {
	return IsInteger(f) && int64(f) == int64(i)
}

// Describe renders a value for diagnostics and error messages.
func Describe(v Value) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case Null:
		return "null"
	case Undefined:
		return "undefined"
	case Bool:
		return strconv.FormatBool(bool(x))
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return formatFloat(float64(x))
	case Text:
		return strconv.Quote(string(x))
	case *Store:
		var sb strings.Builder
		writeDebug(&sb, x)
		return sb.String()
	case *Ref:
		return x.String()
	}
	return "<unknown>"
}
