package seq

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Value is a sealed interface representing element values.
// Only Null, Undefined, Bool, Int, Float, Text, *Store and *Ref implement it.
type Value interface {
	Kind() Kind
	seqValue() // Sealed - only these types implement it
}

// Kind is the tag of a Value.
type Kind int

const (
	KindNull Kind = iota + 1
	KindUndefined
	KindBool
	KindInt
	KindFloat
	KindText
	KindStore
	KindRef
)

var kindNames = map[Kind]string{
	KindNull:      "null",
	KindUndefined: "undefined",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindText:      "text",
	KindStore:     "store",
	KindRef:       "ref",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Null is a present, empty value. It is distinct from a hole.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) seqValue()  {}

// Undefined is a present value that carries nothing. It is what a hole reads
// as through the array-iterator view, but it is still distinct from a hole.
type Undefined struct{}

func (Undefined) Kind() Kind { return KindUndefined }
func (Undefined) seqValue()  {}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) seqValue()  {}

// Int is an integer value.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) seqValue()  {}

// Float is a floating point value. NaN and infinities are allowed.
type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) seqValue()  {}

// Text is a string value.
type Text string

func (Text) Kind() Kind { return KindText }
func (Text) seqValue()  {}

func (*Store) Kind() Kind { return KindStore }
func (*Store) seqValue()  {}

// Ref is an opaque host reference. Two refs are the same value only if they
// are the same pointer; ID exists for display and serialization.
type Ref struct {
	ID    string
	Label string
	Host  any
}

func (*Ref) Kind() Kind { return KindRef }
func (*Ref) seqValue()  {}

// NewRef wraps a host object in a fresh reference with a UUIDv7 identifier.
func NewRef(label string, host any) *Ref {
	return &Ref{
		ID:    uuid.Must(uuid.NewV7()).String(),
		Label: label,
		Host:  host,
	}
}

func (r *Ref) String() string {
	if r.Label != "" {
		return fmt.Sprintf("ref(%s)", r.Label)
	}
	return fmt.Sprintf("ref(%s)", r.ID)
}

// IsInteger reports whether f holds an integral value representable as Int.
func IsInteger(f Float) bool {
	x := float64(f)
	if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
		return false
	}
	return x >= math.MinInt64 && x < math.MaxInt64
}

// Of converts a Go literal into a Value.
//
// Supported inputs: nil (Null), bool, every integer kind, float32/float64,
// string, []any (nested Store), Value passthrough, and HoleMarker
// entries inside []any. Anything else becomes an opaque Ref. Of is intended
// for tests and literal construction; it panics on an uint64 overflow.
//
// Example: Of([]any{1, []any{2, 3}, HoleMarker, "x"})
func Of(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Value:
		return val
	case bool:
		return Bool(val)
	case int:
		return Int(val)
	case int8:
		return Int(val)
	case int16:
		return Int(val)
	case int32:
		return Int(val)
	case int64:
		return Int(val)
	case uint:
		return Of(uint64(val))
	case uint8:
		return Int(val)
	case uint16:
		return Int(val)
	case uint32:
		return Int(val)
	case uint64:
		if val > math.MaxInt64 {
			panic(fmt.Sprintf("seq.Of: %d overflows Int", val))
		}
		return Int(val)
	case float32:
		return Float(val)
	case float64:
		return Float(val)
	case string:
		return Text(val)
	case []any:
		b := NewBuilder(len(val))
		for _, elem := range val {
			if _, ok := elem.(holeMarker); ok {
				b.AppendHole()
				continue
			}
			b.Append(Of(elem))
		}
		return b.Build()
	default:
		return NewRef(fmt.Sprintf("%T", v), v)
	}
}

type holeMarker struct{}

// HoleMarker marks a hole inside a literal passed to Of.
var HoleMarker any = holeMarker{}
