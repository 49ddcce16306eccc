package keyset

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/strata/internal/seq"
)

// Equality is the key identity capability of a Set: two keys are the same
// key iff Equal reports true, and equal keys must hash alike.
//
// Name identifies the capability. Two sets can only be combined when their
// equalities report the same name.
type Equality interface {
	Name() string
	Hash(v seq.Value) uint64
	Equal(a, b seq.Value) bool
}

// Hash input tags. Every key is hashed as a tag byte followed by a payload,
// so values of different kinds never collide by construction.
const (
	tagNull byte = iota + 1
	tagUndefined
	tagFalse
	tagTrue
	tagNumber
	tagNaN
	tagFloat
	tagText
	tagStore
	tagRef
	tagHole
)

// sameValueZero implements SameValueZero.
type sameValueZero struct{}

// SameValueZero is the default equality: numbers by value across Int and
// Float (NaN equals NaN, +0 equals -0), text by content, stores and refs by
// identity.
var SameValueZero Equality = sameValueZero{}

func (sameValueZero) Name() string { return "sameValueZero" }

func (sameValueZero) Equal(a, b seq.Value) bool { return seq.SameValueZero(a, b) }

func (sameValueZero) Hash(v seq.Value) uint64 {
	d := xxhash.New()
	switch x := v.(type) {
	case *seq.Store:
		writeUint(d, tagStore, x.ID())
	case *seq.Ref:
		d.Write([]byte{tagRef})
		d.WriteString(x.ID)
	default:
		writeScalar(d, v)
	}
	return d.Sum64()
}

// structural implements Structural.
type structural struct{}

// Structural compares stores slot by slot (seq.Equal) instead of by
// identity, so two stores with the same contents are one key.
var Structural Equality = structural{}

func (structural) Name() string { return "structural" }

func (structural) Equal(a, b seq.Value) bool { return seq.Equal(a, b) }

func (structural) Hash(v seq.Value) uint64 {
	d := xxhash.New()
	writeStructural(d, v)
	return d.Sum64()
}

func writeStructural(d *xxhash.Digest, v seq.Value) {
	switch x := v.(type) {
	case *seq.Store:
		writeUint(d, tagStore, uint64(x.Len()))
		for _, slot := range x.Slots() {
			elem, ok := slot.Value()
			if !ok {
				d.Write([]byte{tagHole})
				continue
			}
			writeStructural(d, elem)
		}
	case *seq.Ref:
		d.Write([]byte{tagRef})
		d.WriteString(x.ID)
	case seq.Int:
		// Int and Float are never structurally equal.
		writeUint(d, tagNumber, uint64(x))
	case seq.Float:
		f := float64(x)
		switch {
		case math.IsNaN(f):
			d.Write([]byte{tagNaN})
		case f == 0:
			writeUint(d, tagFloat, 0)
		default:
			writeUint(d, tagFloat, math.Float64bits(f))
		}
	default:
		writeScalar(d, v)
	}
}

// writeScalar hashes non-container values with SameValueZero semantics.
func writeScalar(d *xxhash.Digest, v seq.Value) {
	switch x := v.(type) {
	case nil:
		d.Write([]byte{tagUndefined})
	case seq.Null:
		d.Write([]byte{tagNull})
	case seq.Undefined:
		d.Write([]byte{tagUndefined})
	case seq.Bool:
		if x {
			d.Write([]byte{tagTrue})
		} else {
			d.Write([]byte{tagFalse})
		}
	case seq.Int:
		writeUint(d, tagNumber, uint64(x))
	case seq.Float:
		switch {
		case math.IsNaN(float64(x)):
			d.Write([]byte{tagNaN})
		case seq.IsInteger(x):
			// Integral floats hash like the Int they equal; -0 becomes 0.
			writeUint(d, tagNumber, uint64(int64(x)))
		default:
			writeUint(d, tagFloat, math.Float64bits(float64(x)))
		}
	case seq.Text:
		d.Write([]byte{tagText})
		d.WriteString(string(x))
	}
}

func writeUint(d *xxhash.Digest, tag byte, n uint64) {
	var buf [9]byte
	buf[0] = tag
	binary.LittleEndian.PutUint64(buf[1:], n)
	d.Write(buf[:])
}

// normalized wraps another equality and compares text keys after Unicode
// normalization.
type normalized struct {
	base Equality
	form norm.Form
}

// Normalized returns an equality that treats text keys as equal when their
// normalized forms are equal. Other keys use base unchanged.
func Normalized(base Equality, form norm.Form) Equality {
	if base == nil {
		base = SameValueZero
	}
	return normalized{base: base, form: form}
}

func (n normalized) Name() string {
	return n.base.Name() + "+" + formName(n.form)
}

func (n normalized) Hash(v seq.Value) uint64 {
	return n.base.Hash(n.normalize(v))
}

func (n normalized) Equal(a, b seq.Value) bool {
	return n.base.Equal(n.normalize(a), n.normalize(b))
}

func (n normalized) normalize(v seq.Value) seq.Value {
	if t, ok := v.(seq.Text); ok {
		return seq.Text(n.form.String(string(t)))
	}
	return v
}

func formName(f norm.Form) string {
	switch f {
	case norm.NFC:
		return "NFC"
	case norm.NFD:
		return "NFD"
	case norm.NFKC:
		return "NFKC"
	case norm.NFKD:
		return "NFKD"
	}
	return "unknown"
}

// Lookup resolves an equality by name. It knows the built-in equalities and
// their NFC, NFD, NFKC and NFKD normalized variants.
func Lookup(name string) (Equality, bool) {
	for _, base := range []Equality{SameValueZero, Structural} {
		if base.Name() == name {
			return base, true
		}
		for _, f := range []norm.Form{norm.NFC, norm.NFD, norm.NFKC, norm.NFKD} {
			n := Normalized(base, f)
			if n.Name() == name {
				return n, true
			}
		}
	}
	return nil, false
}
