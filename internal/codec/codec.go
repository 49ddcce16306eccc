// Package codec is the compact binary form of stores and key sets, used by
// the catalog for persistence.
//
// Every slot is written as a MessagePack array of one or two elements: a
// tag, then a payload when the tag needs one. A store's payload is an array
// holding its length followed by its dense prefix, so a sparse tail costs
// nothing:
//
//	[tagStore, [length, slot0, slot1, ...]]
//
// A key set is written as [equalityName, store-of-keys].
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/strata/internal/keyset"
	"github.com/roach88/strata/internal/seq"
)

// Slot tags. The values are part of the on-disk format.
const (
	tagHole      = 0
	tagUndefined = 1
	tagNull      = 2
	tagBool      = 3
	tagInt       = 4
	tagFloat     = 5
	tagText      = 6
	tagStore     = 7
	tagRef       = 8
)

// MaxDepth bounds store nesting on decode.
const MaxDepth = 4096

// ErrCorrupt is wrapped by every decoding error caused by malformed input.
var ErrCorrupt = errors.New("codec: corrupt data")

// Marshal encodes a value. Refs are written by ID; their hosts are lost.
// A store that contains itself cannot be encoded.
func Marshal(v seq.Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	err := (&encoder{enc: enc, active: map[*seq.Store]struct{}{}}).slot(seq.Present(v))
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a value written by Marshal. Refs are resolved through
// refs; a nil table gives every ID a fresh ref private to this call.
func Unmarshal(data []byte, refs *seq.RefTable) (seq.Value, error) {
	if refs == nil {
		refs = seq.NewRefTable()
	}
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	slot, err := (&decoder{dec: dec, refs: refs}).slot(0)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	v, ok := slot.Value()
	if !ok {
		return nil, fmt.Errorf("%w: top-level hole", ErrCorrupt)
	}
	return v, nil
}

// UnmarshalStore is Unmarshal for data known to hold a store.
func UnmarshalStore(data []byte, refs *seq.RefTable) (*seq.Store, error) {
	v, err := Unmarshal(data, refs)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*seq.Store)
	if !ok {
		return nil, fmt.Errorf("%w: expected a store, got %s", ErrCorrupt, v.Kind())
	}
	return s, nil
}

// MarshalSet encodes a key set with the name of its equality.
func MarshalSet(s *keyset.Set) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	defer msgpack.PutEncoder(enc)

	if err := enc.EncodeArrayLen(2); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(s.Equality().Name()); err != nil {
		return nil, err
	}
	e := &encoder{enc: enc, active: map[*seq.Store]struct{}{}}
	if err := e.slot(seq.Present(s.ToStore())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalSet decodes a key set written by MarshalSet. The equality is
// resolved with keyset.Lookup; an unknown name is an error.
func UnmarshalSet(data []byte, refs *seq.RefTable) (*keyset.Set, error) {
	if refs == nil {
		refs = seq.NewRefTable()
	}
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	defer msgpack.PutDecoder(dec)

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if n != 2 {
		return nil, fmt.Errorf("%w: set header has %d elements", ErrCorrupt, n)
	}
	name, err := dec.DecodeString()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	eq, ok := keyset.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown equality %q", name)
	}

	slot, err := (&decoder{dec: dec, refs: refs}).slot(0)
	if err != nil {
		return nil, err
	}
	v, _ := slot.Value()
	st, ok := v.(*seq.Store)
	if !ok {
		return nil, fmt.Errorf("%w: set keys are not a store", ErrCorrupt)
	}
	return keyset.FromStore(eq, st), nil
}

type encoder struct {
	enc    *msgpack.Encoder
	active map[*seq.Store]struct{}
}

func (e *encoder) tag(tag int, withPayload bool) error {
	n := 1
	if withPayload {
		n = 2
	}
	if err := e.enc.EncodeArrayLen(n); err != nil {
		return err
	}
	return e.enc.EncodeInt(int64(tag))
}

func (e *encoder) slot(s seq.Slot) error {
	v, ok := s.Value()
	if !ok {
		return e.tag(tagHole, false)
	}

	switch x := v.(type) {
	case seq.Undefined:
		return e.tag(tagUndefined, false)
	case seq.Null:
		return e.tag(tagNull, false)
	case seq.Bool:
		if err := e.tag(tagBool, true); err != nil {
			return err
		}
		return e.enc.EncodeBool(bool(x))
	case seq.Int:
		if err := e.tag(tagInt, true); err != nil {
			return err
		}
		return e.enc.EncodeInt(int64(x))
	case seq.Float:
		if err := e.tag(tagFloat, true); err != nil {
			return err
		}
		return e.enc.EncodeFloat64(float64(x))
	case seq.Text:
		if err := e.tag(tagText, true); err != nil {
			return err
		}
		return e.enc.EncodeString(string(x))
	case *seq.Ref:
		if err := e.tag(tagRef, true); err != nil {
			return err
		}
		return e.enc.EncodeString(x.ID)
	case *seq.Store:
		return e.store(x)
	default:
		return fmt.Errorf("codec: cannot encode %T", v)
	}
}

func (e *encoder) store(s *seq.Store) error {
	if _, ok := e.active[s]; ok {
		return seq.Cyclic("encode")
	}
	e.active[s] = struct{}{}
	defer delete(e.active, s)

	if err := e.tag(tagStore, true); err != nil {
		return err
	}
	extent := s.Extent()
	if err := e.enc.EncodeArrayLen(extent + 1); err != nil {
		return err
	}
	if err := e.enc.EncodeInt(int64(s.Len())); err != nil {
		return err
	}
	for i := 0; i < extent; i++ {
		if err := e.slot(s.At(i)); err != nil {
			return err
		}
	}
	return nil
}

type decoder struct {
	dec  *msgpack.Decoder
	refs *seq.RefTable
}

func (d *decoder) slot(depth int) (seq.Slot, error) {
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return seq.Slot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if n != 1 && n != 2 {
		return seq.Slot{}, fmt.Errorf("%w: slot has %d elements", ErrCorrupt, n)
	}
	tag, err := d.dec.DecodeInt()
	if err != nil {
		return seq.Slot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	want := 2
	switch tag {
	case tagHole, tagUndefined, tagNull:
		want = 1
	}
	if n != want {
		return seq.Slot{}, fmt.Errorf("%w: tag %d with %d elements", ErrCorrupt, tag, n)
	}

	switch tag {
	case tagHole:
		return seq.Hole(), nil
	case tagUndefined:
		return seq.Present(seq.Undefined{}), nil
	case tagNull:
		return seq.Present(seq.Null{}), nil
	case tagBool:
		b, err := d.dec.DecodeBool()
		return d.present(seq.Bool(b), err)
	case tagInt:
		i, err := d.dec.DecodeInt64()
		return d.present(seq.Int(i), err)
	case tagFloat:
		f, err := d.dec.DecodeFloat64()
		return d.present(seq.Float(f), err)
	case tagText:
		s, err := d.dec.DecodeString()
		return d.present(seq.Text(s), err)
	case tagRef:
		id, err := d.dec.DecodeString()
		if err == nil && id == "" {
			err = errors.New("empty ref id")
		}
		if err != nil {
			return seq.Slot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return seq.Present(d.refs.Resolve(id)), nil
	case tagStore:
		if depth >= MaxDepth {
			return seq.Slot{}, fmt.Errorf("%w: nesting deeper than %d", ErrCorrupt, MaxDepth)
		}
		s, err := d.store(depth + 1)
		if err != nil {
			return seq.Slot{}, err
		}
		return seq.Present(s), nil
	default:
		return seq.Slot{}, fmt.Errorf("%w: unknown tag %d", ErrCorrupt, tag)
	}
}

func (d *decoder) present(v seq.Value, err error) (seq.Slot, error) {
	if err != nil {
		return seq.Slot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return seq.Present(v), nil
}

func (d *decoder) store(depth int) (*seq.Store, error) {
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: store without length", ErrCorrupt)
	}
	length, err := d.dec.DecodeInt64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	extent := n - 1
	if length < int64(extent) || length > math.MaxInt32 {
		return nil, fmt.Errorf("%w: store length %d with %d slots", ErrCorrupt, length, extent)
	}

	b := seq.NewBuilder(extent)
	for i := 0; i < extent; i++ {
		slot, err := d.slot(depth)
		if err != nil {
			return nil, err
		}
		b.AppendSlot(slot)
	}
	b.SetLength(int(length))
	return b.Build(), nil
}
