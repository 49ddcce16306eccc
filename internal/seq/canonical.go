package seq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Marker keys used by canonical JSON for slots and values JSON cannot
// express natively.
const (
	markerHole      = "$hole"
	markerUndefined = "$undefined"
	markerFloat     = "$float"
	markerRef       = "$ref"
)

// MarshalCanonical produces canonical JSON for a value.
// This is the ONLY serialization used for digests and golden traces.
//
// Encoding rules:
//  1. Strings are NFC normalized; only '"', '\\' and control characters are
//     escaped (no HTML escaping, U+2028/U+2029 stay literal).
//  2. Ints are plain integers. Finite floats always carry '.' or an exponent
//     so they never read back as Ints.
//  3. Stores are arrays. Holes are {"$hole":true}.
//  4. Undefined is {"$undefined":true}; NaN and infinities are
//     {"$float":"NaN"|"Infinity"|"-Infinity"}; refs are {"$ref":"<id>"}.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustMarshalCanonical is like MarshalCanonical but panics on error.
// Use only in tests or when the value is known to be well formed.
func MustMarshalCanonical(v Value) []byte {
	data, err := MarshalCanonical(v)
	if err != nil {
		panic(err)
	}
	return data
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("nil value has no canonical form")
	case Null:
		buf.WriteString("null")
	case Undefined:
		writeMarker(buf, markerUndefined, "true")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		switch {
		case math.IsNaN(f):
			writeMarker(buf, markerFloat, `"NaN"`)
		case math.IsInf(f, 1):
			writeMarker(buf, markerFloat, `"Infinity"`)
		case math.IsInf(f, -1):
			writeMarker(buf, markerFloat, `"-Infinity"`)
		default:
			buf.WriteString(formatFloat(f))
		}
	case Text:
		writeCanonicalString(buf, string(val))
	case *Store:
		return writeCanonicalStore(buf, val)
	case *Ref:
		var id bytes.Buffer
		writeCanonicalString(&id, val.ID)
		writeMarker(buf, markerRef, id.String())
	default:
		return fmt.Errorf("unsupported value type: %T", v)
	}
	return nil
}

func writeCanonicalStore(buf *bytes.Buffer, s *Store) error {
	buf.WriteByte('[')
	for i, slot := range s.Slots() {
		if i > 0 {
			buf.WriteByte(',')
		}
		v, ok := slot.Value()
		if !ok {
			writeMarker(buf, markerHole, "true")
			continue
		}
		if err := writeCanonical(buf, v); err != nil {
			return fmt.Errorf("store[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeMarker(buf *bytes.Buffer, key, raw string) {
	buf.WriteString(`{"`)
	buf.WriteString(key)
	buf.WriteString(`":`)
	buf.WriteString(raw)
	buf.WriteByte('}')
}

// formatFloat renders a finite float in shortest round-trip form, always
// with a fraction or exponent.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

const hexDigits = "0123456789abcdef"

// writeCanonicalString writes a JSON string after NFC normalization.
// Escapes only what JSON requires: '"', '\\' and U+0000..U+001F.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range norm.NFC.String(s) {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xF])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// RefTable resolves "$ref" identifiers while decoding so the same ID maps to
// the same *Ref within one table.
type RefTable struct {
	refs map[string]*Ref
}

// NewRefTable creates a table pre-populated with refs.
func NewRefTable(refs ...*Ref) *RefTable {
	t := &RefTable{refs: make(map[string]*Ref, len(refs))}
	for _, r := range refs {
		t.refs[r.ID] = r
	}
	return t
}

// Resolve returns the ref registered under id, creating one if needed.
func (t *RefTable) Resolve(id string) *Ref {
	if r, ok := t.refs[id]; ok {
		return r
	}
	r := &Ref{ID: id}
	t.refs[id] = r
	return r
}

// UnmarshalStore decodes canonical JSON into a Store.
// The top-level JSON value must be an array. A nil table resolves refs into
// fresh refs private to this call.
func UnmarshalStore(data []byte, refs *RefTable) (*Store, error) {
	v, err := UnmarshalValue(data, refs)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*Store)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %s", v.Kind())
	}
	return s, nil
}

// UnmarshalValue decodes canonical JSON into a Value.
func UnmarshalValue(data []byte, refs *RefTable) (Value, error) {
	if refs == nil {
		refs = NewRefTable()
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	slot, err := FromJSON(raw, refs)
	if err != nil {
		return nil, err
	}
	v, ok := slot.Value()
	if !ok {
		return nil, fmt.Errorf("a hole is only valid inside an array")
	}
	return v, nil
}

// FromJSON converts a generic decoded JSON value (json.Number numbers) into a
// slot. Marker objects are recognised; any other object is rejected.
func FromJSON(raw any, refs *RefTable) (Slot, error) {
	switch val := raw.(type) {
	case nil:
		return Present(Null{}), nil
	case bool:
		return Present(Bool(val)), nil
	case string:
		return Present(Text(val)), nil
	case json.Number:
		v, err := parseNumber(string(val))
		if err != nil {
			return Slot{}, err
		}
		return Present(v), nil
	case float64:
		return Present(Float(val)), nil
	case int:
		return Present(Int(val)), nil
	case int64:
		return Present(Int(val)), nil
	case []any:
		b := NewBuilder(len(val))
		for i, elem := range val {
			slot, err := FromJSON(elem, refs)
			if err != nil {
				return Slot{}, fmt.Errorf("array[%d]: %w", i, err)
			}
			b.AppendSlot(slot)
		}
		return Present(b.Build()), nil
	case map[string]any:
		return fromMarker(val, refs)
	default:
		return Slot{}, fmt.Errorf("unsupported JSON type: %T", raw)
	}
}

func fromMarker(obj map[string]any, refs *RefTable) (Slot, error) {
	if len(obj) != 1 {
		return Slot{}, fmt.Errorf("objects are not values (only single-key $ markers are allowed)")
	}
	for k, v := range obj {
		switch k {
		case markerHole:
			return Hole(), nil
		case markerUndefined:
			return Present(Undefined{}), nil
		case markerFloat:
			s, _ := v.(string)
			switch s {
			case "NaN":
				return Present(Float(math.NaN())), nil
			case "Infinity":
				return Present(Float(math.Inf(1))), nil
			case "-Infinity":
				return Present(Float(math.Inf(-1))), nil
			}
			return Slot{}, fmt.Errorf("invalid %s marker %v", markerFloat, v)
		case markerRef:
			id, ok := v.(string)
			if !ok || id == "" {
				return Slot{}, fmt.Errorf("invalid %s marker %v", markerRef, v)
			}
			return Present(refs.Resolve(id)), nil
		default:
			return Slot{}, fmt.Errorf("unknown marker %q", k)
		}
	}
	panic("unreachable")
}

// parseNumber maps a JSON number literal to Int when it has no fraction or
// exponent and fits int64, and to Float otherwise.
func parseNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Float(f), nil
}
