package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// DType is the element type of a leaf array.
type DType int

const (
	Float64 DType = iota + 1
	Int64
	Bytes
)

// String returns the dtype name used in fixtures and error messages
func (d DType) String() string {
	switch d {
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	case Bytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Array holds the values of one leaf. Exactly one of the value slices is
// populated, selected by the dtype. A rank-0 array holds a single value.
type Array struct {
	dtype  DType
	scalar bool
	floats []float64
	ints   []int64
	bytes  [][]byte
}

// Float64s creates a rank-1 float array.
func Float64s(v ...float64) Array {
	return Array{dtype: Float64, floats: append([]float64{}, v...)}
}

// Int64s creates a rank-1 integer array.
func Int64s(v ...int64) Array {
	return Array{dtype: Int64, ints: append([]int64{}, v...)}
}

// ByteStrings creates a rank-1 byte-string array.
func ByteStrings(v ...[]byte) Array {
	out := make([][]byte, len(v))
	for i, b := range v {
		out[i] = append([]byte{}, b...)
	}
	return Array{dtype: Bytes, bytes: out}
}

// Strings creates a rank-1 byte-string array from text, the way an archive
// writer stores identifiers.
func Strings(v ...string) Array {
	out := make([][]byte, len(v))
	for i, s := range v {
		out[i] = []byte(s)
	}
	return Array{dtype: Bytes, bytes: out}
}

// ScalarFloat64 creates a rank-0 float array.
func ScalarFloat64(v float64) Array {
	a := Float64s(v)
	a.scalar = true
	return a
}

// ScalarInt64 creates a rank-0 integer array.
func ScalarInt64(v int64) Array {
	a := Int64s(v)
	a.scalar = true
	return a
}

// ScalarString creates a rank-0 byte-string array.
func ScalarString(v string) Array {
	a := Strings(v)
	a.scalar = true
	return a
}

// DType returns the element type.
func (a Array) DType() DType { return a.dtype }

// Rank returns 0 for scalars and 1 otherwise.
func (a Array) Rank() int {
	if a.scalar {
		return 0
	}
	return 1
}

// Len returns the number of elements.
func (a Array) Len() int {
	switch a.dtype {
	case Float64:
		return len(a.floats)
	case Int64:
		return len(a.ints)
	case Bytes:
		return len(a.bytes)
	default:
		return 0
	}
}

// Materialize returns the array as rank 1. Scalars become one-element sequences.
func (a Array) Materialize() Array {
	a.scalar = false
	return a
}

// Floats returns the values as float64. Integer arrays are converted.
func (a Array) Floats() ([]float64, error) {
	switch a.dtype {
	case Float64:
		return append([]float64{}, a.floats...), nil
	case Int64:
		out := make([]float64, len(a.ints))
		for i, v := range a.ints {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: dtype %s", ErrNotNumeric, a.dtype)
	}
}

// Ints returns the values as int64. Float arrays are accepted only when every
// value is integral.
func (a Array) Ints() ([]int64, error) {
	switch a.dtype {
	case Int64:
		return append([]int64{}, a.ints...), nil
	case Float64:
		out := make([]int64, len(a.floats))
		for i, v := range a.floats {
			if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
				return nil, fmt.Errorf("%w: value %v at %d is not integral", ErrNotNumeric, v, i)
			}
			out[i] = int64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: dtype %s", ErrNotNumeric, a.dtype)
	}
}

// Texts decodes byte-string values as UTF-8. Trailing NUL padding from
// fixed-width strings is removed.
func (a Array) Texts() ([]string, error) {
	if a.dtype != Bytes {
		return nil, fmt.Errorf("%w: dtype %s", ErrNotText, a.dtype)
	}
	out := make([]string, len(a.bytes))
	for i, b := range a.bytes {
		s, err := DecodeText(b)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// RawBytes returns a copy of the undecoded byte strings.
func (a Array) RawBytes() [][]byte {
	out := make([][]byte, len(a.bytes))
	for i, b := range a.bytes {
		out[i] = append([]byte{}, b...)
	}
	return out
}

// Values returns every element as a Value, decoding byte strings.
func (a Array) Values() ([]Value, error) {
	switch a.dtype {
	case Bytes:
		texts, err := a.Texts()
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(texts))
		for i, s := range texts {
			out[i] = TextValue(s)
		}
		return out, nil
	default:
		nums, err := a.Floats()
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(nums))
		for i, v := range nums {
			out[i] = NumberValue(v)
		}
		return out, nil
	}
}

// Equal reports whether both arrays have the same dtype, rank and values.
// NaN compares equal to NaN.
func (a Array) Equal(b Array) bool {
	if a.dtype != b.dtype || a.scalar != b.scalar || a.Len() != b.Len() {
		return false
	}
	switch a.dtype {
	case Float64:
		for i := range a.floats {
			x, y := a.floats[i], b.floats[i]
			if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
				return false
			}
		}
	case Int64:
		for i := range a.ints {
			if a.ints[i] != b.ints[i] {
				return false
			}
		}
	case Bytes:
		for i := range a.bytes {
			if !bytes.Equal(a.bytes[i], b.bytes[i]) {
				return false
			}
		}
	}
	return true
}

// DecodeText decodes one stored identifier.
func DecodeText(b []byte) (string, error) {
	b = bytes.TrimRight(b, "\x00")
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid UTF-8 in byte string %q", ErrMalformedTree, b)
	}
	return string(b), nil
}

// Value is a single decoded element: a number or a text.
type Value struct {
	Number float64
	Text   string
	IsText bool
}

type valueJSON struct {
	Number  *float64 `json:"number,omitempty"`
	Text    *string  `json:"text,omitempty"`
	Special string   `json:"special,omitempty"`
}

// NonFinite names NaN and the infinities, which JSON numbers cannot carry.
// ok is false for finite v.
func NonFinite(v float64) (name string, ok bool) {
	switch {
	case math.IsNaN(v):
		return "NaN", true
	case math.IsInf(v, 1):
		return "+Inf", true
	case math.IsInf(v, -1):
		return "-Inf", true
	}
	return "", false
}

// ParseNonFinite reverses NonFinite.
func ParseNonFinite(name string) (float64, error) {
	switch name {
	case "NaN":
		return math.NaN(), nil
	case "+Inf":
		return math.Inf(1), nil
	case "-Inf":
		return math.Inf(-1), nil
	}
	return 0, fmt.Errorf("unknown non-finite value %q", name)
}

// MarshalJSON writes {"text": ...}, {"number": ...} or, for NaN and the
// infinities, {"special": "NaN"|"+Inf"|"-Inf"}.
func (v Value) MarshalJSON() ([]byte, error) {
	var doc valueJSON
	if v.IsText {
		doc.Text = &v.Text
	} else if name, ok := NonFinite(v.Number); ok {
		doc.Special = name
	} else {
		doc.Number = &v.Number
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reverses MarshalJSON. An empty object is NaN.
func (v *Value) UnmarshalJSON(b []byte) error {
	var doc valueJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	switch {
	case doc.Text != nil:
		*v = TextValue(*doc.Text)
	case doc.Number != nil:
		*v = NumberValue(*doc.Number)
	case doc.Special != "":
		f, err := ParseNonFinite(doc.Special)
		if err != nil {
			return err
		}
		*v = NumberValue(f)
	default:
		*v = NumberValue(math.NaN())
	}
	return nil
}

// NumberValue wraps a number.
func NumberValue(v float64) Value { return Value{Number: v} }

// TextValue wraps a text.
func TextValue(s string) Value { return Value{Text: s, IsText: true} }

// String formats the value for tabular output.
func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}
