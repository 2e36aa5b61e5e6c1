package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Value is a read-only view over a decoded JSON document of unknown shape.
//
// Every accessor is total: looking up a missing key, indexing past the end
// or asking an object for a string yields the zero Value (or the supplied
// default) instead of an error or a panic. The zero Value is "absent".
type Value struct {
	v       any
	present bool
}

// Parse decodes data into a Value. Numbers keep their textual form.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, err
	}
	// Reject trailing content such as a second document or log noise.
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after JSON document")
	}
	return Value{v: v, present: true}, nil
}

// Of wraps an already decoded value (maps, slices, strings, numbers).
func Of(v any) Value {
	return Value{v: v, present: true}
}

// Present reports whether the value exists. A JSON null is present.
func (x Value) Present() bool { return x.present }

// IsNull reports whether the value is an explicit JSON null.
func (x Value) IsNull() bool { return x.present && x.v == nil }

// IsObject reports whether the value is a JSON object.
func (x Value) IsObject() bool {
	_, ok := x.v.(map[string]any)
	return ok
}

// IsArray reports whether the value is a JSON array.
func (x Value) IsArray() bool {
	_, ok := x.v.([]any)
	return ok
}

// Get returns the member key of an object, or an absent Value.
func (x Value) Get(key string) Value {
	m, ok := x.v.(map[string]any)
	if !ok {
		return Value{}
	}
	v, ok := m[key]
	if !ok {
		return Value{}
	}
	return Value{v: v, present: true}
}

// Path walks nested objects, e.g. Path("gates", "mass_gate").
func (x Value) Path(keys ...string) Value {
	cur := x
	for _, k := range keys {
		cur = cur.Get(k)
	}
	return cur
}

// Len returns the number of elements of an array, or 0.
func (x Value) Len() int {
	a, _ := x.v.([]any)
	return len(a)
}

// Index returns element i of an array, or an absent Value.
func (x Value) Index(i int) Value {
	a, ok := x.v.([]any)
	if !ok || i < 0 || i >= len(a) {
		return Value{}
	}
	return Value{v: a[i], present: true}
}

// Items returns the elements of an array in order, or nil.
func (x Value) Items() []Value {
	a, ok := x.v.([]any)
	if !ok {
		return nil
	}
	out := make([]Value, len(a))
	for i, v := range a {
		out[i] = Value{v: v, present: true}
	}
	return out
}

// AsString returns the value if it is a JSON string.
func (x Value) AsString() (string, bool) {
	s, ok := x.v.(string)
	return s, ok
}

// StringOr returns the string value, or def when absent or not a string.
func (x Value) StringOr(def string) string {
	if s, ok := x.v.(string); ok {
		return s
	}
	return def
}

// Float returns the value as a float64 if it is a JSON number.
func (x Value) Float() (float64, bool) {
	switch n := x.v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// ScalarOr renders strings, numbers and booleans as text and returns def
// for anything else, including null.
func (x Value) ScalarOr(def string) string {
	switch v := x.v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return def
}

// Raw returns the underlying decoded value.
func (x Value) Raw() any { return x.v }

// MarshalJSON encodes the underlying document; an absent Value encodes as null.
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.present {
		return []byte("null"), nil
	}
	return json.Marshal(x.v)
}
