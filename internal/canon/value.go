package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Value is a sealed interface over the types the canonical encoder accepts
// without reflection. Only Null, String, Int, Float, Bool, Array and Object
// implement it.
type Value interface {
	canonValue()
}

// Null is an explicit JSON null.
type Null struct{}

func (Null) canonValue() {}

// String is a JSON string.
type String string

func (String) canonValue() {}

// Int is a JSON integer. Kept apart from Float so counters and timestamps
// never pass through 6-decimal rounding.
type Int int64

func (Int) canonValue() {}

// Float is a JSON number subject to 6-decimal rounding.
type Float float64

func (Float) canonValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) canonValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) canonValue() {}

// Object maps string keys to values. Iterate with SortedKeys.
type Object map[string]Value

func (Object) canonValue() {}

// Floats converts a float slice to an Array of Float.
func Floats(xs ...float64) Array {
	arr := make(Array, len(xs))
	for i, x := range xs {
		arr[i] = Float(x)
	}
	return arr
}

// SortedKeys returns the object's keys in code point order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseJSON decodes arbitrary JSON into a Value.
//
// Numbers written with a fraction or exponent become Float; everything else
// becomes Int, falling back to Float when the literal overflows int64.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse json: trailing data after value")
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON (or hand-built Go values) to a Value.
func FromAny(v any) (Value, error) {
	return fromAny(v, "$")
}

func fromAny(v any, path string) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return numberValue(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			item, err := fromAny(elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = item
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			item, err := fromAny(elem, path+"."+k)
			if err != nil {
				return nil, err
			}
			obj[k] = item
		}
		return obj, nil
	default:
		return nil, &SerializationError{Path: path, Reason: ReasonUnsupportedType, Detail: fmt.Sprintf("%T", v)}
	}
}

func numberValue(n json.Number) Value {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i)
		}
	}
	// Out-of-range literals come back as ±Inf; the encoder rejects them.
	f, _ := n.Float64()
	return Float(f)
}
