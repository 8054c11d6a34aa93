package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the attribute value types an entity can hold.
// Only Null, String, Int, Bool, List and Map implement it.
// There is no float type: floats do not round-trip deterministically through
// canonical JSON and are rejected at every boundary.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an explicit null attribute.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string attribute value.
type String string

func (String) value() {}

// Int is an integer attribute value. Always int64.
type Int int64

func (Int) value() {}

// Bool is a boolean attribute value.
type Bool bool

func (Bool) value() {}

// List is an ordered list of values.
type List []Value

func (List) value() {}

// Map is a string-keyed set of values. Entity attributes are a Map.
// Use SortedKeys() for deterministic iteration.
type Map map[string]Value

func (Map) value() {}

// Clone returns a deep copy of m. Contexts hand out clones so that a
// caller holding attributes cannot reach into another context's state.
func (m Map) Clone() Map {
	if m == nil {
		return Map{}
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case Map:
		return val.Clone()
	default:
		return v
	}
}

// SortedKeys returns the keys ordered by their UTF-16 code units, which is
// the order canonical JSON requires. Byte order differs for astral runes.
func (m Map) SortedKeys() []string {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b string) int {
		return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
	})
	return keys
}

// MarshalJSON writes m in canonical form.
func (m Map) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(m)
}

// UnmarshalJSON decodes an attribute object. Numbers must be integers;
// null decodes to Null so explicit nulls survive a round trip.
func (m *Map) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseMap(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseValue converts a loosely typed Go value (as produced by a YAML or
// JSON decoder) into a Value. Floats are rejected; json.Number is accepted
// when it holds an integer.
func ParseValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not allowed: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are not allowed: %v", val)
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			pv, err := ParseValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = pv
		}
		return out, nil
	case map[string]any:
		return ParseMap(val)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ParseMap is ParseValue for attribute maps.
func ParseMap(m map[string]any) (Map, error) {
	out := make(Map, len(m))
	for k, v := range m {
		pv, err := ParseValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = pv
	}
	return out, nil
}

// Native converts a Value back into plain Go values (string, int64, bool,
// []any, map[string]any, nil). Used by the CLI filter and harness assertions.
func Native(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Native(elem)
		}
		return out
	default:
		return nil
	}
}
