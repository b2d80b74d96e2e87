// Package types defines the values the template engine works with.
// A value is one of three variants: null, scalar (a string) or mapping
// (an insertion-ordered map of string keys to values).
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueType represents the variant of a Value.
type ValueType int

const (
	TypeNull    ValueType = iota
	TypeScalar            // string
	TypeMapping           // ordered map of string -> Value
)

// String returns the variant name.
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeScalar:
		return "scalar"
	case TypeMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a template value. The zero Value is Null.
type Value struct {
	typ       ValueType
	scalarVal string
	mapVal    *OrderedMap
}

// OrderedMap maintains insertion order for map keys.
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

// NewOrderedMap creates a new empty ordered map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{
		keys:   make([]string, 0),
		values: make(map[string]Value),
	}
}

// NewOrderedMapFromPairs creates an ordered map from alternating key-value pairs.
// Values that are not already a Value are converted with FromGo.
func NewOrderedMapFromPairs(pairs ...interface{}) *OrderedMap {
	m := NewOrderedMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		m.Set(key, FromGo(pairs[i+1]))
	}
	return m
}

// Get retrieves a value by key. Returns the value and whether it exists.
func (m *OrderedMap) Get(key string) (Value, bool) {
	if m == nil {
		return Null, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Set adds or updates a key-value pair, preserving insertion order.
func (m *OrderedMap) Set(key string, val Value) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = val
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	result := make([]string, len(m.keys))
	copy(result, m.keys)
	return result
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Null is the absent value.
var Null = Value{typ: TypeNull}

// NewScalar creates a scalar value.
func NewScalar(v string) Value {
	return Value{typ: TypeScalar, scalarVal: v}
}

// NewMapping creates a mapping value from an OrderedMap.
func NewMapping(m *OrderedMap) Value {
	if m == nil {
		m = NewOrderedMap()
	}
	return Value{typ: TypeMapping, mapVal: m}
}

// NewList creates a mapping keyed by position ("0", "1", ...).
func NewList(items ...Value) Value {
	m := NewOrderedMap()
	for i, item := range items {
		m.Set(strconv.Itoa(i), item)
	}
	return NewMapping(m)
}

// Type returns the value's variant.
func (v Value) Type() ValueType {
	return v.typ
}

// IsNull returns true if the value is null.
func (v Value) IsNull() bool {
	return v.typ == TypeNull
}

// AsScalar returns the scalar string. Panics if not a scalar.
func (v Value) AsScalar() string {
	if v.typ != TypeScalar {
		panic(fmt.Sprintf("AsScalar called on %s value", v.typ))
	}
	return v.scalarVal
}

// AsMapping returns the ordered map. Panics if not a mapping.
func (v Value) AsMapping() *OrderedMap {
	if v.typ != TypeMapping {
		panic(fmt.Sprintf("AsMapping called on %s value", v.typ))
	}
	return v.mapVal
}

// Truthy reports whether a conditional on this value takes its true branch.
// Null, "", "0" and empty mappings are falsy.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeScalar:
		return v.scalarVal != "" && v.scalarVal != "0"
	case TypeMapping:
		return v.mapVal.Len() > 0
	default:
		return false
	}
}

// Field returns the member named key of a mapping. Scalars and null have no
// members.
func (v Value) Field(key string) (Value, bool) {
	if v.typ != TypeMapping {
		return Null, false
	}
	return v.mapVal.Get(key)
}

// Path walks a sequence of field names. It stops at the first missing member.
func (v Value) Path(keys ...string) (Value, bool) {
	cur := v
	for _, k := range keys {
		next, ok := cur.Field(k)
		if !ok {
			return Null, false
		}
		cur = next
	}
	return cur, true
}

// Equal tests deep equality between two values. Mapping order is significant.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeScalar:
		return v.scalarVal == other.scalarVal
	case TypeMapping:
		if v.mapVal.Len() != other.mapVal.Len() {
			return false
		}
		okeys := other.mapVal.Keys()
		for i, k := range v.mapVal.Keys() {
			if okeys[i] != k {
				return false
			}
			mv, _ := v.mapVal.Get(k)
			ov, _ := other.mapVal.Get(k)
			if !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// String returns the rendered form of the value: the scalar itself, an empty
// string for null, and compact JSON for mappings.
func (v Value) String() string {
	switch v.typ {
	case TypeScalar:
		return v.scalarVal
	case TypeMapping:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}

// GoString returns a debug representation.
func (v Value) GoString() string {
	switch v.typ {
	case TypeScalar:
		return strconv.Quote(v.scalarVal)
	case TypeMapping:
		parts := make([]string, 0, v.mapVal.Len())
		for _, k := range v.mapVal.Keys() {
			val, _ := v.mapVal.Get(k)
			parts = append(parts, fmt.Sprintf("%s: %#v", k, val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "null"
}

// MarshalJSON converts a Value to JSON, keeping mapping order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeNull:
		return []byte("null"), nil
	case TypeScalar:
		return json.Marshal(v.scalarVal)
	case TypeMapping:
		buf := []byte{'{'}
		for i, k := range v.mapVal.Keys() {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, keyBytes...)
			buf = append(buf, ':')
			val, _ := v.mapVal.Get(k)
			valBytes, err := val.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf = append(buf, valBytes...)
		}
		buf = append(buf, '}')
		return buf, nil
	}
	return nil, fmt.Errorf("cannot marshal unknown type %d", v.typ)
}

// UnmarshalJSON decodes JSON into a Value, keeping object key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
