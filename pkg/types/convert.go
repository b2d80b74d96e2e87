package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromGo converts a Go value into a Value.
//
// Strings, numbers and booleans become scalars (true is "1", false is ""),
// slices and arrays become position-keyed mappings, maps become mappings with
// sorted keys, and structs become mappings of their exported fields in
// declaration order, named by their json tag when one is present.
func FromGo(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return Null
	case Value:
		return val
	case *OrderedMap:
		return NewMapping(val)
	case string:
		return NewScalar(val)
	case bool:
		if val {
			return NewScalar("1")
		}
		return NewScalar("")
	case int:
		return NewScalar(strconv.Itoa(val))
	case int64:
		return NewScalar(strconv.FormatInt(val, 10))
	case float64:
		return NewScalar(formatFloat(val))
	case json.Number:
		return NewScalar(val.String())
	case []byte:
		return NewScalar(string(val))
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return Null
		}
		return NewScalar(val.String())
	case []interface{}:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = FromGo(item)
		}
		return NewList(items...)
	case map[string]interface{}:
		m := NewOrderedMap()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, FromGo(val[k]))
		}
		return NewMapping(m)
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null
		}
		return FromGo(rv.Elem().Interface())
	case reflect.String:
		return NewScalar(rv.String())
	case reflect.Bool:
		return FromGo(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewScalar(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return NewScalar(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return NewScalar(formatFloat(rv.Float()))
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return NewMapping(nil)
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = FromGo(rv.Index(i).Interface())
		}
		return NewList(items...)
	case reflect.Map:
		m := NewOrderedMap()
		keys := rv.MapKeys()
		names := make([]string, len(keys))
		byName := make(map[string]reflect.Value, len(keys))
		for i, k := range keys {
			names[i] = fmt.Sprint(k.Interface())
			byName[names[i]] = k
		}
		sort.Strings(names)
		for _, name := range names {
			m.Set(name, FromGo(rv.MapIndex(byName[name]).Interface()))
		}
		return NewMapping(m)
	case reflect.Struct:
		m := NewOrderedMap()
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag, ok := f.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			m.Set(name, FromGo(rv.Field(i).Interface()))
		}
		return NewMapping(m)
	case reflect.Invalid:
		return Null
	}
	return NewScalar(fmt.Sprintf("%v", rv.Interface()))
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseJSON decodes a JSON document into a Value. Object keys keep their
// document order.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSON(dec)
	if err != nil {
		return Null, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Null, fmt.Errorf("invalid JSON: unexpected data after top-level value")
	}
	return v, nil
}

func decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewOrderedMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := decodeJSON(dec)
				if err != nil {
					return Null, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Null, err
			}
			return NewMapping(m), nil
		case '[':
			var items []Value
			for dec.More() {
				val, err := decodeJSON(dec)
				if err != nil {
					return Null, err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil {
				return Null, err
			}
			return NewList(items...), nil
		}
		return Null, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return FromGo(t), nil
	}
}

// ParseYAML decodes a YAML document into a Value. Mapping keys keep their
// document order.
func ParseYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Null, fmt.Errorf("invalid YAML: %w", err)
	}
	if doc.Kind == 0 {
		return Null, nil
	}
	return FromYAMLNode(&doc)
}

// FromYAMLNode converts a decoded YAML node tree into a Value.
func FromYAMLNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null, nil
		}
		return FromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(n.Alias)
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!null":
			return Null, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return Null, err
			}
			return FromGo(b), nil
		}
		return NewScalar(n.Value), nil
	case yaml.SequenceNode:
		items := make([]Value, len(n.Content))
		for i, c := range n.Content {
			v, err := FromYAMLNode(c)
			if err != nil {
				return Null, err
			}
			items[i] = v
		}
		return NewList(items...), nil
	case yaml.MappingNode:
		m := NewOrderedMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := FromYAMLNode(n.Content[i+1])
			if err != nil {
				return Null, err
			}
			m.Set(n.Content[i].Value, v)
		}
		return NewMapping(m), nil
	}
	return Null, fmt.Errorf("unsupported YAML node kind %d at line %d", n.Kind, n.Line)
}
