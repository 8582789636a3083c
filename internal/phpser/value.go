// Package phpser models values encoded in PHP's serialize() format, the
// length-prefixed text encoding WordPress uses for array and object options.
//
// Arrays and objects keep their entries in insertion order so that a value
// can be decoded, edited and re-encoded without reordering keys.
package phpser

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
	// KindCustom holds a C:-encoded object (Serializable); Str is the opaque
	// payload and is never interpreted.
	KindCustom
	// KindRef holds an r:/R: back-reference; Int is the referenced slot.
	KindRef
)

var kindNames = [...]string{"null", "bool", "int", "float", "string", "array", "object", "custom", "ref"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a decoded serialized value.
type Value struct {
	Kind    Kind
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	Class   string
	Entries []Entry

	// floatText preserves the original spelling of a decoded float so that
	// re-encoding is byte-identical.
	floatText string
	// refTag is 'r' or 'R' for KindRef.
	refTag byte
}

// Entry is one key/value pair of an array or object. Keys are either
// KindInt or KindString.
type Entry struct {
	Key   Value
	Value Value
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Array returns an array holding the given entries in order.
func Array(entries ...Entry) Value {
	return Value{Kind: KindArray, Entries: entries}
}

// Pair builds an entry with a string key.
func Pair(key string, v Value) Entry {
	return Entry{Key: String(key), Value: v}
}

// Index builds an entry with an integer key.
func Index(i int64, v Value) Entry {
	return Entry{Key: Int(i), Value: v}
}

// IsContainer reports whether v holds entries.
func (v Value) IsContainer() bool {
	return v.Kind == KindArray || v.Kind == KindObject
}

// KeyString renders an array key the way PHP compares them.
func (v Value) KeyString() string {
	if v.Kind == KindInt {
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Str
}

// Lookup returns the entry value stored under key.
func (v Value) Lookup(key string) (Value, bool) {
	for _, e := range v.Entries {
		if e.Key.KeyString() == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Set stores val under key, replacing an existing entry in place or
// appending a new one. Numeric keys are stored as integers, as PHP does.
func (v *Value) Set(key string, val Value) {
	for i, e := range v.Entries {
		if e.Key.KeyString() == key {
			v.Entries[i].Value = val
			return
		}
	}
	v.Entries = append(v.Entries, Entry{Key: normalizeKey(key), Value: val})
}

// Keys returns the entry keys in order.
func (v Value) Keys() []string {
	keys := make([]string, len(v.Entries))
	for i, e := range v.Entries {
		keys[i] = e.Key.KeyString()
	}
	return keys
}

// Truthy follows PHP's loose boolean conversion.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindString:
		return v.Str != "" && v.Str != "0"
	case KindArray, KindObject:
		return len(v.Entries) > 0
	case KindNull:
		return false
	default:
		return true
	}
}

// Empty follows PHP's empty(): true for null, false, 0, "", "0" and empty
// arrays.
func (v Value) Empty() bool {
	return !v.Truthy()
}

// Text renders scalars as the string WordPress would store for them.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return formatFloat(v)
	case KindBool:
		if v.Bool {
			return "1"
		}
		return ""
	case KindNull:
		return ""
	default:
		return Serialize(v)
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindArray, KindObject, KindCustom, KindRef:
		return Serialize(v)
	default:
		return v.Text()
	}
}

// Equal reports deep equality, including entry order.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindCustom:
		return a.Class == b.Class && a.Str == b.Str
	case KindRef:
		return a.refTag == b.refTag && a.Int == b.Int
	}
	if a.Class != b.Class || len(a.Entries) != len(b.Entries) {
		return false
	}
	for i := range a.Entries {
		if !Equal(a.Entries[i].Key, b.Entries[i].Key) || !Equal(a.Entries[i].Value, b.Entries[i].Value) {
			return false
		}
	}
	return true
}

// FromNative converts plain Go values into a Value. Maps are encoded with
// their keys sorted so the result is deterministic.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []string:
		arr := Array()
		for i, s := range t {
			arr.Entries = append(arr.Entries, Index(int64(i), String(s)))
		}
		return arr, nil
	case []any:
		arr := Array()
		for i, item := range t {
			v, err := FromNative(item)
			if err != nil {
				return Value{}, err
			}
			arr.Entries = append(arr.Entries, Index(int64(i), v))
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		arr := Array()
		for _, k := range keys {
			v, err := FromNative(t[k])
			if err != nil {
				return Value{}, err
			}
			arr.Entries = append(arr.Entries, Entry{Key: normalizeKey(k), Value: v})
		}
		return arr, nil
	default:
		return Value{}, fmt.Errorf("phpser: unsupported type %T", x)
	}
}

// normalizeKey turns decimal-integer strings into integer keys, matching
// PHP's array key coercion.
func normalizeKey(key string) Value {
	if i, err := strconv.ParseInt(key, 10, 64); err == nil && strconv.FormatInt(i, 10) == key {
		return Int(i)
	}
	return String(key)
}
