package phpser

import "strings"

// MapStrings returns a copy of v with fn applied to every string value,
// recursing through arrays and objects. When keys is true string keys are
// rewritten too. Custom payloads and references are left alone.
func MapStrings(v Value, keys bool, fn func(string) string) Value {
	switch v.Kind {
	case KindString:
		return String(fn(v.Str))
	case KindArray, KindObject:
		out := v
		out.Entries = make([]Entry, len(v.Entries))
		for i, e := range v.Entries {
			key := e.Key
			if keys && key.Kind == KindString {
				key = String(fn(key.Str))
			}
			out.Entries[i] = Entry{Key: key, Value: MapStrings(e.Value, keys, fn)}
		}
		return out
	default:
		return v
	}
}

// ReplaceAll replaces old with new in every string value (and, when keys is
// true, every string key) of v.
func ReplaceAll(v Value, old, new string, keys bool) Value {
	if old == "" || old == new {
		return v
	}
	return MapStrings(v, keys, func(s string) string {
		return strings.ReplaceAll(s, old, new)
	})
}

// Merge returns base with every key of over written into it: existing keys
// are overwritten in place, new keys are appended. It is a shallow union in
// which over wins, and merging the same over twice yields the same result.
// When either side is not an array, over is returned.
func Merge(base, over Value) Value {
	if base.Kind != KindArray || over.Kind != KindArray {
		return over
	}
	out := base
	out.Entries = append([]Entry(nil), base.Entries...)
	for _, e := range over.Entries {
		out.Set(e.Key.KeyString(), e.Value)
	}
	return out
}
