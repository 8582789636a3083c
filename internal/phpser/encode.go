package phpser

import (
	"math"
	"strconv"
	"strings"
)

// Serialize encodes v. String lengths are always computed from the current
// byte length, so values edited after decoding re-encode correctly.
func Serialize(v Value) string {
	var b strings.Builder
	encode(&b, v)
	return b.String()
}

func encode(b *strings.Builder, v Value) {
	switch v.Kind {
	case KindNull:
		b.WriteString("N;")
	case KindBool:
		if v.Bool {
			b.WriteString("b:1;")
		} else {
			b.WriteString("b:0;")
		}
	case KindInt:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(v.Int, 10))
		b.WriteByte(';')
	case KindFloat:
		b.WriteString("d:")
		b.WriteString(formatFloat(v))
		b.WriteByte(';')
	case KindString:
		writeString(b, v.Str)
		b.WriteByte(';')
	case KindArray:
		b.WriteString("a:")
		b.WriteString(strconv.Itoa(len(v.Entries)))
		b.WriteByte(':')
		encodeEntries(b, v.Entries)
	case KindObject:
		b.WriteString("O:")
		writeClass(b, v.Class)
		b.WriteString(strconv.Itoa(len(v.Entries)))
		b.WriteByte(':')
		encodeEntries(b, v.Entries)
	case KindCustom:
		b.WriteString("C:")
		writeClass(b, v.Class)
		b.WriteString(strconv.Itoa(len(v.Str)))
		b.WriteString(":{")
		b.WriteString(v.Str)
		b.WriteByte('}')
	case KindRef:
		tag := v.refTag
		if tag == 0 {
			tag = 'R'
		}
		b.WriteByte(tag)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(v.Int, 10))
		b.WriteByte(';')
	}
}

// writeString writes `s:<len>:"<s>"` without the trailing semicolon.
func writeString(b *strings.Builder, s string) {
	b.WriteString("s:")
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteString(`:"`)
	b.WriteString(s)
	b.WriteByte('"')
}

// writeClass writes `<len>:"<class>":` for object and custom values.
func writeClass(b *strings.Builder, class string) {
	b.WriteString(strconv.Itoa(len(class)))
	b.WriteString(`:"`)
	b.WriteString(class)
	b.WriteString(`":`)
}

func encodeEntries(b *strings.Builder, entries []Entry) {
	b.WriteByte('{')
	for _, e := range entries {
		encode(b, e.Key)
		encode(b, e.Value)
	}
	b.WriteByte('}')
}

func formatFloat(v Value) string {
	if v.floatText != "" {
		if f, err := parseFloat(v.floatText); err == nil && (f == v.Float || math.IsNaN(f) && math.IsNaN(v.Float)) {
			return v.floatText
		}
	}
	switch {
	case math.IsInf(v.Float, 1):
		return "INF"
	case math.IsInf(v.Float, -1):
		return "-INF"
	case math.IsNaN(v.Float):
		return "NAN"
	}
	return strconv.FormatFloat(v.Float, 'g', -1, 64)
}
