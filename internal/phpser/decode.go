package phpser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSyntax is returned for input that is not a complete serialized value.
var ErrSyntax = errors.New("phpser: malformed serialized data")

// SyntaxError reports where decoding stopped.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("phpser: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Unserialize decodes a complete serialized value. Trailing whitespace is
// allowed, anything else after the value is an error.
func Unserialize(s string) (Value, error) {
	d := &decoder{s: s}
	v, err := d.value()
	if err != nil {
		return Value{}, err
	}
	if rest := strings.TrimSpace(s[d.pos:]); rest != "" {
		return Value{}, d.errorf("trailing data")
	}
	return v, nil
}

// IsSerialized is a cheap structural check in the spirit of WordPress'
// is_serialized(): it looks at the type tag and the terminating byte only.
func IsSerialized(s string) bool {
	s = strings.TrimSpace(s)
	if s == "N;" {
		return true
	}
	if len(s) < 4 || s[1] != ':' {
		return false
	}
	last := s[len(s)-1]
	if last != ';' && last != '}' {
		return false
	}
	switch s[0] {
	case 's':
		return s[len(s)-2] == '"'
	case 'a', 'O', 'C':
		return last == '}'
	case 'b', 'i', 'd', 'r', 'R':
		return last == ';'
	default:
		return false
	}
}

// MaybeUnserialize decodes s when it looks serialized and decodes cleanly.
// Otherwise it returns s as a string value and false.
func MaybeUnserialize(s string) (Value, bool) {
	if !IsSerialized(s) {
		return String(s), false
	}
	v, err := Unserialize(strings.TrimSpace(s))
	if err != nil {
		return String(s), false
	}
	return v, true
}

type decoder struct {
	s   string
	pos int
}

func (d *decoder) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) expect(lit string) error {
	if !strings.HasPrefix(d.s[d.pos:], lit) {
		return d.errorf("expected %q", lit)
	}
	d.pos += len(lit)
	return nil
}

// until returns the text up to (not including) the next sep and moves past it.
func (d *decoder) until(sep byte) (string, error) {
	i := strings.IndexByte(d.s[d.pos:], sep)
	if i < 0 {
		return "", d.errorf("missing %q", sep)
	}
	text := d.s[d.pos : d.pos+i]
	d.pos += i + 1
	return text, nil
}

func (d *decoder) integer(sep byte) (int64, error) {
	text, err := d.until(sep)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, d.errorf("bad integer %q", text)
	}
	return n, nil
}

func (d *decoder) length(sep byte) (int, error) {
	n, err := d.integer(sep)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, d.errorf("negative length")
	}
	return int(n), nil
}

// quoted reads `"<n bytes>"`.
func (d *decoder) quoted(n int) (string, error) {
	if err := d.expect(`"`); err != nil {
		return "", err
	}
	if d.pos+n > len(d.s) {
		return "", d.errorf("string length %d overruns input", n)
	}
	text := d.s[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect(`"`); err != nil {
		return "", err
	}
	return text, nil
}

func (d *decoder) value() (Value, error) {
	if d.pos >= len(d.s) {
		return Value{}, d.errorf("unexpected end of input")
	}
	tag := d.s[d.pos]
	switch tag {
	case 'N':
		if err := d.expect("N;"); err != nil {
			return Value{}, err
		}
		return Null(), nil

	case 'b':
		if err := d.expect("b:"); err != nil {
			return Value{}, err
		}
		n, err := d.integer(';')
		if err != nil {
			return Value{}, err
		}
		if n != 0 && n != 1 {
			return Value{}, d.errorf("bad boolean %d", n)
		}
		return Bool(n == 1), nil

	case 'i':
		if err := d.expect("i:"); err != nil {
			return Value{}, err
		}
		n, err := d.integer(';')
		if err != nil {
			return Value{}, err
		}
		return Int(n), nil

	case 'd':
		if err := d.expect("d:"); err != nil {
			return Value{}, err
		}
		text, err := d.until(';')
		if err != nil {
			return Value{}, err
		}
		f, err := parseFloat(text)
		if err != nil {
			return Value{}, d.errorf("bad float %q", text)
		}
		return Value{Kind: KindFloat, Float: f, floatText: text}, nil

	case 's':
		if err := d.expect("s:"); err != nil {
			return Value{}, err
		}
		n, err := d.length(':')
		if err != nil {
			return Value{}, err
		}
		text, err := d.quoted(n)
		if err != nil {
			return Value{}, err
		}
		if err := d.expect(";"); err != nil {
			return Value{}, err
		}
		return String(text), nil

	case 'a':
		if err := d.expect("a:"); err != nil {
			return Value{}, err
		}
		n, err := d.length(':')
		if err != nil {
			return Value{}, err
		}
		entries, err := d.entries(n)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindArray, Entries: entries}, nil

	case 'O':
		if err := d.expect("O:"); err != nil {
			return Value{}, err
		}
		n, err := d.length(':')
		if err != nil {
			return Value{}, err
		}
		class, err := d.quoted(n)
		if err != nil {
			return Value{}, err
		}
		if err := d.expect(":"); err != nil {
			return Value{}, err
		}
		count, err := d.length(':')
		if err != nil {
			return Value{}, err
		}
		entries, err := d.entries(count)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindObject, Class: class, Entries: entries}, nil

	case 'C':
		if err := d.expect("C:"); err != nil {
			return Value{}, err
		}
		n, err := d.length(':')
		if err != nil {
			return Value{}, err
		}
		class, err := d.quoted(n)
		if err != nil {
			return Value{}, err
		}
		if err := d.expect(":"); err != nil {
			return Value{}, err
		}
		size, err := d.length(':')
		if err != nil {
			return Value{}, err
		}
		if err := d.expect("{"); err != nil {
			return Value{}, err
		}
		if d.pos+size > len(d.s) {
			return Value{}, d.errorf("payload length %d overruns input", size)
		}
		payload := d.s[d.pos : d.pos+size]
		d.pos += size
		if err := d.expect("}"); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindCustom, Class: class, Str: payload}, nil

	case 'r', 'R':
		d.pos++
		if err := d.expect(":"); err != nil {
			return Value{}, err
		}
		n, err := d.integer(';')
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindRef, Int: n, refTag: tag}, nil
	}
	return Value{}, d.errorf("unknown type tag %q", tag)
}

func (d *decoder) entries(n int) ([]Entry, error) {
	if err := d.expect("{"); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}
		if key.Kind != KindInt && key.Kind != KindString {
			return nil, d.errorf("array key must be int or string, got %s", key.Kind)
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: val})
	}
	if err := d.expect("}"); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseFloat(text string) (float64, error) {
	switch text {
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NAN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(text, 64)
}
