package cast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrMismatch is returned by Type.Convert when the raw value does not belong to the
// type. The engine moves on to the next candidate without remembering it.
var ErrMismatch = errors.New("cast: value does not match type")

// Type is one cast candidate. Convert receives the full candidate set of the
// descriptor being cast, because some conversions depend on which other types
// are allowed.
type Type interface {
	TypeName() string
	Convert(raw any, candidates TypeSet) (any, error)
}

// TypeSet is the ordered candidate list of a descriptor.
type TypeSet []Type

// Has reports whether t is one of the candidates.
func (s TypeSet) Has(t Type) bool {
	for _, c := range s {
		if c == t {
			return true
		}
	}
	return false
}

// Names returns the candidate type names in priority order.
func (s TypeSet) Names() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.TypeName()
	}
	return out
}

// Built-in candidate types.
var (
	String  Type = stringType{}
	Number  Type = numberType{}
	Boolean Type = booleanType{}
	Array   Type = arrayType{}
	Object  Type = objectType{}
	Date    Type = dateType{}
	Binary  Type = binaryType{}
	Null    Type = nullType{}
)

type stringType struct{}

func (stringType) TypeName() string { return "string" }

func (stringType) Convert(raw any, _ TypeSet) (any, error) {
	return toString(raw), nil
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case json.Number:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			if e != nil {
				parts[i] = toString(e)
			}
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(raw)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type numberType struct{}

func (numberType) TypeName() string { return "number" }

func (numberType) Convert(raw any, _ TypeSet) (any, error) {
	f := toNumber(raw)
	if math.IsNaN(f) {
		return nil, ErrMismatch
	}
	return f, nil
}

// toNumber follows the loose numeric conversion of dynamic languages: blank
// strings are zero, booleans are 0/1, nil is zero, unconvertible input is NaN.
func toNumber(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		return parseNumber(v)
	case json.Number:
		return parseNumber(string(v))
	case time.Time:
		return float64(v.UnixMilli())
	}
	if f, ok := numericValue(raw); ok {
		return f
	}
	return math.NaN()
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if strings.ContainsRune(s, '_') {
		return math.NaN()
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	lower := strings.ToLower(strings.TrimLeft(s, "+-"))
	if strings.HasPrefix(lower, "inf") || strings.HasPrefix(lower, "nan") || strings.HasPrefix(lower, "0x") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	return f
}

// numericValue extracts a float64 from any Go numeric kind.
func numericValue(raw any) (float64, bool) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

type booleanType struct{}

func (booleanType) TypeName() string { return "boolean" }

func (booleanType) Convert(raw any, candidates TypeSet) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "TRUE", "True", "1":
			return true, nil
		case "false", "FALSE", "False", "0":
			return false, nil
		case "":
			if candidates.Has(String) {
				return nil, ErrMismatch
			}
			return false, nil
		}
		return nil, ErrMismatch
	}
	if f, ok := numericValue(raw); ok {
		switch f {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	}
	return nil, ErrMismatch
}

type arrayType struct{}

func (arrayType) TypeName() string { return "array" }

func (arrayType) Convert(raw any, _ TypeSet) (any, error) {
	if s, ok := asSlice(raw); ok {
		return s, nil
	}
	return []any{raw}, nil
}

// asSlice views any Go slice or array (except []byte, which is binary) as []any.
func asSlice(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

type objectType struct{}

func (objectType) TypeName() string { return "object" }

func (objectType) Convert(raw any, _ TypeSet) (any, error) {
	return raw, nil
}

type dateType struct{}

func (dateType) TypeName() string { return "date" }

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Epoch values at or above this are milliseconds, below are seconds.
const millisThreshold = 1e10

// maxEpochMillis bounds representable instants to ±100,000,000 days from the
// epoch, the range of an ECMAScript date.
const maxEpochMillis = 8.64e15

func (dateType) Convert(raw any, _ TypeSet) (any, error) {
	var n int64
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, ErrMismatch
		}
		return *v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		parsed, ok := leadingInt(s)
		if !ok {
			return nil, ErrMismatch
		}
		n = parsed
	case nil, bool:
		return nil, ErrMismatch
	default:
		f, ok := numericValue(raw)
		if !ok || math.IsNaN(f) || math.Abs(f) > maxEpochMillis {
			return nil, ErrMismatch
		}
		n = int64(f)
	}
	if n > maxEpochMillis || n < -maxEpochMillis {
		return nil, ErrMismatch
	}
	if n >= millisThreshold || n <= -millisThreshold {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Unix(n, 0).UTC(), nil
}

// leadingInt parses the integer prefix of s, accepting an optional sign.
func leadingInt(s string) (int64, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

type binaryType struct{}

func (binaryType) TypeName() string { return "binary" }

func (binaryType) Convert(raw any, _ TypeSet) (any, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case json.RawMessage:
		return []byte(v), nil
	}
	return nil, ErrMismatch
}

type nullType struct{}

func (nullType) TypeName() string { return "null" }

func (nullType) Convert(raw any, _ TypeSet) (any, error) {
	if raw == nil {
		return nil, nil
	}
	return nil, ErrMismatch
}

type enumType struct {
	name   string
	values []any
}

// Enum returns a type accepting only the listed literal values. Numbers compare by
// value regardless of their Go type; the raw value is returned unchanged.
func Enum(name string, values ...any) Type {
	return &enumType{name: name, values: values}
}

func (e *enumType) TypeName() string { return e.name }

// Values returns the allowed literals.
func (e *enumType) Values() []any {
	out := make([]any, len(e.values))
	copy(out, e.values)
	return out
}

func (e *enumType) Convert(raw any, _ TypeSet) (any, error) {
	for _, v := range e.values {
		if literalEqual(raw, v) {
			return raw, nil
		}
	}
	return nil, ErrMismatch
}

func literalEqual(a, b any) bool {
	af, aNum := numericValue(a)
	bf, bNum := numericValue(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil || ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

type constructorType struct {
	name string
	fn   func(raw any) (any, error)
}

// Constructor adapts an arbitrary conversion function into a candidate type. A
// returned error (or panic) does not stop the cast; the engine tries the next
// candidate and reports the last such error if nothing matches.
func Constructor(name string, fn func(raw any) (any, error)) Type {
	return &constructorType{name: name, fn: fn}
}

func (c *constructorType) TypeName() string { return c.name }

func (c *constructorType) Convert(raw any, _ TypeSet) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%s: %v", c.name, r)
		}
	}()
	return c.fn(raw)
}
