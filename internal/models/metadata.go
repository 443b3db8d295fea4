package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/tenantrag/pkg/utils"
)

// ErrInvalidValue is returned when a metadata value is not a string, number or bool.
var ErrInvalidValue = errors.New("invalid metadata value")

// ValueKind identifies the primitive held by a Value.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a metadata value: exactly one of string, int64, float64 or bool.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func IntValue(i int64) Value     { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func BoolValue(b bool) Value     { return Value{kind: KindBool, b: b} }

// Kind reports which primitive the value holds.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string and whether the value is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Int returns the integer and whether the value is an int.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the numeric value of an int or float.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Bool returns the bool and whether the value is a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the underlying Go value (string, int64, float64, bool or nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Equal reports exact equality. Ints and floats compare numerically; bools never equal numbers.
func (v Value) Equal(o Value) bool {
	if v.kind == KindInvalid || o.kind == KindInvalid {
		return false
	}
	if v.kind == o.kind {
		switch v.kind {
		case KindString:
			return v.s == o.s
		case KindInt:
			return v.i == o.i
		case KindFloat:
			return v.f == o.f
		case KindBool:
			return v.b == o.b
		}
	}
	a, aok := v.Float()
	b, bok := o.Float()
	return aok && bok && a == b
}

// MarshalJSON encodes the bare primitive. Integral floats keep a ".0" suffix so they decode as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("%w: non-finite float", ErrInvalidValue)
		}
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	}
	return nil, fmt.Errorf("%w: empty value", ErrInvalidValue)
}

// UnmarshalJSON accepts strings, numbers and bools. Numbers without a fraction or exponent become ints.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidValue)
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	case 'n', '[', '{':
		return fmt.Errorf("%w: %s", ErrInvalidValue, utils.Truncate(string(data), 32))
	}
	parsed, err := parseNumber(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func parseNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return FloatValue(f), nil
}

// Validate reports ErrInvalidValue for the zero Value and for NaN or infinite floats.
func (v Value) Validate() error {
	switch v.kind {
	case KindInvalid:
		return fmt.Errorf("%w: empty value", ErrInvalidValue)
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("%w: non-finite float %v", ErrInvalidValue, v.f)
		}
	}
	return nil
}

func finiteFloat(f float64) (Value, error) {
	v := FloatValue(f)
	return v, v.Validate()
}

// ValueOf converts a decoded Go primitive into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, t.Validate()
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint32:
		return IntValue(int64(t)), nil
	case float32:
		return finiteFloat(float64(t))
	case float64:
		return finiteFloat(t)
	case json.Number:
		return parseNumber(t.String())
	}
	return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, x)
}

// ParseValue interprets CLI-style text: true/false, integers and floats, otherwise a string.
func ParseValue(s string) Value {
	switch s {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if v, err := parseNumber(s); err == nil {
		return v
	}
	return StringValue(s)
}

// Metadata is a string-keyed map of primitive values attached to a chunk or document.
type Metadata map[string]Value

// MetadataFromMap converts a generic map into Metadata.
func MetadataFromMap(m map[string]any) (Metadata, error) {
	if m == nil {
		return nil, nil
	}
	out := make(Metadata, len(m))
	for k, x := range m {
		v, err := ValueOf(x)
		if err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// Validate checks every value, reporting the first bad key in sorted order.
func (m Metadata) Validate() error {
	for _, k := range m.Keys() {
		if err := m[k].Validate(); err != nil {
			return fmt.Errorf("metadata key %q: %w", k, err)
		}
	}
	return nil
}

// Clone returns a shallow copy; values are immutable so this is a full copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Matches reports whether m contains every key of filter with an equal value.
// An empty filter matches everything.
func (m Metadata) Matches(filter Metadata) bool {
	for k, want := range filter {
		got, ok := m[k]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// GetString returns the string form of key, or "" when absent.
func (m Metadata) GetString(key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return v.String()
}

// Map returns the metadata as plain Go values.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// Keys returns the keys sorted.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
