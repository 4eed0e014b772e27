package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type is the type of a catalog field.
type Type uint8

// Field types.
const (
	TypeBool Type = iota + 1
	TypeInt
	TypeDouble
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// TypeName returns the native type name of the field type.
func (t Type) TypeName() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "integer"
	case TypeDouble:
		return "double"
	case TypeString:
		return "text"
	default:
		return ""
	}
}

// Numeric reports whether t is int or double.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeDouble
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (t *Type) UnmarshalText(text []byte) error {
	for _, candidate := range []Type{TypeBool, TypeInt, TypeDouble, TypeString} {
		if string(text) == candidate.String() {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown field type %q", text)
}

// Value is a typed attribute value. The zero Value is an untyped null.
type Value struct {
	typ  Type
	null bool
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool returns a bool value.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Int returns an int value.
func Int(i int64) Value { return Value{typ: TypeInt, i: i} }

// Double returns a double value.
func Double(f float64) Value { return Value{typ: TypeDouble, f: f} }

// String returns a string value.
func String(s string) Value { return Value{typ: TypeString, s: s} }

// Null returns the null value of type t.
func Null(t Type) Value { return Value{typ: t, null: true} }

// Type returns the value's type.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.null || v.typ == 0 }

// AsBool returns the bool payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.typ == TypeBool && !v.null
}

// AsInt returns the int payload.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.typ == TypeInt && !v.null
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	return v.s, v.typ == TypeString && !v.null
}

// AsFloat returns a numeric payload as float64.
func (v Value) AsFloat() (float64, bool) {
	if v.null {
		return 0, false
	}
	switch v.typ {
	case TypeInt:
		return float64(v.i), true
	case TypeDouble:
		return v.f, true
	default:
		return 0, false
	}
}

// Interface returns the payload as bool, int64, float64, string, or nil when null.
func (v Value) Interface() any {
	if v.IsNull() {
		return nil
	}
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeInt:
		return v.i
	case TypeDouble:
		return v.f
	default:
		return v.s
	}
}

// Coerce converts v to type t. Ints widen to doubles; any other mismatch yields the
// null of t.
func (v Value) Coerce(t Type) Value {
	if v.IsNull() {
		return Null(t)
	}
	if v.typ == t {
		return v
	}
	if v.typ == TypeInt && t == TypeDouble {
		return Double(float64(v.i))
	}
	return Null(t)
}

func (v Value) String() string {
	if v.IsNull() {
		return "NULL"
	}
	switch v.typ {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeDouble:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return v.s
	}
}

// MarshalJSON encodes the payload, or null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
