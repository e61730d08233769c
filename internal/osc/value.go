package osc

import "fmt"

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt32
	KindFloat32
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a tagged union over the three parameter variants: int32,
// float32 and bool. The zero Value is invalid; constructors always bind
// exactly one variant.
type Value struct {
	kind Kind
	i    int32
	f    float32
	b    bool
}

// Int32Value constructs an int32 Value.
func Int32Value(v int32) Value { return Value{kind: KindInt32, i: v} }

// Float32Value constructs a float32 Value.
func Float32Value(v float32) Value { return Value{kind: KindFloat32, f: v} }

// BoolValue constructs a bool Value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind returns the bound variant.
func (v Value) Kind() Kind { return v.kind }

// Int32 returns the int32 payload. Valid only when Kind is KindInt32.
func (v Value) Int32() int32 { return v.i }

// Float32 returns the float32 payload. Valid only when Kind is KindFloat32.
func (v Value) Float32() float32 { return v.f }

// Bool returns the bool payload. Valid only when Kind is KindBool.
func (v Value) Bool() bool { return v.b }

// Equal reports whether both values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt32:
		return v.i == o.i
	case KindFloat32:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case KindInt32:
		return fmt.Sprintf("%d", v.i)
	case KindFloat32:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	default:
		return "<invalid>"
	}
}

// Interface returns the payload as an untyped value, for JSON encoding.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt32:
		return v.i
	case KindFloat32:
		return v.f
	case KindBool:
		return v.b
	default:
		return nil
	}
}
