package bytecode

import (
	"bytes"
	"fmt"
)

// Kind discriminates the typed payload of a Value.
type Kind uint8

const (
	KindNull  Kind = iota // polymorphic null
	KindEmpty             // polymorphic "no value yet"
	KindBool
	KindInt
	KindUint
	KindDouble
	KindChar
	KindString
	KindPoint
	KindRect
	KindGuid
	KindArray
	KindStringMap
	KindByteArray
	KindCacheRequest
	KindObjectRef // imported provider-side object
)

// String returns a human-readable name for a Kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindEmpty:
		return "empty"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindDouble:
		return "double"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindPoint:
		return "point"
	case KindRect:
		return "rect"
	case KindGuid:
		return "guid"
	case KindArray:
		return "array"
	case KindStringMap:
		return "stringmap"
	case KindByteArray:
		return "bytearray"
	case KindCacheRequest:
		return "cacherequest"
	case KindObjectRef:
		return "objectref"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Point is a 2D coordinate operand payload.
type Point struct {
	X float64 `cbor:"x"`
	Y float64 `cbor:"y"`
}

// Rect is a rectangle operand payload.
type Rect struct {
	X      float64 `cbor:"x"`
	Y      float64 `cbor:"y"`
	Width  float64 `cbor:"w"`
	Height float64 `cbor:"h"`
}

// Value is the tagged union carried in operand tables and response value
// tables. Exactly one payload field is meaningful, selected by Kind.
// Char values use the Int field (the rune); Guid values use Bytes (16 bytes).
type Value struct {
	Kind    Kind             `cbor:"k"`
	Bool    bool             `cbor:"b,omitempty"`
	Int     int64            `cbor:"i,omitempty"`
	Uint    uint64           `cbor:"u,omitempty"`
	Double  float64          `cbor:"f,omitempty"`
	Str     string           `cbor:"s,omitempty"`
	Bytes   []byte           `cbor:"y,omitempty"`
	Point   *Point           `cbor:"p,omitempty"`
	Rect    *Rect            `cbor:"q,omitempty"`
	Array   []Value          `cbor:"a,omitempty"`
	Map     map[string]Value `cbor:"m,omitempty"`
	Ref     string           `cbor:"r,omitempty"`  // provider object handle
	RefKind string           `cbor:"rk,omitempty"` // "element", "textrange", "object"
}

// Constructors

func NullValue() Value            { return Value{Kind: KindNull} }
func EmptyValue() Value           { return Value{Kind: KindEmpty} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func UintValue(u uint64) Value    { return Value{Kind: KindUint, Uint: u} }
func DoubleValue(f float64) Value { return Value{Kind: KindDouble, Double: f} }
func CharValue(r rune) Value      { return Value{Kind: KindChar, Int: int64(r)} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func PointValue(p Point) Value    { return Value{Kind: KindPoint, Point: &p} }
func RectValue(r Rect) Value      { return Value{Kind: KindRect, Rect: &r} }
func ArrayValue(elems []Value) Value {
	return Value{Kind: KindArray, Array: elems}
}
func StringMapValue(m map[string]Value) Value {
	return Value{Kind: KindStringMap, Map: m}
}
func ByteArrayValue(b []byte) Value { return Value{Kind: KindByteArray, Bytes: b} }
func CacheRequestValue() Value      { return Value{Kind: KindCacheRequest} }

// GuidValue wraps a 16-byte GUID.
func GuidValue(g [16]byte) Value {
	return Value{Kind: KindGuid, Bytes: append([]byte(nil), g[:]...)}
}

// ObjectRefValue references a provider-side object by its opaque handle.
func ObjectRefValue(refKind, ref string) Value {
	return Value{Kind: KindObjectRef, Ref: ref, RefKind: refKind}
}

// AsBool returns the boolean payload. The second return is false on a kind
// mismatch.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.Bool, true
}

// AsInt returns the integer payload of an int or char value.
func (v Value) AsInt() (int64, bool) {
	if v.Kind != KindInt && v.Kind != KindChar {
		return 0, false
	}
	return v.Int, true
}

// AsDouble returns a float payload, widening int and uint values.
func (v Value) AsDouble() (float64, bool) {
	switch v.Kind {
	case KindDouble:
		return v.Double, true
	case KindInt:
		return float64(v.Int), true
	case KindUint:
		return float64(v.Uint), true
	default:
		return 0, false
	}
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// IsNumeric reports whether the value participates in arithmetic.
func (v Value) IsNumeric() bool {
	switch v.Kind {
	case KindInt, KindUint, KindDouble:
		return true
	default:
		return false
	}
}

// Equal reports deep equality between two values. Values of different kinds
// are never equal; no numeric cross-kind coercion happens here.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull, KindEmpty, KindCacheRequest:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt, KindChar:
		return v.Int == o.Int
	case KindUint:
		return v.Uint == o.Uint
	case KindDouble:
		return v.Double == o.Double
	case KindString:
		return v.Str == o.Str
	case KindGuid, KindByteArray:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindPoint:
		return v.Point != nil && o.Point != nil && *v.Point == *o.Point
	case KindRect:
		return v.Rect != nil && o.Rect != nil && *v.Rect == *o.Rect
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindStringMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, a := range v.Map {
			b, ok := o.Map[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	case KindObjectRef:
		return v.Ref == o.Ref && v.RefKind == o.RefKind
	default:
		return false
	}
}

// String renders the value for disassembly and error messages.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindEmpty:
		return "empty"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindUint:
		return fmt.Sprintf("%du", v.Uint)
	case KindDouble:
		return fmt.Sprintf("%g", v.Double)
	case KindChar:
		return fmt.Sprintf("%q", rune(v.Int))
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindPoint:
		return fmt.Sprintf("point(%g,%g)", v.Point.X, v.Point.Y)
	case KindRect:
		return fmt.Sprintf("rect(%g,%g,%g,%g)", v.Rect.X, v.Rect.Y, v.Rect.Width, v.Rect.Height)
	case KindGuid:
		return fmt.Sprintf("guid(%x)", v.Bytes)
	case KindArray:
		return fmt.Sprintf("array[%d]", len(v.Array))
	case KindStringMap:
		return fmt.Sprintf("stringmap[%d]", len(v.Map))
	case KindByteArray:
		return fmt.Sprintf("bytes[%d]", len(v.Bytes))
	case KindCacheRequest:
		return "cacherequest"
	case KindObjectRef:
		return fmt.Sprintf("%s:%s", v.RefKind, v.Ref)
	default:
		return fmt.Sprintf("value(kind=%d)", v.Kind)
	}
}
