package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueKind is the binding of a feature attribute.
type ValueKind string

const (
	KindNull     ValueKind = "null"
	KindBool     ValueKind = "bool"
	KindInt      ValueKind = "int"
	KindFloat    ValueKind = "float"
	KindString   ValueKind = "string"
	KindBytes    ValueKind = "bytes"
	KindTime     ValueKind = "time"
	KindGeometry ValueKind = "geometry" // WKT text
)

// Value is a single typed attribute value. Only the field matching Kind is
// meaningful; the zero Value is null.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string // KindString and KindGeometry
	Bytes []byte
	Time  time.Time
}

func Null() Value { return Value{Kind: KindNull} }
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Geometry(wkt string) Value { return Value{Kind: KindGeometry, Str: wkt} }
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t.UTC()} }
func BytesValue(b []byte) Value {
	out := make([]byte, len(b))
	copy(out, b)
	return Value{Kind: KindBytes, Bytes: out}
}

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool { return v.Kind == "" || v.Kind == KindNull }

// Equal compares two values by kind and canonical content. Floats compare
// bitwise so NaN equals itself, matching content addressing.
func (v Value) Equal(o Value) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return math.Float64bits(v.Float) == math.Float64bits(o.Float)
	case KindString, KindGeometry:
		return v.Str == o.Str
	case KindBytes:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindTime:
		return v.Time.Equal(o.Time)
	}
	return false
}

// String renders the value for display.
func (v Value) String() string {
	text, err := v.encode()
	if err != nil {
		return fmt.Sprintf("<%s?>", v.Kind)
	}
	return text
}

// encode returns the canonical text form of the value payload (without
// the kind prefix).
func (v Value) encode() (string, error) {
	switch v.Kind {
	case "", KindNull:
		return "", nil
	case KindBool:
		return strconv.FormatBool(v.Bool), nil
	case KindInt:
		return strconv.FormatInt(v.Int, 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case KindString, KindGeometry:
		return strconv.Quote(v.Str), nil
	case KindBytes:
		return hex.EncodeToString(v.Bytes), nil
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("unknown value kind %q", v.Kind)
	}
}

func decodeValue(kind ValueKind, text string) (Value, error) {
	switch kind {
	case KindNull:
		return Null(), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("bad bool %q: %w", text, err)
		}
		return Bool(b), nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("bad int %q: %w", text, err)
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("bad float %q: %w", text, err)
		}
		return Float(f), nil
	case KindString, KindGeometry:
		s, err := strconv.Unquote(text)
		if err != nil {
			return Value{}, fmt.Errorf("bad %s %q: %w", kind, text, err)
		}
		return Value{Kind: kind, Str: s}, nil
	case KindBytes:
		b, err := hex.DecodeString(text)
		if err != nil {
			return Value{}, fmt.Errorf("bad bytes %q: %w", text, err)
		}
		return Value{Kind: KindBytes, Bytes: b}, nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return Value{}, fmt.Errorf("bad time %q: %w", text, err)
		}
		return Time(t), nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %q", kind)
	}
}
