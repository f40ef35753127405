package native

import (
	"fmt"
	"math"
)

// Boxed class names.
const (
	BooleanClass   = "java/lang/Boolean"
	CharacterClass = "java/lang/Character"
	ByteClass      = "java/lang/Byte"
	ShortClass     = "java/lang/Short"
	IntegerClass   = "java/lang/Integer"
	LongClass      = "java/lang/Long"
	FloatClass     = "java/lang/Float"
	DoubleClass    = "java/lang/Double"
)

// Box represents an instance of one of the eight primitive wrapper classes.
// Integral kinds, boolean and char keep their value in Bits; float and double
// keep the IEEE value in Float.
type Box struct {
	ClassName string
	Bits      int64
	Float     float64
}

// BoolValueOf creates a java.lang.Boolean.
func BoolValueOf(v bool) *Box {
	var bits int64
	if v {
		bits = 1
	}
	return &Box{ClassName: BooleanClass, Bits: bits}
}

// CharValueOf creates a java.lang.Character.
func CharValueOf(v uint16) *Box { return &Box{ClassName: CharacterClass, Bits: int64(v)} }

// ByteValueOf creates a java.lang.Byte.
func ByteValueOf(v int8) *Box { return &Box{ClassName: ByteClass, Bits: int64(v)} }

// ShortValueOf creates a java.lang.Short.
func ShortValueOf(v int16) *Box { return &Box{ClassName: ShortClass, Bits: int64(v)} }

// IntegerValueOf creates a java.lang.Integer (boxing).
func IntegerValueOf(v int32) *Box { return &Box{ClassName: IntegerClass, Bits: int64(v)} }

// LongValueOf creates a java.lang.Long.
func LongValueOf(v int64) *Box { return &Box{ClassName: LongClass, Bits: v} }

// FloatValueOf creates a java.lang.Float.
func FloatValueOf(v float32) *Box { return &Box{ClassName: FloatClass, Float: float64(v)} }

// DoubleValueOf creates a java.lang.Double.
func DoubleValueOf(v float64) *Box { return &Box{ClassName: DoubleClass, Float: v} }

// IsNumber reports whether the box extends java.lang.Number.
func (b *Box) IsNumber() bool {
	switch b.ClassName {
	case ByteClass, ShortClass, IntegerClass, LongClass, FloatClass, DoubleClass:
		return true
	}
	return false
}

func (b *Box) isFloating() bool {
	return b.ClassName == FloatClass || b.ClassName == DoubleClass
}

// IntValue is Number.intValue (narrowing like a Java cast).
func (b *Box) IntValue() int32 {
	if b.isFloating() {
		return f2i(b.Float)
	}
	return int32(b.Bits)
}

// LongValue is Number.longValue.
func (b *Box) LongValue() int64 {
	if b.isFloating() {
		return f2l(b.Float)
	}
	return b.Bits
}

// FloatValue is Number.floatValue.
func (b *Box) FloatValue() float32 {
	if b.isFloating() {
		return float32(b.Float)
	}
	return float32(b.Bits)
}

// DoubleValue is Number.doubleValue.
func (b *Box) DoubleValue() float64 {
	if b.isFloating() {
		return b.Float
	}
	return float64(b.Bits)
}

// BoolValue is Boolean.booleanValue.
func (b *Box) BoolValue() bool { return b.Bits != 0 }

// CharValue is Character.charValue.
func (b *Box) CharValue() uint16 { return uint16(b.Bits) }

// Equals compares class and value, like the equals method of the wrappers.
func (b *Box) Equals(other *Box) bool {
	if other == nil || b.ClassName != other.ClassName {
		return false
	}
	if b.isFloating() {
		return math.Float64bits(b.Float) == math.Float64bits(other.Float)
	}
	return b.Bits == other.Bits
}

func (b *Box) String() string {
	switch b.ClassName {
	case BooleanClass:
		if b.BoolValue() {
			return "true"
		}
		return "false"
	case CharacterClass:
		return string(rune(b.CharValue()))
	case FloatClass:
		return fmt.Sprint(float32(b.Float))
	case DoubleClass:
		return fmt.Sprint(b.Float)
	}
	return fmt.Sprint(b.Bits)
}

// f2i and f2l follow the JVM conversion rules: NaN becomes 0 and values out
// of range saturate.
func f2i(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func f2l(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// F2I exposes the float to int conversion to the interpreter.
func F2I(f float64) int32 { return f2i(f) }

// F2L exposes the float to long conversion to the interpreter.
func F2L(f float64) int64 { return f2l(f) }
