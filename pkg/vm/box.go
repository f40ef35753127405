package vm

import (
	"fmt"
	"math"

	"github.com/daimatz/invokergen/pkg/native"
)

// Box converts a Go value into a host reference. Go primitives become the
// matching wrapper objects; host references pass through.
//
//	bool    -> java/lang/Boolean      int16   -> java/lang/Short
//	int8    -> java/lang/Byte         int32   -> java/lang/Integer
//	uint16  -> java/lang/Character    int64   -> java/lang/Long
//	float32 -> java/lang/Float        float64 -> java/lang/Double
//	int     -> java/lang/Integer when it fits in 32 bits
func Box(x interface{}) (Value, error) {
	switch v := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return boxValue(v), nil
	case bool:
		return RefValue(native.BoolValueOf(v)), nil
	case int8:
		return RefValue(native.ByteValueOf(v)), nil
	case uint16:
		return RefValue(native.CharValueOf(v)), nil
	case int16:
		return RefValue(native.ShortValueOf(v)), nil
	case int32:
		return RefValue(native.IntegerValueOf(v)), nil
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return Value{}, fmt.Errorf("box: int %d overflows java/lang/Integer", v)
		}
		return RefValue(native.IntegerValueOf(int32(v))), nil
	case int64:
		return RefValue(native.LongValueOf(v)), nil
	case float32:
		return RefValue(native.FloatValueOf(v)), nil
	case float64:
		return RefValue(native.DoubleValueOf(v)), nil
	case string, *native.Box, *JObject, *JArray:
		return RefValue(v), nil
	}
	return Value{}, fmt.Errorf("box: unsupported Go type %T", x)
}

// MustBox is Box that panics on unsupported types. Intended for tests and
// literals. A Value is boxed by its Type, so the zero Value becomes
// Integer 0.
func MustBox(x interface{}) Value {
	v, err := Box(x)
	if err != nil {
		panic(err)
	}
	return v
}

// boxValue turns a stack value into a reference. Ints stay Integer since
// the stack does not record sub-int types.
func boxValue(v Value) Value {
	switch v.Type {
	case TypeInt:
		return RefValue(native.IntegerValueOf(v.Int))
	case TypeLong:
		return RefValue(native.LongValueOf(v.Long))
	case TypeFloat:
		return RefValue(native.FloatValueOf(v.Float))
	case TypeDouble:
		return RefValue(native.DoubleValueOf(v.Double))
	}
	return v
}

// Unbox converts a host reference back into a Go value: wrapper objects
// become their Go primitive, null becomes nil, other references are
// returned as is.
func Unbox(v Value) interface{} {
	switch v.Type {
	case TypeInt:
		return v.Int
	case TypeLong:
		return v.Long
	case TypeFloat:
		return v.Float
	case TypeDouble:
		return v.Double
	}
	if v.IsNull() {
		return nil
	}
	box, ok := v.Ref.(*native.Box)
	if !ok {
		return v.Ref
	}
	switch box.ClassName {
	case native.BooleanClass:
		return box.BoolValue()
	case native.CharacterClass:
		return box.CharValue()
	case native.ByteClass:
		return int8(box.IntValue())
	case native.ShortClass:
		return int16(box.IntValue())
	case native.IntegerClass:
		return box.IntValue()
	case native.LongClass:
		return box.LongValue()
	case native.FloatClass:
		return box.FloatValue()
	case native.DoubleClass:
		return box.DoubleValue()
	}
	return box
}
