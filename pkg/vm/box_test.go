package vm

import (
	"math"
	"testing"

	"github.com/daimatz/invokergen/pkg/native"
)

func TestBoxRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		in    interface{}
		class string
	}{
		{"bool", true, native.BooleanClass},
		{"byte", int8(-7), native.ByteClass},
		{"char", uint16('x'), native.CharacterClass},
		{"short", int16(-300), native.ShortClass},
		{"int", int32(math.MinInt32), native.IntegerClass},
		{"long", int64(math.MaxInt64), native.LongClass},
		{"float", float32(1.5), native.FloatClass},
		{"double", -2.25, native.DoubleClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Box(tt.in)
			if err != nil {
				t.Fatalf("Box: %v", err)
			}
			box, ok := v.Ref.(*native.Box)
			if !ok || box.ClassName != tt.class {
				t.Fatalf("got %+v, want a %s", v.Ref, tt.class)
			}
			if got := Unbox(v); got != tt.in {
				t.Errorf("Unbox: got %v (%T), want %v (%T)", got, got, tt.in, tt.in)
			}
		})
	}
}

func TestBoxSpecialCases(t *testing.T) {
	if v := MustBox(nil); !v.IsNull() || Unbox(v) != nil {
		t.Errorf("nil: got %+v", v)
	}
	if v := MustBox(7); Unbox(v) != int32(7) {
		t.Errorf("int: got %v", Unbox(v))
	}
	if _, err := Box(math.MaxInt32 + 1); err == nil {
		t.Error("expected overflow error for a wide int")
	}
	if _, err := Box(struct{}{}); err == nil {
		t.Error("expected error for an unsupported type")
	}
	if v := MustBox("text"); v.Ref != "text" {
		t.Errorf("string: got %+v", v)
	}

	arr := ObjectArray()
	if v := MustBox(arr); v.Ref != arr {
		t.Error("references should pass through")
	}

	// stack values become wrapper objects
	if got := Unbox(MustBox(LongValue(-1))); got != int64(-1) {
		t.Errorf("long value: got %v", got)
	}
	if got := Unbox(MustBox(DoubleValue(0.5))); got != 0.5 {
		t.Errorf("double value: got %v", got)
	}
	if got := Unbox(IntValue(3)); got != int32(3) {
		t.Errorf("unboxed stack int: got %v", got)
	}
}
