package native

import (
	"bytes"
	"math"
	"testing"
)

func TestBoxes(t *testing.T) {
	t.Run("valueOf and intValue roundtrip", func(t *testing.T) {
		boxed := IntegerValueOf(42)
		if got := boxed.IntValue(); got != 42 {
			t.Errorf("intValue(valueOf(42)): got %d, want 42", got)
		}
	})

	t.Run("valueOf preserves negative values", func(t *testing.T) {
		if got := ShortValueOf(-100).IntValue(); got != -100 {
			t.Errorf("Short(-100).intValue: got %d", got)
		}
		if got := ByteValueOf(-128).LongValue(); got != -128 {
			t.Errorf("Byte(-128).longValue: got %d", got)
		}
	})

	t.Run("wide values", func(t *testing.T) {
		if got := LongValueOf(math.MinInt64).LongValue(); got != math.MinInt64 {
			t.Errorf("Long.MIN_VALUE: got %d", got)
		}
		if got := DoubleValueOf(1.5).DoubleValue(); got != 1.5 {
			t.Errorf("Double(1.5): got %g", got)
		}
		if got := FloatValueOf(0.25).FloatValue(); got != 0.25 {
			t.Errorf("Float(0.25): got %g", got)
		}
	})

	t.Run("boolean and char", func(t *testing.T) {
		if !BoolValueOf(true).BoolValue() || BoolValueOf(false).BoolValue() {
			t.Error("Boolean roundtrip failed")
		}
		if got := CharValueOf('x').CharValue(); got != 'x' {
			t.Errorf("Character('x'): got %c", rune(got))
		}
		if CharValueOf('x').IsNumber() || BoolValueOf(true).IsNumber() {
			t.Error("Character and Boolean are not numbers")
		}
	})

	t.Run("floating narrowing follows the JVM", func(t *testing.T) {
		if got := DoubleValueOf(math.NaN()).IntValue(); got != 0 {
			t.Errorf("NaN intValue: got %d", got)
		}
		if got := DoubleValueOf(1e20).IntValue(); got != math.MaxInt32 {
			t.Errorf("1e20 intValue: got %d", got)
		}
		if got := FloatValueOf(-3.9).IntValue(); got != -3 {
			t.Errorf("-3.9 intValue: got %d", got)
		}
	})

	t.Run("equality", func(t *testing.T) {
		if !IntegerValueOf(7).Equals(IntegerValueOf(7)) {
			t.Error("Integer(7) should equal Integer(7)")
		}
		if IntegerValueOf(7).Equals(LongValueOf(7)) {
			t.Error("Integer(7) must not equal Long(7)")
		}
	})

	t.Run("string form", func(t *testing.T) {
		tests := []struct {
			box  *Box
			want string
		}{
			{IntegerValueOf(-5), "-5"},
			{BoolValueOf(true), "true"},
			{CharValueOf('A'), "A"},
			{DoubleValueOf(2.5), "2.5"},
		}
		for _, tt := range tests {
			if got := tt.box.String(); got != tt.want {
				t.Errorf("%s.String(): got %q, want %q", tt.box.ClassName, got, tt.want)
			}
		}
	})
}

func TestPrintStream(t *testing.T) {
	var buf bytes.Buffer
	ps := &PrintStream{Writer: &buf}
	ps.Println(int32(42))
	ps.Print("a")
	ps.Println("b")
	ps.Println()
	if got, want := buf.String(), "42\nab\n\n"; got != want {
		t.Errorf("output: got %q, want %q", got, want)
	}
}
