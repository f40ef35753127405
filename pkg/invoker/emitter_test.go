package invoker

import (
	"errors"
	"strings"
	"testing"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/vm"
)

func listing(code []Insn) string {
	lines := make([]string, len(code))
	for i, in := range code {
		lines[i] = in.String()
	}
	return strings.Join(lines, "\n")
}

func TestEmit(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want []string
	}{
		{
			name: "static void(short)",
			d:    staticDesc("test", Void, Short),
			want: []string{
				"aload_2", "iconst_0", "aaload",
				"checkcast java/lang/Short",
				"invokevirtual java/lang/Short.shortValue()S",
				"invokestatic com/example/Bean.test(S)V",
				"aconst_null", "areturn",
			},
		},
		{
			name: "instance void(Bean)",
			d:    MustDescriptor(bean, "test", []Type{bean}, Void),
			want: []string{
				"aload_1", "checkcast com/example/Bean",
				"aload_2", "iconst_0", "aaload", "checkcast com/example/Bean",
				"invokevirtual com/example/Bean.test(Lcom/example/Bean;)V",
				"aconst_null", "areturn",
			},
		},
		{
			name: "object parameter and result are not cast",
			d:    MustDescriptor(Object, "equals", []Type{Object}, Object),
			want: []string{
				"aload_1",
				"aload_2", "iconst_0", "aaload",
				"invokevirtual java/lang/Object.equals(Ljava/lang/Object;)Ljava/lang/Object;",
				"areturn",
			},
		},
		{
			name: "interface owner",
			d:    MustDescriptor(Reference(shapeClass), "sides", nil, Int, OnInterface()),
			want: []string{
				"aload_1", "checkcast com/example/Shape",
				"invokeinterface com/example/Shape.sides()I",
				"invokestatic java/lang/Integer.valueOf(I)Ljava/lang/Integer;",
				"areturn",
			},
		},
		{
			name: "array result",
			d:    staticDesc("id", ArrayOf(Int, 1), ArrayOf(Int, 1)),
			want: []string{
				"aload_2", "iconst_0", "aaload", "checkcast [I",
				"invokestatic com/example/Bean.id([I)[I",
				"areturn",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := Emit(tt.d, "Gen")
			if err != nil {
				t.Fatalf("Emit: %v", err)
			}
			if got, want := listing(body.Dispatch.Code), strings.Join(tt.want, "\n"); got != want {
				t.Errorf("dispatch:\n%s\nwant:\n%s", got, want)
			}
			if body.Dispatch.Name != vm.InvokeName || body.Dispatch.Descriptor != vm.InvokeDescriptor {
				t.Errorf("dispatch signature: %s%s", body.Dispatch.Name, body.Dispatch.Descriptor)
			}
			if body.Dispatch.Flags != classfile.AccPublic|classfile.AccFinal {
				t.Errorf("dispatch flags: %#x", body.Dispatch.Flags)
			}
			wantCtor := "aload_0\ninvokespecial " + vm.InvokerBase + ".<init>()V\nreturn"
			if got := listing(body.Constructor.Code); got != wantCtor {
				t.Errorf("constructor:\n%s", got)
			}
		})
	}
}

func TestEmitIndexPushes(t *testing.T) {
	params := make([]Type, 200)
	for i := range params {
		params[i] = Object
	}
	body, err := Emit(staticDesc("many", Void, params...), "Gen")
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	// each parameter is loaded by aload_2, <push>, aaload
	var pushes []string
	code := body.Dispatch.Code
	for i, in := range code {
		if in.Op == classfile.OpAload2 {
			pushes = append(pushes, code[i+1].String())
		}
	}
	if len(pushes) != len(params) {
		t.Fatalf("got %d parameter loads, want %d", len(pushes), len(params))
	}
	tests := []struct {
		index int
		want  string
	}{
		{0, "iconst_0"},
		{5, "iconst_5"},
		{6, "bipush 6"},
		{127, "bipush 127"},
		{128, "sipush 128"},
		{199, "sipush 199"},
	}
	for _, tt := range tests {
		if got := pushes[tt.index]; got != tt.want {
			t.Errorf("index %d: got %s, want %s", tt.index, got, tt.want)
		}
	}
}

func TestEmitErrors(t *testing.T) {
	wide := make([]Type, 128)
	for i := range wide {
		wide[i] = Long
	}
	narrow := make([]Type, 255)
	for i := range narrow {
		narrow[i] = Int
	}
	tests := []struct {
		name string
		d    Descriptor
		ok   bool
	}{
		{"256 static slots", staticDesc("wide", Void, wide...), false},
		{"255 static slots", staticDesc("narrow", Void, narrow...), true},
		{"255 slots plus receiver", MustDescriptor(bean, "narrow", narrow, Void), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Emit(tt.d, "Gen")
			if tt.ok {
				if err != nil {
					t.Errorf("Emit: %v", err)
				}
				return
			}
			var eerr *EmissionError
			if !errors.As(err, &eerr) {
				t.Errorf("expected EmissionError, got %v", err)
			}
		})
	}

	if _, err := Emit(Descriptor{owner: Int, name: "x"}, "Gen"); err == nil {
		t.Error("expected an error for a primitive owner")
	}
}
