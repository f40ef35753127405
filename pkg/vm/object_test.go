package vm

import (
	"testing"

	"github.com/daimatz/invokergen/pkg/classfile"
)

func TestNewObjectFields(t *testing.T) {
	scope := NewScope(t.Name(), nil, nil)

	pb := withCtor(classfile.NewClassBuilder("Point", objectName, pubSuper), objectName)
	pb.Field(classfile.AccPublic, "x", "I").Field(classfile.AccPublic, "name", "Ljava/lang/String;").
		Field(classfile.AccStatic, "origin", "LPoint;")
	point := defineClass(t, scope, pb)

	cb := withCtor(classfile.NewClassBuilder("Point3", "Point", pubSuper), "Point")
	cb.Field(classfile.AccPublic, "z", "D").Field(classfile.AccPublic, "x", "J")
	point3 := defineClass(t, scope, cb)

	obj := NewObject(point3)
	tests := []struct {
		field string
		want  ValueType
	}{
		{"x", TypeLong},
		{"z", TypeDouble},
		{"name", TypeNull},
	}
	for _, tt := range tests {
		if got := obj.GetField(tt.field).Type; got != tt.want {
			t.Errorf("field %s: got type %v, want %v", tt.field, got, tt.want)
		}
	}
	if !obj.GetField("origin").IsNull() {
		t.Error("static fields are not instance fields")
	}

	obj.SetField("z", DoubleValue(2.5))
	if got := obj.GetField("z").Double; got != 2.5 {
		t.Errorf("SetField: got %v", got)
	}
	if obj.ClassName() != "Point3" {
		t.Errorf("ClassName: got %s", obj.ClassName())
	}
	if v, ok := point.GetStatic("origin"); !ok || !v.IsNull() {
		t.Errorf("static default: got %+v, %v", v, ok)
	}
}

func TestNewArray(t *testing.T) {
	tests := []struct {
		desc string
		zero ValueType
	}{
		{"[I", TypeInt},
		{"[Z", TypeInt},
		{"[J", TypeLong},
		{"[F", TypeFloat},
		{"[D", TypeDouble},
		{"[Ljava/lang/String;", TypeNull},
		{"[[I", TypeNull},
	}
	for _, tt := range tests {
		arr := NewArray(tt.desc, 2)
		if len(arr.Elements) != 2 || arr.Elements[1].Type != tt.zero {
			t.Errorf("%s: got %+v", tt.desc, arr.Elements)
		}
		if arr.ElementDescriptor() != tt.desc[1:] {
			t.Errorf("%s: element descriptor %s", tt.desc, arr.ElementDescriptor())
		}
	}

	src := []Value{IntValue(1)}
	arr := ObjectArray(src...)
	src[0] = IntValue(2)
	if arr.Elements[0].Int != 1 {
		t.Error("ObjectArray should copy its arguments")
	}
	if arr.Descriptor != "[Ljava/lang/Object;" {
		t.Errorf("descriptor: got %s", arr.Descriptor)
	}
}
