package vm

import (
	"bytes"
	"testing"

	"github.com/daimatz/invokergen/pkg/classfile"
)

// defineClass encodes b and defines it into scope.
func defineClass(t *testing.T, scope *Scope, b *classfile.ClassBuilder) *Class {
	t.Helper()
	cf, err := b.Build()
	if err != nil {
		t.Fatalf("building class: %v", err)
	}
	name, err := cf.ClassName()
	if err != nil {
		t.Fatalf("class name: %v", err)
	}
	data, err := classfile.Write(cf)
	if err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	c, err := scope.DefineClass(name, data)
	if err != nil {
		t.Fatalf("defining %s: %v", name, err)
	}
	return c
}

// body wraps assembled code into a Code attribute.
func body(maxStack, maxLocals uint16, a *classfile.Asm, handlers ...classfile.ExceptionHandler) *classfile.CodeAttribute {
	return &classfile.CodeAttribute{MaxStack: maxStack, MaxLocals: maxLocals, Code: a.Code, ExceptionHandlers: handlers}
}

// withCtor adds a public nullary constructor chaining to super.
func withCtor(b *classfile.ClassBuilder, super string) *classfile.ClassBuilder {
	init := b.Pool.Methodref(super, "<init>", "()V")
	a := (&classfile.Asm{}).Op(classfile.OpAload0).U16(classfile.OpInvokespecial, init).Op(classfile.OpReturn)
	return b.Method(classfile.AccPublic, "<init>", "()V", body(1, 1, a))
}

func newTestVM(t *testing.T) (*VM, *Scope, *bytes.Buffer) {
	t.Helper()
	scope := NewScope(t.Name(), nil, nil)
	v := NewVM(scope)
	var out bytes.Buffer
	v.Stdout = &out
	return v, scope, &out
}
