package invoker

import (
	"fmt"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/vm"
)

// maxArgSlots is the JVM limit on the parameter slots of a call, receiver
// included.
const maxArgSlots = 255

// Local variable slots of the dispatch method.
const (
	localThis     = 0
	localReceiver = 1
	localArgs     = 2
)

// Insn is one symbolic instruction. Only the operand fields used by Op are
// set: Class for checkcast and member owners, Member and Desc for method
// references, Int for constant pushes.
type Insn struct {
	Op        byte
	Class     string
	Member    string
	Desc      string
	Interface bool // the member reference is an InterfaceMethodref
	Int       int32
}

func (i Insn) String() string {
	name := classfile.OpcodeName(i.Op)
	switch {
	case i.Member != "":
		return fmt.Sprintf("%s %s.%s%s", name, i.Class, i.Member, i.Desc)
	case i.Class != "":
		return name + " " + i.Class
	case i.Op == classfile.OpBipush || i.Op == classfile.OpSipush:
		return fmt.Sprintf("%s %d", name, i.Int)
	}
	return name
}

// MethodBody is a method of a generated class in symbolic form.
type MethodBody struct {
	Name       string
	Descriptor string
	Flags      uint16
	MaxLocals  uint16
	Code       []Insn
}

// Body is the symbolic form of a generated invoker: a nullary constructor
// and the dispatch method.
type Body struct {
	Constructor MethodBody
	Dispatch    MethodBody
}

// Emit builds the constructor and dispatch stub for d. The generated class
// is called name. Private targets are the caller's concern; see
// Descriptor.Validate.
func Emit(d Descriptor, name string) (*Body, error) {
	owner := d.Owner()
	if owner.Kind() != KindReference || owner.IsArray() {
		return nil, &EmissionError{Name: name, Reason: fmt.Sprintf("owner %s is not a class type", owner)}
	}
	if n := d.ArgSlots(); n > maxArgSlots {
		return nil, &EmissionError{Name: name, Reason: fmt.Sprintf("%s needs %d argument slots, limit is %d", d, n, maxArgSlots)}
	}

	e := &emitter{}
	e.op(classfile.OpAload0)
	e.member(classfile.OpInvokespecial, vm.InvokerBase, "<init>", "()V", false)
	e.op(classfile.OpReturn)
	ctor := MethodBody{
		Name:       "<init>",
		Descriptor: "()V",
		Flags:      classfile.AccPublic,
		MaxLocals:  1,
		Code:       e.code,
	}

	e = &emitter{}
	if !d.IsStatic() {
		e.op(classfile.OpAload1)
		e.checkcast(owner)
	}
	for i := 0; i < d.NumParams(); i++ {
		p := d.Param(i)
		if p.IsVoid() {
			return nil, &EmissionError{Name: name, Reason: fmt.Sprintf("parameter %d is void", i)}
		}
		e.op(classfile.OpAload2)
		e.pushInt(int32(i))
		e.op(classfile.OpAaload)
		if box, ok := p.Boxed(); ok {
			e.insn(Insn{Op: classfile.OpCheckcast, Class: box.InternalName()})
			e.member(classfile.OpInvokevirtual, box.InternalName(), p.unboxMethod(), "()"+p.Descriptor(), false)
		} else {
			e.checkcast(p)
		}
	}

	desc := d.MethodDescriptor()
	switch {
	case d.IsStatic():
		e.member(classfile.OpInvokestatic, owner.InternalName(), d.Name(), desc, d.OwnerIsInterface())
	case d.OwnerIsInterface():
		e.member(classfile.OpInvokeinterface, owner.InternalName(), d.Name(), desc, true)
	default:
		e.member(classfile.OpInvokevirtual, owner.InternalName(), d.Name(), desc, false)
	}

	ret := d.Return()
	if ret.IsVoid() {
		e.op(classfile.OpAconstNull)
	} else if box, ok := ret.Boxed(); ok {
		e.member(classfile.OpInvokestatic, box.InternalName(), "valueOf", "("+ret.Descriptor()+")"+box.Descriptor(), false)
	}
	e.op(classfile.OpAreturn)

	dispatch := MethodBody{
		Name:       vm.InvokeName,
		Descriptor: vm.InvokeDescriptor,
		Flags:      classfile.AccPublic | classfile.AccFinal,
		MaxLocals:  localArgs + 1,
		Code:       e.code,
	}
	return &Body{Constructor: ctor, Dispatch: dispatch}, nil
}

type emitter struct {
	code []Insn
}

func (e *emitter) insn(i Insn) { e.code = append(e.code, i) }

func (e *emitter) op(op byte) { e.insn(Insn{Op: op}) }

func (e *emitter) member(op byte, owner, name, desc string, iface bool) {
	e.insn(Insn{Op: op, Class: owner, Member: name, Desc: desc, Interface: iface})
}

// checkcast guards a reference; casting to Object never fails and is
// omitted.
func (e *emitter) checkcast(t Type) {
	if t.IsObject() {
		return
	}
	e.insn(Insn{Op: classfile.OpCheckcast, Class: t.InternalName()})
}

func (e *emitter) pushInt(v int32) {
	switch {
	case v >= -1 && v <= 5:
		e.op(byte(classfile.OpIconst0 + v))
	case v >= -128 && v <= 127:
		e.insn(Insn{Op: classfile.OpBipush, Int: v})
	default:
		e.insn(Insn{Op: classfile.OpSipush, Int: v})
	}
}
