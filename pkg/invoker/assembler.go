package invoker

import (
	"fmt"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/vm"
)

// GeneratedSource is the SourceFile attribute of every generated class.
const GeneratedSource = "<generated>"

// Artifact is an encoded generated class.
type Artifact struct {
	Name  string // dotted binary name
	Owner string // internal name of the target's owner
	Bytes []byte
}

// InternalName returns the slash-separated class name.
func (a *Artifact) InternalName() string { return internalName(a.Name) }

// Assemble encodes body as a final public class called name extending the
// invoker base class. It performs no I/O and is deterministic: the same
// inputs give the same bytes.
func Assemble(name string, body *Body, d Descriptor) (*Artifact, error) {
	cb := classfile.NewClassBuilder(internalName(name), vm.InvokerBase,
		classfile.AccPublic|classfile.AccFinal|classfile.AccSuper, vm.InvokerInterface).
		SourceFile(GeneratedSource)

	for _, m := range []MethodBody{body.Constructor, body.Dispatch} {
		code, err := assembleMethod(cb.Pool, m)
		if err != nil {
			return nil, &EmissionError{Name: name, Reason: fmt.Sprintf("method %s%s of %s", m.Name, m.Descriptor, d), Err: err}
		}
		cb.Method(m.Flags, m.Name, m.Descriptor, code)
	}

	data, err := cb.Bytes()
	if err != nil {
		return nil, &EmissionError{Name: name, Reason: "encoding class file", Err: err}
	}
	return &Artifact{Name: name, Owner: d.Owner().InternalName(), Bytes: data}, nil
}

// assembleMethod resolves the operands of m into pool and encodes its code,
// computing max_stack from the stack effect of each instruction.
func assembleMethod(pool *classfile.PoolBuilder, m MethodBody) (*classfile.CodeAttribute, error) {
	a := &classfile.Asm{}
	depth, maxDepth := 0, 0
	for pc, in := range m.Code {
		delta, err := stackEffect(in)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", pc, in, err)
		}
		depth += delta.push - delta.pop
		if depth-delta.push < 0 {
			return nil, fmt.Errorf("instruction %d (%s): stack underflow", pc, in)
		}
		if depth > maxDepth {
			maxDepth = depth
		}
		if err := encode(a, pool, in); err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", pc, in, err)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("inconsistent stack: %d slots left after the last instruction", depth)
	}
	if _, err := a.Len(); err != nil {
		return nil, err
	}
	return &classfile.CodeAttribute{
		MaxStack:  uint16(maxDepth),
		MaxLocals: m.MaxLocals,
		Code:      a.Code,
	}, nil
}

type effect struct{ pop, push int }

// stackEffect returns the slots an instruction pops and pushes. Only the
// instructions the emitter produces are known.
func stackEffect(in Insn) (effect, error) {
	switch in.Op {
	case classfile.OpAload0, classfile.OpAload1, classfile.OpAload2, classfile.OpAload3,
		classfile.OpAconstNull, classfile.OpBipush, classfile.OpSipush:
		return effect{0, 1}, nil
	case classfile.OpAaload:
		return effect{2, 1}, nil
	case classfile.OpCheckcast:
		return effect{1, 1}, nil
	case classfile.OpAreturn:
		return effect{1, 0}, nil
	case classfile.OpReturn:
		return effect{0, 0}, nil
	case classfile.OpInvokevirtual, classfile.OpInvokespecial, classfile.OpInvokeinterface, classfile.OpInvokestatic:
		params, ret, err := classfile.ParseMethodDescriptor(in.Desc)
		if err != nil {
			return effect{}, err
		}
		pop := 0
		if in.Op != classfile.OpInvokestatic {
			pop++
		}
		for _, p := range params {
			pop += classfile.SlotSize(p)
		}
		return effect{pop, classfile.SlotSize(ret)}, nil
	}
	if in.Op >= classfile.OpIconstM1 && in.Op <= classfile.OpIconst5 {
		return effect{0, 1}, nil
	}
	return effect{}, fmt.Errorf("unsupported opcode 0x%02x", in.Op)
}

func encode(a *classfile.Asm, pool *classfile.PoolBuilder, in Insn) error {
	switch in.Op {
	case classfile.OpBipush:
		if in.Int < -128 || in.Int > 127 {
			return fmt.Errorf("bipush operand %d out of range", in.Int)
		}
		a.U8(in.Op, uint8(int8(in.Int)))
	case classfile.OpSipush:
		if in.Int < -32768 || in.Int > 32767 {
			return fmt.Errorf("sipush operand %d out of range", in.Int)
		}
		a.U16(in.Op, uint16(int16(in.Int)))
	case classfile.OpCheckcast:
		if in.Class == "" {
			return fmt.Errorf("checkcast without a class")
		}
		a.U16(in.Op, pool.Class(in.Class))
	case classfile.OpInvokevirtual, classfile.OpInvokespecial, classfile.OpInvokestatic:
		if in.Interface {
			a.U16(in.Op, pool.InterfaceMethodref(in.Class, in.Member, in.Desc))
		} else {
			a.U16(in.Op, pool.Methodref(in.Class, in.Member, in.Desc))
		}
	case classfile.OpInvokeinterface:
		slots, err := classfile.ArgSlots(in.Desc)
		if err != nil {
			return err
		}
		a.U16(in.Op, pool.InterfaceMethodref(in.Class, in.Member, in.Desc)).Op(byte(slots+1), 0)
	default:
		a.Op(in.Op)
	}
	return nil
}
