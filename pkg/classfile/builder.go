package classfile

import "fmt"

// ClassBuilder assembles a ClassFile, interning constants as members are added.
type ClassBuilder struct {
	Pool *PoolBuilder
	file *ClassFile
}

// NewClassBuilder starts a class file (version 52) for name extending super.
func NewClassBuilder(name, super string, flags uint16, interfaces ...string) *ClassBuilder {
	pool := NewPoolBuilder()
	cf := &ClassFile{
		MajorVersion: MajorJava8,
		AccessFlags:  flags,
		ThisClass:    pool.Class(name),
	}
	if super != "" {
		cf.SuperClass = pool.Class(super)
	}
	for _, in := range interfaces {
		cf.Interfaces = append(cf.Interfaces, pool.Class(in))
	}
	return &ClassBuilder{Pool: pool, file: cf}
}

// SourceFile sets the SourceFile attribute.
func (b *ClassBuilder) SourceFile(name string) *ClassBuilder {
	b.file.SourceFile = name
	return b
}

// Field declares a field.
func (b *ClassBuilder) Field(flags uint16, name, descriptor string) *ClassBuilder {
	b.file.Fields = append(b.file.Fields, FieldInfo{AccessFlags: flags, Name: name, Descriptor: descriptor})
	return b
}

// Method declares a method. code is nil for abstract methods.
func (b *ClassBuilder) Method(flags uint16, name, descriptor string, code *CodeAttribute) *ClassBuilder {
	b.file.Methods = append(b.file.Methods, MethodInfo{AccessFlags: flags, Name: name, Descriptor: descriptor, Code: code})
	return b
}

// Build finalizes the constant pool and returns the class file.
func (b *ClassBuilder) Build() (*ClassFile, error) {
	if err := b.Pool.Err(); err != nil {
		return nil, err
	}
	b.file.ConstantPool = b.Pool.Entries()
	return b.file, nil
}

// Bytes builds and encodes the class file.
func (b *ClassBuilder) Bytes() ([]byte, error) {
	cf, err := b.Build()
	if err != nil {
		return nil, err
	}
	return Write(cf)
}

// Asm appends encoded instructions to a code buffer.
type Asm struct {
	Code []byte
}

// Op appends operand-less instructions.
func (a *Asm) Op(ops ...byte) *Asm {
	a.Code = append(a.Code, ops...)
	return a
}

// U8 appends an instruction with a one-byte operand.
func (a *Asm) U8(op byte, v uint8) *Asm {
	a.Code = append(a.Code, op, v)
	return a
}

// U16 appends an instruction with a two-byte operand such as a constant
// pool index or a branch offset.
func (a *Asm) U16(op byte, v uint16) *Asm {
	a.Code = append(a.Code, op, byte(v>>8), byte(v))
	return a
}

// Branch appends a branch instruction with a signed offset relative to
// the branch opcode.
func (a *Asm) Branch(op byte, offset int16) *Asm {
	return a.U16(op, uint16(offset))
}

// PushInt appends the shortest instruction that pushes the int constant v.
// Constants outside the sipush range need an Integer pool entry.
func (a *Asm) PushInt(pool *PoolBuilder, v int32) *Asm {
	switch {
	case v >= -1 && v <= 5:
		return a.Op(byte(OpIconst0 + v))
	case v >= -128 && v <= 127:
		return a.U8(OpBipush, uint8(int8(v)))
	case v >= -32768 && v <= 32767:
		return a.U16(OpSipush, uint16(int16(v)))
	}
	idx := pool.Integer(v)
	if idx <= 0xFF {
		return a.U8(OpLdc, uint8(idx))
	}
	return a.U16(OpLdcW, idx)
}

// PC returns the offset of the next instruction.
func (a *Asm) PC() int { return len(a.Code) }

// Len returns the code length, checking the 65535-byte method limit.
func (a *Asm) Len() (int, error) {
	if len(a.Code) > 0xFFFF {
		return 0, fmt.Errorf("code too large: %d bytes", len(a.Code))
	}
	return len(a.Code), nil
}
