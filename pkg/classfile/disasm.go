package classfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Disassemble writes a human-readable trace of cf to w: class header,
// fields, and every method body one instruction per line with constant pool
// operands resolved.
func Disassemble(w io.Writer, cf *ClassFile) error {
	bw := bufio.NewWriter(w)

	name, err := cf.ClassName()
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}
	fmt.Fprintf(bw, "// class version %d.%d\n", cf.MajorVersion, cf.MinorVersion)
	fmt.Fprintf(bw, "// access flags 0x%X\n", cf.AccessFlags)

	kind := "class"
	if cf.IsInterface() {
		kind = "interface"
	}
	fmt.Fprintf(bw, "%s%s %s", accessString(cf.AccessFlags&^(AccSuper|AccInterface), false), kind, name)
	if super := cf.SuperClassName(); super != "" {
		fmt.Fprintf(bw, " extends %s", super)
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}
	if len(ifaces) > 0 {
		fmt.Fprintf(bw, " implements %s", strings.Join(ifaces, ", "))
	}
	fmt.Fprintln(bw)
	if cf.SourceFile != "" {
		fmt.Fprintf(bw, "  // source: %s\n", cf.SourceFile)
	}

	for _, f := range cf.Fields {
		fmt.Fprintf(bw, "\n  %s%s %s\n", accessString(f.AccessFlags, false), f.Name, f.Descriptor)
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		fmt.Fprintf(bw, "\n  // access flags 0x%X\n", m.AccessFlags)
		fmt.Fprintf(bw, "  %s%s%s\n", accessString(m.AccessFlags, true), m.Name, m.Descriptor)
		if m.Code == nil {
			continue
		}
		if err := disassembleCode(bw, cf.ConstantPool, m.Code); err != nil {
			return fmt.Errorf("disasm %s%s: %w", m.Name, m.Descriptor, err)
		}
	}
	return bw.Flush()
}

func accessString(flags uint16, method bool) string {
	var parts []string
	switch {
	case flags&AccPublic != 0:
		parts = append(parts, "public")
	case flags&AccProtected != 0:
		parts = append(parts, "protected")
	case flags&AccPrivate != 0:
		parts = append(parts, "private")
	}
	if flags&AccStatic != 0 {
		parts = append(parts, "static")
	}
	if flags&AccFinal != 0 {
		parts = append(parts, "final")
	}
	if method && flags&AccSynchronized != 0 {
		parts = append(parts, "synchronized")
	}
	if method && flags&AccNative != 0 {
		parts = append(parts, "native")
	}
	if flags&AccAbstract != 0 {
		parts = append(parts, "abstract")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + " "
}

func disassembleCode(w io.Writer, pool []ConstantPoolEntry, code *CodeAttribute) error {
	c := code.Code
	pc := 0
	for pc < len(c) {
		op := c[pc]
		name := OpcodeName(op)
		if name == "" {
			return fmt.Errorf("unknown opcode 0x%02X at %d", op, pc)
		}
		operands, next, err := decodeOperands(pool, c, pc)
		if err != nil {
			return err
		}
		if operands == "" {
			fmt.Fprintf(w, "    %d: %s\n", pc, name)
		} else {
			fmt.Fprintf(w, "    %d: %s %s\n", pc, name, operands)
		}
		pc = next
	}
	for _, h := range code.ExceptionHandlers {
		catch := "any"
		if h.CatchType != 0 {
			if n, err := GetClassName(pool, h.CatchType); err == nil {
				catch = n
			}
		}
		fmt.Fprintf(w, "    try %d %d handler %d %s\n", h.StartPC, h.EndPC, h.HandlerPC, catch)
	}
	fmt.Fprintf(w, "    maxStack = %d, maxLocals = %d\n", code.MaxStack, code.MaxLocals)
	return nil
}

// decodeOperands renders the operands of the instruction at pc and returns
// the pc of the next instruction.
func decodeOperands(pool []ConstantPoolEntry, c []byte, pc int) (string, int, error) {
	op := c[pc]
	width := OperandWidth(op)
	if width >= 0 && pc+1+width > len(c) {
		return "", 0, fmt.Errorf("truncated %s at %d", OpcodeName(op), pc)
	}
	u2 := func(at int) uint16 { return binary.BigEndian.Uint16(c[at : at+2]) }

	switch {
	case op == OpBipush:
		return fmt.Sprintf("%d", int8(c[pc+1])), pc + 2, nil
	case op == OpSipush:
		return fmt.Sprintf("%d", int16(u2(pc+1))), pc + 3, nil
	case op == OpLdc:
		return constantString(pool, uint16(c[pc+1])), pc + 2, nil
	case op == OpLdcW, op == OpLdc2W:
		return constantString(pool, u2(pc+1)), pc + 3, nil
	case op == OpIinc:
		return fmt.Sprintf("%d %d", c[pc+1], int8(c[pc+2])), pc + 3, nil
	case op == OpNewarray:
		return arrayTypeName(c[pc+1]), pc + 2, nil
	case op >= OpIfeq && op <= OpJsr, op == OpIfnull, op == OpIfnonnull:
		return fmt.Sprintf("%d", pc+int(int16(u2(pc+1)))), pc + 3, nil
	case op == OpGotoW, op == OpJsrW:
		return fmt.Sprintf("%d", pc+int(int32(binary.BigEndian.Uint32(c[pc+1:pc+5])))), pc + 5, nil
	case op == OpInvokeinterface:
		return fmt.Sprintf("%s %d", constantString(pool, u2(pc+1)), c[pc+3]), pc + 5, nil
	case op == OpInvokedynamic:
		return fmt.Sprintf("#%d", u2(pc+1)), pc + 5, nil
	case op == OpMultianewarray:
		return fmt.Sprintf("%s %d", constantString(pool, u2(pc+1)), c[pc+3]), pc + 4, nil
	case op == OpTableswitch, op == OpLookupswitch:
		return decodeSwitch(c, pc)
	case op == OpWide:
		if pc+1 >= len(c) {
			return "", 0, fmt.Errorf("truncated wide at %d", pc)
		}
		inner := c[pc+1]
		if inner == OpIinc {
			if pc+6 > len(c) {
				return "", 0, fmt.Errorf("truncated wide iinc at %d", pc)
			}
			return fmt.Sprintf("iinc %d %d", u2(pc+2), int16(u2(pc+4))), pc + 6, nil
		}
		if pc+4 > len(c) {
			return "", 0, fmt.Errorf("truncated wide at %d", pc)
		}
		return fmt.Sprintf("%s %d", OpcodeName(inner), u2(pc+2)), pc + 4, nil
	case width == 1:
		return fmt.Sprintf("%d", c[pc+1]), pc + 2, nil
	case width == 2:
		return constantString(pool, u2(pc+1)), pc + 3, nil
	}
	return "", pc + 1, nil
}

func decodeSwitch(c []byte, pc int) (string, int, error) {
	p := (pc + 4) &^ 3
	i4 := func(at int) (int32, error) {
		if at+4 > len(c) {
			return 0, fmt.Errorf("truncated switch at %d", pc)
		}
		return int32(binary.BigEndian.Uint32(c[at : at+4])), nil
	}
	def, err := i4(p)
	if err != nil {
		return "", 0, err
	}
	var sb strings.Builder
	if c[pc] == OpTableswitch {
		low, err := i4(p + 4)
		if err != nil {
			return "", 0, err
		}
		high, err := i4(p + 8)
		if err != nil {
			return "", 0, err
		}
		p += 12
		for k := low; k <= high; k++ {
			off, err := i4(p)
			if err != nil {
				return "", 0, err
			}
			fmt.Fprintf(&sb, "%d: %d, ", k, pc+int(off))
			p += 4
		}
	} else {
		n, err := i4(p + 4)
		if err != nil {
			return "", 0, err
		}
		p += 8
		for k := int32(0); k < n; k++ {
			key, err := i4(p)
			if err != nil {
				return "", 0, err
			}
			off, err := i4(p + 4)
			if err != nil {
				return "", 0, err
			}
			fmt.Fprintf(&sb, "%d: %d, ", key, pc+int(off))
			p += 8
		}
	}
	fmt.Fprintf(&sb, "default: %d", pc+int(def))
	return "{ " + sb.String() + " }", p, nil
}

func arrayTypeName(atype byte) string {
	switch atype {
	case 4:
		return "boolean"
	case 5:
		return "char"
	case 6:
		return "float"
	case 7:
		return "double"
	case 8:
		return "byte"
	case 9:
		return "short"
	case 10:
		return "int"
	case 11:
		return "long"
	}
	return fmt.Sprintf("?%d", atype)
}

// constantString renders a constant pool entry the way it is referenced from
// code: classes by name, members as Owner.name:desc, literals by value.
func constantString(pool []ConstantPoolEntry, index uint16) string {
	if int(index) >= len(pool) || pool[index] == nil {
		return fmt.Sprintf("#%d <invalid>", index)
	}
	switch c := pool[index].(type) {
	case *ConstantClass:
		name, _ := GetUtf8(pool, c.NameIndex)
		return fmt.Sprintf("#%d %s", index, name)
	case *ConstantString:
		s, _ := GetUtf8(pool, c.StringIndex)
		return fmt.Sprintf("#%d %q", index, s)
	case *ConstantInteger:
		return fmt.Sprintf("#%d %d", index, c.Value)
	case *ConstantFloat:
		return fmt.Sprintf("#%d %gf", index, c.Value)
	case *ConstantLong:
		return fmt.Sprintf("#%d %dL", index, c.Value)
	case *ConstantDouble:
		return fmt.Sprintf("#%d %gd", index, c.Value)
	case *ConstantFieldref:
		f, err := ResolveFieldref(pool, index)
		if err != nil {
			return fmt.Sprintf("#%d <%v>", index, err)
		}
		return fmt.Sprintf("#%d %s.%s:%s", index, f.ClassName, f.FieldName, f.Descriptor)
	case *ConstantMethodref, *ConstantInterfaceMethodref:
		m, err := ResolveAnyMethodref(pool, index)
		if err != nil {
			return fmt.Sprintf("#%d <%v>", index, err)
		}
		return fmt.Sprintf("#%d %s.%s%s", index, m.ClassName, m.MethodName, m.Descriptor)
	}
	return fmt.Sprintf("#%d", index)
}
