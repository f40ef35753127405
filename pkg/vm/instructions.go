package vm

import (
	"fmt"
	"math"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/native"
)

// executeInstruction executes a single bytecode instruction.
// Returns (returnValue, hasReturn, error).
func (vm *VM) executeInstruction(frame *Frame, opcode byte) (Value, bool, error) {
	// --- Short-form local variable access ---
	switch {
	case opcode >= classfile.OpIload0 && opcode <= classfile.OpAload3:
		frame.Push(frame.GetLocal(int(opcode-classfile.OpIload0) % 4))
		return Value{}, false, nil
	case opcode >= classfile.OpIstore0 && opcode <= classfile.OpAstore3:
		frame.SetLocal(int(opcode-classfile.OpIstore0)%4, frame.Pop())
		return Value{}, false, nil
	}

	switch opcode {
	case classfile.OpNop:
		// do nothing

	// --- Constant load instructions ---
	case classfile.OpAconstNull:
		frame.Push(NullValue())

	case classfile.OpIconstM1, classfile.OpIconst0, classfile.OpIconst1, classfile.OpIconst2,
		classfile.OpIconst3, classfile.OpIconst4, classfile.OpIconst5:
		frame.Push(IntValue(int32(opcode) - classfile.OpIconst0))

	case classfile.OpLconst0:
		frame.Push(LongValue(0))
	case classfile.OpLconst1:
		frame.Push(LongValue(1))

	case classfile.OpFconst0:
		frame.Push(FloatValue(0.0))
	case classfile.OpFconst1:
		frame.Push(FloatValue(1.0))
	case classfile.OpFconst2:
		frame.Push(FloatValue(2.0))

	case classfile.OpDconst0:
		frame.Push(DoubleValue(0.0))
	case classfile.OpDconst1:
		frame.Push(DoubleValue(1.0))

	case classfile.OpBipush:
		val := frame.ReadI8()
		frame.Push(IntValue(int32(val)))

	case classfile.OpSipush:
		val := frame.ReadI16()
		frame.Push(IntValue(int32(val)))

	case classfile.OpLdc:
		index := frame.ReadU8()
		return vm.executeLdc(frame, uint16(index))

	case classfile.OpLdcW:
		index := frame.ReadU16()
		return vm.executeLdc(frame, index)

	case classfile.OpLdc2W:
		index := frame.ReadU16()
		return vm.executeLdc2W(frame, index)

	// --- Local variable load and store ---
	case classfile.OpIload, classfile.OpLload, classfile.OpFload, classfile.OpDload, classfile.OpAload:
		index := frame.ReadU8()
		frame.Push(frame.GetLocal(int(index)))

	case classfile.OpIstore, classfile.OpLstore, classfile.OpFstore, classfile.OpDstore, classfile.OpAstore:
		index := frame.ReadU8()
		frame.SetLocal(int(index), frame.Pop())

	case classfile.OpWide:
		op := frame.ReadU8()
		index := int(frame.ReadU16())
		switch op {
		case classfile.OpIinc:
			constVal := frame.ReadI16()
			frame.SetLocal(index, IntValue(frame.GetLocal(index).Int+int32(constVal)))
		case classfile.OpIload, classfile.OpLload, classfile.OpFload, classfile.OpDload, classfile.OpAload:
			frame.Push(frame.GetLocal(index))
		case classfile.OpIstore, classfile.OpLstore, classfile.OpFstore, classfile.OpDstore, classfile.OpAstore:
			frame.SetLocal(index, frame.Pop())
		default:
			return Value{}, false, fmt.Errorf("wide: unsupported opcode 0x%02X", op)
		}

	// --- Array load ---
	case classfile.OpIaload, classfile.OpLaload, classfile.OpFaload, classfile.OpDaload,
		classfile.OpAaload, classfile.OpBaload, classfile.OpCaload, classfile.OpSaload:
		arr, i, err := arrayIndex(frame)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(arr.Elements[i])

	// --- Array store ---
	case classfile.OpIastore, classfile.OpLastore, classfile.OpFastore, classfile.OpDastore:
		value := frame.Pop()
		arr, i, err := arrayIndex(frame)
		if err != nil {
			return Value{}, false, err
		}
		arr.Elements[i] = value

	case classfile.OpBastore, classfile.OpCastore, classfile.OpSastore:
		value := frame.Pop().Int
		arr, i, err := arrayIndex(frame)
		if err != nil {
			return Value{}, false, err
		}
		switch {
		case arr.Descriptor == "[Z":
			value &= 1
		case opcode == classfile.OpBastore:
			value = int32(int8(value))
		case opcode == classfile.OpCastore:
			value = int32(uint16(value))
		default:
			value = int32(int16(value))
		}
		arr.Elements[i] = IntValue(value)

	case classfile.OpAastore:
		value := frame.Pop()
		arr, i, err := arrayIndex(frame)
		if err != nil {
			return Value{}, false, err
		}
		if !value.IsNull() {
			ok, err := vm.isInstance(frame.Class.Scope, value.Ref, descriptorClassName(arr.ElementDescriptor()))
			if err != nil {
				return Value{}, false, fmt.Errorf("aastore: %w", err)
			}
			if !ok {
				return Value{}, false, newJavaExceptionf(ArrayStoreException, "%s", javaName(typeNameOf(value.Ref)))
			}
		}
		arr.Elements[i] = value

	// --- Stack manipulation ---
	case classfile.OpPop:
		frame.Pop()

	case classfile.OpPop2:
		if v := frame.Pop(); !v.IsWide() {
			frame.Pop()
		}

	case classfile.OpDup:
		v := frame.Pop()
		frame.Push(v)
		frame.Push(v)

	case classfile.OpDupX1:
		v1 := frame.Pop()
		v2 := frame.Pop()
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)

	case classfile.OpDupX2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		if v2.IsWide() {
			frame.Push(v1)
			frame.Push(v2)
			frame.Push(v1)
			break
		}
		v3 := frame.Pop()
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)

	case classfile.OpDup2:
		v1 := frame.Pop()
		if v1.IsWide() {
			frame.Push(v1)
			frame.Push(v1)
			break
		}
		v2 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)

	case classfile.OpDup2X1:
		v1 := frame.Pop()
		v2 := frame.Pop()
		if v1.IsWide() {
			frame.Push(v1)
			frame.Push(v2)
			frame.Push(v1)
			break
		}
		v3 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)

	case classfile.OpDup2X2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		switch {
		case v1.IsWide() && v2.IsWide():
			frame.Push(v1)
			frame.Push(v2)
			frame.Push(v1)
		case v1.IsWide():
			v3 := frame.Pop()
			frame.Push(v1)
			frame.Push(v3)
			frame.Push(v2)
			frame.Push(v1)
		default:
			v3 := frame.Pop()
			if v3.IsWide() {
				frame.Push(v2)
				frame.Push(v1)
				frame.Push(v3)
				frame.Push(v2)
				frame.Push(v1)
				break
			}
			v4 := frame.Pop()
			frame.Push(v2)
			frame.Push(v1)
			frame.Push(v4)
			frame.Push(v3)
			frame.Push(v2)
			frame.Push(v1)
		}

	case classfile.OpSwap:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)

	// --- Arithmetic ---
	case classfile.OpIadd:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int + v2.Int))
	case classfile.OpLadd:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long + v2.Long))
	case classfile.OpFadd:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(FloatValue(v1.Float + v2.Float))
	case classfile.OpDadd:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(DoubleValue(v1.Double + v2.Double))

	case classfile.OpIsub:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int - v2.Int))
	case classfile.OpLsub:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long - v2.Long))
	case classfile.OpFsub:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(FloatValue(v1.Float - v2.Float))
	case classfile.OpDsub:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(DoubleValue(v1.Double - v2.Double))

	case classfile.OpImul:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int * v2.Int))
	case classfile.OpLmul:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long * v2.Long))
	case classfile.OpFmul:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(FloatValue(v1.Float * v2.Float))
	case classfile.OpDmul:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(DoubleValue(v1.Double * v2.Double))

	case classfile.OpIdiv:
		v2 := frame.Pop()
		v1 := frame.Pop()
		if v2.Int == 0 {
			return Value{}, false, newJavaExceptionf(ArithmeticException, "/ by zero")
		}
		frame.Push(IntValue(v1.Int / v2.Int))
	case classfile.OpLdiv:
		v2 := frame.Pop()
		v1 := frame.Pop()
		if v2.Long == 0 {
			return Value{}, false, newJavaExceptionf(ArithmeticException, "/ by zero")
		}
		frame.Push(LongValue(v1.Long / v2.Long))
	case classfile.OpFdiv:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(FloatValue(v1.Float / v2.Float))
	case classfile.OpDdiv:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(DoubleValue(v1.Double / v2.Double))

	case classfile.OpIrem:
		v2 := frame.Pop()
		v1 := frame.Pop()
		if v2.Int == 0 {
			return Value{}, false, newJavaExceptionf(ArithmeticException, "/ by zero")
		}
		frame.Push(IntValue(v1.Int % v2.Int))
	case classfile.OpLrem:
		v2 := frame.Pop()
		v1 := frame.Pop()
		if v2.Long == 0 {
			return Value{}, false, newJavaExceptionf(ArithmeticException, "/ by zero")
		}
		frame.Push(LongValue(v1.Long % v2.Long))
	case classfile.OpFrem:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(FloatValue(float32(math.Mod(float64(v1.Float), float64(v2.Float)))))
	case classfile.OpDrem:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(DoubleValue(math.Mod(v1.Double, v2.Double)))

	case classfile.OpIneg:
		v := frame.Pop()
		frame.Push(IntValue(-v.Int))
	case classfile.OpLneg:
		v := frame.Pop()
		frame.Push(LongValue(-v.Long))
	case classfile.OpFneg:
		v := frame.Pop()
		frame.Push(FloatValue(-v.Float))
	case classfile.OpDneg:
		v := frame.Pop()
		frame.Push(DoubleValue(-v.Double))

	// --- Bit operations ---
	case classfile.OpIshl:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int << (uint(v2.Int) & 0x1f)))

	case classfile.OpLshl:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long << (uint(v2.Int) & 0x3f)))

	case classfile.OpIshr:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int >> (uint(v2.Int) & 0x1f)))

	case classfile.OpLshr:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long >> (uint(v2.Int) & 0x3f)))

	case classfile.OpIushr:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(int32(uint32(v1.Int) >> (uint(v2.Int) & 0x1f))))

	case classfile.OpLushr:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(int64(uint64(v1.Long) >> (uint(v2.Int) & 0x3f))))

	case classfile.OpIand:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int & v2.Int))

	case classfile.OpLand:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long & v2.Long))

	case classfile.OpIor:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int | v2.Int))

	case classfile.OpLor:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long | v2.Long))

	case classfile.OpIxor:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(v1.Int ^ v2.Int))

	case classfile.OpLxor:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(LongValue(v1.Long ^ v2.Long))

	case classfile.OpIinc:
		index := frame.ReadU8()
		constVal := frame.ReadI8()
		local := frame.GetLocal(int(index))
		frame.SetLocal(int(index), IntValue(local.Int+int32(constVal)))

	// --- Type conversions ---
	case classfile.OpI2l:
		frame.Push(LongValue(int64(frame.Pop().Int)))
	case classfile.OpI2f:
		frame.Push(FloatValue(float32(frame.Pop().Int)))
	case classfile.OpI2d:
		frame.Push(DoubleValue(float64(frame.Pop().Int)))
	case classfile.OpL2i:
		frame.Push(IntValue(int32(frame.Pop().Long)))
	case classfile.OpL2f:
		frame.Push(FloatValue(float32(frame.Pop().Long)))
	case classfile.OpL2d:
		frame.Push(DoubleValue(float64(frame.Pop().Long)))
	case classfile.OpF2i:
		frame.Push(IntValue(native.F2I(float64(frame.Pop().Float))))
	case classfile.OpF2l:
		frame.Push(LongValue(native.F2L(float64(frame.Pop().Float))))
	case classfile.OpF2d:
		frame.Push(DoubleValue(float64(frame.Pop().Float)))
	case classfile.OpD2i:
		frame.Push(IntValue(native.F2I(frame.Pop().Double)))
	case classfile.OpD2l:
		frame.Push(LongValue(native.F2L(frame.Pop().Double)))
	case classfile.OpD2f:
		frame.Push(FloatValue(float32(frame.Pop().Double)))
	case classfile.OpI2b:
		frame.Push(IntValue(int32(int8(frame.Pop().Int))))
	case classfile.OpI2c:
		frame.Push(IntValue(int32(uint16(frame.Pop().Int))))
	case classfile.OpI2s:
		frame.Push(IntValue(int32(int16(frame.Pop().Int))))

	// --- Comparisons ---
	case classfile.OpLcmp:
		v2 := frame.Pop()
		v1 := frame.Pop()
		if v1.Long > v2.Long {
			frame.Push(IntValue(1))
		} else if v1.Long < v2.Long {
			frame.Push(IntValue(-1))
		} else {
			frame.Push(IntValue(0))
		}

	case classfile.OpFcmpl, classfile.OpFcmpg:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(compareFloating(float64(v1.Float), float64(v2.Float), opcode == classfile.OpFcmpg)))

	case classfile.OpDcmpl, classfile.OpDcmpg:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(IntValue(compareFloating(v1.Double, v2.Double, opcode == classfile.OpDcmpg)))

	// --- Comparison and branch ---
	case classfile.OpIfeq:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v == 0 })
	case classfile.OpIfne:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v != 0 })
	case classfile.OpIflt:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v < 0 })
	case classfile.OpIfge:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v >= 0 })
	case classfile.OpIfgt:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v > 0 })
	case classfile.OpIfle:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v <= 0 })

	case classfile.OpIfIcmpeq:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 == v2 })
	case classfile.OpIfIcmpne:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 != v2 })
	case classfile.OpIfIcmplt:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 < v2 })
	case classfile.OpIfIcmpge:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 >= v2 })
	case classfile.OpIfIcmpgt:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 > v2 })
	case classfile.OpIfIcmple:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 <= v2 })

	case classfile.OpIfAcmpeq, classfile.OpIfAcmpne:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		v2 := frame.Pop()
		v1 := frame.Pop()
		eq := (v1.IsNull() && v2.IsNull()) || (!v1.IsNull() && !v2.IsNull() && v1.Ref == v2.Ref)
		if eq == (opcode == classfile.OpIfAcmpeq) {
			frame.PC = branchPC + int(offset)
		}

	case classfile.OpIfnull, classfile.OpIfnonnull:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		if frame.Pop().IsNull() == (opcode == classfile.OpIfnull) {
			frame.PC = branchPC + int(offset)
		}

	case classfile.OpGoto:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		frame.PC = branchPC + int(offset)

	case classfile.OpGotoW:
		branchPC := frame.PC - 1
		offset := frame.ReadI32()
		frame.PC = branchPC + int(offset)

	case classfile.OpTableswitch:
		// PC of the tableswitch opcode
		opcodePC := frame.PC - 1
		// Padding to align to 4-byte boundary
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		low := frame.ReadI32()
		high := frame.ReadI32()
		numOffsets := int(high - low + 1)
		offsets := make([]int32, numOffsets)
		for i := 0; i < numOffsets; i++ {
			offsets[i] = frame.ReadI32()
		}
		index := frame.Pop().Int
		if index >= low && index <= high {
			frame.PC = opcodePC + int(offsets[index-low])
		} else {
			frame.PC = opcodePC + int(defaultOffset)
		}

	case classfile.OpLookupswitch:
		opcodePC := frame.PC - 1
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		npairs := frame.ReadI32()
		key := frame.Pop().Int
		target := opcodePC + int(defaultOffset)
		for i := int32(0); i < npairs; i++ {
			matchVal := frame.ReadI32()
			offset := frame.ReadI32()
			if key == matchVal {
				target = opcodePC + int(offset)
			}
		}
		frame.PC = target

	// --- Return ---
	case classfile.OpIreturn, classfile.OpLreturn, classfile.OpFreturn, classfile.OpDreturn, classfile.OpAreturn:
		return frame.Pop(), true, nil

	case classfile.OpReturn:
		return Value{}, true, nil

	// --- Method invocation and field access ---
	case classfile.OpGetstatic:
		return vm.executeGetstatic(frame)

	case classfile.OpPutstatic:
		return vm.executePutstatic(frame)

	case classfile.OpGetfield:
		return vm.executeGetfield(frame)

	case classfile.OpPutfield:
		return vm.executePutfield(frame)

	case classfile.OpInvokevirtual, classfile.OpInvokespecial, classfile.OpInvokestatic, classfile.OpInvokeinterface:
		return vm.executeInvoke(frame, opcode)

	case classfile.OpNew:
		return vm.executeNew(frame)

	// --- Arrays ---
	case classfile.OpNewarray:
		atype := frame.ReadU8()
		desc, err := primitiveArrayDescriptor(atype)
		if err != nil {
			return Value{}, false, err
		}
		count := frame.Pop().Int
		if count < 0 {
			return Value{}, false, newJavaExceptionf(NegativeArraySizeException, "%d", count)
		}
		frame.Push(RefValue(NewArray(desc, int(count))))

	case classfile.OpAnewarray:
		index := frame.ReadU16()
		name, err := classfile.GetClassName(constantPool(frame), index)
		if err != nil {
			return Value{}, false, fmt.Errorf("anewarray: %w", err)
		}
		count := frame.Pop().Int
		if count < 0 {
			return Value{}, false, newJavaExceptionf(NegativeArraySizeException, "%d", count)
		}
		frame.Push(RefValue(NewArray("["+arrayDescriptorOf(name), int(count))))

	case classfile.OpMultianewarray:
		index := frame.ReadU16()
		dims := int(frame.ReadU8())
		desc, err := classfile.GetClassName(constantPool(frame), index)
		if err != nil {
			return Value{}, false, fmt.Errorf("multianewarray: %w", err)
		}
		counts := make([]int32, dims)
		for i := dims - 1; i >= 0; i-- {
			counts[i] = frame.Pop().Int
			if counts[i] < 0 {
				return Value{}, false, newJavaExceptionf(NegativeArraySizeException, "%d", counts[i])
			}
		}
		frame.Push(RefValue(newMultiArray(desc, counts)))

	case classfile.OpArraylength:
		arrRef := frame.Pop()
		if arrRef.IsNull() {
			return Value{}, false, newJavaExceptionf(NullPointerException, "cannot read the array length because the array is null")
		}
		arr, ok := arrRef.Ref.(*JArray)
		if !ok {
			return Value{}, false, fmt.Errorf("arraylength: reference is not an array")
		}
		frame.Push(IntValue(int32(len(arr.Elements))))

	// --- Exceptions, types and monitors ---
	case classfile.OpAthrow:
		excRef := frame.Pop()
		if excRef.IsNull() {
			return Value{}, false, NewJavaException(NullPointerException)
		}
		if obj, ok := excRef.Ref.(*JObject); ok {
			return Value{}, false, &JavaException{Object: obj}
		}
		return Value{}, false, fmt.Errorf("athrow: non-object on stack")

	case classfile.OpCheckcast, classfile.OpInstanceof:
		return vm.executeTypeCheck(frame, opcode)

	case classfile.OpMonitorenter, classfile.OpMonitorexit:
		if frame.Pop().IsNull() {
			return Value{}, false, NewJavaException(NullPointerException)
		}

	default:
		return Value{}, false, fmt.Errorf("unsupported opcode: 0x%02X (%s) at PC=%d", opcode, classfile.OpcodeName(opcode), frame.PC-1)
	}

	return Value{}, false, nil
}

// executeBranchUnary handles unary branch instructions (ifeq, ifne, etc.)
func (vm *VM) executeBranchUnary(frame *Frame, cond func(int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	val := frame.Pop()
	if cond(val.Int) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

// executeBranchBinary handles binary branch instructions (if_icmpeq, etc.)
func (vm *VM) executeBranchBinary(frame *Frame, cond func(int32, int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	v2 := frame.Pop()
	v1 := frame.Pop()
	if cond(v1.Int, v2.Int) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

// arrayIndex pops an index and an array reference and bounds-checks them.
func arrayIndex(frame *Frame) (*JArray, int, error) {
	index := frame.Pop().Int
	arrRef := frame.Pop()
	if arrRef.IsNull() {
		return nil, 0, newJavaExceptionf(NullPointerException, "cannot access an element of a null array")
	}
	arr, ok := arrRef.Ref.(*JArray)
	if !ok {
		return nil, 0, fmt.Errorf("array access: reference is not an array")
	}
	if index < 0 || int(index) >= len(arr.Elements) {
		return nil, 0, newJavaExceptionf(ArrayIndexOutOfBoundsException, "Index %d out of bounds for length %d", index, len(arr.Elements))
	}
	return arr, int(index), nil
}

func newMultiArray(desc string, counts []int32) *JArray {
	arr := NewArray(desc, int(counts[0]))
	if len(counts) > 1 {
		for i := range arr.Elements {
			arr.Elements[i] = RefValue(newMultiArray(desc[1:], counts[1:]))
		}
	}
	return arr
}

// compareFloating implements fcmp<op> and dcmp<op>; nanGreater selects the g variant.
func compareFloating(v1, v2 float64, nanGreater bool) int32 {
	switch {
	case math.IsNaN(v1) || math.IsNaN(v2):
		if nanGreater {
			return 1
		}
		return -1
	case v1 > v2:
		return 1
	case v1 < v2:
		return -1
	}
	return 0
}
