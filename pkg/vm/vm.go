package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/native"
)

// maxFrameDepth is the maximum number of nested method calls.
const maxFrameDepth = 1024

// VM is the virtual machine that executes Java bytecode. A VM holds no
// per-call state and may be shared by goroutines; each call entered from
// Go runs on its own Thread.
type VM struct {
	Scope  *Scope
	Stdout io.Writer

	outOnce sync.Once
	out     *native.PrintStream
}

// NewVM creates a new VM resolving entry classes through scope. A nil
// scope gets a fresh child of the bootstrap scope.
func NewVM(scope *Scope) *VM {
	if scope == nil {
		scope = NewScope("app", nil, nil)
	}
	return &VM{
		Scope:  scope,
		Stdout: os.Stdout,
	}
}

func (vm *VM) stdout() *native.PrintStream {
	vm.outOnce.Do(func() {
		vm.out = &native.PrintStream{Writer: vm.Stdout}
	})
	return vm.out
}

// Execute finds and executes the main method of the named class.
func (vm *VM) Execute(className string) error {
	c, err := vm.Scope.LoadClass(className)
	if err != nil {
		return err
	}
	method := c.DeclaredMethod("main", "([Ljava/lang/String;)V")
	if method == nil || !method.IsStatic() {
		return fmt.Errorf("main method not found in %s", className)
	}
	_, err = vm.Invoke(method, RefValue(NewArray("[Ljava/lang/String;", 0)))
	return err
}

// Invoke runs m on a fresh thread. For instance methods args[0] is the
// receiver. Static methods trigger initialization of their class.
func (vm *VM) Invoke(m *Method, args ...Value) (ret Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vm: internal error in %s: %v", m, r)
		}
	}()
	want := len(m.params)
	if !m.IsStatic() {
		want++
	}
	if len(args) != want {
		return Value{}, fmt.Errorf("invoke %s: got %d arguments, want %d", m, len(args), want)
	}
	t := &Thread{}
	if m.IsStatic() {
		if err := m.Class.initialize(vm, t); err != nil {
			return Value{}, err
		}
	}
	return vm.executeMethod(t, m, args)
}

// InvokeVirtual dispatches name/descriptor on the receiver's runtime class.
func (vm *VM) InvokeVirtual(receiver Value, name, descriptor string, args ...Value) (Value, error) {
	if receiver.IsNull() {
		return Value{}, NewJavaException(NullPointerException)
	}
	c := classOf(receiver.Ref)
	if c == nil {
		return Value{}, fmt.Errorf("invoke %s%s: receiver is %T", name, descriptor, receiver.Ref)
	}
	m := c.FindMethod(name, descriptor)
	if m == nil || m.IsStatic() {
		return Value{}, fmt.Errorf("NoSuchMethodError: %s.%s%s", c.Name, name, descriptor)
	}
	return vm.Invoke(m, append([]Value{receiver}, args...)...)
}

// Initialize runs the static initializers of c if they have not run yet.
func (vm *VM) Initialize(c *Class) error {
	return c.initialize(vm, &Thread{})
}

// NewInstance allocates an instance of c and runs its nullary constructor.
func (vm *VM) NewInstance(c *Class) (*JObject, error) {
	if c.IsInterface() || c.AccessFlags&classfile.AccAbstract != 0 {
		return nil, fmt.Errorf("InstantiationError: %s", c.Name)
	}
	if err := vm.Initialize(c); err != nil {
		return nil, err
	}
	ctor := c.DeclaredMethod("<init>", "()V")
	if ctor == nil {
		return nil, fmt.Errorf("NoSuchMethodError: %s.<init>()V", c.Name)
	}
	obj := NewObject(c)
	if _, err := vm.Invoke(ctor, RefValue(obj)); err != nil {
		return nil, err
	}
	return obj, nil
}

// executeMethod executes a method with the given arguments and returns its return value.
func (vm *VM) executeMethod(t *Thread, method *Method, args []Value) (Value, error) {
	if method.Native != nil {
		return method.Native(vm, args)
	}
	if method.Code == nil {
		return Value{}, fmt.Errorf("AbstractMethodError: %s", method)
	}

	t.depth++
	defer func() { t.depth-- }()
	if t.depth > maxFrameDepth {
		return Value{}, fmt.Errorf("stack overflow: frame depth exceeded %d", maxFrameDepth)
	}

	frame := NewFrame(method.Code.MaxLocals, method.Code.MaxStack, method.Code.Code, method.Class)
	frame.Method = method
	frame.Thread = t

	// Set arguments into local variables; long and double take two slots.
	slot, next := 0, 0
	if !method.IsStatic() {
		frame.SetLocal(0, args[0])
		slot, next = 1, 1
	}
	for _, p := range method.params {
		frame.SetLocal(slot, args[next])
		slot += classfile.SlotSize(p)
		next++
	}

	// Execution loop
	for frame.PC < len(frame.Code) {
		startPC := frame.PC
		opcode := frame.Code[frame.PC]
		frame.PC++

		retVal, hasReturn, err := vm.executeInstruction(frame, opcode)
		if err != nil {
			var je *JavaException
			if errors.As(err, &je) {
				if handlerPC, ok := vm.findHandler(frame, startPC, je); ok {
					frame.SP = 0
					frame.Push(RefValue(je.Object))
					frame.PC = handlerPC
					continue
				}
			}
			return Value{}, err
		}
		if hasReturn {
			return retVal, nil
		}
	}

	// Fell off the end of the method (implicit return for void methods)
	return Value{}, nil
}

// findHandler returns the handler covering pc that catches je.
func (vm *VM) findHandler(frame *Frame, pc int, je *JavaException) (int, bool) {
	for _, h := range frame.Method.Code.ExceptionHandlers {
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return int(h.HandlerPC), true
		}
		name, err := classfile.GetClassName(frame.Class.File.ConstantPool, h.CatchType)
		if err != nil {
			continue
		}
		if catch, err := frame.Class.Scope.LoadClass(name); err == nil && je.Object.Class.IsSubclassOf(catch) {
			return int(h.HandlerPC), true
		}
		if IsJavaException(je, name) {
			return int(h.HandlerPC), true
		}
	}
	return 0, false
}

// constantPool returns the pool of the class the frame executes.
func constantPool(frame *Frame) []classfile.ConstantPoolEntry {
	return frame.Class.File.ConstantPool
}

// resolveClass resolves a CONSTANT_Class entry through the frame's scope.
func (vm *VM) resolveClass(frame *Frame, index uint16) (*Class, error) {
	name, err := classfile.GetClassName(constantPool(frame), index)
	if err != nil {
		return nil, err
	}
	c, err := frame.Class.Scope.LoadClass(name)
	if err != nil {
		return nil, fmt.Errorf("NoClassDefFoundError: %s: %w", name, err)
	}
	return c, nil
}

// executeLdc handles the ldc instruction.
func (vm *VM) executeLdc(frame *Frame, index uint16) (Value, bool, error) {
	pool := constantPool(frame)
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, false, fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	entry := pool[index]
	switch c := entry.(type) {
	case *classfile.ConstantInteger:
		frame.Push(IntValue(c.Value))
	case *classfile.ConstantFloat:
		frame.Push(FloatValue(c.Value))
	case *classfile.ConstantString:
		str, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return Value{}, false, fmt.Errorf("ldc: resolving string: %w", err)
		}
		frame.Push(RefValue(str))
	default:
		return Value{}, false, fmt.Errorf("ldc: unsupported constant pool entry type at index %d (tag=%d)", index, entry.Tag())
	}

	return Value{}, false, nil
}

// executeLdc2W handles the ldc2_w instruction.
func (vm *VM) executeLdc2W(frame *Frame, index uint16) (Value, bool, error) {
	pool := constantPool(frame)
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, false, fmt.Errorf("ldc2_w: invalid constant pool index %d", index)
	}
	switch c := pool[index].(type) {
	case *classfile.ConstantLong:
		frame.Push(LongValue(c.Value))
	case *classfile.ConstantDouble:
		frame.Push(DoubleValue(c.Value))
	default:
		return Value{}, false, fmt.Errorf("ldc2_w: unsupported type at index %d", index)
	}
	return Value{}, false, nil
}

// staticField resolves the class declaring the referenced static field and
// initializes it.
func (vm *VM) staticField(frame *Frame, op string) (*Class, *classfile.FieldRefInfo, error) {
	index := frame.ReadU16()
	fieldRef, err := classfile.ResolveFieldref(constantPool(frame), index)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	owner, err := frame.Class.Scope.LoadClass(fieldRef.ClassName)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: NoClassDefFoundError: %w", op, err)
	}
	decl := owner.staticOwner(fieldRef.FieldName)
	if decl == nil {
		return nil, fieldRef, nil
	}
	if err := decl.initialize(vm, frame.Thread); err != nil {
		return nil, nil, err
	}
	return decl, fieldRef, nil
}

// executeGetstatic handles the getstatic instruction.
func (vm *VM) executeGetstatic(frame *Frame) (Value, bool, error) {
	decl, fieldRef, err := vm.staticField(frame, "getstatic")
	if err != nil {
		return Value{}, false, err
	}

	// Handle java/lang/System.out
	if fieldRef.ClassName == systemClass && fieldRef.FieldName == "out" {
		frame.Push(RefValue(vm.stdout()))
		return Value{}, false, nil
	}
	if decl == nil {
		return Value{}, false, fmt.Errorf("getstatic: NoSuchFieldError: %s.%s:%s", fieldRef.ClassName, fieldRef.FieldName, fieldRef.Descriptor)
	}

	v, _ := decl.GetStatic(fieldRef.FieldName)
	frame.Push(v)
	return Value{}, false, nil
}

// executePutstatic handles the putstatic instruction.
func (vm *VM) executePutstatic(frame *Frame) (Value, bool, error) {
	decl, fieldRef, err := vm.staticField(frame, "putstatic")
	if err != nil {
		return Value{}, false, err
	}
	value := frame.Pop()
	if decl == nil {
		return Value{}, false, fmt.Errorf("putstatic: NoSuchFieldError: %s.%s:%s", fieldRef.ClassName, fieldRef.FieldName, fieldRef.Descriptor)
	}
	decl.SetStatic(fieldRef.FieldName, value)
	return Value{}, false, nil
}

// executeGetfield handles the getfield instruction.
func (vm *VM) executeGetfield(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	fieldRef, err := classfile.ResolveFieldref(constantPool(frame), index)
	if err != nil {
		return Value{}, false, fmt.Errorf("getfield: %w", err)
	}

	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, newJavaExceptionf(NullPointerException, "cannot read field %q because the receiver is null", fieldRef.FieldName)
	}
	obj, ok := objectRef.Ref.(*JObject)
	if !ok {
		return Value{}, false, fmt.Errorf("getfield: receiver is not a JObject")
	}

	frame.Push(obj.GetField(fieldRef.FieldName))
	return Value{}, false, nil
}

// executePutfield handles the putfield instruction.
func (vm *VM) executePutfield(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	fieldRef, err := classfile.ResolveFieldref(constantPool(frame), index)
	if err != nil {
		return Value{}, false, fmt.Errorf("putfield: %w", err)
	}

	value := frame.Pop()
	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, newJavaExceptionf(NullPointerException, "cannot assign field %q because the receiver is null", fieldRef.FieldName)
	}
	obj, ok := objectRef.Ref.(*JObject)
	if !ok {
		return Value{}, false, fmt.Errorf("putfield: receiver is not a JObject")
	}

	obj.SetField(fieldRef.FieldName, value)
	return Value{}, false, nil
}

// executeInvoke handles invokevirtual, invokespecial, invokestatic and
// invokeinterface.
func (vm *VM) executeInvoke(frame *Frame, opcode byte) (Value, bool, error) {
	op := classfile.OpcodeName(opcode)
	index := frame.ReadU16()
	if opcode == classfile.OpInvokeinterface {
		frame.ReadU8() // count
		frame.ReadU8() // zero
	}

	pool := constantPool(frame)
	var methodRef *classfile.MethodRefInfo
	var err error
	switch opcode {
	case classfile.OpInvokevirtual:
		methodRef, err = classfile.ResolveMethodref(pool, index)
	case classfile.OpInvokeinterface:
		methodRef, err = classfile.ResolveInterfaceMethodref(pool, index)
	default:
		methodRef, err = classfile.ResolveAnyMethodref(pool, index)
	}
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", op, err)
	}

	params, ret, err := classfile.ParseMethodDescriptor(methodRef.Descriptor)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", op, err)
	}
	static := opcode == classfile.OpInvokestatic
	n := len(params)
	if !static {
		n++
	}
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}

	owner, err := frame.Class.Scope.LoadClass(methodRef.ClassName)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: NoClassDefFoundError: %w", op, err)
	}
	ref := methodRef.ClassName + "." + methodRef.MethodName + methodRef.Descriptor

	var target *Method
	switch opcode {
	case classfile.OpInvokestatic:
		target = owner.FindMethod(methodRef.MethodName, methodRef.Descriptor)
		if target == nil {
			return Value{}, false, fmt.Errorf("%s: NoSuchMethodError: %s", op, ref)
		}
		if !target.IsStatic() {
			return Value{}, false, fmt.Errorf("%s: IncompatibleClassChangeError: %s is not static", op, ref)
		}
		if err := target.Class.initialize(vm, frame.Thread); err != nil {
			return Value{}, false, err
		}
	case classfile.OpInvokespecial:
		if args[0].IsNull() {
			return Value{}, false, newJavaExceptionf(NullPointerException, "cannot invoke %s because the receiver is null", ref)
		}
		target = owner.FindMethod(methodRef.MethodName, methodRef.Descriptor)
		if target == nil {
			return Value{}, false, fmt.Errorf("%s: NoSuchMethodError: %s", op, ref)
		}
	default:
		receiver := args[0]
		if receiver.IsNull() {
			return Value{}, false, newJavaExceptionf(NullPointerException, "cannot invoke %s because the receiver is null", ref)
		}
		rc := classOf(receiver.Ref)
		if rc == nil {
			return Value{}, false, fmt.Errorf("%s: receiver is %T", op, receiver.Ref)
		}
		if !rc.IsSubclassOf(owner) {
			return Value{}, false, fmt.Errorf("%s: IncompatibleClassChangeError: %s does not implement %s", op, rc.Name, owner.Name)
		}
		target = rc.FindMethod(methodRef.MethodName, methodRef.Descriptor)
		if target == nil {
			return Value{}, false, fmt.Errorf("%s: NoSuchMethodError: %s", op, ref)
		}
		if target.IsStatic() {
			return Value{}, false, fmt.Errorf("%s: IncompatibleClassChangeError: %s is static", op, ref)
		}
	}
	if target.IsPrivate() && target.Class != frame.Class {
		return Value{}, false, fmt.Errorf("%s: IllegalAccessError: %s is private to %s", op, ref, target.Class.Name)
	}

	retVal, err := vm.executeMethod(frame.Thread, target, args)
	if err != nil {
		return Value{}, false, err
	}
	if ret != "V" {
		frame.Push(retVal)
	}
	return Value{}, false, nil
}

// executeNew handles the new instruction.
func (vm *VM) executeNew(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()
	c, err := vm.resolveClass(frame, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("new: %w", err)
	}
	if c.IsInterface() || c.AccessFlags&classfile.AccAbstract != 0 {
		return Value{}, false, fmt.Errorf("new: InstantiationError: %s", c.Name)
	}
	if err := c.initialize(vm, frame.Thread); err != nil {
		return Value{}, false, err
	}
	frame.Push(RefValue(NewObject(c)))
	return Value{}, false, nil
}

// executeTypeCheck handles checkcast and instanceof.
func (vm *VM) executeTypeCheck(frame *Frame, opcode byte) (Value, bool, error) {
	op := classfile.OpcodeName(opcode)
	index := frame.ReadU16()
	target, err := classfile.GetClassName(constantPool(frame), index)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", op, err)
	}

	if opcode == classfile.OpCheckcast {
		val := frame.Peek()
		if val.IsNull() {
			return Value{}, false, nil
		}
		ok, err := vm.isInstance(frame.Class.Scope, val.Ref, target)
		if err != nil {
			return Value{}, false, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return Value{}, false, newJavaExceptionf(ClassCastException, "class %s cannot be cast to class %s",
				javaName(typeNameOf(val.Ref)), javaName(target))
		}
		return Value{}, false, nil
	}

	ref := frame.Pop()
	if ref.IsNull() {
		frame.Push(IntValue(0))
		return Value{}, false, nil
	}
	ok, err := vm.isInstance(frame.Class.Scope, ref.Ref, target)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", op, err)
	}
	frame.Push(boolValue(ok))
	return Value{}, false, nil
}

// classOf returns the runtime class of a non-array reference.
func classOf(ref interface{}) *Class {
	switch r := ref.(type) {
	case *JObject:
		return r.Class
	case *native.Box:
		return Bootstrap().FindLoadedClass(r.ClassName)
	case string:
		return mustBootstrap(stringClass)
	case *native.PrintStream:
		return mustBootstrap(printStream)
	case *JArray:
		return mustBootstrap(objectClass)
	}
	return nil
}

func typeNameOf(ref interface{}) string {
	if arr, ok := ref.(*JArray); ok {
		return arr.Descriptor
	}
	if c := classOf(ref); c != nil {
		return c.Name
	}
	return fmt.Sprintf("%T", ref)
}

func javaName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// isInstance reports whether ref is assignable to the class or array type
// named target, resolving class names through scope.
func (vm *VM) isInstance(scope *Scope, ref interface{}, target string) (bool, error) {
	if arr, ok := ref.(*JArray); ok {
		return isArrayAssignable(scope, arr.Descriptor, target)
	}
	if strings.HasPrefix(target, "[") {
		return false, nil
	}
	c := classOf(ref)
	if c == nil {
		return false, fmt.Errorf("unknown reference kind %T", ref)
	}
	tc, err := scope.LoadClass(target)
	if err != nil {
		return false, fmt.Errorf("NoClassDefFoundError: %w", err)
	}
	return c.IsSubclassOf(tc), nil
}

// isArrayAssignable applies the array assignment rules: src is an array
// descriptor, target a class name or array descriptor.
func isArrayAssignable(scope *Scope, src, target string) (bool, error) {
	switch target {
	case objectClass, "java/lang/Cloneable", "java/io/Serializable":
		return true, nil
	}
	if !strings.HasPrefix(target, "[") {
		return false, nil
	}
	se, te := src[1:], target[1:]
	if len(se) == 1 || len(te) == 1 {
		return se == te, nil
	}
	tname := descriptorClassName(te)
	if strings.HasPrefix(se, "[") {
		return isArrayAssignable(scope, se, tname)
	}
	if strings.HasPrefix(tname, "[") {
		return false, nil
	}
	sc, err := scope.LoadClass(descriptorClassName(se))
	if err != nil {
		return false, fmt.Errorf("NoClassDefFoundError: %w", err)
	}
	tc, err := scope.LoadClass(tname)
	if err != nil {
		return false, fmt.Errorf("NoClassDefFoundError: %w", err)
	}
	return sc.IsSubclassOf(tc), nil
}

// descriptorClassName turns "Lfoo/Bar;" into "foo/Bar"; array descriptors
// are returned unchanged.
func descriptorClassName(desc string) string {
	if strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";") {
		return desc[1 : len(desc)-1]
	}
	return desc
}
