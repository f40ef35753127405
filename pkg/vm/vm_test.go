package vm

import (
	"strings"
	"sync"
	"testing"

	"github.com/daimatz/invokergen/pkg/classfile"
)

const (
	pubSuper     = classfile.AccPublic | classfile.AccSuper
	pubStatic    = classfile.AccPublic | classfile.AccStatic
	objectName   = "java/lang/Object"
	mainDesc     = "([Ljava/lang/String;)V"
	runtimeError = "java/lang/RuntimeException"
)

func TestExecuteHello(t *testing.T) {
	v, scope, out := newTestVM(t)

	b := classfile.NewClassBuilder("Hello", objectName, pubSuper)
	field := b.Pool.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	println := b.Pool.Methodref("java/io/PrintStream", "println", "(I)V")
	printStr := b.Pool.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	hello := b.Pool.String("hello")
	a := (&classfile.Asm{}).
		U16(classfile.OpGetstatic, field).U8(classfile.OpBipush, 42).U16(classfile.OpInvokevirtual, println).
		U16(classfile.OpGetstatic, field).U8(classfile.OpLdc, uint8(hello)).U16(classfile.OpInvokevirtual, printStr).
		Op(classfile.OpReturn)
	b.Method(pubStatic, "main", mainDesc, body(2, 1, a))
	defineClass(t, scope, b)

	if err := v.Execute("Hello"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got, want := out.String(), "42\nhello\n"; got != want {
		t.Errorf("output: got %q, want %q", got, want)
	}
}

func TestWideParameters(t *testing.T) {
	v, scope, _ := newTestVM(t)

	// static long mix(int a, long b, double c) { return a + b + (long) c; }
	b := classfile.NewClassBuilder("Mix", objectName, pubSuper)
	a := (&classfile.Asm{}).Op(
		classfile.OpIload0, classfile.OpI2l, classfile.OpLload1, classfile.OpLadd,
		classfile.OpDload3, classfile.OpD2l, classfile.OpLadd, classfile.OpLreturn)
	b.Method(pubStatic, "mix", "(IJD)J", body(4, 5, a))
	c := defineClass(t, scope, b)

	ret, err := v.Invoke(c.DeclaredMethod("mix", "(IJD)J"), IntValue(1), LongValue(2), DoubleValue(3.9))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if ret.Long != 6 {
		t.Errorf("mix(1, 2, 3.9): got %d, want 6", ret.Long)
	}

	if _, err := v.Invoke(c.DeclaredMethod("mix", "(IJD)J"), IntValue(1)); err == nil {
		t.Error("expected an arity error")
	}
}

// defineHierarchy defines Base { int get() { return 1; } } and
// Sub extends Base { int get() { return 2; } }.
func defineHierarchy(t *testing.T, scope *Scope) (base, sub *Class) {
	t.Helper()
	bb := withCtor(classfile.NewClassBuilder("Base", objectName, pubSuper), objectName)
	bb.Method(classfile.AccPublic, "get", "()I", body(1, 1, (&classfile.Asm{}).Op(classfile.OpIconst1, classfile.OpIreturn)))
	base = defineClass(t, scope, bb)

	sb := withCtor(classfile.NewClassBuilder("Sub", "Base", pubSuper), "Base")
	sb.Method(classfile.AccPublic, "get", "()I", body(1, 1, (&classfile.Asm{}).Op(classfile.OpIconst2, classfile.OpIreturn)))
	sub = defineClass(t, scope, sb)
	return base, sub
}

func TestVirtualDispatch(t *testing.T) {
	v, scope, _ := newTestVM(t)
	base, sub := defineHierarchy(t, scope)

	b := classfile.NewClassBuilder("Caller", objectName, pubSuper)
	get := b.Pool.Methodref("Base", "get", "()I")
	b.Method(pubStatic, "call", "(LBase;)I", body(1, 1, (&classfile.Asm{}).Op(classfile.OpAload0).U16(classfile.OpInvokevirtual, get).Op(classfile.OpIreturn)))
	caller := defineClass(t, scope, b)
	call := caller.DeclaredMethod("call", "(LBase;)I")

	tests := []struct {
		name  string
		class *Class
		want  int32
	}{
		{"base", base, 1},
		{"override", sub, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := v.NewInstance(tt.class)
			if err != nil {
				t.Fatalf("NewInstance: %v", err)
			}
			ret, err := v.Invoke(call, RefValue(obj))
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if ret.Int != tt.want {
				t.Errorf("call: got %d, want %d", ret.Int, tt.want)
			}
		})
	}

	t.Run("null receiver", func(t *testing.T) {
		_, err := v.Invoke(call, NullValue())
		if !IsNullPointer(err) {
			t.Errorf("expected NullPointerException, got %v", err)
		}
	})

	if !sub.IsSubclassOf(base) || base.IsSubclassOf(sub) {
		t.Error("IsSubclassOf mismatch")
	}
}

func TestFieldsAndStaticInit(t *testing.T) {
	v, scope, _ := newTestVM(t)

	b := withCtor(classfile.NewClassBuilder("Counter", objectName, pubSuper), objectName)
	b.Field(classfile.AccStatic, "count", "I").Field(classfile.AccPrivate, "value", "J")
	count := b.Pool.Fieldref("Counter", "count", "I")
	value := b.Pool.Fieldref("Counter", "value", "J")
	b.Method(classfile.AccStatic, "<clinit>", "()V", body(1, 0,
		(&classfile.Asm{}).U8(classfile.OpBipush, 42).U16(classfile.OpPutstatic, count).Op(classfile.OpReturn)))
	b.Method(pubStatic, "count", "()I", body(1, 0,
		(&classfile.Asm{}).U16(classfile.OpGetstatic, count).Op(classfile.OpIreturn)))
	b.Method(classfile.AccPublic, "set", "(J)V", body(3, 3,
		(&classfile.Asm{}).Op(classfile.OpAload0, classfile.OpLload1).U16(classfile.OpPutfield, value).Op(classfile.OpReturn)))
	c := defineClass(t, scope, b)

	if c.Initialized() {
		t.Fatal("class should not be initialized before first use")
	}
	ret, err := v.Invoke(c.DeclaredMethod("count", "()I"))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if ret.Int != 42 {
		t.Errorf("count: got %d, want 42", ret.Int)
	}
	if !c.Initialized() {
		t.Error("class should be initialized after a static call")
	}

	obj, err := v.NewInstance(c)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if got := obj.GetField("value"); got.Type != TypeLong || got.Long != 0 {
		t.Errorf("default field: got %+v, want long 0", got)
	}
	if _, err := v.InvokeVirtual(RefValue(obj), "set", "(J)V", LongValue(7)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := obj.GetField("value").Long; got != 7 {
		t.Errorf("value after set: got %d, want 7", got)
	}
}

func TestExceptions(t *testing.T) {
	v, scope, _ := newTestVM(t)

	// static int safeDiv(int a, int b) { try { return a / b; } catch (ArithmeticException e) { return -1; } }
	b := classfile.NewClassBuilder("Div", objectName, pubSuper)
	catchType := b.Pool.Class(ArithmeticException)
	a := (&classfile.Asm{}).Op(classfile.OpIload0, classfile.OpIload1, classfile.OpIdiv, classfile.OpIreturn).
		Op(classfile.OpAstore2, classfile.OpIconstM1, classfile.OpIreturn)
	b.Method(pubStatic, "safeDiv", "(II)I", body(2, 3, a, classfile.ExceptionHandler{StartPC: 0, EndPC: 4, HandlerPC: 4, CatchType: catchType}))

	// static void fail() { throw new RuntimeException("boom"); }
	exc := b.Pool.Class(runtimeError)
	ctor := b.Pool.Methodref(runtimeError, "<init>", "(Ljava/lang/String;)V")
	msg := b.Pool.String("boom")
	a = (&classfile.Asm{}).U16(classfile.OpNew, exc).Op(classfile.OpDup).U8(classfile.OpLdc, uint8(msg)).
		U16(classfile.OpInvokespecial, ctor).Op(classfile.OpAthrow)
	b.Method(pubStatic, "fail", "()V", body(3, 0, a))
	c := defineClass(t, scope, b)

	safeDiv := c.DeclaredMethod("safeDiv", "(II)I")
	for _, tt := range []struct{ a, b, want int32 }{{8, 2, 4}, {1, 0, -1}} {
		ret, err := v.Invoke(safeDiv, IntValue(tt.a), IntValue(tt.b))
		if err != nil {
			t.Fatalf("safeDiv(%d, %d): %v", tt.a, tt.b, err)
		}
		if ret.Int != tt.want {
			t.Errorf("safeDiv(%d, %d): got %d, want %d", tt.a, tt.b, ret.Int, tt.want)
		}
	}

	_, err := v.Invoke(c.DeclaredMethod("fail", "()V"))
	if !IsJavaException(err, runtimeError) {
		t.Fatalf("expected RuntimeException, got %v", err)
	}
	if IsClassCast(err) {
		t.Error("RuntimeException must not match ClassCastException")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("message lost: %v", err)
	}
}

func TestTypeChecks(t *testing.T) {
	v, scope, _ := newTestVM(t)
	_, sub := defineHierarchy(t, scope)

	b := classfile.NewClassBuilder("Cast", objectName, pubSuper)
	baseRef := b.Pool.Class("Base")
	b.Method(pubStatic, "toBase", "(Ljava/lang/Object;)LBase;", body(1, 1,
		(&classfile.Asm{}).Op(classfile.OpAload0).U16(classfile.OpCheckcast, baseRef).Op(classfile.OpAreturn)))
	b.Method(pubStatic, "isBase", "(Ljava/lang/Object;)Z", body(1, 1,
		(&classfile.Asm{}).Op(classfile.OpAload0).U16(classfile.OpInstanceof, baseRef).Op(classfile.OpIreturn)))
	c := defineClass(t, scope, b)
	toBase := c.DeclaredMethod("toBase", "(Ljava/lang/Object;)LBase;")
	isBase := c.DeclaredMethod("isBase", "(Ljava/lang/Object;)Z")

	obj, err := v.NewInstance(sub)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		arg      Value
		castOK   bool
		instance int32
	}{
		{"subclass", RefValue(obj), true, 1},
		{"string", RefValue("text"), false, 0},
		{"boxed", MustBox(int32(3)), false, 0},
		{"array", RefValue(NewArray("[I", 1)), false, 0},
		{"null", NullValue(), true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Invoke(toBase, tt.arg)
			if tt.castOK && err != nil {
				t.Errorf("checkcast: unexpected error %v", err)
			}
			if !tt.castOK && !IsClassCast(err) {
				t.Errorf("checkcast: expected ClassCastException, got %v", err)
			}
			ret, err := v.Invoke(isBase, tt.arg)
			if err != nil {
				t.Fatalf("instanceof: %v", err)
			}
			if ret.Int != tt.instance {
				t.Errorf("instanceof: got %d, want %d", ret.Int, tt.instance)
			}
		})
	}
}

func TestArrayAssignability(t *testing.T) {
	scope := NewScope(t.Name(), nil, nil)
	defineHierarchy(t, scope)

	tests := []struct {
		src, target string
		want        bool
	}{
		{"[I", "[I", true},
		{"[I", "[J", false},
		{"[I", objectName, true},
		{"[I", "[Ljava/lang/Object;", false},
		{"[LSub;", "[LBase;", true},
		{"[LBase;", "[LSub;", false},
		{"[Ljava/lang/String;", "[Ljava/lang/Object;", true},
		{"[[I", "[Ljava/lang/Object;", true},
		{"[[LSub;", "[[LBase;", true},
		{"[LSub;", "Base", false},
	}
	for _, tt := range tests {
		got, err := isArrayAssignable(scope, tt.src, tt.target)
		if err != nil {
			t.Fatalf("%s -> %s: %v", tt.src, tt.target, err)
		}
		if got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.src, tt.target, got, tt.want)
		}
	}
}

func TestPrivateAccess(t *testing.T) {
	v, scope, _ := newTestVM(t)

	sb := classfile.NewClassBuilder("Secret", objectName, pubSuper)
	self := sb.Pool.Methodref("Secret", "secret", "()I")
	sb.Method(classfile.AccPrivate|classfile.AccStatic, "secret", "()I", body(1, 0, (&classfile.Asm{}).Op(classfile.OpIconst5, classfile.OpIreturn)))
	sb.Method(pubStatic, "open", "()I", body(1, 0, (&classfile.Asm{}).U16(classfile.OpInvokestatic, self).Op(classfile.OpIreturn)))
	secret := defineClass(t, scope, sb)

	pb := classfile.NewClassBuilder("Spy", objectName, pubSuper)
	ref := pb.Pool.Methodref("Secret", "secret", "()I")
	pb.Method(pubStatic, "peek", "()I", body(1, 0, (&classfile.Asm{}).U16(classfile.OpInvokestatic, ref).Op(classfile.OpIreturn)))
	spy := defineClass(t, scope, pb)

	ret, err := v.Invoke(secret.DeclaredMethod("open", "()I"))
	if err != nil || ret.Int != 5 {
		t.Errorf("same-class private call: got %d, %v", ret.Int, err)
	}
	if _, err := v.Invoke(spy.DeclaredMethod("peek", "()I")); err == nil || !strings.Contains(err.Error(), "IllegalAccessError") {
		t.Errorf("expected IllegalAccessError, got %v", err)
	}
}

func TestBoxingThroughBytecode(t *testing.T) {
	v, scope, _ := newTestVM(t)

	b := classfile.NewClassBuilder("Boxes", objectName, pubSuper)
	valueOf := b.Pool.Methodref("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;")
	longValue := b.Pool.Methodref("java/lang/Integer", "longValue", "()J")
	a := (&classfile.Asm{}).Op(classfile.OpIload0).U16(classfile.OpInvokestatic, valueOf).
		U16(classfile.OpInvokevirtual, longValue).Op(classfile.OpLreturn)
	b.Method(pubStatic, "widen", "(I)J", body(2, 1, a))
	c := defineClass(t, scope, b)

	ret, err := v.Invoke(c.DeclaredMethod("widen", "(I)J"), IntValue(-9))
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	if ret.Long != -9 {
		t.Errorf("widen(-9): got %d", ret.Long)
	}
}

func TestInvokerContract(t *testing.T) {
	v, scope, _ := newTestVM(t)

	// Echo returns its first argument.
	eb := withCtor(classfile.NewClassBuilder("Echo", InvokerBase, pubSuper|classfile.AccFinal), InvokerBase)
	eb.Method(classfile.AccPublic|classfile.AccFinal, InvokeName, InvokeDescriptor, body(2, 3,
		(&classfile.Asm{}).Op(classfile.OpAload2, classfile.OpIconst0, classfile.OpAaload, classfile.OpAreturn)))
	echo := defineClass(t, scope, eb)

	// Through calls an Invoker via invokeinterface.
	tb := classfile.NewClassBuilder("Through", objectName, pubSuper)
	iref := tb.Pool.InterfaceMethodref(InvokerInterface, InvokeName, InvokeDescriptor)
	a := (&classfile.Asm{}).Op(classfile.OpAload0, classfile.OpAconstNull, classfile.OpAload1).
		U16(classfile.OpInvokeinterface, iref).Op(3, 0).Op(classfile.OpAreturn)
	tb.Method(pubStatic, "call", "(L"+InvokerInterface+";[Ljava/lang/Object;)Ljava/lang/Object;", body(3, 2, a))
	through := defineClass(t, scope, tb)

	if !echo.IsSubclassOf(mustBootstrap(InvokerInterface)) {
		t.Fatal("Echo should implement the invoker interface")
	}

	obj, err := v.NewInstance(echo)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	args := RefValue(ObjectArray(MustBox(int32(9))))

	ret, err := v.InvokeVirtual(RefValue(obj), InvokeName, InvokeDescriptor, NullValue(), args)
	if err != nil {
		t.Fatalf("InvokeVirtual: %v", err)
	}
	if got := Unbox(ret); got != int32(9) {
		t.Errorf("direct: got %v, want 9", got)
	}

	ret, err = v.Invoke(through.DeclaredMethods()[0], RefValue(obj), args)
	if err != nil {
		t.Fatalf("invokeinterface: %v", err)
	}
	if got := Unbox(ret); got != int32(9) {
		t.Errorf("interface: got %v, want 9", got)
	}
}

func TestMultiArray(t *testing.T) {
	v, scope, _ := newTestVM(t)

	b := classfile.NewClassBuilder("Grid", objectName, pubSuper)
	grid := b.Pool.Class("[[I")
	a := (&classfile.Asm{}).Op(classfile.OpIconst2, classfile.OpIconst3).U16(classfile.OpMultianewarray, grid).Op(2).
		Op(classfile.OpIconst1, classfile.OpAaload, classfile.OpArraylength, classfile.OpIreturn)
	b.Method(pubStatic, "cols", "()I", body(2, 0, a))
	c := defineClass(t, scope, b)

	ret, err := v.Invoke(c.DeclaredMethod("cols", "()I"))
	if err != nil {
		t.Fatalf("cols: %v", err)
	}
	if ret.Int != 3 {
		t.Errorf("cols: got %d, want 3", ret.Int)
	}
}

func TestStackOverflow(t *testing.T) {
	v, scope, _ := newTestVM(t)

	b := classfile.NewClassBuilder("Deep", objectName, pubSuper)
	self := b.Pool.Methodref("Deep", "down", "()V")
	b.Method(pubStatic, "down", "()V", body(0, 0, (&classfile.Asm{}).U16(classfile.OpInvokestatic, self).Op(classfile.OpReturn)))
	c := defineClass(t, scope, b)

	_, err := v.Invoke(c.DeclaredMethod("down", "()V"))
	if err == nil || !strings.Contains(err.Error(), "stack overflow") {
		t.Errorf("expected stack overflow, got %v", err)
	}
}

func TestConcurrentInvoke(t *testing.T) {
	v, scope, _ := newTestVM(t)

	b := classfile.NewClassBuilder("Sq", objectName, pubSuper)
	b.Method(pubStatic, "sq", "(I)I", body(2, 1, (&classfile.Asm{}).Op(classfile.OpIload0, classfile.OpIload0, classfile.OpImul, classfile.OpIreturn)))
	m := defineClass(t, scope, b).DeclaredMethod("sq", "(I)I")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := int32(0); i < 16; i++ {
		wg.Add(1)
		go func(i int32) {
			defer wg.Done()
			ret, err := v.Invoke(m, IntValue(i))
			if err != nil {
				errs <- err
				return
			}
			if ret.Int != i*i {
				t.Errorf("sq(%d): got %d", i, ret.Int)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
