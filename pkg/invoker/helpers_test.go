package invoker

import (
	"testing"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/vm"
)

const (
	beanClass    = "com/example/Bean"
	subBeanClass = "com/example/SubBean"
	otherClass   = "com/example/Other"
	shapeClass   = "com/example/Shape"
	squareClass  = "com/example/Square"

	pubSuper  = classfile.AccPublic | classfile.AccSuper
	pubStatic = classfile.AccPublic | classfile.AccStatic
)

var (
	bean    = Reference(beanClass)
	subBean = Reference(subBeanClass)
)

// env is an isolated VM and scope holding the test classes.
type env struct {
	vm    *vm.VM
	scope *vm.Scope
}

func newEnv(t *testing.T) *env {
	t.Helper()
	scope := vm.NewScope(t.Name(), nil, nil)
	e := &env{vm: vm.NewVM(scope), scope: scope}
	defineBeans(t, scope)
	return e
}

// factory returns a factory on e with its own loader and no metrics.
func (e *env) factory(opts ...Option) *Factory {
	return NewFactory(e.vm, e.scope, append([]Option{WithLoader(NewLoader())}, opts...)...)
}

func (e *env) newInstance(t *testing.T, class string) *vm.JObject {
	t.Helper()
	c, err := e.scope.LoadClass(class)
	if err != nil {
		t.Fatalf("LoadClass(%s): %v", class, err)
	}
	obj, err := e.vm.NewInstance(c)
	if err != nil {
		t.Fatalf("NewInstance(%s): %v", class, err)
	}
	return obj
}

// static reads a static int field of class.
func (e *env) static(t *testing.T, class, field string) int32 {
	t.Helper()
	c, err := e.scope.LoadClass(class)
	if err != nil {
		t.Fatalf("LoadClass(%s): %v", class, err)
	}
	v, ok := c.GetStatic(field)
	if !ok {
		t.Fatalf("%s has no static field %s", class, field)
	}
	return v.Int
}

func (e *env) create(t *testing.T, f *Factory, d Descriptor) *MethodInvoker {
	t.Helper()
	inv, err := f.Create(t.Context(), d)
	if err != nil {
		t.Fatalf("Create(%s): %v", d, err)
	}
	return inv
}

func defineClass(t *testing.T, scope *vm.Scope, b *classfile.ClassBuilder) {
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
	if _, err := scope.DefineClass(name, data); err != nil {
		t.Fatalf("defining %s: %v", name, err)
	}
}

func code(maxStack, maxLocals uint16, a *classfile.Asm) *classfile.CodeAttribute {
	return &classfile.CodeAttribute{MaxStack: maxStack, MaxLocals: maxLocals, Code: a.Code}
}

func withCtor(b *classfile.ClassBuilder, super string) *classfile.ClassBuilder {
	init := b.Pool.Methodref(super, "<init>", "()V")
	a := (&classfile.Asm{}).Op(classfile.OpAload0).U16(classfile.OpInvokespecial, init).Op(classfile.OpReturn)
	return b.Method(classfile.AccPublic, "<init>", "()V", code(1, 1, a))
}

// identities maps a descriptor to the load and return opcodes of a static
// method returning its only argument.
var identities = []struct {
	desc       string
	load, ret  byte
	stack, loc uint16
}{
	{"Z", classfile.OpIload0, classfile.OpIreturn, 1, 1},
	{"C", classfile.OpIload0, classfile.OpIreturn, 1, 1},
	{"B", classfile.OpIload0, classfile.OpIreturn, 1, 1},
	{"S", classfile.OpIload0, classfile.OpIreturn, 1, 1},
	{"I", classfile.OpIload0, classfile.OpIreturn, 1, 1},
	{"J", classfile.OpLload0, classfile.OpLreturn, 2, 2},
	{"F", classfile.OpFload0, classfile.OpFreturn, 1, 1},
	{"D", classfile.OpDload0, classfile.OpDreturn, 2, 2},
	{"Ljava/lang/String;", classfile.OpAload0, classfile.OpAreturn, 1, 1},
	{"Ljava/lang/Object;", classfile.OpAload0, classfile.OpAreturn, 1, 1},
	{"[I", classfile.OpAload0, classfile.OpAreturn, 1, 1},
	{"[[Ljava/lang/String;", classfile.OpAload0, classfile.OpAreturn, 1, 1},
}

// defineBeans defines the classes the tests call into:
//
//	public class Bean {
//	    public static int last;
//	    public Bean peer;
//	    public static void test(short s) { last = s; }
//	    public void test(Bean b) { peer = b; }
//	    public int get() { return 1; }
//	    public static T id(T x) { return x; }  // one per identities entry
//	    public static long sum(int a, long b, double c, short d) { return a + b + (long) c + d; }
//	    public static int count() { return ++last; }
//	    protected static int guarded() { return 7; }
//	    static int internal() { return 8; }
//	    private static void hidden() {}
//	}
//	public class SubBean extends Bean { public int get() { return 2; } }
//	public class Other {}
//	public interface Shape { int sides(); }
//	public class Square implements Shape { public int sides() { return 4; } }
func defineBeans(t *testing.T, scope *vm.Scope) {
	t.Helper()
	b := withCtor(classfile.NewClassBuilder(beanClass, objectClass, pubSuper), objectClass)
	b.Field(pubStatic, "last", "I")
	b.Field(classfile.AccPublic, "peer", "L"+beanClass+";")

	last := b.Pool.Fieldref(beanClass, "last", "I")
	peer := b.Pool.Fieldref(beanClass, "peer", "L"+beanClass+";")
	b.Method(pubStatic, "test", "(S)V", code(1, 1, (&classfile.Asm{}).
		Op(classfile.OpIload0).U16(classfile.OpPutstatic, last).Op(classfile.OpReturn)))
	b.Method(classfile.AccPublic, "test", "(L"+beanClass+";)V", code(2, 2, (&classfile.Asm{}).
		Op(classfile.OpAload0, classfile.OpAload1).U16(classfile.OpPutfield, peer).Op(classfile.OpReturn)))
	b.Method(classfile.AccPublic, "get", "()I", code(1, 1, (&classfile.Asm{}).Op(classfile.OpIconst1, classfile.OpIreturn)))
	for _, id := range identities {
		b.Method(pubStatic, "id", "("+id.desc+")"+id.desc, code(id.stack, id.loc, (&classfile.Asm{}).Op(id.load, id.ret)))
	}
	b.Method(pubStatic, "sum", "(IJDS)J", code(4, 6, (&classfile.Asm{}).
		Op(classfile.OpIload0, classfile.OpI2l, classfile.OpLload1, classfile.OpLadd,
			classfile.OpDload3, classfile.OpD2l, classfile.OpLadd).
		U8(classfile.OpIload, 5).Op(classfile.OpI2l, classfile.OpLadd, classfile.OpLreturn)))
	b.Method(pubStatic, "count", "()I", code(2, 0, (&classfile.Asm{}).
		U16(classfile.OpGetstatic, last).Op(classfile.OpIconst1, classfile.OpIadd, classfile.OpDup).
		U16(classfile.OpPutstatic, last).Op(classfile.OpIreturn)))
	b.Method(classfile.AccProtected|classfile.AccStatic, "guarded", "()I", code(1, 0, (&classfile.Asm{}).
		U8(classfile.OpBipush, 7).Op(classfile.OpIreturn)))
	b.Method(classfile.AccStatic, "internal", "()I", code(1, 0, (&classfile.Asm{}).
		U8(classfile.OpBipush, 8).Op(classfile.OpIreturn)))
	b.Method(classfile.AccPrivate|classfile.AccStatic, "hidden", "()V", code(0, 0, (&classfile.Asm{}).Op(classfile.OpReturn)))
	defineClass(t, scope, b)

	sb := withCtor(classfile.NewClassBuilder(subBeanClass, beanClass, pubSuper), beanClass)
	sb.Method(classfile.AccPublic, "get", "()I", code(1, 1, (&classfile.Asm{}).Op(classfile.OpIconst2, classfile.OpIreturn)))
	defineClass(t, scope, sb)

	defineClass(t, scope, withCtor(classfile.NewClassBuilder(otherClass, objectClass, pubSuper), objectClass))

	shape := classfile.NewClassBuilder(shapeClass, objectClass,
		classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract)
	shape.Method(classfile.AccPublic|classfile.AccAbstract, "sides", "()I", nil)
	defineClass(t, scope, shape)

	sq := withCtor(classfile.NewClassBuilder(squareClass, objectClass, pubSuper, shapeClass), objectClass)
	sq.Method(classfile.AccPublic, "sides", "()I", code(1, 1, (&classfile.Asm{}).Op(classfile.OpIconst4, classfile.OpIreturn)))
	defineClass(t, scope, sq)
}

// staticDesc describes a public static method of Bean.
func staticDesc(name string, ret Type, params ...Type) Descriptor {
	return MustDescriptor(bean, name, params, ret, Static())
}

// failingStrategy is a strategy whose probe always fails.
type failingStrategy struct{ err error }

func (s failingStrategy) Name() string { return "failing" }
func (s failingStrategy) Probe() error { return s.err }
func (s failingStrategy) Define(*vm.Scope, *Artifact) (*vm.Class, error) {
	return nil, s.err
}
