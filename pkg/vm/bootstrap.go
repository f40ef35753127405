package vm

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/native"
)

// Names of the invoker contract classes provided by the bootstrap scope.
const (
	InvokerInterface = "gojvm/invoker/Invoker"
	InvokerBase      = "gojvm/invoker/MethodInvoker"
	InvokeName       = "invoke"
	InvokeDescriptor = "(Ljava/lang/Object;[Ljava/lang/Object;)Ljava/lang/Object;"
)

const (
	objectClass    = "java/lang/Object"
	numberClass    = "java/lang/Number"
	stringClass    = "java/lang/String"
	systemClass    = "java/lang/System"
	printStream    = "java/io/PrintStream"
	throwableClass = "java/lang/Throwable"
)

var (
	bootstrapOnce  sync.Once
	bootstrapScope *Scope
)

// Bootstrap returns the process-wide root scope holding the Go-implemented
// core classes. It is sealed: nothing can be defined into it.
func Bootstrap() *Scope {
	bootstrapOnce.Do(func() {
		bootstrapScope = buildBootstrap()
	})
	return bootstrapScope
}

func mustBootstrap(name string) *Class {
	c := Bootstrap().FindLoadedClass(name)
	if c == nil {
		panic("vm: missing bootstrap class " + name)
	}
	return c
}

type bootstrapBuilder struct {
	scope *Scope
}

func (b *bootstrapBuilder) class(name, super string, flags uint16, ifaces ...string) *Class {
	c := &Class{
		Name:        name,
		AccessFlags: flags,
		Scope:       b.scope,
		methods:     make(map[string]*Method),
		statics:     make(map[string]Value),
		state:       classInitialized,
	}
	if super != "" {
		c.Super = b.scope.classes[super]
	}
	for _, in := range ifaces {
		c.Interfaces = append(c.Interfaces, b.scope.classes[in])
	}
	b.scope.classes[name] = c
	return c
}

func (b *bootstrapBuilder) native(c *Class, name, descriptor string, flags uint16, fn NativeMethod) {
	m, err := newMethod(c, name, descriptor, flags|classfile.AccNative)
	if err != nil {
		panic(err)
	}
	m.Native = fn
	c.addMethod(m)
}

func (b *bootstrapBuilder) abstract(c *Class, name, descriptor string) {
	m, err := newMethod(c, name, descriptor, classfile.AccPublic|classfile.AccAbstract)
	if err != nil {
		panic(err)
	}
	c.addMethod(m)
}

func buildBootstrap() *Scope {
	b := &bootstrapBuilder{scope: &Scope{Name: "bootstrap", classes: make(map[string]*Class), sealed: true}}
	const (
		pub      = classfile.AccPublic
		pubFinal = classfile.AccPublic | classfile.AccFinal
		static   = classfile.AccPublic | classfile.AccStatic
	)
	noop := func(*VM, []Value) (Value, error) { return Value{}, nil }

	object := b.class(objectClass, "", pub)
	b.native(object, "<init>", "()V", pub, noop)
	b.native(object, "equals", "(Ljava/lang/Object;)Z", pub, func(_ *VM, args []Value) (Value, error) {
		return boolValue(refEquals(args[0], args[1])), nil
	})
	b.native(object, "toString", "()Ljava/lang/String;", pub, func(_ *VM, args []Value) (Value, error) {
		return RefValue(StringOf(args[0])), nil
	})

	number := b.class(numberClass, objectClass, pub|classfile.AccAbstract)
	b.native(number, "<init>", "()V", pub, noop)
	numberView := func(name, descriptor string, view func(*native.Box) Value) {
		b.native(number, name, descriptor, pub, func(_ *VM, args []Value) (Value, error) {
			box, err := receiverBox(args[0])
			if err != nil {
				return Value{}, err
			}
			return view(box), nil
		})
	}
	numberView("intValue", "()I", func(x *native.Box) Value { return IntValue(x.IntValue()) })
	numberView("longValue", "()J", func(x *native.Box) Value { return LongValue(x.LongValue()) })
	numberView("floatValue", "()F", func(x *native.Box) Value { return FloatValue(x.FloatValue()) })
	numberView("doubleValue", "()D", func(x *native.Box) Value { return DoubleValue(x.DoubleValue()) })
	numberView("shortValue", "()S", func(x *native.Box) Value { return IntValue(int32(int16(x.IntValue()))) })
	numberView("byteValue", "()B", func(x *native.Box) Value { return IntValue(int32(int8(x.IntValue()))) })

	boxes := []struct {
		name, super, prim string
		valueOf           func(Value) *native.Box
		unbox             string
		view              func(*native.Box) Value
	}{
		{native.BooleanClass, objectClass, "Z", func(v Value) *native.Box { return native.BoolValueOf(v.Int != 0) },
			"booleanValue", func(x *native.Box) Value { return boolValue(x.BoolValue()) }},
		{native.CharacterClass, objectClass, "C", func(v Value) *native.Box { return native.CharValueOf(uint16(v.Int)) },
			"charValue", func(x *native.Box) Value { return IntValue(int32(x.CharValue())) }},
		{native.ByteClass, numberClass, "B", func(v Value) *native.Box { return native.ByteValueOf(int8(v.Int)) }, "", nil},
		{native.ShortClass, numberClass, "S", func(v Value) *native.Box { return native.ShortValueOf(int16(v.Int)) }, "", nil},
		{native.IntegerClass, numberClass, "I", func(v Value) *native.Box { return native.IntegerValueOf(v.Int) }, "", nil},
		{native.LongClass, numberClass, "J", func(v Value) *native.Box { return native.LongValueOf(v.Long) }, "", nil},
		{native.FloatClass, numberClass, "F", func(v Value) *native.Box { return native.FloatValueOf(v.Float) }, "", nil},
		{native.DoubleClass, numberClass, "D", func(v Value) *native.Box { return native.DoubleValueOf(v.Double) }, "", nil},
	}
	for _, bx := range boxes {
		bx := bx
		c := b.class(bx.name, bx.super, pubFinal)
		b.native(c, "valueOf", "("+bx.prim+")L"+bx.name+";", static, func(_ *VM, args []Value) (Value, error) {
			return RefValue(bx.valueOf(args[0])), nil
		})
		if bx.unbox != "" {
			b.native(c, bx.unbox, "()"+bx.prim, pub, func(_ *VM, args []Value) (Value, error) {
				box, err := receiverBox(args[0])
				if err != nil {
					return Value{}, err
				}
				return bx.view(box), nil
			})
		}
	}

	str := b.class(stringClass, objectClass, pubFinal)
	b.native(str, "length", "()I", pub, func(_ *VM, args []Value) (Value, error) {
		s, ok := args[0].Ref.(string)
		if !ok {
			return Value{}, fmt.Errorf("String.length: receiver is %T", args[0].Ref)
		}
		return IntValue(int32(len(utf16.Encode([]rune(s))))), nil
	})

	b.class(systemClass, objectClass, pubFinal)
	ps := b.class(printStream, objectClass, pub)
	printers := map[string]func(Value) interface{}{
		"I":                  func(v Value) interface{} { return v.Int },
		"J":                  func(v Value) interface{} { return v.Long },
		"F":                  func(v Value) interface{} { return native.FloatValueOf(v.Float).String() },
		"D":                  func(v Value) interface{} { return native.DoubleValueOf(v.Double).String() },
		"Z":                  func(v Value) interface{} { return native.BoolValueOf(v.Int != 0).String() },
		"C":                  func(v Value) interface{} { return native.CharValueOf(uint16(v.Int)).String() },
		"Ljava/lang/String;": func(v Value) interface{} { return StringOf(v) },
		"Ljava/lang/Object;": func(v Value) interface{} { return StringOf(v) },
	}
	for desc, format := range printers {
		format := format
		b.native(ps, "println", "("+desc+")V", pub, func(_ *VM, args []Value) (Value, error) {
			out, err := receiverStream(args[0])
			if err != nil {
				return Value{}, err
			}
			out.Println(format(args[1]))
			return Value{}, nil
		})
		b.native(ps, "print", "("+desc+")V", pub, func(_ *VM, args []Value) (Value, error) {
			out, err := receiverStream(args[0])
			if err != nil {
				return Value{}, err
			}
			out.Print(format(args[1]))
			return Value{}, nil
		})
	}
	b.native(ps, "println", "()V", pub, func(_ *VM, args []Value) (Value, error) {
		out, err := receiverStream(args[0])
		if err != nil {
			return Value{}, err
		}
		out.Println()
		return Value{}, nil
	})

	throwable := b.class(throwableClass, objectClass, pub)
	b.native(throwable, "<init>", "()V", pub, noop)
	b.native(throwable, "<init>", "(Ljava/lang/String;)V", pub, func(_ *VM, args []Value) (Value, error) {
		obj, ok := args[0].Ref.(*JObject)
		if !ok {
			return Value{}, fmt.Errorf("Throwable.<init>: receiver is %T", args[0].Ref)
		}
		obj.SetField(messageField, args[1])
		return Value{}, nil
	})
	b.native(throwable, "getMessage", "()Ljava/lang/String;", pub, func(_ *VM, args []Value) (Value, error) {
		obj, ok := args[0].Ref.(*JObject)
		if !ok {
			return Value{}, fmt.Errorf("Throwable.getMessage: receiver is %T", args[0].Ref)
		}
		return obj.GetField(messageField), nil
	})

	for _, exc := range [][2]string{
		{"java/lang/Exception", throwableClass},
		{"java/lang/Error", throwableClass},
		{"java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
		{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
		{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
		{ArrayIndexOutOfBoundsException, "java/lang/IndexOutOfBoundsException"},
		{ClassCastException, "java/lang/RuntimeException"},
		{NullPointerException, "java/lang/RuntimeException"},
		{ArithmeticException, "java/lang/RuntimeException"},
		{NegativeArraySizeException, "java/lang/RuntimeException"},
		{ArrayStoreException, "java/lang/RuntimeException"},
	} {
		c := b.class(exc[0], exc[1], pub)
		// constructors are not inherited
		for _, m := range throwable.methodList {
			if m.Name == "<init>" {
				b.native(c, m.Name, m.Descriptor, pub, m.Native)
			}
		}
	}

	invoker := b.class(InvokerInterface, objectClass, pub|classfile.AccInterface|classfile.AccAbstract)
	b.abstract(invoker, InvokeName, InvokeDescriptor)
	base := b.class(InvokerBase, objectClass, pub|classfile.AccAbstract, InvokerInterface)
	b.native(base, "<init>", "()V", classfile.AccProtected, noop)

	return b.scope
}

func receiverBox(v Value) (*native.Box, error) {
	if v.IsNull() {
		return nil, NewJavaException(NullPointerException)
	}
	box, ok := v.Ref.(*native.Box)
	if !ok {
		return nil, fmt.Errorf("receiver is %T, not a boxed value", v.Ref)
	}
	return box, nil
}

func receiverStream(v Value) (*native.PrintStream, error) {
	if v.IsNull() {
		return nil, NewJavaException(NullPointerException)
	}
	ps, ok := v.Ref.(*native.PrintStream)
	if !ok {
		return nil, fmt.Errorf("receiver is %T, not a PrintStream", v.Ref)
	}
	return ps, nil
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// refEquals implements Object.equals for the Go-backed reference kinds.
func refEquals(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	switch x := a.Ref.(type) {
	case *native.Box:
		y, ok := b.Ref.(*native.Box)
		return ok && x.Equals(y)
	case string:
		y, ok := b.Ref.(string)
		return ok && x == y
	}
	return a.Ref == b.Ref
}

// StringOf renders a value the way String.valueOf would.
func StringOf(v Value) string {
	switch v.Type {
	case TypeInt:
		return strconv.Itoa(int(v.Int))
	case TypeLong:
		return strconv.FormatInt(v.Long, 10)
	case TypeFloat:
		return native.FloatValueOf(v.Float).String()
	case TypeDouble:
		return native.DoubleValueOf(v.Double).String()
	}
	if v.IsNull() {
		return "null"
	}
	switch r := v.Ref.(type) {
	case string:
		return r
	case *native.Box:
		return r.String()
	case *JObject:
		name := strings.ReplaceAll(r.ClassName(), "/", ".")
		if r.Class != nil && r.Class.IsSubclassOf(mustBootstrap(throwableClass)) {
			if msg, ok := r.GetField(messageField).Ref.(string); ok {
				return name + ": " + msg
			}
			return name
		}
		return fmt.Sprintf("%s@%p", name, r)
	case *JArray:
		return fmt.Sprintf("%s@%p", r.Descriptor, r)
	}
	return fmt.Sprint(v.Ref)
}
