package vm

import (
	"fmt"
	"sync"

	"github.com/daimatz/invokergen/pkg/classfile"
)

// NativeMethod implements a method in Go. For instance methods args[0] is
// the receiver. Void methods return the zero Value.
type NativeMethod func(vm *VM, args []Value) (Value, error)

// Method is a linked method of a runtime class.
type Method struct {
	Class       *Class
	Name        string
	Descriptor  string
	AccessFlags uint16
	Code        *classfile.CodeAttribute
	Native      NativeMethod

	params []string
	ret    string
}

func newMethod(c *Class, name, descriptor string, flags uint16) (*Method, error) {
	params, ret, err := classfile.ParseMethodDescriptor(descriptor)
	if err != nil {
		return nil, fmt.Errorf("method %s.%s: %w", c.Name, name, err)
	}
	return &Method{Class: c, Name: name, Descriptor: descriptor, AccessFlags: flags, params: params, ret: ret}, nil
}

func (m *Method) IsStatic() bool   { return m.AccessFlags&classfile.AccStatic != 0 }
func (m *Method) IsPrivate() bool  { return m.AccessFlags&classfile.AccPrivate != 0 }
func (m *Method) IsPublic() bool   { return m.AccessFlags&classfile.AccPublic != 0 }
func (m *Method) IsAbstract() bool { return m.AccessFlags&classfile.AccAbstract != 0 }

// ParamDescriptors returns the field descriptors of the declared parameters.
func (m *Method) ParamDescriptors() []string {
	return append([]string(nil), m.params...)
}

// ReturnDescriptor returns the return descriptor, "V" for void.
func (m *Method) ReturnDescriptor() string { return m.ret }

func (m *Method) String() string {
	return m.Class.Name + "." + m.Name + m.Descriptor
}

type initState int

const (
	classLinked initState = iota
	classInitializing
	classInitialized
	classInitFailed
)

// Class is a runtime class: a class file linked against its defining scope.
type Class struct {
	Name        string
	File        *classfile.ClassFile // nil for native classes
	AccessFlags uint16
	Super       *Class
	Interfaces  []*Class
	Scope       *Scope

	methods        map[string]*Method
	methodList     []*Method
	instanceFields []classfile.FieldInfo

	staticMu sync.RWMutex
	statics  map[string]Value

	initMu     sync.Mutex
	state      initState
	initThread *Thread
	initDone   chan struct{}
	initErr    error

	lookup sync.Map // name+descriptor -> *Method
}

// linkClass builds the runtime class for cf, resolving its super class and
// interfaces through scope.
func linkClass(scope *Scope, cf *classfile.ClassFile) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}
	c := &Class{
		Name:        name,
		File:        cf,
		AccessFlags: cf.AccessFlags,
		Scope:       scope,
		methods:     make(map[string]*Method),
		statics:     make(map[string]Value),
	}

	if superName := cf.SuperClassName(); superName != "" {
		super, err := scope.LoadClass(superName)
		if err != nil {
			return nil, fmt.Errorf("link %s: super class: %w", name, err)
		}
		if super.IsInterface() {
			return nil, fmt.Errorf("link %s: super class %s is an interface", name, superName)
		}
		if super.AccessFlags&classfile.AccFinal != 0 {
			return nil, fmt.Errorf("link %s: cannot subclass final class %s", name, superName)
		}
		c.Super = super
	} else if name != "java/lang/Object" {
		return nil, fmt.Errorf("link %s: missing super class", name)
	}

	ifaceNames, err := cf.InterfaceNames()
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", name, err)
	}
	for _, in := range ifaceNames {
		iface, err := scope.LoadClass(in)
		if err != nil {
			return nil, fmt.Errorf("link %s: interface: %w", name, err)
		}
		if !iface.IsInterface() {
			return nil, fmt.Errorf("link %s: %s is not an interface", name, in)
		}
		c.Interfaces = append(c.Interfaces, iface)
	}

	for i := range cf.Methods {
		mi := &cf.Methods[i]
		m, err := newMethod(c, mi.Name, mi.Descriptor, mi.AccessFlags)
		if err != nil {
			return nil, fmt.Errorf("link: %w", err)
		}
		if mi.Code == nil && mi.AccessFlags&(classfile.AccAbstract|classfile.AccNative) == 0 {
			return nil, fmt.Errorf("link: method %s has no Code attribute", m)
		}
		m.Code = mi.Code
		c.addMethod(m)
	}

	for _, f := range cf.Fields {
		if f.AccessFlags&classfile.AccStatic != 0 {
			c.statics[f.Name] = zeroValue(f.Descriptor)
		}
	}
	c.instanceFields = instanceFieldsOf(cf)
	return c, nil
}

func (c *Class) addMethod(m *Method) {
	key := m.Name + m.Descriptor
	if _, dup := c.methods[key]; !dup {
		c.methodList = append(c.methodList, m)
	}
	c.methods[key] = m
}

// IsInterface reports whether c is an interface.
func (c *Class) IsInterface() bool { return c.AccessFlags&classfile.AccInterface != 0 }

// IsPublic reports whether c is public.
func (c *Class) IsPublic() bool { return c.AccessFlags&classfile.AccPublic != 0 }

// DeclaredMethod returns the method declared directly by c, or nil.
func (c *Class) DeclaredMethod(name, descriptor string) *Method {
	return c.methods[name+descriptor]
}

// DeclaredMethods returns the methods declared by c in declaration order.
func (c *Class) DeclaredMethods() []*Method {
	return append([]*Method(nil), c.methodList...)
}

// FindMethod looks up a method by name and descriptor in c, its super
// classes and then its super interfaces.
func (c *Class) FindMethod(name, descriptor string) *Method {
	key := name + descriptor
	if m, ok := c.lookup.Load(key); ok {
		return m.(*Method)
	}
	m := c.findMethod(key)
	if m != nil {
		c.lookup.Store(key, m)
	}
	return m
}

func (c *Class) findMethod(key string) *Method {
	for k := c; k != nil; k = k.Super {
		if m, ok := k.methods[key]; ok {
			return m
		}
	}
	// maximally specific non-abstract interface method wins over abstract ones
	var abstract *Method
	for k := c; k != nil; k = k.Super {
		for _, iface := range k.Interfaces {
			if m := iface.findMethod(key); m != nil {
				if !m.IsAbstract() {
					return m
				}
				if abstract == nil {
					abstract = m
				}
			}
		}
	}
	return abstract
}

// IsSubclassOf reports whether c is other, extends it, or implements it.
func (c *Class) IsSubclassOf(other *Class) bool {
	if c == nil || other == nil {
		return false
	}
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
		for _, iface := range k.Interfaces {
			if iface.IsSubclassOf(other) {
				return true
			}
		}
	}
	return false
}

// staticOwner returns the class in c's hierarchy that declares the static
// field name.
func (c *Class) staticOwner(name string) *Class {
	for k := c; k != nil; k = k.Super {
		k.staticMu.RLock()
		_, ok := k.statics[name]
		k.staticMu.RUnlock()
		if ok {
			return k
		}
		for _, iface := range k.Interfaces {
			if owner := iface.staticOwner(name); owner != nil {
				return owner
			}
		}
	}
	return nil
}

// GetStatic returns the value of a static field declared by c.
func (c *Class) GetStatic(name string) (Value, bool) {
	c.staticMu.RLock()
	defer c.staticMu.RUnlock()
	v, ok := c.statics[name]
	return v, ok
}

// SetStatic stores a static field declared by c.
func (c *Class) SetStatic(name string, v Value) {
	c.staticMu.Lock()
	c.statics[name] = v
	c.staticMu.Unlock()
}

// Initialized reports whether c's static initializer has completed.
func (c *Class) Initialized() bool {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.state == classInitialized
}

// initialize runs the static initializers of c and its super classes once.
// A thread that re-enters initialization of a class it is initializing
// proceeds; other threads wait for the first one to finish.
func (c *Class) initialize(vm *VM, t *Thread) error {
	c.initMu.Lock()
	switch c.state {
	case classInitialized:
		c.initMu.Unlock()
		return nil
	case classInitFailed:
		err := c.initErr
		c.initMu.Unlock()
		return err
	case classInitializing:
		if c.initThread == t {
			c.initMu.Unlock()
			return nil
		}
		done := c.initDone
		c.initMu.Unlock()
		<-done
		return c.initialize(vm, t)
	}
	c.state = classInitializing
	c.initThread = t
	c.initDone = make(chan struct{})
	c.initMu.Unlock()

	var err error
	if c.Super != nil {
		err = c.Super.initialize(vm, t)
	}
	if err == nil {
		if clinit := c.DeclaredMethod("<clinit>", "()V"); clinit != nil {
			_, err = vm.executeMethod(t, clinit, nil)
		}
	}

	c.initMu.Lock()
	if err != nil {
		c.state = classInitFailed
		c.initErr = fmt.Errorf("initializing %s: %w", c.Name, err)
		err = c.initErr
	} else {
		c.state = classInitialized
	}
	c.initThread = nil
	close(c.initDone)
	c.initMu.Unlock()
	return err
}
