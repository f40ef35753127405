package invoker

import (
	"fmt"

	"github.com/daimatz/invokergen/pkg/vm"
)

// Invoker calls one target method through the generic calling convention:
// a receiver (null for static targets) and an array of boxed arguments in,
// a boxed result out. Void targets return null.
type Invoker interface {
	Invoke(receiver vm.Value, args []vm.Value) (vm.Value, error)
}

// MethodInvoker is an instance of a generated invoker class. It holds no
// mutable state and may be shared between goroutines.
type MethodInvoker struct {
	machine  *vm.VM
	instance *vm.JObject
	dispatch *vm.Method
	name     string
	target   Descriptor
}

var _ Invoker = (*MethodInvoker)(nil)

func newMethodInvoker(machine *vm.VM, obj *vm.JObject, name string, d Descriptor) (*MethodInvoker, error) {
	m := obj.Class.FindMethod(vm.InvokeName, vm.InvokeDescriptor)
	if m == nil || m.IsAbstract() {
		return nil, &InstantiationError{Name: name, Err: fmt.Errorf("%s has no %s%s", obj.ClassName(), vm.InvokeName, vm.InvokeDescriptor)}
	}
	return &MethodInvoker{machine: machine, instance: obj, dispatch: m, name: name, target: d}, nil
}

// Invoke runs the generated stub. Primitive values in receiver or args are
// boxed first; a nil args slice is passed as a null array. Host exceptions
// are returned as *vm.JavaException.
//
// The zero vm.Value is the int 0 and is passed as Integer 0, not null. Use
// vm.NullValue() for a null receiver or argument.
func (mi *MethodInvoker) Invoke(receiver vm.Value, args []vm.Value) (vm.Value, error) {
	argv := vm.NullValue()
	if args != nil {
		boxed := make([]vm.Value, len(args))
		for i, a := range args {
			boxed[i] = vm.MustBox(a)
		}
		argv = vm.RefValue(vm.ObjectArray(boxed...))
	}
	return mi.machine.Invoke(mi.dispatch, vm.RefValue(mi.instance), vm.MustBox(receiver), argv)
}

// Call is Invoke for Go values, converted with vm.Box and vm.Unbox.
func (mi *MethodInvoker) Call(receiver interface{}, args ...interface{}) (interface{}, error) {
	recv, err := vm.Box(receiver)
	if err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	values := make([]vm.Value, len(args))
	for i, a := range args {
		if values[i], err = vm.Box(a); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	ret, err := mi.Invoke(recv, values)
	if err != nil {
		return nil, err
	}
	return vm.Unbox(ret), nil
}

// ClassName returns the dotted binary name of the generated class.
func (mi *MethodInvoker) ClassName() string { return mi.name }

// Target returns the descriptor the invoker was generated for.
func (mi *MethodInvoker) Target() Descriptor { return mi.target }

// Object returns the host instance of the generated class.
func (mi *MethodInvoker) Object() *vm.JObject { return mi.instance }

// IsTypeMismatch reports whether err is a failed guarded downcast of the
// receiver or an argument.
func IsTypeMismatch(err error) bool {
	return vm.IsClassCast(err)
}
