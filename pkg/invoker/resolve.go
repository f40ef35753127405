package invoker

import (
	"fmt"
	"strings"

	"github.com/daimatz/invokergen/pkg/vm"
)

// Resolve looks up the method name declared by owner whose parameter types
// are params, loading owner through scope. owner may be dotted or
// slash-separated. It fails with *ResolutionError.
func Resolve(scope *vm.Scope, owner, name string, params ...Type) (Descriptor, error) {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(p.Descriptor())
	}
	sb.WriteByte(')')
	return resolve(scope, owner, name, sb.String(), false)
}

// ResolveDescriptor looks up a declared method by its JVM method descriptor,
// e.g. "(S)V".
func ResolveDescriptor(scope *vm.Scope, owner, name, methodDescriptor string) (Descriptor, error) {
	return resolve(scope, owner, name, methodDescriptor, true)
}

// resolve matches want against the declared methods of owner: the whole
// descriptor when exact, only the parameter part otherwise.
func resolve(scope *vm.Scope, owner, name, want string, exact bool) (Descriptor, error) {
	owner = internalName(owner)
	fail := func(err error) (Descriptor, error) {
		return Descriptor{}, &ResolutionError{Owner: strings.ReplaceAll(owner, "/", "."), Method: name, Params: want, Err: err}
	}
	if scope == nil {
		return fail(errScopeUnavailable)
	}
	c, err := scope.LoadClass(owner)
	if err != nil {
		return fail(err)
	}
	for _, m := range c.DeclaredMethods() {
		if m.Name != name {
			continue
		}
		if exact && m.Descriptor != want || !exact && !strings.HasPrefix(m.Descriptor, want) {
			continue
		}
		d, err := DescriptorOf(m)
		if err != nil {
			return fail(err)
		}
		return d, nil
	}
	return fail(nil)
}

// DescriptorOf describes a loaded method.
func DescriptorOf(m *vm.Method) (Descriptor, error) {
	params := make([]Type, 0, len(m.ParamDescriptors()))
	for _, p := range m.ParamDescriptors() {
		t, err := ParseDescriptorType(p)
		if err != nil {
			return Descriptor{}, err
		}
		params = append(params, t)
	}
	ret, err := ParseDescriptorType(m.ReturnDescriptor())
	if err != nil {
		return Descriptor{}, err
	}

	opts := []DescriptorOption{WithVisibility(VisibilityOf(m.AccessFlags))}
	if m.IsStatic() {
		opts = append(opts, Static())
	}
	if m.Class.IsInterface() {
		opts = append(opts, OnInterface())
	}
	d, err := NewDescriptor(Reference(m.Class.Name), m.Name, params, ret, opts...)
	if err != nil {
		return Descriptor{}, fmt.Errorf("describe %s: %w", m, err)
	}
	return d, nil
}
