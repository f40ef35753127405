package invoker

import (
	"fmt"
	"strings"

	"github.com/daimatz/invokergen/pkg/classfile"
)

// Visibility is the access level of a target method.
type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Package
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Package:
		return "package"
	case Private:
		return "private"
	}
	return fmt.Sprintf("Visibility(%d)", v)
}

// VisibilityOf derives the visibility from method access flags.
func VisibilityOf(flags uint16) Visibility {
	switch {
	case flags&classfile.AccPublic != 0:
		return Public
	case flags&classfile.AccProtected != 0:
		return Protected
	case flags&classfile.AccPrivate != 0:
		return Private
	}
	return Package
}

// Descriptor describes one target method. It is immutable: accessors
// return copies.
type Descriptor struct {
	owner      Type
	ownerIface bool
	name       string
	params     []Type
	ret        Type
	static     bool
	visibility Visibility
}

// DescriptorOption configures NewDescriptor.
type DescriptorOption func(*Descriptor)

// Static marks the target as a static method.
func Static() DescriptorOption {
	return func(d *Descriptor) { d.static = true }
}

// WithVisibility sets the access level of the target. The default is Public.
func WithVisibility(v Visibility) DescriptorOption {
	return func(d *Descriptor) { d.visibility = v }
}

// OnInterface marks the owner as an interface type.
func OnInterface() DescriptorOption {
	return func(d *Descriptor) { d.ownerIface = true }
}

// NewDescriptor builds a descriptor for owner.name(params) returning ret.
// The params slice is copied. Private targets can be described; Validate
// reports them.
func NewDescriptor(owner Type, name string, params []Type, ret Type, opts ...DescriptorOption) (Descriptor, error) {
	d := Descriptor{
		owner:  owner,
		name:   name,
		params: append([]Type(nil), params...),
		ret:    ret,
	}
	for _, opt := range opts {
		opt(&d)
	}

	if owner.IsArray() || owner.Kind() != KindReference {
		return Descriptor{}, fmt.Errorf("descriptor: owner %s is not a class type", owner)
	}
	switch name {
	case "":
		return Descriptor{}, fmt.Errorf("descriptor: empty method name")
	case "<init>", "<clinit>":
		return Descriptor{}, fmt.Errorf("descriptor: %s is not a method", name)
	}
	if strings.ContainsAny(name, ".;[/<>") {
		return Descriptor{}, fmt.Errorf("descriptor: illegal method name %q", name)
	}
	for i, p := range d.params {
		if p.IsVoid() {
			return Descriptor{}, fmt.Errorf("descriptor: parameter %d of %s is void", i, name)
		}
	}
	return d, nil
}

// MustDescriptor is NewDescriptor that panics on error.
func MustDescriptor(owner Type, name string, params []Type, ret Type, opts ...DescriptorOption) Descriptor {
	d, err := NewDescriptor(owner, name, params, ret, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Descriptor) Owner() Type            { return d.owner }
func (d Descriptor) OwnerIsInterface() bool { return d.ownerIface }
func (d Descriptor) Name() string           { return d.name }
func (d Descriptor) Return() Type           { return d.ret }
func (d Descriptor) IsStatic() bool         { return d.static }
func (d Descriptor) Visibility() Visibility { return d.visibility }
func (d Descriptor) NumParams() int         { return len(d.params) }
func (d Descriptor) Param(i int) Type       { return d.params[i] }
func (d Descriptor) Params() []Type         { return append([]Type(nil), d.params...) }

// MethodDescriptor renders the JVM method descriptor, e.g. "(S)V".
func (d Descriptor) MethodDescriptor() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range d.params {
		sb.WriteString(p.Descriptor())
	}
	sb.WriteByte(')')
	sb.WriteString(d.ret.Descriptor())
	return sb.String()
}

// ArgSlots returns the local variable slots taken by the call's operands,
// including the receiver of an instance method.
func (d Descriptor) ArgSlots() int {
	n := 0
	if !d.static {
		n++
	}
	for _, p := range d.params {
		n += p.Slots()
	}
	return n
}

// Validate reports a target that cannot be reached by a direct call.
func (d Descriptor) Validate() error {
	if d.visibility == Private {
		return &RejectedTargetError{Target: d.String()}
	}
	return nil
}

// String renders the target in source form, e.g.
// "public static void com.example.Bean.test(short)".
func (d Descriptor) String() string {
	var sb strings.Builder
	if d.visibility != Package {
		sb.WriteString(d.visibility.String() + " ")
	}
	if d.static {
		sb.WriteString("static ")
	}
	sb.WriteString(d.ret.String() + " " + d.owner.ClassName() + "." + d.name + "(")
	for i, p := range d.params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
