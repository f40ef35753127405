package invoker

import (
	"fmt"
	"strings"
)

// Kind classifies a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindChar
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindReference
)

type primitiveInfo struct {
	name       string // source spelling, also the prefix of the unboxing method
	descriptor string
	box        string // internal name of the boxed counterpart
}

var primitives = [...]primitiveInfo{
	KindVoid:    {"void", "V", ""},
	KindBoolean: {"boolean", "Z", "java/lang/Boolean"},
	KindChar:    {"char", "C", "java/lang/Character"},
	KindByte:    {"byte", "B", "java/lang/Byte"},
	KindShort:   {"short", "S", "java/lang/Short"},
	KindInt:     {"int", "I", "java/lang/Integer"},
	KindLong:    {"long", "J", "java/lang/Long"},
	KindFloat:   {"float", "F", "java/lang/Float"},
	KindDouble:  {"double", "D", "java/lang/Double"},
}

const objectClass = "java/lang/Object"

// Type is a semantic type tag: a primitive kind, void, or a reference to a
// class, optionally as an array of dims dimensions. Array types are
// references whatever their element kind.
type Type struct {
	elem  Kind
	class string // internal name when elem is KindReference
	dims  int
}

// Predeclared types.
var (
	Void    = Type{elem: KindVoid}
	Boolean = Type{elem: KindBoolean}
	Char    = Type{elem: KindChar}
	Byte    = Type{elem: KindByte}
	Short   = Type{elem: KindShort}
	Int     = Type{elem: KindInt}
	Long    = Type{elem: KindLong}
	Float   = Type{elem: KindFloat}
	Double  = Type{elem: KindDouble}
	Object  = Reference(objectClass)
	String  = Reference("java/lang/String")
)

// Reference returns the class type with the given internal name, e.g.
// "com/example/Bean".
func Reference(internalName string) Type {
	return Type{elem: KindReference, class: internalName}
}

// ArrayOf returns elem with dims more array dimensions.
func ArrayOf(elem Type, dims int) Type {
	elem.dims += dims
	return elem
}

// Kind returns KindReference for arrays and class types, the primitive kind
// otherwise.
func (t Type) Kind() Kind {
	if t.dims > 0 {
		return KindReference
	}
	return t.elem
}

// Dims returns the number of array dimensions.
func (t Type) Dims() int { return t.dims }

// Elem returns the element type of an array, t itself otherwise.
func (t Type) Elem() Type {
	t.dims = 0
	return t
}

func (t Type) IsVoid() bool      { return t.dims == 0 && t.elem == KindVoid }
func (t Type) IsPrimitive() bool { return t.dims == 0 && t.elem != KindVoid && t.elem != KindReference }
func (t Type) IsArray() bool     { return t.dims > 0 }
func (t Type) IsReference() bool { return t.Kind() == KindReference }

// IsObject reports whether t is exactly java/lang/Object.
func (t Type) IsObject() bool {
	return t.dims == 0 && t.elem == KindReference && t.class == objectClass
}

// Slots returns the local variable slots a value of t occupies.
func (t Type) Slots() int {
	switch {
	case t.IsVoid():
		return 0
	case t.dims == 0 && (t.elem == KindLong || t.elem == KindDouble):
		return 2
	}
	return 1
}

// Descriptor returns the field descriptor of t, e.g. "I", "[J" or
// "Ljava/lang/String;".
func (t Type) Descriptor() string {
	var sb strings.Builder
	for i := 0; i < t.dims; i++ {
		sb.WriteByte('[')
	}
	if t.elem == KindReference {
		sb.WriteString("L" + t.class + ";")
	} else {
		sb.WriteString(primitives[t.elem].descriptor)
	}
	return sb.String()
}

// InternalName returns the operand form used by checkcast: the class name
// for class types, the descriptor for arrays.
func (t Type) InternalName() string {
	if t.dims == 0 && t.elem == KindReference {
		return t.class
	}
	return t.Descriptor()
}

// ClassName returns the dotted binary name of a class type, e.g.
// "com.example.Bean$Inner".
func (t Type) ClassName() string {
	return strings.ReplaceAll(t.class, "/", ".")
}

// SimpleName returns the unqualified name of the element type: "int",
// "String", "Inner" for a nested class com/example/Bean$Inner.
func (t Type) SimpleName() string {
	if t.elem != KindReference {
		return primitives[t.elem].name
	}
	name := t.class[strings.LastIndexByte(t.class, '/')+1:]
	return name[strings.LastIndexByte(name, '$')+1:]
}

// Label returns the simple name with "Array" appended once per dimension,
// so that int and int[] never produce the same label.
func (t Type) Label() string {
	return t.SimpleName() + strings.Repeat("Array", t.dims)
}

// Boxed returns the boxed counterpart of a primitive type.
func (t Type) Boxed() (Type, bool) {
	if !t.IsPrimitive() {
		return Type{}, false
	}
	return Reference(primitives[t.elem].box), true
}

// unboxMethod returns the name of the Number/Boolean/Character method that
// yields the primitive value, e.g. "intValue".
func (t Type) unboxMethod() string {
	return primitives[t.elem].name + "Value"
}

// String returns the source spelling of t, e.g. "int[]" or "java.lang.String".
func (t Type) String() string {
	var base string
	if t.elem == KindReference {
		base = t.ClassName()
	} else {
		base = primitives[t.elem].name
	}
	return base + strings.Repeat("[]", t.dims)
}

// ParseType parses a type in source spelling: "int", "long[][]",
// "java.lang.String", "com/example/Bean[]". "void" is accepted.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	base, dims := s, 0
	for strings.HasSuffix(base, "[]") {
		base = strings.TrimSpace(base[:len(base)-2])
		dims++
	}
	if base == "" {
		return Type{}, fmt.Errorf("invalid type %q", s)
	}
	for k, p := range primitives {
		if p.name == base {
			if k == int(KindVoid) && dims > 0 {
				return Type{}, fmt.Errorf("invalid type %q: array of void", s)
			}
			return Type{elem: Kind(k), dims: dims}, nil
		}
	}
	internal := strings.ReplaceAll(base, ".", "/")
	if err := checkClassName(internal); err != nil {
		return Type{}, fmt.Errorf("invalid type %q: %w", s, err)
	}
	return ArrayOf(Reference(internal), dims), nil
}

// MustParseType is ParseType that panics on error.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDescriptorType parses a field descriptor, or "V".
func ParseDescriptorType(desc string) (Type, error) {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	rest := desc[dims:]
	if rest == "" {
		return Type{}, fmt.Errorf("invalid descriptor %q", desc)
	}
	if rest[0] == 'L' {
		if !strings.HasSuffix(rest, ";") {
			return Type{}, fmt.Errorf("invalid descriptor %q: unterminated class name", desc)
		}
		internal := rest[1 : len(rest)-1]
		if err := checkClassName(internal); err != nil {
			return Type{}, fmt.Errorf("invalid descriptor %q: %w", desc, err)
		}
		return ArrayOf(Reference(internal), dims), nil
	}
	for k, p := range primitives {
		if p.descriptor == rest {
			if k == int(KindVoid) && dims > 0 {
				break
			}
			return Type{elem: Kind(k), dims: dims}, nil
		}
	}
	return Type{}, fmt.Errorf("invalid descriptor %q", desc)
}

func checkClassName(internal string) error {
	if internal == "" {
		return fmt.Errorf("empty class name")
	}
	for _, part := range strings.Split(internal, "/") {
		if part == "" {
			return fmt.Errorf("empty package segment in %s", internal)
		}
		if strings.ContainsAny(part, ";[<>() ") {
			return fmt.Errorf("illegal character in %s", internal)
		}
	}
	return nil
}
