package vm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/daimatz/invokergen/pkg/classfile"
)

// JObject represents a JVM object instance.
type JObject struct {
	Class *Class

	mu     sync.RWMutex
	fields map[string]Value
}

// NewObject allocates an instance of c with every declared instance field
// set to its zero value. Constructors are not run.
func NewObject(c *Class) *JObject {
	obj := &JObject{Class: c, fields: make(map[string]Value)}
	for k := c; k != nil; k = k.Super {
		for _, f := range k.instanceFields {
			if _, shadowed := obj.fields[f.Name]; !shadowed {
				obj.fields[f.Name] = zeroValue(f.Descriptor)
			}
		}
	}
	return obj
}

// ClassName returns the binary name of the object's class.
func (o *JObject) ClassName() string {
	if o.Class == nil {
		return ""
	}
	return o.Class.Name
}

// GetField returns the named field, or null if the object has no such field.
func (o *JObject) GetField(name string) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if v, ok := o.fields[name]; ok {
		return v
	}
	return NullValue()
}

// SetField stores v into the named field.
func (o *JObject) SetField(name string, v Value) {
	o.mu.Lock()
	o.fields[name] = v
	o.mu.Unlock()
}

func (o *JObject) String() string {
	return fmt.Sprintf("%s@%p", o.ClassName(), o)
}

// JArray represents a JVM array. Descriptor is the array's field
// descriptor, e.g. "[I" or "[Ljava/lang/String;".
type JArray struct {
	Descriptor string
	Elements   []Value
}

// NewArray allocates an array of the given descriptor with length zero values.
func NewArray(descriptor string, length int) *JArray {
	elems := make([]Value, length)
	zero := zeroValue(descriptor[1:])
	for i := range elems {
		elems[i] = zero
	}
	return &JArray{Descriptor: descriptor, Elements: elems}
}

// ObjectArray wraps values into a java/lang/Object[].
func ObjectArray(values ...Value) *JArray {
	elems := make([]Value, len(values))
	copy(elems, values)
	return &JArray{Descriptor: "[Ljava/lang/Object;", Elements: elems}
}

// ElementDescriptor returns the field descriptor of the array's elements.
func (a *JArray) ElementDescriptor() string {
	return a.Descriptor[1:]
}

// zeroValue returns the default value for a field descriptor.
func zeroValue(descriptor string) Value {
	switch descriptor {
	case "Z", "B", "C", "S", "I":
		return IntValue(0)
	case "J":
		return LongValue(0)
	case "F":
		return FloatValue(0)
	case "D":
		return DoubleValue(0)
	}
	return NullValue()
}

// arrayDescriptorOf turns a class reference as found in a CONSTANT_Class
// entry into a field descriptor: array names are already descriptors.
func arrayDescriptorOf(className string) string {
	if strings.HasPrefix(className, "[") {
		return className
	}
	return "L" + className + ";"
}

// primitiveArrayDescriptor maps a newarray atype operand to its descriptor.
func primitiveArrayDescriptor(atype uint8) (string, error) {
	switch atype {
	case 4:
		return "[Z", nil
	case 5:
		return "[C", nil
	case 6:
		return "[F", nil
	case 7:
		return "[D", nil
	case 8:
		return "[B", nil
	case 9:
		return "[S", nil
	case 10:
		return "[I", nil
	case 11:
		return "[J", nil
	}
	return "", fmt.Errorf("newarray: invalid atype %d", atype)
}

// instanceFieldsOf returns the instance fields declared by cf.
func instanceFieldsOf(cf *classfile.ClassFile) []classfile.FieldInfo {
	var out []classfile.FieldInfo
	for _, f := range cf.Fields {
		if f.AccessFlags&classfile.AccStatic == 0 {
			out = append(out, f)
		}
	}
	return out
}
