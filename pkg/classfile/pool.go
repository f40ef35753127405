package classfile

import (
	"fmt"
	"math"
)

// maxPoolCount is the largest constant_pool_count a class file can carry.
const maxPoolCount = 0xFFFF

// PoolBuilder accumulates constant pool entries and deduplicates them.
// Index 0 is reserved, exactly like the pools returned by Parse.
type PoolBuilder struct {
	entries []ConstantPoolEntry
	index   map[string]uint16
}

// NewPoolBuilder returns an empty builder.
func NewPoolBuilder() *PoolBuilder {
	return &PoolBuilder{
		entries: []ConstantPoolEntry{nil},
		index:   make(map[string]uint16),
	}
}

// PoolBuilderFrom seeds a builder with an existing pool. Existing indices are
// preserved, so a parsed class can be extended and written back.
func PoolBuilderFrom(pool []ConstantPoolEntry) *PoolBuilder {
	b := NewPoolBuilder()
	if len(pool) == 0 {
		return b
	}
	b.entries = make([]ConstantPoolEntry, len(pool))
	copy(b.entries, pool)
	for i := 1; i < len(b.entries); i++ {
		if b.entries[i] == nil {
			continue
		}
		if key, ok := b.keyOf(b.entries[i]); ok {
			if _, dup := b.index[key]; !dup {
				b.index[key] = uint16(i)
			}
		}
	}
	return b
}

// Entries returns the 1-indexed pool.
func (b *PoolBuilder) Entries() []ConstantPoolEntry {
	return b.entries
}

// Count returns constant_pool_count, i.e. the number of slots including slot 0.
func (b *PoolBuilder) Count() int {
	return len(b.entries)
}

// Err reports whether the pool outgrew the class file format.
func (b *PoolBuilder) Err() error {
	if len(b.entries) > maxPoolCount {
		return fmt.Errorf("constant pool too large: %d entries", len(b.entries))
	}
	return nil
}

func (b *PoolBuilder) add(key string, e ConstantPoolEntry) uint16 {
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := uint16(len(b.entries))
	b.entries = append(b.entries, e)
	if e.Tag() == TagLong || e.Tag() == TagDouble {
		b.entries = append(b.entries, nil) // 8-byte constants take two slots
	}
	b.index[key] = idx
	return idx
}

// Utf8 adds a CONSTANT_Utf8 entry.
func (b *PoolBuilder) Utf8(s string) uint16 {
	return b.add("U"+s, &ConstantUtf8{Value: s})
}

// Class adds a CONSTANT_Class entry for an internal name ("java/lang/Object"
// or an array descriptor such as "[I").
func (b *PoolBuilder) Class(name string) uint16 {
	nameIdx := b.Utf8(name)
	return b.add("C"+name, &ConstantClass{NameIndex: nameIdx})
}

// String adds a CONSTANT_String entry.
func (b *PoolBuilder) String(s string) uint16 {
	idx := b.Utf8(s)
	return b.add("S"+s, &ConstantString{StringIndex: idx})
}

// Integer adds a CONSTANT_Integer entry.
func (b *PoolBuilder) Integer(v int32) uint16 {
	return b.add(fmt.Sprintf("I%d", v), &ConstantInteger{Value: v})
}

// Float adds a CONSTANT_Float entry.
func (b *PoolBuilder) Float(v float32) uint16 {
	return b.add(fmt.Sprintf("F%08x", math.Float32bits(v)), &ConstantFloat{Value: v})
}

// Long adds a CONSTANT_Long entry.
func (b *PoolBuilder) Long(v int64) uint16 {
	return b.add(fmt.Sprintf("J%d", v), &ConstantLong{Value: v})
}

// Double adds a CONSTANT_Double entry.
func (b *PoolBuilder) Double(v float64) uint16 {
	return b.add(fmt.Sprintf("D%016x", math.Float64bits(v)), &ConstantDouble{Value: v})
}

// NameAndType adds a CONSTANT_NameAndType entry.
func (b *PoolBuilder) NameAndType(name, descriptor string) uint16 {
	n := b.Utf8(name)
	d := b.Utf8(descriptor)
	return b.add("N"+name+":"+descriptor, &ConstantNameAndType{NameIndex: n, DescriptorIndex: d})
}

// Fieldref adds a CONSTANT_Fieldref entry.
func (b *PoolBuilder) Fieldref(class, name, descriptor string) uint16 {
	c := b.Class(class)
	nat := b.NameAndType(name, descriptor)
	return b.add("f"+class+"."+name+":"+descriptor, &ConstantFieldref{ClassIndex: c, NameAndTypeIndex: nat})
}

// Methodref adds a CONSTANT_Methodref entry.
func (b *PoolBuilder) Methodref(class, name, descriptor string) uint16 {
	c := b.Class(class)
	nat := b.NameAndType(name, descriptor)
	return b.add("m"+class+"."+name+":"+descriptor, &ConstantMethodref{ClassIndex: c, NameAndTypeIndex: nat})
}

// InterfaceMethodref adds a CONSTANT_InterfaceMethodref entry.
func (b *PoolBuilder) InterfaceMethodref(class, name, descriptor string) uint16 {
	c := b.Class(class)
	nat := b.NameAndType(name, descriptor)
	return b.add("i"+class+"."+name+":"+descriptor, &ConstantInterfaceMethodref{ClassIndex: c, NameAndTypeIndex: nat})
}

// keyOf computes the dedup key of an entry that is already in the pool.
// Composite keys need the referenced Utf8 values, so they are resolved here.
func (b *PoolBuilder) keyOf(e ConstantPoolEntry) (string, bool) {
	pool := b.entries
	switch c := e.(type) {
	case *ConstantUtf8:
		return "U" + c.Value, true
	case *ConstantInteger:
		return fmt.Sprintf("I%d", c.Value), true
	case *ConstantFloat:
		return fmt.Sprintf("F%08x", math.Float32bits(c.Value)), true
	case *ConstantLong:
		return fmt.Sprintf("J%d", c.Value), true
	case *ConstantDouble:
		return fmt.Sprintf("D%016x", math.Float64bits(c.Value)), true
	case *ConstantClass:
		name, err := GetUtf8(pool, c.NameIndex)
		if err != nil {
			return "", false
		}
		return "C" + name, true
	case *ConstantString:
		s, err := GetUtf8(pool, c.StringIndex)
		if err != nil {
			return "", false
		}
		return "S" + s, true
	case *ConstantNameAndType:
		name, err1 := GetUtf8(pool, c.NameIndex)
		desc, err2 := GetUtf8(pool, c.DescriptorIndex)
		if err1 != nil || err2 != nil {
			return "", false
		}
		return "N" + name + ":" + desc, true
	case *ConstantFieldref:
		class, name, desc, err := resolveMember(pool, c.ClassIndex, c.NameAndTypeIndex)
		if err != nil {
			return "", false
		}
		return "f" + class + "." + name + ":" + desc, true
	case *ConstantMethodref:
		class, name, desc, err := resolveMember(pool, c.ClassIndex, c.NameAndTypeIndex)
		if err != nil {
			return "", false
		}
		return "m" + class + "." + name + ":" + desc, true
	case *ConstantInterfaceMethodref:
		class, name, desc, err := resolveMember(pool, c.ClassIndex, c.NameAndTypeIndex)
		if err != nil {
			return "", false
		}
		return "i" + class + "." + name + ":" + desc, true
	}
	return "", false
}
