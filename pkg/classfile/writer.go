package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Write serializes cf into the class file format. Names, descriptors and
// attribute names missing from the constant pool are appended to it, so the
// pool of cf is not modified; the written pool is a superset of it.
func Write(cf *ClassFile) ([]byte, error) {
	pool := PoolBuilderFrom(cf.ConstantPool)

	var body bytes.Buffer
	w := &classWriter{buf: &body}

	w.u2(cf.AccessFlags)
	w.u2(cf.ThisClass)
	w.u2(cf.SuperClass)
	w.u2(uint16(len(cf.Interfaces)))
	for _, idx := range cf.Interfaces {
		w.u2(idx)
	}

	w.u2(uint16(len(cf.Fields)))
	for i := range cf.Fields {
		f := &cf.Fields[i]
		w.u2(f.AccessFlags)
		w.u2(pool.Utf8(f.Name))
		w.u2(pool.Utf8(f.Descriptor))
		w.attributes(pool, f.Attributes)
	}

	w.u2(uint16(len(cf.Methods)))
	for i := range cf.Methods {
		m := &cf.Methods[i]
		w.u2(m.AccessFlags)
		w.u2(pool.Utf8(m.Name))
		w.u2(pool.Utf8(m.Descriptor))

		attrs := make([]AttributeInfo, 0, len(m.Attributes)+1)
		if m.Code != nil {
			code, err := encodeCodeAttribute(m.Code)
			if err != nil {
				return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
			}
			attrs = append(attrs, AttributeInfo{Name: "Code", Data: code})
		}
		for _, a := range m.Attributes {
			if a.Name == "Code" && m.Code != nil {
				continue
			}
			attrs = append(attrs, a)
		}
		w.attributes(pool, attrs)
	}

	classAttrs := make([]AttributeInfo, 0, len(cf.Attributes)+1)
	if cf.SourceFile != "" {
		data := make([]byte, 2)
		binary.BigEndian.PutUint16(data, pool.Utf8(cf.SourceFile))
		classAttrs = append(classAttrs, AttributeInfo{Name: "SourceFile", Data: data})
	}
	classAttrs = append(classAttrs, cf.Attributes...)
	w.attributes(pool, classAttrs)

	if err := pool.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	hw := &classWriter{buf: &out}
	hw.u4(classMagic)
	hw.u2(cf.MinorVersion)
	hw.u2(cf.MajorVersion)
	if err := writeConstantPool(&out, pool.Entries()); err != nil {
		return nil, fmt.Errorf("writing constant pool: %w", err)
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

type classWriter struct {
	buf *bytes.Buffer
}

func (w *classWriter) u1(v uint8) { w.buf.WriteByte(v) }

func (w *classWriter) u2(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *classWriter) u4(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *classWriter) attributes(pool *PoolBuilder, attrs []AttributeInfo) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(pool.Utf8(a.Name))
		w.u4(uint32(len(a.Data)))
		w.buf.Write(a.Data)
	}
}

func encodeCodeAttribute(c *CodeAttribute) ([]byte, error) {
	if len(c.Code) == 0 || len(c.Code) >= 65536 {
		return nil, fmt.Errorf("code length %d out of range", len(c.Code))
	}
	var buf bytes.Buffer
	w := &classWriter{buf: &buf}
	w.u2(c.MaxStack)
	w.u2(c.MaxLocals)
	w.u4(uint32(len(c.Code)))
	buf.Write(c.Code)
	w.u2(uint16(len(c.ExceptionHandlers)))
	for _, h := range c.ExceptionHandlers {
		w.u2(h.StartPC)
		w.u2(h.EndPC)
		w.u2(h.HandlerPC)
		w.u2(h.CatchType)
	}
	w.u2(0) // nested attributes (LineNumberTable etc.) are not written
	return buf.Bytes(), nil
}

func writeConstantPool(out io.Writer, pool []ConstantPoolEntry) error {
	var buf bytes.Buffer
	w := &classWriter{buf: &buf}
	w.u2(uint16(len(pool)))
	for i := 1; i < len(pool); i++ {
		entry := pool[i]
		if entry == nil {
			continue // second slot of a long or double
		}
		w.u1(entry.Tag())
		switch c := entry.(type) {
		case *ConstantUtf8:
			if len(c.Value) > 0xFFFF {
				return fmt.Errorf("Utf8 at index %d too long", i)
			}
			w.u2(uint16(len(c.Value)))
			buf.WriteString(c.Value)
		case *ConstantInteger:
			w.u4(uint32(c.Value))
		case *ConstantFloat:
			w.u4(math.Float32bits(c.Value))
		case *ConstantLong:
			w.u4(uint32(uint64(c.Value) >> 32))
			w.u4(uint32(c.Value))
		case *ConstantDouble:
			bits := math.Float64bits(c.Value)
			w.u4(uint32(bits >> 32))
			w.u4(uint32(bits))
		case *ConstantClass:
			w.u2(c.NameIndex)
		case *ConstantString:
			w.u2(c.StringIndex)
		case *ConstantFieldref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantMethodref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantInterfaceMethodref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantNameAndType:
			w.u2(c.NameIndex)
			w.u2(c.DescriptorIndex)
		case *constantPlaceholder:
			buf.Write(c.data)
		default:
			return fmt.Errorf("unsupported constant pool entry at index %d (tag=%d)", i, entry.Tag())
		}
	}
	_, err := out.Write(buf.Bytes())
	return err
}
