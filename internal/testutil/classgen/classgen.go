// Package classgen assembles minimal class files for tests. It emits just
// enough structure for the extractor: constant pool, header, members, Code
// with LineNumberTable, and SourceFile. Bytecode is never verified.
package classgen

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
)

// Access flags used by fixtures.
const (
	AccPublic    uint16 = 0x0001
	AccPrivate   uint16 = 0x0002
	AccStatic    uint16 = 0x0008
	AccFinal     uint16 = 0x0010
	AccSuper     uint16 = 0x0020
	AccInterface uint16 = 0x0200
	AccAbstract  uint16 = 0x0400
	AccEnum      uint16 = 0x4000
)

// Object is the default superclass.
const Object = "java.lang.Object"

type pool struct {
	buf   bytes.Buffer
	index map[string]uint16
	next  uint16
}

func newPool() *pool {
	return &pool{index: make(map[string]uint16), next: 1}
}

func (p *pool) add(key string, slots uint16, write func(b *bytes.Buffer)) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := p.next
	write(&p.buf)
	p.index[key] = idx
	p.next += slots
	return idx
}

func (p *pool) utf8(s string) uint16 {
	return p.add("utf8:"+s, 1, func(b *bytes.Buffer) {
		b.WriteByte(1)
		writeU2(b, uint16(len(s)))
		b.WriteString(s)
	})
}

func (p *pool) class(name string) uint16 {
	name = internalName(name)
	nameIdx := p.utf8(name)
	return p.add("class:"+name, 1, func(b *bytes.Buffer) {
		b.WriteByte(7)
		writeU2(b, nameIdx)
	})
}

func (p *pool) nameAndType(name, desc string) uint16 {
	n, d := p.utf8(name), p.utf8(desc)
	return p.add("nat:"+name+":"+desc, 1, func(b *bytes.Buffer) {
		b.WriteByte(12)
		writeU2(b, n)
		writeU2(b, d)
	})
}

func (p *pool) ref(tag byte, owner, name, desc string) uint16 {
	c, nat := p.class(owner), p.nameAndType(name, desc)
	key := "ref:" + strconv.Itoa(int(tag)) + ":" + internalName(owner) + "." + name + ":" + desc
	return p.add(key, 1, func(b *bytes.Buffer) {
		b.WriteByte(tag)
		writeU2(b, c)
		writeU2(b, nat)
	})
}

func (p *pool) long(v int64) uint16 {
	return p.add("long:"+strconv.FormatInt(v, 10), 2, func(b *bytes.Buffer) {
		b.WriteByte(5)
		_ = binary.Write(b, binary.BigEndian, v)
	})
}

type field struct {
	flags      uint16
	name, desc string
}

// Class is a class file under construction.
type Class struct {
	name       string
	super      string
	interfaces []string
	flags      uint16
	major      uint16
	sourceFile string
	pool       *pool
	fields     []field
	methods    []*Method
}

// New starts a public class extending java.lang.Object. Names may be dotted
// or slash-separated.
func New(name string) *Class {
	return &Class{
		name:  name,
		super: Object,
		flags: AccPublic | AccSuper,
		major: 61,
		pool:  newPool(),
	}
}

// Extends sets the superclass; an empty name emits no superclass.
func (c *Class) Extends(name string) *Class {
	c.super = name
	return c
}

func (c *Class) Implements(names ...string) *Class {
	c.interfaces = append(c.interfaces, names...)
	return c
}

// Interface marks the class as an abstract interface.
func (c *Class) Interface() *Class {
	c.flags = AccPublic | AccInterface | AccAbstract
	return c
}

func (c *Class) Flags(flags uint16) *Class {
	c.flags = flags
	return c
}

func (c *Class) Version(major uint16) *Class {
	c.major = major
	return c
}

func (c *Class) Source(file string) *Class {
	c.sourceFile = file
	return c
}

func (c *Class) Field(flags uint16, name, desc string) *Class {
	c.fields = append(c.fields, field{flags: flags, name: name, desc: desc})
	return c
}

// Method adds a method; abstract and native methods get no Code attribute.
func (c *Class) Method(flags uint16, name, desc string) *Method {
	m := &Method{class: c, flags: flags, name: name, desc: desc}
	c.methods = append(c.methods, m)
	return m
}

// Method is a method body under construction.
type Method struct {
	class *Class
	flags uint16
	name  string
	desc  string
	code  bytes.Buffer
	lines [][2]uint16
}

// Line starts a new line number entry at the current offset.
func (m *Method) Line(n int) *Method {
	m.lines = append(m.lines, [2]uint16{uint16(m.code.Len()), uint16(n)})
	return m
}

// Op appends raw bytecode.
func (m *Method) Op(b ...byte) *Method {
	m.code.Write(b)
	return m
}

func (m *Method) refOp(op, tag byte, owner, name, desc string) *Method {
	m.code.WriteByte(op)
	writeU2(&m.code, m.class.pool.ref(tag, owner, name, desc))
	return m
}

func (m *Method) GetField(owner, name, desc string) *Method {
	return m.refOp(0xb4, 9, owner, name, desc)
}

func (m *Method) PutField(owner, name, desc string) *Method {
	return m.refOp(0xb5, 9, owner, name, desc)
}

func (m *Method) GetStatic(owner, name, desc string) *Method {
	return m.refOp(0xb2, 9, owner, name, desc)
}

func (m *Method) PutStatic(owner, name, desc string) *Method {
	return m.refOp(0xb3, 9, owner, name, desc)
}

func (m *Method) InvokeVirtual(owner, name, desc string) *Method {
	return m.refOp(0xb6, 10, owner, name, desc)
}

func (m *Method) InvokeSpecial(owner, name, desc string) *Method {
	return m.refOp(0xb7, 10, owner, name, desc)
}

func (m *Method) InvokeStatic(owner, name, desc string) *Method {
	return m.refOp(0xb8, 10, owner, name, desc)
}

func (m *Method) InvokeInterface(owner, name, desc string, argSlots byte) *Method {
	m.refOp(0xb9, 11, owner, name, desc)
	m.code.Write([]byte{argSlots, 0})
	return m
}

// New emits new + dup + invokespecial <init>()V for owner.
func (m *Method) New(owner string) *Method {
	m.code.WriteByte(0xbb)
	writeU2(&m.code, m.class.pool.class(owner))
	m.code.WriteByte(0x59)
	return m.InvokeSpecial(owner, "<init>", "()V")
}

// LoadLong emits ldc2_w with a long constant (a two-slot pool entry).
func (m *Method) LoadLong(v int64) *Method {
	m.code.WriteByte(0x14)
	writeU2(&m.code, m.class.pool.long(v))
	return m
}

// TableSwitch emits a tableswitch over [low, high] with zero jump offsets.
func (m *Method) TableSwitch(low, high int32) *Method {
	m.code.WriteByte(0xaa)
	for m.code.Len()%4 != 0 {
		m.code.WriteByte(0)
	}
	_ = binary.Write(&m.code, binary.BigEndian, int32(0))
	_ = binary.Write(&m.code, binary.BigEndian, low)
	_ = binary.Write(&m.code, binary.BigEndian, high)
	for i := low; i <= high; i++ {
		_ = binary.Write(&m.code, binary.BigEndian, int32(0))
	}
	return m
}

// Return emits a void return.
func (m *Method) Return() *Method {
	return m.Op(0xb1)
}

// Done returns to the class builder.
func (m *Method) Done() *Class {
	return m.class
}

// Bytes serializes the class file.
func (c *Class) Bytes() []byte {
	p := c.pool
	thisIdx := p.class(c.name)
	var superIdx uint16
	if c.super != "" {
		superIdx = p.class(c.super)
	}
	ifaceIdx := make([]uint16, len(c.interfaces))
	for i, name := range c.interfaces {
		ifaceIdx[i] = p.class(name)
	}

	var fields bytes.Buffer
	writeU2(&fields, uint16(len(c.fields)))
	for _, f := range c.fields {
		writeU2(&fields, f.flags)
		writeU2(&fields, p.utf8(f.name))
		writeU2(&fields, p.utf8(f.desc))
		writeU2(&fields, 0)
	}

	var methods bytes.Buffer
	writeU2(&methods, uint16(len(c.methods)))
	for _, m := range c.methods {
		writeU2(&methods, m.flags)
		writeU2(&methods, p.utf8(m.name))
		writeU2(&methods, p.utf8(m.desc))
		if m.flags&(AccAbstract|0x0100) != 0 {
			writeU2(&methods, 0)
			continue
		}
		writeU2(&methods, 1)
		methods.Write(m.codeAttribute())
	}

	var attrs bytes.Buffer
	if c.sourceFile != "" {
		writeU2(&attrs, 1)
		writeU2(&attrs, p.utf8("SourceFile"))
		writeU4(&attrs, 2)
		writeU2(&attrs, p.utf8(c.sourceFile))
	} else {
		writeU2(&attrs, 0)
	}

	var out bytes.Buffer
	writeU4(&out, 0xCAFEBABE)
	writeU2(&out, 0)
	writeU2(&out, c.major)
	writeU2(&out, p.next)
	out.Write(p.buf.Bytes())
	writeU2(&out, c.flags)
	writeU2(&out, thisIdx)
	writeU2(&out, superIdx)
	writeU2(&out, uint16(len(ifaceIdx)))
	for _, idx := range ifaceIdx {
		writeU2(&out, idx)
	}
	out.Write(fields.Bytes())
	out.Write(methods.Bytes())
	out.Write(attrs.Bytes())
	return out.Bytes()
}

func (m *Method) codeAttribute() []byte {
	p := m.class.pool
	code := m.code.Bytes()
	if len(code) == 0 {
		code = []byte{0xb1}
	}

	var body bytes.Buffer
	writeU2(&body, 8) // max_stack
	writeU2(&body, 8) // max_locals
	writeU4(&body, uint32(len(code)))
	body.Write(code)
	writeU2(&body, 0) // exception table
	if len(m.lines) == 0 {
		writeU2(&body, 0)
	} else {
		writeU2(&body, 1)
		writeU2(&body, p.utf8("LineNumberTable"))
		writeU4(&body, uint32(2+4*len(m.lines)))
		writeU2(&body, uint16(len(m.lines)))
		for _, l := range m.lines {
			writeU2(&body, l[0])
			writeU2(&body, l[1])
		}
	}

	var attr bytes.Buffer
	writeU2(&attr, p.utf8("Code"))
	writeU4(&attr, uint32(body.Len()))
	attr.Write(body.Bytes())
	return attr.Bytes()
}

func internalName(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return strings.ReplaceAll(name, ".", "/")
}

func writeU2(b *bytes.Buffer, v uint16) {
	_ = binary.Write(b, binary.BigEndian, v)
}

func writeU4(b *bytes.Buffer, v uint32) {
	_ = binary.Write(b, binary.BigEndian, v)
}
