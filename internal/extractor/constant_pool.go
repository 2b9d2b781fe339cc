package extractor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

var errTruncated = errors.New("unexpected end of data")

// reader is a big-endian cursor with a sticky error; reads past the end
// return zero values and record errTruncated.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = errTruncated
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u1() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u2() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u4() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type cpEntry struct {
	tag  uint8
	a, b uint16
	utf8 string
}

// memberRef is a resolved Fieldref/Methodref/InterfaceMethodref.
type memberRef struct {
	tag        uint8
	owner      string
	name       string
	descriptor string
}

// constantPool resolves symbolic references. Lookups record the first
// failure in err and return zero values, mirroring reader.
type constantPool struct {
	entries []cpEntry
	err     error
}

func readConstantPool(r *reader) (*constantPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	if count == 0 {
		return nil, errors.New("constant pool count is zero")
	}

	cp := &constantPool{entries: make([]cpEntry, count)}
	for i := 1; i < count; i++ {
		tag := r.u1()
		e := cpEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n := int(r.u2())
			e.utf8 = decodeModifiedUTF8(r.take(n))
		case tagInteger, tagFloat:
			r.take(4)
		case tagLong, tagDouble:
			r.take(8)
			cp.entries[i] = e
			// Eight-byte constants occupy two slots; the second is unusable.
			i++
			continue
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.a = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			e.a = r.u2()
			e.b = r.u2()
		case tagMethodHandle:
			e.a = uint16(r.u1())
			e.b = r.u2()
		default:
			if r.err == nil {
				return nil, fmt.Errorf("constant pool entry %d: unknown tag %d", i, tag)
			}
		}
		if r.err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", i, r.err)
		}
		cp.entries[i] = e
	}
	return cp, nil
}

func (cp *constantPool) fail(format string, args ...any) {
	if cp.err == nil {
		cp.err = fmt.Errorf(format, args...)
	}
}

func (cp *constantPool) entry(idx uint16, tag uint8) cpEntry {
	if idx == 0 || int(idx) >= len(cp.entries) {
		cp.fail("constant pool index %d out of range", idx)
		return cpEntry{}
	}
	e := cp.entries[idx]
	if e.tag != tag {
		cp.fail("constant pool index %d: expected tag %d, got %d", idx, tag, e.tag)
		return cpEntry{}
	}
	return e
}

func (cp *constantPool) utf8(idx uint16) string {
	return cp.entry(idx, tagUtf8).utf8
}

// className returns the dotted name of a Class constant.
func (cp *constantPool) className(idx uint16) string {
	e := cp.entry(idx, tagClass)
	if cp.err != nil {
		return ""
	}
	name, err := classConstantName(cp.utf8(e.a))
	if err != nil {
		cp.fail("class constant %d: %v", idx, err)
		return ""
	}
	return name
}

func (cp *constantPool) memberRef(idx uint16) memberRef {
	if idx == 0 || int(idx) >= len(cp.entries) {
		cp.fail("constant pool index %d out of range", idx)
		return memberRef{}
	}
	e := cp.entries[idx]
	switch e.tag {
	case tagFieldref, tagMethodref, tagInterfaceMethodref:
	default:
		cp.fail("constant pool index %d: tag %d is not a member reference", idx, e.tag)
		return memberRef{}
	}
	nat := cp.entry(e.b, tagNameAndType)
	return memberRef{
		tag:        e.tag,
		owner:      cp.className(e.a),
		name:       cp.utf8(nat.a),
		descriptor: cp.utf8(nat.b),
	}
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8: NUL is encoded as
// two bytes and supplementary characters as surrogate pairs.
func decodeModifiedUTF8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}
	return string(utf16.Decode(units))
}
