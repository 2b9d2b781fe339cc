package extractor

import (
	"fmt"

	"archcheck/internal/location"
)

const classMagic = 0xCAFEBABE

// Supported class-file major versions (Java 1.1 through Java 25).
const (
	MinMajorVersion = 45
	MaxMajorVersion = 69
)

// Attribute names the extractor interprets; all others are skipped.
const (
	attrCode            = "Code"
	attrLineNumberTable = "LineNumberTable"
	attrSourceFile      = "SourceFile"
)

const staticInitializerName = "<clinit>"

// Extractor decodes compiled modules. It holds no state between calls and
// is safe for concurrent use.
type Extractor struct {
	minMajor uint16
	maxMajor uint16
}

// NewExtractor creates an extractor accepting the supported version range.
func NewExtractor() *Extractor {
	return &Extractor{minMajor: MinMajorVersion, maxMajor: MaxMajorVersion}
}

// ExtractEntry reads one entry of a byte source and decodes it.
func (e *Extractor) ExtractEntry(entry location.Entry) (*Module, error) {
	data, err := entry.ReadAll()
	if err != nil {
		return nil, err
	}
	return e.Extract(data, entry.Location)
}

// Extract decodes one compiled module. Any structural problem yields a
// *MalformedModuleError.
func (e *Extractor) Extract(data []byte, loc location.Location) (*Module, error) {
	mod, err := e.decode(data, loc)
	if err != nil {
		return nil, &MalformedModuleError{Location: loc, Err: err}
	}
	return mod, nil
}

func (e *Extractor) decode(data []byte, loc location.Location) (*Module, error) {
	r := &reader{buf: data}

	if magic := r.u4(); r.err != nil || magic != classMagic {
		return nil, fmt.Errorf("bad magic number")
	}
	minor, major := r.u2(), r.u2()
	if r.err != nil {
		return nil, r.err
	}
	if major < e.minMajor || major > e.maxMajor {
		return nil, fmt.Errorf("unsupported format version %d.%d", major, minor)
	}

	cp, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	flags := AccessFlags(r.u2())
	thisIdx, superIdx := r.u2(), r.u2()
	if r.err != nil {
		return nil, r.err
	}

	mod := &Module{
		Name:     cp.className(thisIdx),
		Kind:     kindOf(flags),
		Flags:    flags,
		Version:  Version{Major: major, Minor: minor},
		Location: loc,
	}
	if superIdx != 0 {
		mod.SuperName = cp.className(superIdx)
		mod.Sites = append(mod.Sites, &AccessSite{Kind: AccessInheritance, Owner: mod.SuperName})
	}

	ifaceCount := int(r.u2())
	seen := make(map[string]bool, ifaceCount)
	for i := 0; i < ifaceCount && r.err == nil; i++ {
		name := cp.className(r.u2())
		if seen[name] {
			continue
		}
		seen[name] = true
		mod.Interfaces = append(mod.Interfaces, name)
		mod.Sites = append(mod.Sites, &AccessSite{Kind: AccessInheritance, Owner: name, Interface: true})
	}
	if err := firstErr(r.err, cp.err); err != nil {
		return nil, err
	}

	if err := e.readMembers(r, cp, mod, true); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if err := e.readMembers(r, cp, mod, false); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}

	attrCount := int(r.u2())
	for i := 0; i < attrCount && r.err == nil; i++ {
		name, body := readAttribute(r, cp)
		if name == attrSourceFile && len(body) == 2 {
			mod.SourceFile = cp.utf8(uint16(body[0])<<8 | uint16(body[1]))
		}
	}
	if err := firstErr(r.err, cp.err); err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.remaining())
	}
	if mod.Name == "" {
		return nil, fmt.Errorf("empty module name")
	}
	return mod, nil
}

func (e *Extractor) readMembers(r *reader, cp *constantPool, mod *Module, fields bool) error {
	count := int(r.u2())
	for i := 0; i < count && r.err == nil; i++ {
		mem := &Member{
			Owner:      mod.Name,
			Flags:      AccessFlags(r.u2()),
			Name:       cp.utf8(r.u2()),
			Descriptor: cp.utf8(r.u2()),
		}
		switch {
		case fields:
			mem.Kind = MemberField
		case mem.Name == constructorName:
			mem.Kind = MemberConstructor
		case mem.Name == staticInitializerName:
			mem.Kind = MemberStaticInitializer
		default:
			mem.Kind = MemberMethod
		}

		attrCount := int(r.u2())
		for j := 0; j < attrCount && r.err == nil; j++ {
			name, body := readAttribute(r, cp)
			if fields || name != attrCode {
				continue
			}
			sites, err := readCode(body, cp)
			if err != nil {
				return fmt.Errorf("%s: %w", mem.FullName(), err)
			}
			mem.Sites = append(mem.Sites, sites...)
		}
		if err := firstErr(r.err, cp.err); err != nil {
			return err
		}
		mod.Members = append(mod.Members, mem)
	}
	return r.err
}

func readAttribute(r *reader, cp *constantPool) (string, []byte) {
	name := cp.utf8(r.u2())
	length := r.u4()
	if uint64(length) > uint64(r.remaining()) {
		r.err = errTruncated
		return name, nil
	}
	return name, r.take(int(length))
}

// readCode decodes a Code attribute body and scans its bytecode.
func readCode(body []byte, cp *constantPool) ([]*AccessSite, error) {
	r := &reader{buf: body}
	r.u2() // max_stack
	r.u2() // max_locals
	codeLen := r.u4()
	if uint64(codeLen) > uint64(r.remaining()) {
		return nil, fmt.Errorf("code length %d exceeds attribute", codeLen)
	}
	code := r.take(int(codeLen))
	excCount := int(r.u2())
	r.take(excCount * 8)

	var lines lineTable
	attrCount := int(r.u2())
	for i := 0; i < attrCount && r.err == nil; i++ {
		name, attr := readAttribute(r, cp)
		if name != attrLineNumberTable {
			continue
		}
		lr := &reader{buf: attr}
		n := int(lr.u2())
		for k := 0; k < n && lr.err == nil; k++ {
			startPC, line := lr.u2(), lr.u2()
			lines = append(lines, lineEntry{startPC: int(startPC), line: int(line)})
		}
		if lr.err != nil {
			return nil, fmt.Errorf("line number table: %w", lr.err)
		}
	}
	if err := firstErr(r.err, cp.err); err != nil {
		return nil, err
	}
	lines.sort()
	return scanCode(code, lines, cp)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
