package extractor

import (
	"path"
	"strings"

	"archcheck/internal/location"
)

// ModuleKind classifies a compiled module.
type ModuleKind string

const (
	KindClass      ModuleKind = "class"
	KindInterface  ModuleKind = "interface"
	KindEnum       ModuleKind = "enum"
	KindAnnotation ModuleKind = "annotation"
)

// MemberKind classifies a member of a module.
type MemberKind string

const (
	MemberField             MemberKind = "field"
	MemberMethod            MemberKind = "method"
	MemberConstructor       MemberKind = "constructor"
	MemberStaticInitializer MemberKind = "static_initializer"
)

// AccessKind tags an access site with what the origin does to its target.
type AccessKind string

const (
	AccessFieldRead       AccessKind = "field_read"
	AccessFieldWrite      AccessKind = "field_write"
	AccessMethodCall      AccessKind = "method_call"
	AccessConstructorCall AccessKind = "constructor_call"
	AccessInheritance     AccessKind = "inheritance"
)

// Version is the class-file format version.
type Version struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
}

// Module is the parsed shape of one compiled unit. References to other
// modules are plain names; linking happens in the graph package.
type Module struct {
	Name       string            `json:"name"`                  // Fully-qualified name, e.g. "com.foo.Bar$Inner"
	Kind       ModuleKind        `json:"kind"`                  // class, interface, enum or annotation
	Flags      AccessFlags       `json:"flags"`                 // Raw access flags
	SuperName  string            `json:"super_name,omitempty"`  // Supertype; empty only for the root type
	Interfaces []string          `json:"interfaces,omitempty"`  // Superinterfaces in declaration order, no duplicates
	SourceFile string            `json:"source_file,omitempty"` // SourceFile attribute if present
	Version    Version           `json:"version"`               // Format version the module was compiled to
	Location   location.Location `json:"-"`                     // Where the bytes came from
	Members    []*Member         `json:"members"`               // Fields, then methods, in declaration order
	Sites      []*AccessSite     `json:"sites,omitempty"`       // Class-level inheritance sites
}

// Member is a field, method, constructor or static initializer.
type Member struct {
	Owner      string        `json:"owner"`           // Fully-qualified name of the declaring module
	Kind       MemberKind    `json:"kind"`            // Member kind
	Name       string        `json:"name"`            // Simple name, "<init>" for constructors
	Descriptor string        `json:"descriptor"`      // Raw type descriptor
	Flags      AccessFlags   `json:"flags"`           // Raw access flags
	Sites      []*AccessSite `json:"sites,omitempty"` // Access sites in bytecode order
}

// AccessSite is one symbolic reference from a member (or, for inheritance,
// from the module header) to another module.
type AccessSite struct {
	Kind       AccessKind `json:"kind"`
	Owner      string     `json:"owner"`                // Fully-qualified name of the referenced module
	Name       string     `json:"name,omitempty"`       // Referenced member name; empty for inheritance
	Descriptor string     `json:"descriptor,omitempty"` // Referenced member descriptor
	Interface  bool       `json:"interface,omitempty"`  // Inheritance site naming a superinterface
	Line       int        `json:"line"`                 // Source line, 0 when unknown
}

// Package returns the package part of the module name.
func (m *Module) Package() string {
	return PackageOf(m.Name)
}

// SimpleName returns the name without its package.
func (m *Module) SimpleName() string {
	return strings.TrimPrefix(m.Name[len(m.Package()):], ".")
}

// SourceFileName is the SourceFile attribute or, when absent, the name a
// compiler would have used for the outermost enclosing type.
func (m *Module) SourceFileName() string {
	if m.SourceFile != "" {
		return path.Base(m.SourceFile)
	}
	outer, _, _ := strings.Cut(m.SimpleName(), "$")
	return outer + ".java"
}

// IsInterface reports whether the module is an interface or annotation.
func (m *Module) IsInterface() bool {
	return m.Flags.Has(FlagInterface)
}

// Member looks up a member by name and descriptor.
func (m *Module) Member(name, descriptor string) (*Member, bool) {
	for _, mem := range m.Members {
		if mem.Name == name && mem.Descriptor == descriptor {
			return mem, true
		}
	}
	return nil, false
}

// SiteCount returns the number of access sites across the header and all members.
func (m *Module) SiteCount() int {
	n := len(m.Sites)
	for _, mem := range m.Members {
		n += len(mem.Sites)
	}
	return n
}

// Signature is the member name plus, for code members, its parameter list.
func (m *Member) Signature() string {
	return memberSignature(m.Kind == MemberField, m.Name, m.Descriptor)
}

// FullName is the owner-qualified signature, e.g. "com.foo.A.run(int)".
func (m *Member) FullName() string {
	return m.Owner + "." + m.Signature()
}

// Target renders the referenced element, e.g. "com.foo.B.go()" or "com.foo.B".
func (s *AccessSite) Target() string {
	if s.Kind == AccessInheritance || s.Name == "" {
		return s.Owner
	}
	isField := s.Kind == AccessFieldRead || s.Kind == AccessFieldWrite
	return s.Owner + "." + memberSignature(isField, s.Name, s.Descriptor)
}

func memberSignature(isField bool, name, descriptor string) string {
	if isField {
		return name
	}
	params, _, err := ParseMethodDescriptor(descriptor)
	if err != nil {
		return name + "(?)"
	}
	return name + "(" + strings.Join(params, ", ") + ")"
}

// PackageOf returns the package of a fully-qualified name.
func PackageOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}
