package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"archcheck/internal/extractor"
)

// Node is a vertex of the dependency graph. Module is nil for stubs: names
// that were referenced but never imported.
type Node struct {
	Name   string
	Module *extractor.Module
}

// IsStub reports whether the node has no imported descriptor.
func (n *Node) IsStub() bool {
	return n.Module == nil
}

func (n *Node) Package() string {
	return extractor.PackageOf(n.Name)
}

func (n *Node) IsInterface() bool {
	return n.Module != nil && n.Module.IsInterface()
}

// Dependency is one access from an imported module to another module.
// Member is nil for class-level inheritance sites.
type Dependency struct {
	Origin *Node
	Member *extractor.Member
	Site   *extractor.AccessSite
	Target *Node

	description string
}

// Kind mirrors the access site's tag.
func (d *Dependency) Kind() extractor.AccessKind {
	return d.Site.Kind
}

// Line is the source line of the access, 0 when unknown.
func (d *Dependency) Line() int {
	return d.Site.Line
}

// Description is stable display text for the dependency.
func (d *Dependency) Description() string {
	return d.description
}

// Equal compares by access-site identity.
func (d *Dependency) Equal(o *Dependency) bool {
	return d.Site == o.Site
}

// Compare orders dependencies by line, then description.
func (d *Dependency) Compare(o *Dependency) int {
	if c := cmp.Compare(d.Line(), o.Line()); c != 0 {
		return c
	}
	return strings.Compare(d.description, o.description)
}

func (d *Dependency) String() string {
	return d.description
}

// Sort puts deps into canonical order.
func Sort(deps []*Dependency) {
	slices.SortStableFunc(deps, func(a, b *Dependency) int { return a.Compare(b) })
}

var accessVerbs = map[extractor.AccessKind]string{
	extractor.AccessFieldRead:       "gets field",
	extractor.AccessFieldWrite:      "sets field",
	extractor.AccessMethodCall:      "calls method",
	extractor.AccessConstructorCall: "calls constructor",
}

var memberWords = map[extractor.MemberKind]string{
	extractor.MemberField:             "Field",
	extractor.MemberMethod:            "Method",
	extractor.MemberConstructor:       "Constructor",
	extractor.MemberStaticInitializer: "Static Initializer",
}

func describe(origin *Node, member *extractor.Member, site *extractor.AccessSite) string {
	where := fmt.Sprintf("in (%s:%d)", origin.Module.SourceFileName(), site.Line)

	if member == nil {
		subject, verb := "Class", "extends class"
		if origin.IsInterface() {
			subject = "Interface"
		}
		switch {
		case site.Interface && origin.IsInterface():
			verb = "extends interface"
		case site.Interface:
			verb = "implements interface"
		}
		return fmt.Sprintf("%s <%s> %s <%s> %s", subject, origin.Name, verb, site.Owner, where)
	}

	return fmt.Sprintf("%s <%s> %s <%s> %s",
		memberWords[member.Kind], member.FullName(), accessVerbs[site.Kind], site.Target(), where)
}

// DiagnosticKind classifies a non-fatal import finding.
type DiagnosticKind string

const (
	DiagnosticDuplicate  DiagnosticKind = "duplicate"
	DiagnosticUnresolved DiagnosticKind = "unresolved"
	DiagnosticMalformed  DiagnosticKind = "malformed"
	DiagnosticUnreadable DiagnosticKind = "unreadable"
)

// Diagnostic records something the import tolerated rather than failed on.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Name   string         `json:"name"`
	Detail string         `json:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Detail == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Name)
	}
	return fmt.Sprintf("%s: %s (%s)", d.Kind, d.Name, d.Detail)
}
