package rules

import (
	"fmt"
	"strings"

	"archcheck/internal/extractor"
	"archcheck/internal/graph"
	"archcheck/internal/tree"
)

// Predicate is a described test over graph elements. Predicates are pure;
// the graph is passed in so predicates can be declared before any import.
type Predicate[T any] struct {
	desc string
	test func(g *graph.Graph, v T) bool
}

func NewPredicate[T any](desc string, test func(g *graph.Graph, v T) bool) Predicate[T] {
	return Predicate[T]{desc: desc, test: test}
}

func (p Predicate[T]) Description() string {
	return p.desc
}

func (p Predicate[T]) Test(g *graph.Graph, v T) bool {
	return p.test(g, v)
}

// And is satisfied when both are; o is not consulted when p fails.
func (p Predicate[T]) And(o Predicate[T]) Predicate[T] {
	return Predicate[T]{
		desc: p.desc + " and " + o.desc,
		test: func(g *graph.Graph, v T) bool { return p.test(g, v) && o.test(g, v) },
	}
}

// Or is satisfied when either is; o is not consulted when p holds.
func (p Predicate[T]) Or(o Predicate[T]) Predicate[T] {
	return Predicate[T]{
		desc: p.desc + " or " + o.desc,
		test: func(g *graph.Graph, v T) bool { return p.test(g, v) || o.test(g, v) },
	}
}

func (p Predicate[T]) Not() Predicate[T] {
	return Predicate[T]{
		desc: "not " + p.desc,
		test: func(g *graph.Graph, v T) bool { return !p.test(g, v) },
	}
}

// NodePredicate selects graph nodes.
type NodePredicate = Predicate[*graph.Node]

// DependencyPredicate selects dependencies.
type DependencyPredicate = Predicate[*graph.Dependency]

// Classes selects every imported (non-stub) node.
func Classes() NodePredicate {
	return NewPredicate("are classes", func(_ *graph.Graph, n *graph.Node) bool { return !n.IsStub() })
}

// Anything selects every node, stubs included.
func Anything() NodePredicate {
	return NewPredicate("are anything", func(*graph.Graph, *graph.Node) bool { return true })
}

// NameMatching selects nodes whose full name matches the name filter
// pattern language.
func NameMatching(pattern string) NodePredicate {
	re := tree.CompilePattern(pattern)
	return NewPredicate(fmt.Sprintf("have name matching '%s'", pattern), func(_ *graph.Graph, n *graph.Node) bool {
		return re.MatchString(n.Name)
	})
}

// ResideInPackage selects nodes declared directly in pkg.
func ResideInPackage(pkg string) NodePredicate {
	return NewPredicate(fmt.Sprintf("reside in package '%s'", pkg), func(_ *graph.Graph, n *graph.Node) bool {
		return n.Package() == pkg
	})
}

// ResideInAPackage selects nodes whose package matches pattern. A pattern
// ending in ".." also matches every subpackage, e.g. "com.acme.." matches
// "com.acme" and "com.acme.web".
func ResideInAPackage(pattern string) NodePredicate {
	desc := fmt.Sprintf("reside in a package '%s'", pattern)
	if prefix, ok := strings.CutSuffix(pattern, ".."); ok {
		return NewPredicate(desc, func(_ *graph.Graph, n *graph.Node) bool {
			pkg := n.Package()
			return pkg == prefix || strings.HasPrefix(pkg, prefix+".")
		})
	}
	re := tree.CompilePattern(pattern + " ")
	return NewPredicate(desc, func(_ *graph.Graph, n *graph.Node) bool {
		return re.MatchString(n.Package())
	})
}

func AreInterfaces() NodePredicate {
	return NewPredicate("are interfaces", func(_ *graph.Graph, n *graph.Node) bool { return n.IsInterface() })
}

func AreStubs() NodePredicate {
	return NewPredicate("are unresolved", func(_ *graph.Graph, n *graph.Node) bool { return n.IsStub() })
}

// HaveModifier selects imported nodes carrying flag.
func HaveModifier(flag extractor.AccessFlags) NodePredicate {
	name := strings.Join(flag.Modifiers(), " ")
	if name == "" {
		name = fmt.Sprintf("0x%04x", uint16(flag))
	}
	return NewPredicate(fmt.Sprintf("have modifier %s", name), func(_ *graph.Graph, n *graph.Node) bool {
		return n.Module != nil && n.Module.Flags.Has(flag)
	})
}

// AreAssignableTo selects nodes that are name or have it among their
// transitive supertypes. Unimported supertypes end the walk; cyclic
// hierarchies terminate.
func AreAssignableTo(name string) NodePredicate {
	return NewPredicate(fmt.Sprintf("are assignable to %s", name), func(g *graph.Graph, n *graph.Node) bool {
		if n.Name == name {
			return true
		}
		seen := map[string]bool{n.Name: true}
		queue := []*graph.Node{n}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur.IsStub() {
				continue
			}
			supers := append([]string{cur.Module.SuperName}, cur.Module.Interfaces...)
			for _, s := range supers {
				if s == "" || seen[s] {
					continue
				}
				if s == name {
					return true
				}
				seen[s] = true
				if next, ok := g.Node(s); ok {
					queue = append(queue, next)
				}
			}
		}
		return false
	})
}

// LoadedFrom selects imported nodes whose location contains part.
func LoadedFrom(part string) NodePredicate {
	return NewPredicate(fmt.Sprintf("were loaded from '%s'", part), func(_ *graph.Graph, n *graph.Node) bool {
		return n.Module != nil && n.Module.Location.Contains(part)
	})
}

// HaveKind selects dependencies of the given access kinds.
func HaveKind(kinds ...extractor.AccessKind) DependencyPredicate {
	names := make([]string, len(kinds))
	set := make(map[extractor.AccessKind]bool, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
		set[k] = true
	}
	return NewPredicate("are "+strings.Join(names, " or "), func(_ *graph.Graph, d *graph.Dependency) bool {
		return set[d.Kind()]
	})
}

// TargetIs lifts a node predicate onto dependency targets.
func TargetIs(p NodePredicate) DependencyPredicate {
	return NewPredicate("target "+p.desc, func(g *graph.Graph, d *graph.Dependency) bool {
		return p.test(g, d.Target)
	})
}

// OriginIs lifts a node predicate onto dependency origins.
func OriginIs(p NodePredicate) DependencyPredicate {
	return NewPredicate("origin "+p.desc, func(g *graph.Graph, d *graph.Dependency) bool {
		return p.test(g, d.Origin)
	})
}
