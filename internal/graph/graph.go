package graph

import "sort"

// Graph is the linked result of one import. It is immutable once built and
// safe for concurrent reads.
type Graph struct {
	nodes       map[string]*Node
	sorted      []*Node
	deps        []*Dependency
	from        map[string][]*Dependency
	to          map[string][]*Dependency
	diagnostics []Diagnostic
}

// Empty returns a graph with no nodes.
func Empty() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		from:  make(map[string][]*Dependency),
		to:    make(map[string][]*Dependency),
	}
}

// Node looks up a node by fully-qualified name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns every node, stubs included, sorted by name.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.sorted...)
}

// Classes returns the imported (non-stub) nodes sorted by name.
func (g *Graph) Classes() []*Node {
	out := make([]*Node, 0, len(g.sorted))
	for _, n := range g.sorted {
		if !n.IsStub() {
			out = append(out, n)
		}
	}
	return out
}

// Dependencies returns every dependency in canonical order.
func (g *Graph) Dependencies() []*Dependency {
	return append([]*Dependency(nil), g.deps...)
}

// DependenciesFrom returns the dependencies originating in name, in canonical order.
func (g *Graph) DependenciesFrom(name string) []*Dependency {
	return append([]*Dependency(nil), g.from[name]...)
}

// DependenciesTo returns the dependencies targeting name, in canonical order.
func (g *Graph) DependenciesTo(name string) []*Dependency {
	return append([]*Dependency(nil), g.to[name]...)
}

// Targets returns the distinct nodes that name depends on, sorted by name.
func (g *Graph) Targets(name string) []*Node {
	return distinct(g.from[name], func(d *Dependency) *Node { return d.Target })
}

// Origins returns the distinct nodes that depend on name, sorted by name.
func (g *Graph) Origins(name string) []*Node {
	return distinct(g.to[name], func(d *Dependency) *Node { return d.Origin })
}

// Diagnostics returns the findings recorded while importing and linking.
func (g *Graph) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), g.diagnostics...)
}

// Len is the number of nodes, stubs included.
func (g *Graph) Len() int {
	return len(g.sorted)
}

func distinct(deps []*Dependency, pick func(*Dependency) *Node) []*Node {
	seen := make(map[*Node]struct{}, len(deps))
	var out []*Node
	for _, d := range deps {
		n := pick(d)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
