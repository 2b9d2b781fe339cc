package graph

// NodeSummary is the serializable view of a node.
type NodeSummary struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Stub     bool   `json:"stub,omitempty"`
	Location string `json:"location,omitempty"`
	Members  int    `json:"members,omitempty"`
}

// DependencySummary is the serializable view of a dependency.
type DependencySummary struct {
	Origin      string `json:"origin"`
	Target      string `json:"target"`
	Kind        string `json:"kind"`
	Line        int    `json:"line"`
	Description string `json:"description"`
}

// Summary is the graph converted for tooling outside this module.
type Summary struct {
	Stats        Stats               `json:"stats"`
	Nodes        []NodeSummary       `json:"nodes"`
	Dependencies []DependencySummary `json:"dependencies"`
	Diagnostics  []Diagnostic        `json:"diagnostics,omitempty"`
}

// Summarize converts the graph into its serializable view. Nodes and
// dependencies keep the graph's order.
func (g *Graph) Summarize() Summary {
	s := Summary{
		Stats:        g.Stats(),
		Nodes:        make([]NodeSummary, 0, len(g.sorted)),
		Dependencies: make([]DependencySummary, 0, len(g.deps)),
		Diagnostics:  g.Diagnostics(),
	}
	for _, n := range g.sorted {
		s.Nodes = append(s.Nodes, summarizeNode(n))
	}
	for _, d := range g.deps {
		s.Dependencies = append(s.Dependencies, DependencySummary{
			Origin:      d.Origin.Name,
			Target:      d.Target.Name,
			Kind:        string(d.Kind()),
			Line:        d.Line(),
			Description: d.Description(),
		})
	}
	return s
}

func summarizeNode(n *Node) NodeSummary {
	if n.IsStub() {
		return NodeSummary{Name: n.Name, Kind: "stub", Stub: true}
	}
	return NodeSummary{
		Name:     n.Name,
		Kind:     string(n.Module.Kind),
		Location: n.Module.Location.URI(),
		Members:  len(n.Module.Members),
	}
}
