package graph

// DiagnosticCounts tallies diagnostics by kind.
func (g *Graph) DiagnosticCounts() map[DiagnosticKind]int {
	counts := make(map[DiagnosticKind]int)
	if g == nil {
		return counts
	}
	for _, d := range g.diagnostics {
		counts[d.Kind]++
	}
	return counts
}

// Stats summarizes graph size.
type Stats struct {
	Classes      int `json:"classes"`
	Stubs        int `json:"stubs"`
	Dependencies int `json:"dependencies"`
	Packages     int `json:"packages"`
}

func (g *Graph) Stats() Stats {
	var s Stats
	packages := make(map[string]struct{})
	for _, n := range g.sorted {
		if n.IsStub() {
			s.Stubs++
			continue
		}
		s.Classes++
		packages[n.Package()] = struct{}{}
	}
	s.Dependencies = len(g.deps)
	s.Packages = len(packages)
	return s
}
