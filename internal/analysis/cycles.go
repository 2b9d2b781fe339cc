package analysis

import (
	"sort"
	"strings"

	"archcheck/internal/graph"
)

// Cycle is a set of packages that depend on each other. Edges holds, for
// every ordered package pair inside the cycle that has a dependency, the
// first such dependency in canonical order.
type Cycle struct {
	Packages []string
	Edges    []*graph.Dependency
}

func (c Cycle) String() string {
	return strings.Join(c.Packages, " -> ") + " -> " + c.Packages[0]
}

// Analyzer runs structural analyses over a built graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// PackageCycles finds strongly connected groups of two or more packages,
// considering only dependencies whose origin and target both satisfy
// scope. A nil scope keeps every imported class. Results are sorted by
// their first package.
func (a *Analyzer) PackageCycles(scope func(*graph.Node) bool) []Cycle {
	if scope == nil {
		scope = func(n *graph.Node) bool { return !n.IsStub() }
	}

	adj := make(map[string][]string)
	first := make(map[[2]string]*graph.Dependency)
	for _, d := range a.g.Dependencies() {
		if !scope(d.Origin) || !scope(d.Target) {
			continue
		}
		from, to := d.Origin.Package(), d.Target.Package()
		if from == to {
			continue
		}
		key := [2]string{from, to}
		if _, ok := first[key]; !ok {
			first[key] = d
			adj[from] = append(adj[from], to)
		}
		if _, ok := adj[to]; !ok {
			adj[to] = nil
		}
	}
	for _, targets := range adj {
		sort.Strings(targets)
	}

	var cycles []Cycle
	for _, scc := range stronglyConnected(adj) {
		if len(scc) < 2 {
			continue
		}
		sort.Strings(scc)
		in := make(map[string]bool, len(scc))
		for _, p := range scc {
			in[p] = true
		}
		c := Cycle{Packages: scc}
		for _, p := range scc {
			for _, q := range adj[p] {
				if in[q] {
					c.Edges = append(c.Edges, first[[2]string{p, q}])
				}
			}
		}
		graph.Sort(c.Edges)
		cycles = append(cycles, c)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Packages[0] < cycles[j].Packages[0] })
	return cycles
}

// stronglyConnected is Tarjan's algorithm with an explicit stack, so deep
// package chains cannot exhaust the goroutine stack.
func stronglyConnected(adj map[string][]string) [][]string {
	nodes := make([]string, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	type frame struct {
		v    string
		next int
	}
	var (
		counter int
		index   = make(map[string]int, len(nodes))
		low     = make(map[string]int, len(nodes))
		onStack = make(map[string]bool, len(nodes))
		stack   []string
		sccs    [][]string
	)

	for _, root := range nodes {
		if _, seen := index[root]; seen {
			continue
		}
		visit := func(v string) frame {
			index[v], low[v] = counter, counter
			counter++
			stack = append(stack, v)
			onStack[v] = true
			return frame{v: v}
		}
		work := []frame{visit(root)}

		for len(work) > 0 {
			f := &work[len(work)-1]
			if f.next < len(adj[f.v]) {
				w := adj[f.v][f.next]
				f.next++
				if _, seen := index[w]; !seen {
					work = append(work, visit(w))
				} else if onStack[w] {
					low[f.v] = min(low[f.v], index[w])
				}
				continue
			}

			v := f.v
			work = work[:len(work)-1]
			if low[v] == index[v] {
				var scc []string
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
			if len(work) > 0 {
				parent := work[len(work)-1].v
				low[parent] = min(low[parent], low[v])
			}
		}
	}
	return sccs
}
