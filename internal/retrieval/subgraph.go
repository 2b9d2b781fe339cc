package retrieval

import (
	"sort"

	"archcheck/internal/extractor"
	"archcheck/internal/graph"
)

// Direction selects which dependency edges a traversal follows.
type Direction int

const (
	Outgoing Direction = iota // from a node to what it depends on
	Incoming                  // from a node to what depends on it
	Both
)

// Config controls how transitive subgraphs are extracted.
type Config struct {
	MaxHops      int // 0 means unbounded
	Direction    Direction
	AllowedKinds map[extractor.AccessKind]bool
}

func DefaultConfig() Config {
	return Config{
		MaxHops:      0,
		Direction:    Outgoing,
		AllowedKinds: nil,
	}
}

// Subgraph is the part of a graph reachable from a set of seeds.
type Subgraph struct {
	MaxHops      int
	SeedNames    []string
	NodeNames    []string
	Depth        map[string]int
	Dependencies []*graph.Dependency
}

// Extract walks breadth-first from seeds. Every node is expanded at most
// once, so cycles terminate.
func Extract(g *graph.Graph, seeds []string, cfg Config) *Subgraph {
	if g == nil {
		return &Subgraph{Depth: map[string]int{}}
	}
	if cfg.MaxHops < 0 {
		cfg.MaxHops = 0
	}

	visitedDepth := make(map[string]int, len(seeds))
	queue := make([]queueItem, 0, len(seeds))
	for _, name := range seeds {
		if _, ok := g.Node(name); !ok {
			continue
		}
		if _, seen := visitedDepth[name]; seen {
			continue
		}
		visitedDepth[name] = 0
		queue = append(queue, queueItem{name: name, depth: 0})
	}
	seedNames := sortedKeys(visitedDepth)

	edgeSeen := make(map[*extractor.AccessSite]bool)
	var deps []*graph.Dependency

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cfg.MaxHops > 0 && cur.depth >= cfg.MaxHops {
			continue
		}

		for _, next := range neighbours(g, cur.name, cfg) {
			if !edgeSeen[next.dep.Site] {
				edgeSeen[next.dep.Site] = true
				deps = append(deps, next.dep)
			}
			if _, seen := visitedDepth[next.name]; !seen {
				visitedDepth[next.name] = cur.depth + 1
				queue = append(queue, queueItem{name: next.name, depth: cur.depth + 1})
			}
		}
	}

	graph.Sort(deps)
	return &Subgraph{
		MaxHops:      cfg.MaxHops,
		SeedNames:    seedNames,
		NodeNames:    sortedKeys(visitedDepth),
		Depth:        visitedDepth,
		Dependencies: deps,
	}
}

// FindPath returns the shortest dependency chain from the node named from
// to the first node accepted by match, or nil. The start node itself is
// only accepted when a cycle leads back to it. Ties are broken by the
// canonical dependency order.
func FindPath(g *graph.Graph, from string, match func(*graph.Node) bool, cfg Config) []*graph.Dependency {
	if _, ok := g.Node(from); !ok {
		return nil
	}
	type step struct {
		prev string
		dep  *graph.Dependency
	}
	via := map[string]step{}
	visitedDepth := map[string]int{from: 0}
	queue := []queueItem{{name: from, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cfg.MaxHops > 0 && cur.depth >= cfg.MaxHops {
			continue
		}
		for _, next := range neighbours(g, cur.name, cfg) {
			if n, ok := g.Node(next.name); ok && match(n) {
				path := []*graph.Dependency{next.dep}
				for at := cur.name; at != from; at = via[at].prev {
					path = append(path, via[at].dep)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			if _, seen := visitedDepth[next.name]; seen {
				continue
			}
			visitedDepth[next.name] = cur.depth + 1
			via[next.name] = step{prev: cur.name, dep: next.dep}
			queue = append(queue, queueItem{name: next.name, depth: cur.depth + 1})
		}
	}
	return nil
}

type queueItem struct {
	name  string
	depth int
}

type edgeHop struct {
	name string
	dep  *graph.Dependency
}

func neighbours(g *graph.Graph, name string, cfg Config) []edgeHop {
	var hops []edgeHop
	if cfg.Direction == Outgoing || cfg.Direction == Both {
		for _, d := range g.DependenciesFrom(name) {
			if edgeAllowed(d, cfg) {
				hops = append(hops, edgeHop{name: d.Target.Name, dep: d})
			}
		}
	}
	if cfg.Direction == Incoming || cfg.Direction == Both {
		for _, d := range g.DependenciesTo(name) {
			if edgeAllowed(d, cfg) {
				hops = append(hops, edgeHop{name: d.Origin.Name, dep: d})
			}
		}
	}
	return hops
}

func edgeAllowed(d *graph.Dependency, cfg Config) bool {
	if len(cfg.AllowedKinds) == 0 {
		return true
	}
	return cfg.AllowedKinds[d.Kind()]
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
