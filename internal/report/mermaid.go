package report

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"archcheck/internal/analysis"
	"archcheck/internal/graph"
)

var mermaidUnsafe = regexp.MustCompile(`[^a-z0-9_]`)

// DiagramOptions controls PackageDiagram.
type DiagramOptions struct {
	// External keeps packages that only contain unresolved classes.
	External bool
	// Cycles are drawn with thick arrows.
	Cycles []analysis.Cycle
}

type packageEdge struct {
	from, to string
}

// PackageDiagram renders the package dependency structure of g as a
// Mermaid flowchart. Edge labels count the class-level dependencies
// between two packages.
func PackageDiagram(g *graph.Graph, opts DiagramOptions) string {
	weights := make(map[packageEdge]int)
	packages := make(map[string]bool)
	for _, n := range g.Classes() {
		packages[n.Package()] = true
	}
	for _, d := range g.Dependencies() {
		if d.Target.IsStub() && !opts.External {
			continue
		}
		from, to := d.Origin.Package(), d.Target.Package()
		packages[to] = true
		if from == to {
			continue
		}
		weights[packageEdge{from, to}]++
	}

	inCycle := make(map[packageEdge]bool)
	for _, c := range opts.Cycles {
		for _, d := range c.Edges {
			inCycle[packageEdge{d.Origin.Package(), d.Target.Package()}] = true
		}
	}

	names := make([]string, 0, len(packages))
	for p := range packages {
		names = append(names, p)
	}
	sort.Strings(names)
	ids := mermaidIDs(names)

	edges := make([]packageEdge, 0, len(weights))
	for e := range weights {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from == edges[j].from {
			return edges[i].to < edges[j].to
		}
		return edges[i].from < edges[j].from
	})

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph LR\n")
	for _, p := range names {
		label := p
		if label == "" {
			label = "(default)"
		}
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", ids[p], label))
	}
	for _, e := range edges {
		arrow := "-->"
		if inCycle[e] {
			arrow = "==>"
		}
		sb.WriteString(fmt.Sprintf("    %s %s|%d| %s\n", ids[e.from], arrow, weights[e], ids[e.to]))
	}
	sb.WriteString("```\n")
	return sb.String()
}

// mermaidIDs assigns a distinct identifier to every package. Names that
// sanitize to the same identifier get a numeric suffix.
func mermaidIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]bool, len(names))
	for _, name := range names {
		id := sanitizeMermaidID(name)
		base := id
		for i := 2; used[id]; i++ {
			id = base + "_" + strconv.Itoa(i)
		}
		used[id] = true
		ids[name] = id
	}
	return ids
}

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "node"
	}
	v = mermaidUnsafe.ReplaceAllString(v, "_")
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}
