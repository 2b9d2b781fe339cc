package graph

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"archcheck/internal/extractor"
	"archcheck/internal/logging"

	"github.com/charmbracelet/log"
)

// ErrSealed is returned by Add once Build has run.
var ErrSealed = errors.New("graph builder already built")

var primitiveTypes = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
}

// Builder collects module descriptors and links them into a Graph. Add may
// be called from several goroutines; Build is the single linking step.
//
// Nodes live in an arena indexed by name. A name referenced before its
// descriptor arrives gets a stub slot that is upgraded in place, so every
// name keeps one node identity for the whole build.
type Builder struct {
	mu          sync.Mutex
	slots       map[string]int
	arena       []*Node
	diagnostics []Diagnostic
	sealed      bool
	built       *Graph
	logger      *log.Logger
}

// NewBuilder creates an empty builder. A nil logger discards output.
func NewBuilder(logger *log.Logger) *Builder {
	return &Builder{
		slots:  make(map[string]int),
		logger: logging.OrDiscard(logger),
	}
}

// Add registers one descriptor. Re-adding a name replaces the earlier
// descriptor and records a duplicate diagnostic.
func (b *Builder) Add(mod *extractor.Module) error {
	if mod == nil || mod.Name == "" {
		return errors.New("graph builder: module without a name")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrSealed
	}

	n := b.slot(mod.Name)
	if n.Module != nil {
		b.diagnostics = append(b.diagnostics, Diagnostic{
			Kind:   DiagnosticDuplicate,
			Name:   mod.Name,
			Detail: n.Module.Location.URI() + " replaced by " + mod.Location.URI(),
		})
		b.logger.Warn("duplicate module, keeping the last one",
			"name", mod.Name,
			"previous", n.Module.Location.URI(),
			"current", mod.Location.URI())
	}
	n.Module = mod

	for _, site := range allSites(mod) {
		if target, ok := targetName(site.Owner); ok {
			b.slot(target)
		}
	}
	return nil
}

// Note records a diagnostic found outside the builder, e.g. by the crawler.
func (b *Builder) Note(d Diagnostic) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.diagnostics = append(b.diagnostics, d)
}

// Build links every access site to its target and seals the builder.
// Later calls return the same graph.
func (b *Builder) Build() *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built != nil {
		return b.built
	}
	b.sealed = true

	g := Empty()
	arena := append([]*Node(nil), b.arena...)
	sort.Slice(arena, func(i, j int) bool { return arena[i].Name < arena[j].Name })

	for _, n := range arena {
		if n.IsStub() {
			continue
		}
		g.nodes[n.Name] = n
		for _, site := range n.Module.Sites {
			b.link(g, n, nil, site)
		}
		for _, mem := range n.Module.Members {
			for _, site := range mem.Sites {
				b.link(g, n, mem, site)
			}
		}
	}

	// Stubs survive only while some dependency targets them.
	unresolved := 0
	for _, d := range g.deps {
		if _, ok := g.nodes[d.Target.Name]; !ok {
			g.nodes[d.Target.Name] = d.Target
			unresolved++
		}
	}
	for _, n := range arena {
		if _, ok := g.nodes[n.Name]; !ok {
			continue
		}
		g.sorted = append(g.sorted, n)
		if n.IsStub() {
			b.diagnostics = append(b.diagnostics, Diagnostic{Kind: DiagnosticUnresolved, Name: n.Name})
		}
	}

	Sort(g.deps)
	for _, d := range g.deps {
		g.from[d.Origin.Name] = append(g.from[d.Origin.Name], d)
		g.to[d.Target.Name] = append(g.to[d.Target.Name], d)
	}
	g.diagnostics = append([]Diagnostic(nil), b.diagnostics...)

	b.logger.Debug("graph linked",
		"nodes", len(g.sorted),
		"dependencies", len(g.deps),
		"stubs", unresolved)
	b.built = g
	return g
}

func (b *Builder) link(g *Graph, origin *Node, mem *extractor.Member, site *extractor.AccessSite) {
	name, ok := targetName(site.Owner)
	if !ok {
		return
	}
	g.deps = append(g.deps, &Dependency{
		Origin:      origin,
		Member:      mem,
		Site:        site,
		Target:      b.arena[b.slots[name]],
		description: describe(origin, mem, site),
	})
}

// slot returns the node for name, materializing a stub if needed.
// Callers hold b.mu.
func (b *Builder) slot(name string) *Node {
	if idx, ok := b.slots[name]; ok {
		return b.arena[idx]
	}
	n := &Node{Name: name}
	b.slots[name] = len(b.arena)
	b.arena = append(b.arena, n)
	return n
}

// targetName maps an access-site owner to the module it depends on. Array
// owners depend on their component type; primitive arrays have no module.
func targetName(owner string) (string, bool) {
	name := strings.TrimRight(owner, "[]")
	if name == "" || primitiveTypes[name] {
		return "", false
	}
	return name, true
}

func allSites(mod *extractor.Module) []*extractor.AccessSite {
	sites := append([]*extractor.AccessSite(nil), mod.Sites...)
	for _, mem := range mod.Members {
		sites = append(sites, mem.Sites...)
	}
	return sites
}
