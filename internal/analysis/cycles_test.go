package analysis

import (
	"fmt"
	"testing"

	"archcheck/internal/extractor"
	"archcheck/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, edges map[string][]string) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder(nil)
	for name, targets := range edges {
		run := &extractor.Member{Owner: name, Kind: extractor.MemberMethod, Name: "run", Descriptor: "()V"}
		for i, target := range targets {
			run.Sites = append(run.Sites, &extractor.AccessSite{
				Kind: extractor.AccessMethodCall, Owner: target, Name: "run", Descriptor: "()V", Line: i + 1,
			})
		}
		require.NoError(t, b.Add(&extractor.Module{Name: name, Members: []*extractor.Member{run}}))
	}
	return b.Build()
}

func TestPackageCycles(t *testing.T) {
	g := build(t, map[string][]string{
		"a.A":  {"b.B", "a.A2"},
		"a.A2": nil,
		"b.B":  {"c.C"},
		"c.C":  {"a.A2", "ext.Lib"},
		"d.D":  {"a.A"},
	})

	cycles := NewAnalyzer(g).PackageCycles(nil)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c"}, cycles[0].Packages)
	assert.Len(t, cycles[0].Edges, 3)
	assert.Equal(t, "a -> b -> c -> a", cycles[0].String())
}

func TestPackageCycles_Scope(t *testing.T) {
	g := build(t, map[string][]string{"a.A": {"b.B"}, "b.B": {"a.A"}})

	assert.Len(t, NewAnalyzer(g).PackageCycles(nil), 1)
	onlyA := func(n *graph.Node) bool { return n.Package() == "a" }
	assert.Empty(t, NewAnalyzer(g).PackageCycles(onlyA))
}

func TestPackageCycles_Acyclic(t *testing.T) {
	g := build(t, map[string][]string{"a.A": {"b.B"}, "b.B": {"c.C"}, "c.C": nil})
	assert.Empty(t, NewAnalyzer(g).PackageCycles(nil))
}

func TestPackageCycles_DeepChain(t *testing.T) {
	const depth = 5000
	edges := make(map[string][]string, depth)
	for i := 0; i < depth; i++ {
		edges[fmt.Sprintf("p%d.C", i)] = []string{fmt.Sprintf("p%d.C", (i+1)%depth)}
	}
	cycles := NewAnalyzer(build(t, edges)).PackageCycles(nil)
	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0].Packages, depth)
}
