package retrieval

import (
	"testing"

	"archcheck/internal/extractor"
	"archcheck/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain builds a graph where each name calls the next one listed in edges.
func chain(t *testing.T, edges map[string][]string) *graph.Graph {
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

func TestExtract_BasicHopTraversal(t *testing.T) {
	g := chain(t, map[string][]string{"A": {"B"}, "B": {"C"}, "C": nil})

	sg := Extract(g, []string{"A"}, Config{MaxHops: 1})
	assert.Equal(t, []string{"A"}, sg.SeedNames)
	assert.Equal(t, []string{"A", "B"}, sg.NodeNames)
	require.Len(t, sg.Dependencies, 1)
	assert.Equal(t, "B", sg.Dependencies[0].Target.Name)

	all := Extract(g, []string{"A"}, DefaultConfig())
	assert.Equal(t, []string{"A", "B", "C"}, all.NodeNames)
	assert.Equal(t, 2, all.Depth["C"])
}

func TestExtract_CyclesTerminate(t *testing.T) {
	g := chain(t, map[string][]string{"A": {"B", "A"}, "B": {"C"}, "C": {"A"}})

	sg := Extract(g, []string{"A"}, DefaultConfig())
	assert.Equal(t, []string{"A", "B", "C"}, sg.NodeNames)
	assert.Len(t, sg.Dependencies, 4)
}

func TestExtract_Incoming(t *testing.T) {
	g := chain(t, map[string][]string{"A": {"C"}, "B": {"C"}, "C": nil})

	sg := Extract(g, []string{"C"}, Config{Direction: Incoming})
	assert.Equal(t, []string{"A", "B", "C"}, sg.NodeNames)

	none := Extract(g, []string{"missing"}, DefaultConfig())
	assert.Empty(t, none.NodeNames)
}

func TestExtract_AllowedKinds(t *testing.T) {
	g := chain(t, map[string][]string{"A": {"B"}, "B": nil})
	sg := Extract(g, []string{"A"}, Config{AllowedKinds: map[extractor.AccessKind]bool{extractor.AccessInheritance: true}})
	assert.Equal(t, []string{"A"}, sg.NodeNames)
}

func TestFindPath(t *testing.T) {
	g := chain(t, map[string][]string{"A": {"B", "D"}, "B": {"C"}, "C": {"A"}, "D": nil})
	is := func(name string) func(*graph.Node) bool {
		return func(n *graph.Node) bool { return n.Name == name }
	}

	path := FindPath(g, "A", is("C"), DefaultConfig())
	require.Len(t, path, 2)
	assert.Equal(t, "A", path[0].Origin.Name)
	assert.Equal(t, "B", path[0].Target.Name)
	assert.Equal(t, "C", path[1].Target.Name)

	back := FindPath(g, "A", is("A"), DefaultConfig())
	assert.Len(t, back, 3, "the start is reached again through the cycle")

	assert.Nil(t, FindPath(g, "D", is("A"), DefaultConfig()))
	assert.Nil(t, FindPath(g, "A", is("C"), Config{MaxHops: 1}))
}
