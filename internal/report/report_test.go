package report

import (
	"bytes"
	"testing"

	"archcheck/internal/analysis"
	"archcheck/internal/extractor"
	"archcheck/internal/graph"
	"archcheck/internal/location"
	"archcheck/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func class(name string, calls ...string) *extractor.Module {
	run := &extractor.Member{Owner: name, Kind: extractor.MemberMethod, Name: "run", Descriptor: "()V"}
	for i, owner := range calls {
		run.Sites = append(run.Sites, &extractor.AccessSite{
			Kind: extractor.AccessMethodCall, Owner: owner, Name: "go", Descriptor: "()V", Line: i + 1,
		})
	}
	return &extractor.Module{
		Name:     name,
		Kind:     extractor.KindClass,
		Location: location.MustParse("file:///classes/" + name + ".class"),
		Members:  []*extractor.Member{run},
	}
}

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder(nil)
	for _, m := range []*extractor.Module{
		class("app.web.Controller", "app.service.Service", "app.service.Service", "lib.Util"),
		class("app.service.Service", "app.repo.Repo"),
		class("app.repo.Repo", "app.service.Service"),
	} {
		require.NoError(t, b.Add(m))
	}
	return b.Build()
}

func TestPackageDiagram(t *testing.T) {
	g := testGraph(t)
	cycles := analysis.NewAnalyzer(g).PackageCycles(nil)
	require.Len(t, cycles, 1)

	diagram := PackageDiagram(g, DiagramOptions{Cycles: cycles})
	assert.Equal(t, "```mermaid\n"+
		"graph LR\n"+
		"    app_repo[\"app.repo\"]\n"+
		"    app_service[\"app.service\"]\n"+
		"    app_web[\"app.web\"]\n"+
		"    app_repo ==>|1| app_service\n"+
		"    app_service ==>|1| app_repo\n"+
		"    app_web -->|2| app_service\n"+
		"```\n", diagram)

	t.Run("External Packages", func(t *testing.T) {
		withLib := PackageDiagram(g, DiagramOptions{External: true})
		assert.Contains(t, withLib, "lib[\"lib\"]")
		assert.Contains(t, withLib, "app_web -->|1| lib")
		assert.NotContains(t, withLib, "==>")
	})
}

func TestSanitizeMermaidID(t *testing.T) {
	assert.Equal(t, "node", sanitizeMermaidID(""))
	assert.Equal(t, "com_foo_bar", sanitizeMermaidID("com.Foo.bar"))
	assert.Equal(t, "n_9lives", sanitizeMermaidID("9lives"))

	ids := mermaidIDs([]string{"a.b", "a_b"})
	assert.Equal(t, "a_b", ids["a.b"])
	assert.Equal(t, "a_b_2", ids["a_b"])
}

func TestMarkdown(t *testing.T) {
	g := testGraph(t)
	layered := rules.Rule{
		Name:      "web stays off repo",
		Scope:     rules.ResideInAPackage("app.web.."),
		Condition: rules.NotDependOn(rules.ResideInAPackage("app.repo..")),
	}
	cycles := rules.Rule{
		Name:      "no cycles",
		Scope:     rules.Classes(),
		Condition: rules.BeFreeOfCycles(),
	}
	results := []rules.Result{layered.Evaluate(g), cycles.Evaluate(g)}

	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, g.Stats(), results))
	md := buf.String()

	assert.Contains(t, md, "# Architecture Check")
	assert.Contains(t, md, "| 3 | 1 | 5 | 3 |")
	assert.Contains(t, md, "| web stays off repo | ✅ passed | 1 | 0 |")
	assert.Contains(t, md, "| no cycles | ❌ violated | 3 | 2 |")
	assert.Contains(t, md, "## no cycles\n\n> classes that are classes should be free of cycles\n\n")
	assert.Contains(t, md, "- `Cycle detected: app.repo -> app.service -> app.repo: Method <app.service.Service.run()> calls method <app.repo.Repo.go()> in (Service.java:1)`")
	assert.NotContains(t, md, "## web stays off repo")
	assert.NotContains(t, md, "All rules passed.")
}
