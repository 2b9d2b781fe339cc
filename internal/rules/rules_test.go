package rules

import (
	"context"
	"sync/atomic"
	"testing"

	"archcheck/internal/config"
	"archcheck/internal/extractor"
	"archcheck/internal/graph"
	"archcheck/internal/location"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type access struct {
	kind        extractor.AccessKind
	owner, name string
	line        int
}

func class(name, super string, accesses ...access) *extractor.Module {
	mod := &extractor.Module{
		Name:      name,
		Kind:      extractor.KindClass,
		Flags:     extractor.FlagPublic,
		SuperName: super,
		Location:  location.MustParse("file:///app/classes/" + name + ".class"),
	}
	if super != "" {
		mod.Sites = append(mod.Sites, &extractor.AccessSite{Kind: extractor.AccessInheritance, Owner: super})
	}
	run := &extractor.Member{Owner: name, Kind: extractor.MemberMethod, Name: "run", Descriptor: "()V"}
	for _, a := range accesses {
		desc := "()V"
		if a.kind == extractor.AccessFieldRead || a.kind == extractor.AccessFieldWrite {
			desc = "I"
		}
		run.Sites = append(run.Sites, &extractor.AccessSite{Kind: a.kind, Owner: a.owner, Name: a.name, Descriptor: desc, Line: a.line})
	}
	mod.Members = append(mod.Members, run)
	return mod
}

func call(owner, name string, line int) access {
	return access{extractor.AccessMethodCall, owner, name, line}
}

func layeredGraph(t *testing.T) *graph.Graph {
	t.Helper()
	api := class("com.acme.api.Api", "")
	api.Kind = extractor.KindInterface
	api.Flags = extractor.FlagPublic | extractor.FlagInterface | extractor.FlagAbstract

	impl := class("com.acme.service.Impl", "com.acme.service.Base")
	impl.Interfaces = []string{"com.acme.api.Api"}
	impl.Sites = append(impl.Sites, &extractor.AccessSite{Kind: extractor.AccessInheritance, Owner: "com.acme.api.Api", Interface: true})
	impl.Flags |= extractor.FlagFinal

	vendored := class("org.vendor.Lib", "java.lang.Object")
	vendored.Location = location.MustParse("jar:file:///libs/vendor.jar!/org/vendor/Lib.class")

	b := graph.NewBuilder(nil)
	for _, m := range []*extractor.Module{
		class("com.acme.web.Controller", "",
			call("com.acme.service.Service", "handle", 10),
			access{extractor.AccessFieldRead, "com.acme.repo.Repo", "data", 12},
			call("org.vendor.Lib", "help", 12),
		),
		class("com.acme.service.Service", "com.acme.service.Base", call("com.acme.repo.Repo", "load", 5)),
		class("com.acme.service.Base", ""),
		impl,
		api,
		class("com.acme.repo.Repo", "", call("com.acme.service.Service", "callback", 20)),
		vendored,
	} {
		require.NoError(t, b.Add(m))
	}
	return b.Build()
}

func violationTexts(r Result) []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Description
	}
	return out
}

func TestPredicates(t *testing.T) {
	g := layeredGraph(t)
	node := func(name string) *graph.Node {
		n, ok := g.Node(name)
		require.True(t, ok, name)
		return n
	}

	t.Run("Combinators", func(t *testing.T) {
		web := ResideInAPackage("com.acme.web..")
		repo := ResideInPackage("com.acme.repo")
		either := web.Or(repo)
		assert.True(t, either.Test(g, node("com.acme.repo.Repo")))
		assert.False(t, web.And(repo).Test(g, node("com.acme.web.Controller")))
		assert.True(t, web.Not().Test(g, node("com.acme.repo.Repo")))
		assert.Equal(t, "reside in a package 'com.acme.web..' or reside in package 'com.acme.repo'", either.Description())
		assert.Equal(t, "not reside in package 'com.acme.repo'", repo.Not().Description())
	})

	t.Run("Short circuit", func(t *testing.T) {
		var calls atomic.Int32
		counted := NewPredicate("counted", func(*graph.Graph, *graph.Node) bool {
			calls.Add(1)
			return true
		})
		Anything().Or(counted).Test(g, node("com.acme.repo.Repo"))
		AreStubs().And(counted).Test(g, node("com.acme.repo.Repo"))
		assert.Zero(t, calls.Load())
	})

	t.Run("Node predicates", func(t *testing.T) {
		assert.True(t, NameMatching("Controller ").Test(g, node("com.acme.web.Controller")))
		assert.True(t, ResideInAPackage("com.acme..").Test(g, node("com.acme.web.Controller")))
		assert.True(t, ResideInAPackage("com.acme..").Test(g, node("com.acme.api.Api")))
		assert.False(t, ResideInAPackage("com.acme..").Test(g, node("org.vendor.Lib")))
		assert.True(t, ResideInAPackage("*.service").Test(g, node("com.acme.service.Base")))
		assert.True(t, AreInterfaces().Test(g, node("com.acme.api.Api")))
		assert.True(t, HaveModifier(extractor.FlagFinal).Test(g, node("com.acme.service.Impl")))
		assert.False(t, HaveModifier(extractor.FlagFinal).Test(g, node("com.acme.service.Base")))
		assert.True(t, LoadedFrom("vendor.jar").Test(g, node("org.vendor.Lib")))
		assert.False(t, Classes().Test(g, node("java.lang.Object")))
		assert.True(t, AreStubs().Test(g, node("java.lang.Object")))
	})

	t.Run("Assignable", func(t *testing.T) {
		assert.True(t, AreAssignableTo("com.acme.api.Api").Test(g, node("com.acme.service.Impl")))
		assert.True(t, AreAssignableTo("com.acme.service.Base").Test(g, node("com.acme.service.Impl")))
		assert.False(t, AreAssignableTo("com.acme.api.Api").Test(g, node("com.acme.service.Service")))
	})
}

func TestAreAssignableTo_CyclicHierarchy(t *testing.T) {
	b := graph.NewBuilder(nil)
	require.NoError(t, b.Add(class("x.A", "x.B")))
	require.NoError(t, b.Add(class("x.B", "x.A")))
	g := b.Build()

	a, _ := g.Node("x.A")
	assert.True(t, AreAssignableTo("x.B").Test(g, a))
	assert.False(t, AreAssignableTo("x.C").Test(g, a))
}

func TestRule_Conditions(t *testing.T) {
	g := layeredGraph(t)
	web := ResideInAPackage("com.acme.web..")
	repo := ResideInAPackage("com.acme.repo..")

	t.Run("Not depend on", func(t *testing.T) {
		res := Rule{Scope: web, Condition: NotDependOn(repo), Reason: "layering"}.Evaluate(g)
		assert.Equal(t, 1, res.Checked)
		assert.Equal(t, []string{
			"Method <com.acme.web.Controller.run()> gets field <com.acme.repo.Repo.data> in (Controller.java:12)",
		}, violationTexts(res))
		assert.Equal(t, 12, res.Violations[0].Line)
		require.NotNil(t, res.Violations[0].Dependency)
		assert.Equal(t, "classes that reside in a package 'com.acme.web..' should not depend on classes that reside in a package 'com.acme.repo..', because layering", res.Description)
	})

	t.Run("Only depend on orders by line then description", func(t *testing.T) {
		res := Rule{Scope: web, Condition: OnlyDependOn(web)}.Evaluate(g)
		assert.Equal(t, []string{
			"Method <com.acme.web.Controller.run()> calls method <com.acme.service.Service.handle()> in (Controller.java:10)",
			"Method <com.acme.web.Controller.run()> calls method <org.vendor.Lib.help()> in (Controller.java:12)",
			"Method <com.acme.web.Controller.run()> gets field <com.acme.repo.Repo.data> in (Controller.java:12)",
		}, violationTexts(res))
	})

	t.Run("Access conditions", func(t *testing.T) {
		res := Rule{Scope: repo, Condition: NotBeAccessedBy(web)}.Evaluate(g)
		assert.Len(t, res.Violations, 1)

		res = Rule{Scope: repo, Condition: OnlyBeAccessedBy(ResideInAPackage("com.acme.service.."))}.Evaluate(g)
		assert.Equal(t, []string{
			"Method <com.acme.web.Controller.run()> gets field <com.acme.repo.Repo.data> in (Controller.java:12)",
		}, violationTexts(res))
	})

	t.Run("Name matching", func(t *testing.T) {
		res := Rule{Scope: ResideInAPackage("com.acme.service.."), Condition: HaveNameMatching("Service ")}.Evaluate(g)
		assert.Equal(t, []string{
			"Class <com.acme.service.Base> does not have name matching 'Service '",
			"Class <com.acme.service.Impl> does not have name matching 'Service '",
		}, violationTexts(res))
	})

	t.Run("Transitive", func(t *testing.T) {
		res := Rule{Scope: web, Condition: NotTransitivelyDependOn(NameMatching("Base "))}.Evaluate(g)
		assert.Equal(t, []string{
			"Class <com.acme.web.Controller> transitively depends on <com.acme.service.Base> via com.acme.web.Controller -> com.acme.service.Service -> com.acme.service.Base",
		}, violationTexts(res))
		assert.Equal(t, 10, res.Violations[0].Line)
	})

	t.Run("Cycles", func(t *testing.T) {
		res := Rule{Scope: ResideInAPackage("com.acme.."), Condition: BeFreeOfCycles()}.Evaluate(g)
		assert.Equal(t, []string{
			"Cycle detected: com.acme.repo -> com.acme.service -> com.acme.repo: Method <com.acme.service.Service.run()> calls method <com.acme.repo.Repo.load()> in (Service.java:5)",
			"Cycle detected: com.acme.repo -> com.acme.service -> com.acme.repo: Method <com.acme.repo.Repo.run()> calls method <com.acme.service.Service.callback()> in (Repo.java:20)",
		}, violationTexts(res))

		res = Rule{Scope: ResideInAPackage("com.acme.web.."), Condition: BeFreeOfCycles()}.Evaluate(g)
		assert.True(t, res.Passed())
	})
}

func TestRule_Combinators(t *testing.T) {
	g := layeredGraph(t)
	web := ResideInAPackage("com.acme.web..")
	repo := ResideInAPackage("com.acme.repo..")

	all := Rule{Scope: web, Condition: AllOf(NotDependOn(repo), HaveNameMatching("Controller "))}.Evaluate(g)
	assert.Len(t, all.Violations, 1)

	anyOf := Rule{Scope: web, Condition: AnyOf(NotDependOn(repo), HaveNameMatching("Controller "))}.Evaluate(g)
	assert.True(t, anyOf.Passed())

	neither := Rule{Scope: web, Condition: AnyOf(NotDependOn(repo), HaveNameMatching("Service "))}.Evaluate(g)
	assert.Len(t, neither.Violations, 2)

	never := Rule{Scope: web, Condition: Never(HaveNameMatching("Controller "))}.Evaluate(g)
	assert.Equal(t, []string{"Class <com.acme.web.Controller> has name matching 'Controller '"}, violationTexts(never))
	assert.Contains(t, never.Description, "should never have name matching 'Controller '")

	var checked atomic.Int32
	counting := NewCondition("counted", func(*Input, *graph.Node) []Event {
		checked.Add(1)
		return nil
	})
	Rule{Scope: web, Condition: AnyOf(HaveNameMatching("Controller "), counting)}.Evaluate(g)
	assert.Zero(t, checked.Load(), "AnyOf stops at the first satisfied branch")
}

func TestRule_Determinism(t *testing.T) {
	rule := Rule{Scope: Classes(), Condition: OnlyDependOn(ResideInAPackage("com.acme.."))}
	first := rule.Evaluate(layeredGraph(t))
	for i := 0; i < 3; i++ {
		assert.Equal(t, violationTexts(first), violationTexts(rule.Evaluate(layeredGraph(t))))
	}
	assert.NotEmpty(t, first.Violations)
}

func TestEvaluateAll(t *testing.T) {
	g := layeredGraph(t)
	rules := []Rule{
		{Name: "first", Scope: Classes(), Condition: BeFreeOfCycles()},
		{Name: "second", Scope: ResideInAPackage("com.acme.web.."), Condition: NotDependOn(ResideInAPackage("com.acme.repo.."))},
		{Name: "third", Scope: AreInterfaces(), Condition: HaveNameMatching("Api ")},
	}

	results, err := EvaluateAll(context.Background(), g, rules...)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Rule)
	assert.Len(t, results[0].Violations, 2)
	assert.Equal(t, "second", results[1].Rule)
	assert.True(t, results[2].Passed())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = EvaluateAll(ctx, g, rules...)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResult_Report(t *testing.T) {
	g := layeredGraph(t)
	res := Rule{Scope: ResideInAPackage("com.acme.web.."), Condition: NotDependOn(ResideInAPackage("com.acme.repo.."))}.Evaluate(g)
	assert.Equal(t,
		"Rule 'classes that reside in a package 'com.acme.web..' should not depend on classes that reside in a package 'com.acme.repo..'' was violated (1 times):\n"+
			"Method <com.acme.web.Controller.run()> gets field <com.acme.repo.Repo.data> in (Controller.java:12)\n",
		res.Report())

	ok := Rule{Scope: AreInterfaces(), Condition: HaveNameMatching("Api ")}.Evaluate(g)
	assert.Equal(t, "Rule 'classes that are interfaces should have name matching 'Api '' passed (1 classes checked)\n", ok.Report())
}

func TestCompile(t *testing.T) {
	g := layeredGraph(t)

	r, err := Compile(config.RuleConfig{
		Name:    "web skips repo",
		Scope:   "com.acme.web.*",
		Should:  "not_depend_on",
		Target:  "com.acme.repo.*",
		Because: "layering",
	})
	require.NoError(t, err)
	res := r.Evaluate(g)
	assert.Equal(t, "web skips repo", res.Rule)
	assert.Len(t, res.Violations, 1)

	cycles, err := Compile(config.RuleConfig{Should: " Be_Free_Of_Cycles "})
	require.NoError(t, err)
	assert.Len(t, cycles.Evaluate(g).Violations, 2)

	_, err = Compile(config.RuleConfig{Name: "x", Should: "be_nice"})
	assert.ErrorContains(t, err, "unknown condition")

	_, err = Compile(config.RuleConfig{Name: "x", Should: "only_depend_on"})
	assert.ErrorContains(t, err, "needs a target")

	all, err := CompileAll([]config.RuleConfig{{Should: "be_free_of_cycles"}, {Should: "have_name_matching"}})
	assert.Error(t, err)
	assert.Nil(t, all)
}
