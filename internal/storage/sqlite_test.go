package storage

import (
	"context"
	"path/filepath"
	"testing"

	"archcheck/internal/extractor"
	"archcheck/internal/graph"
	"archcheck/internal/location"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	a := &extractor.Module{
		Name:       "com.foo.A",
		Kind:       extractor.KindClass,
		Flags:      extractor.FlagPublic | extractor.FlagFinal,
		SuperName:  "com.foo.Base",
		Interfaces: []string{"java.lang.Runnable"},
		SourceFile: "A.java",
		Version:    extractor.Version{Major: 61},
		Location:   location.MustParse("jar:file:///libs/app.jar!/com/foo/A.class"),
		Sites: []*extractor.AccessSite{
			{Kind: extractor.AccessInheritance, Owner: "com.foo.Base"},
			{Kind: extractor.AccessInheritance, Owner: "java.lang.Runnable", Interface: true},
		},
		Members: []*extractor.Member{
			{Owner: "com.foo.A", Kind: extractor.MemberField, Name: "count", Descriptor: "I", Flags: extractor.FlagPrivate},
			{Owner: "com.foo.A", Kind: extractor.MemberMethod, Name: "run", Descriptor: "()V", Flags: extractor.FlagPublic,
				Sites: []*extractor.AccessSite{
					{Kind: extractor.AccessFieldRead, Owner: "com.foo.B", Name: "size", Descriptor: "I", Line: 7},
					{Kind: extractor.AccessMethodCall, Owner: "com.foo.B", Name: "go", Descriptor: "(I)V", Line: 8},
					{Kind: extractor.AccessConstructorCall, Owner: "java.util.ArrayList", Name: "<init>", Descriptor: "()V", Line: 9},
				}},
		},
	}
	base := &extractor.Module{
		Name:     "com.foo.Base",
		Kind:     extractor.KindClass,
		Location: location.MustParse("file:///classes/com/foo/Base.class"),
	}
	b := &extractor.Module{
		Name:     "com.foo.B",
		Kind:     extractor.KindClass,
		Location: location.MustParse("file:///classes/com/foo/B.class"),
	}

	builder := graph.NewBuilder(nil)
	builder.Note(graph.Diagnostic{Kind: graph.DiagnosticMalformed, Name: "file:///classes/Broken.class", Detail: "bad magic number"})
	for _, m := range []*extractor.Module{a, base, b} {
		require.NoError(t, builder.Add(m))
	}
	return builder.Build()
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	g := testGraph(t)
	runID, err := store.SaveGraph(ctx, "file:///classes", g)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	loaded, err := store.LoadGraph(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, g.Summarize(), loaded.Summarize())

	a, ok := loaded.Node("com.foo.A")
	require.True(t, ok)
	assert.Equal(t, []string{"java.lang.Runnable"}, a.Module.Interfaces)
	assert.Equal(t, extractor.Version{Major: 61}, a.Module.Version)
	assert.True(t, a.Module.Flags.Has(extractor.FlagFinal))
	assert.True(t, a.Module.Location.IsArchive())

	runnable, ok := loaded.Node("java.lang.Runnable")
	require.True(t, ok)
	assert.True(t, runnable.IsStub())
}

func TestSQLiteStore_Runs(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	first, err := store.SaveGraph(ctx, "first", testGraph(t))
	require.NoError(t, err)
	second, err := store.SaveGraph(ctx, "second", graph.Empty())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
	assert.Equal(t, "second", latest.Key)
	assert.Zero(t, latest.Modules)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, 3, runs[1].Modules)

	empty, err := store.LoadGraph(ctx, second)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
}

func TestSQLiteStore_LoadGraph_UnknownRun(t *testing.T) {
	store := openStore(t)

	_, err := store.LoadGraph(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
