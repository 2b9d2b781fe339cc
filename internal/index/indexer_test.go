package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"archcheck/internal/config"
	"archcheck/internal/crawler"
	"archcheck/internal/extractor"
	"archcheck/internal/graph"
	"archcheck/internal/location"
	"archcheck/internal/testutil"
	"archcheck/internal/testutil/classgen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImporter() *Importer {
	return NewImporter(crawler.NewCrawler(extractor.NewExtractor()), nil)
}

func fixture(t *testing.T) []location.Location {
	t.Helper()
	root := t.TempDir()
	classes := filepath.Join(root, "classes")

	a := classgen.New("com.acme.app.A").Source("A.java")
	a.Method(classgen.AccPublic, "run", "()V").
		Line(7).New("com.acme.core.B").
		Line(8).InvokeStatic("com.acme.core.B", "help", "()V").
		Line(9).GetStatic("org.lib.Missing", "FLAG", "Z").
		Return()
	testutil.WriteFile(t, filepath.Join(classes, "com/acme/app/A.class"), a.Bytes())
	testutil.WriteFile(t, filepath.Join(classes, "com/acme/app/Broken.class"), []byte("not a class"))

	b := classgen.New("com.acme.core.B")
	b.Method(classgen.AccPublic, "<init>", "()V").Line(3).InvokeSpecial(classgen.Object, "<init>", "()V").Return()
	b.Method(classgen.AccPublic|classgen.AccStatic, "help", "()V").Return()

	jar := filepath.Join(root, "core.jar")
	testutil.WriteZip(t, jar, map[string][]byte{"com/acme/core/B.class": b.Bytes()})

	return []location.Location{location.OfPath(classes), location.OfPath(jar)}
}

func TestImporter_Import(t *testing.T) {
	locs := fixture(t)
	g, err := newImporter().Import(context.Background(), locs)
	require.NoError(t, err)

	t.Run("Links to imported modules", func(t *testing.T) {
		b, ok := g.Node("com.acme.core.B")
		require.True(t, ok)
		assert.False(t, b.IsStub())
		assert.True(t, b.Module.Location.IsArchive())

		var targets []string
		for _, d := range g.DependenciesFrom("com.acme.app.A") {
			targets = append(targets, d.Target.Name)
		}
		assert.Contains(t, targets, "com.acme.core.B")
	})

	t.Run("Stubs for missing names", func(t *testing.T) {
		missing, ok := g.Node("org.lib.Missing")
		require.True(t, ok)
		assert.True(t, missing.IsStub())
	})

	t.Run("Malformed candidates become diagnostics", func(t *testing.T) {
		counts := g.DiagnosticCounts()
		assert.Equal(t, 1, counts[graph.DiagnosticMalformed])
	})

	t.Run("Deterministic", func(t *testing.T) {
		again, err := newImporter().Import(context.Background(), locs)
		require.NoError(t, err)
		assert.Equal(t, g.Summarize(), again.Summarize())
	})
}

func TestImporter_Filters(t *testing.T) {
	locs := fixture(t)
	filters := Filters(config.ImportConfig{ExcludeArchives: true, ExcludeGlobs: []string{"**/Broken.class"}})
	require.Len(t, filters, 2)

	g, err := newImporter().Import(context.Background(), locs, filters...)
	require.NoError(t, err)

	b, ok := g.Node("com.acme.core.B")
	require.True(t, ok)
	assert.True(t, b.IsStub(), "archive was filtered out")
	assert.Zero(t, g.DiagnosticCounts()[graph.DiagnosticMalformed])
}

func TestImporter_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("No locations", func(t *testing.T) {
		_, err := newImporter().Import(ctx, nil)
		var importErr *ImportError
		require.True(t, errors.As(err, &importErr))
		assert.ErrorIs(t, err, ErrNoLocations)
	})

	t.Run("No readable location", func(t *testing.T) {
		dir := t.TempDir()
		_, err := newImporter().Import(ctx, []location.Location{
			location.OfPath(filepath.Join(dir, "a")),
			location.OfPath(filepath.Join(dir, "b.jar")),
		})
		var importErr *ImportError
		require.True(t, errors.As(err, &importErr))
		assert.Len(t, importErr.Causes, 2)
		var ioErr *location.LocationIOError
		assert.True(t, errors.As(err, &ioErr))
		assert.Contains(t, err.Error(), "(and 1 more)")
	})

	t.Run("Every candidate fails", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, filepath.Join(dir, "X.class"), []byte{1, 2, 3})
		_, err := newImporter().Import(ctx, []location.Location{location.OfPath(dir)})
		var importErr *ImportError
		require.True(t, errors.As(err, &importErr))
		var malformed *extractor.MalformedModuleError
		assert.True(t, errors.As(err, &malformed))
	})

	t.Run("Some unreadable locations are tolerated", func(t *testing.T) {
		locs := append(fixture(t), location.OfPath(filepath.Join(t.TempDir(), "gone")))
		g, err := newImporter().Import(ctx, locs)
		require.NoError(t, err)
		assert.Equal(t, 1, g.DiagnosticCounts()[graph.DiagnosticUnreadable])
	})

	t.Run("Empty directory gives an empty graph", func(t *testing.T) {
		g, err := newImporter().Import(ctx, []location.Location{location.OfPath(t.TempDir())})
		require.NoError(t, err)
		assert.Zero(t, g.Len())
	})
}

func TestResolveLocations(t *testing.T) {
	locs, errs := ResolveLocations([]string{"/a/classes", "http://example.com/x.jar", "/a/classes", "/a/lib.jar"})
	require.Len(t, errs, 1)
	var unsupported *location.UnsupportedLocationError
	assert.True(t, errors.As(errs[0], &unsupported))
	require.Len(t, locs, 2)
	assert.True(t, locs[1].IsArchive())
}

func TestExportFile(t *testing.T) {
	g, err := newImporter().Import(context.Background(), fixture(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, ExportFile(g, path))

	s, err := ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, g.Stats(), s.Stats)
	assert.Len(t, s.Dependencies, len(g.Dependencies()))
	assert.Equal(t, g.Dependencies()[0].Description(), s.Dependencies[0].Description)
}
