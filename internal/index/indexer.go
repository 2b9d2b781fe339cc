package index

import (
	"context"
	"errors"
	"fmt"

	"archcheck/internal/config"
	"archcheck/internal/crawler"
	"archcheck/internal/graph"
	"archcheck/internal/location"
	"archcheck/internal/logging"

	"github.com/charmbracelet/log"
)

// Importer turns locations into a linked dependency graph.
type Importer struct {
	crawler *crawler.Crawler
	logger  *log.Logger
}

// NewImporter creates a new importer. A nil logger discards output.
func NewImporter(c *crawler.Crawler, logger *log.Logger) *Importer {
	return &Importer{
		crawler: c,
		logger:  logging.OrDiscard(logger),
	}
}

// Import scans locs, parses every candidate that passes the filters and
// links the results. Unreadable locations and malformed modules are kept as
// graph diagnostics; only an import that yields nothing fails, with a
// single *ImportError.
func (i *Importer) Import(ctx context.Context, locs []location.Location, filters ...crawler.Filter) (*graph.Graph, error) {
	if len(locs) == 0 {
		return nil, &ImportError{Reason: "no locations given", Causes: []error{ErrNoLocations}}
	}

	res, err := i.crawler.Scan(ctx, locs, filters...)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	if len(res.LocationErrors) == len(locs) {
		return nil, &ImportError{Reason: "no location could be read", Causes: res.LocationErrors}
	}
	failures := res.Failures()
	if len(res.Candidates) > 0 && len(failures) == len(res.Candidates) {
		return nil, &ImportError{Reason: "every candidate module failed", Causes: failures}
	}

	b := graph.NewBuilder(i.logger)
	for _, err := range res.LocationErrors {
		b.Note(graph.Diagnostic{Kind: graph.DiagnosticUnreadable, Name: errorSubject(err), Detail: err.Error()})
	}
	for _, c := range res.Candidates {
		if c.Err != nil {
			b.Note(graph.Diagnostic{Kind: graph.DiagnosticMalformed, Name: c.Location.URI(), Detail: c.Err.Error()})
			continue
		}
		if err := b.Add(c.Module); err != nil {
			return nil, err
		}
	}
	g := b.Build()

	stats := g.Stats()
	i.logger.Info("import finished",
		"locations", len(locs),
		"classes", stats.Classes,
		"stubs", stats.Stubs,
		"dependencies", stats.Dependencies,
		"failed", len(failures)+len(res.LocationErrors),
		"filtered", res.Filtered)
	return g, nil
}

// ResolveLocations parses raw addresses. Unsupported ones are returned as
// errors next to the locations that did resolve, so callers decide whether
// to abort or skip them. Duplicates are dropped.
func ResolveLocations(raw []string) ([]location.Location, []error) {
	var (
		locs []location.Location
		errs []error
	)
	seen := make(map[location.Location]bool, len(raw))
	for _, r := range raw {
		loc, err := location.Parse(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[loc] {
			continue
		}
		seen[loc] = true
		locs = append(locs, loc)
	}
	return locs, errs
}

// Filters builds the import filters declared in configuration.
func Filters(cfg config.ImportConfig) []crawler.Filter {
	var filters []crawler.Filter
	if cfg.ExcludeTests {
		filters = append(filters, crawler.DoNotIncludeTests())
	}
	if cfg.ExcludeArchives {
		filters = append(filters, crawler.DoNotIncludeArchives())
	}
	if len(cfg.ExcludeGlobs) > 0 {
		filters = append(filters, crawler.ExcludeGlobs(cfg.ExcludeGlobs...))
	}
	return filters
}

func errorSubject(err error) string {
	var ioErr *location.LocationIOError
	if errors.As(err, &ioErr) {
		return ioErr.Location.URI()
	}
	return "unknown"
}
