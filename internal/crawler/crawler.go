package crawler

import (
	"context"
	"path"
	"runtime"

	"archcheck/internal/extractor"
	"archcheck/internal/location"
	"archcheck/internal/logging"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// moduleInfo describes a module system descriptor, not a type.
const moduleInfo = "module-info.class"

// Candidate is one compiled module selected for import, with its parse outcome.
type Candidate struct {
	Location location.Location
	Module   *extractor.Module
	Err      error
}

// Result is the outcome of a scan. Candidates are in location order, then
// entry name order, regardless of how parsing was scheduled.
type Result struct {
	Candidates     []Candidate
	LocationErrors []error
	Filtered       int
}

// Modules returns the successfully parsed modules in candidate order.
func (r *Result) Modules() []*extractor.Module {
	mods := make([]*extractor.Module, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		if c.Module != nil {
			mods = append(mods, c.Module)
		}
	}
	return mods
}

// Failures returns per-candidate errors in candidate order.
func (r *Result) Failures() []error {
	var errs []error
	for _, c := range r.Candidates {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errs
}

// Crawler enumerates locations and parses the modules found there.
type Crawler struct {
	extractor *extractor.Extractor

	// Workers bounds concurrent parses; zero means runtime.NumCPU().
	Workers int
	Logger  *log.Logger
}

// NewCrawler creates a new crawler instance.
func NewCrawler(ext *extractor.Extractor) *Crawler {
	return &Crawler{extractor: ext}
}

type enumerated struct {
	source  location.ByteSource
	entries []location.Entry
	err     error
}

// Scan enumerates every location in parallel, applies filters before any
// bytes are read, then parses the surviving candidates on a bounded pool.
// Failures of single locations or candidates are recorded in the result;
// only context cancellation aborts the scan.
func (c *Crawler) Scan(ctx context.Context, locs []location.Location, filters ...Filter) (*Result, error) {
	logger := logging.OrDiscard(c.Logger)
	listed := make([]enumerated, len(locs))
	filtered := make([]int, len(locs))

	defer func() {
		for _, l := range listed {
			if l.source != nil {
				_ = l.source.Close()
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range locs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if excludedAtRoot(loc, filters) {
				logger.Debug("location filtered", "location", loc.URI())
				return nil
			}
			src, err := loc.ByteSource()
			if err != nil {
				listed[i].err = err
				return nil
			}
			listed[i].source = src

			entries, err := src.Entries()
			if err != nil {
				listed[i].err = err
				return nil
			}
			for _, e := range entries {
				if path.Base(e.Name) == moduleInfo {
					continue
				}
				if !includedByAll(e.Location, filters) {
					filtered[i]++
					continue
				}
				listed[i].entries = append(listed[i].entries, e)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	var entries []location.Entry
	for i, l := range listed {
		res.Filtered += filtered[i]
		if l.err != nil {
			logger.Warn("location unreadable", "location", locs[i].URI(), "err", l.err)
			res.LocationErrors = append(res.LocationErrors, l.err)
			continue
		}
		entries = append(entries, l.entries...)
	}

	res.Candidates = make([]Candidate, len(entries))
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pg, pctx := errgroup.WithContext(ctx)
	pg.SetLimit(workers)
	for i, e := range entries {
		pg.Go(func() error {
			if err := pctx.Err(); err != nil {
				return err
			}
			mod, err := c.extractor.ExtractEntry(e)
			res.Candidates[i] = Candidate{Location: e.Location, Module: mod, Err: err}
			if err != nil {
				logger.Warn("module skipped", "location", e.Location.URI(), "err", err)
			}
			return nil
		})
	}
	if err := pg.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("scan finished",
		"locations", len(locs),
		"candidates", len(entries),
		"filtered", res.Filtered)
	return res, nil
}
