package crawler

import (
	"path/filepath"
	"regexp"
	"strings"

	"archcheck/internal/location"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides whether a candidate module is imported. Filters only see
// the candidate's location, so excluded modules are never read.
type Filter interface {
	Includes(loc location.Location) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(loc location.Location) bool

func (f FilterFunc) Includes(loc location.Location) bool { return f(loc) }

var testOutputDirs = []*regexp.Regexp{
	regexp.MustCompile(`/test-classes/`),
	regexp.MustCompile(`/build/classes/[^/]+/test/`),
	regexp.MustCompile(`/out/test/`),
}

// DoNotIncludeTests skips modules compiled into the usual Maven, Gradle and
// IntelliJ test output directories.
func DoNotIncludeTests() Filter {
	return FilterFunc(func(loc location.Location) bool {
		uri := loc.URI()
		for _, re := range testOutputDirs {
			if re.MatchString(uri) {
				return false
			}
		}
		return true
	})
}

// rootFilter is a Filter that can reject a whole location before it is
// opened.
type rootFilter interface {
	Filter
	excludesRoot(loc location.Location) bool
}

type archiveFilter struct{}

func (archiveFilter) Includes(loc location.Location) bool { return !loc.IsArchive() }

func (archiveFilter) excludesRoot(loc location.Location) bool { return loc.IsArchive() }

// DoNotIncludeArchives skips every module loaded from an archive bundle.
// Archive locations are skipped without being opened.
func DoNotIncludeArchives() Filter {
	return archiveFilter{}
}

// ExcludeGlobs skips modules whose path matches any of the doublestar
// patterns. Filesystem candidates are matched on their slash-separated path
// without the leading slash, archive candidates on the entry path inside the
// archive. Invalid patterns never match.
func ExcludeGlobs(patterns ...string) Filter {
	valid := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" && doublestar.ValidatePattern(p) {
			valid = append(valid, p)
		}
	}
	return FilterFunc(func(loc location.Location) bool {
		name := strings.TrimPrefix(filepath.ToSlash(loc.Path()), "/")
		if loc.IsArchive() {
			name = loc.Entry()
		}
		for _, p := range valid {
			if ok, _ := doublestar.Match(p, name); ok {
				return false
			}
		}
		return true
	})
}

func excludedAtRoot(loc location.Location, filters []Filter) bool {
	for _, f := range filters {
		if rf, ok := f.(rootFilter); ok && rf.excludesRoot(loc) {
			return true
		}
	}
	return false
}

func includedByAll(loc location.Location, filters []Filter) bool {
	for _, f := range filters {
		if f != nil && !f.Includes(loc) {
			return false
		}
	}
	return true
}
