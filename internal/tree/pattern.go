package tree

import (
	"regexp"
	"strings"
)

// CompilePattern compiles the name filter language: leading whitespace is
// ignored, '*' matches any substring, a trailing space anchors the match to
// the end of the name, everything else is literal. Matches are unanchored at
// the start, so "foo.Bar" finds "com.foo.Bar".
func CompilePattern(pattern string) *regexp.Regexp {
	pattern = strings.TrimLeft(pattern, " \t\r\n")
	anchored := strings.HasSuffix(pattern, " ")
	pattern = strings.TrimRight(pattern, " ")

	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := strings.Join(parts, ".*")
	if anchored {
		expr += "$"
	}
	return regexp.MustCompile(expr)
}

// NameFilter selects leaves by full name. Exclude inverts the match. The
// zero value selects everything.
type NameFilter struct {
	Pattern string
	Exclude bool
}

// Active reports whether the filter restricts anything.
func (f NameFilter) Active() bool {
	return strings.TrimSpace(f.Pattern) != ""
}

// Matcher compiles the filter into a leaf predicate.
func (f NameFilter) Matcher() func(name string) bool {
	if !f.Active() {
		return func(string) bool { return true }
	}
	re := CompilePattern(f.Pattern)
	return func(name string) bool {
		return re.MatchString(name) != f.Exclude
	}
}
