package cache

import (
	"sort"
	"strings"

	"archcheck/internal/location"
)

// Key identifies a location set independent of order and repetition.
type Key string

// KeyOf derives the key of a location set from its normalized URIs.
func KeyOf(locs []location.Location) Key {
	uris := make([]string, 0, len(locs))
	seen := make(map[string]bool, len(locs))
	for _, l := range locs {
		u := l.URI()
		if seen[u] {
			continue
		}
		seen[u] = true
		uris = append(uris, u)
	}
	sort.Strings(uris)
	return Key(strings.Join(uris, "\n"))
}
