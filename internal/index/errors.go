package index

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoLocations is the cause reported when nothing was given to import.
var ErrNoLocations = errors.New("no resolvable locations")

// ImportError is the single error surfaced when an import produced nothing:
// no location resolved, or every candidate module failed.
type ImportError struct {
	Reason string
	Causes []error
}

func (e *ImportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "import failed: %s", e.Reason)
	if len(e.Causes) > 0 {
		fmt.Fprintf(&b, ": %v", e.Causes[0])
		if more := len(e.Causes) - 1; more > 0 {
			fmt.Fprintf(&b, " (and %d more)", more)
		}
	}
	return b.String()
}

func (e *ImportError) Unwrap() []error {
	return e.Causes
}
