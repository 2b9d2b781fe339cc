package location

import "fmt"

// UnsupportedLocationError is returned for addresses that are neither
// filesystem- nor archive-backed.
type UnsupportedLocationError struct {
	Raw    string
	Scheme string
	Reason string
}

func (e *UnsupportedLocationError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("unsupported location %q: %s", e.Raw, e.Reason)
	default:
		return fmt.Sprintf("unsupported location %q: scheme %q is neither %s nor %s", e.Raw, e.Scheme, fileScheme, archiveScheme)
	}
}

// LocationIOError means the bytes behind a location could not be opened or read.
type LocationIOError struct {
	Location Location
	Op       string
	Err      error
}

func (e *LocationIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location.URI(), e.Err)
}

func (e *LocationIOError) Unwrap() error { return e.Err }
