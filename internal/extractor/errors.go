package extractor

import (
	"fmt"

	"archcheck/internal/location"
)

// MalformedModuleError means the bytes did not decode as a compiled module.
// It is recoverable: the import continues without this module.
type MalformedModuleError struct {
	Location location.Location
	Err      error
}

func (e *MalformedModuleError) Error() string {
	return fmt.Sprintf("malformed module %s: %v", e.Location.URI(), e.Err)
}

func (e *MalformedModuleError) Unwrap() error { return e.Err }
