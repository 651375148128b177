package geocoding

import (
	"errors"
	"fmt"
)

// ErrNotFound means the address matched nothing. The operator must revise
// the text; retrying the same text will not help.
var ErrNotFound = errors.New("geocoding: address not found")

// TransportError is a failure to reach or understand the upstream service.
// Re-invoking the search may succeed.
type TransportError struct {
	Op     string
	Status int // HTTP status when one was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("geocoding %s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("geocoding %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable is always true; the type exists so callers can tell the two
// recoverable failures apart.
func (e *TransportError) Retryable() bool { return true }
