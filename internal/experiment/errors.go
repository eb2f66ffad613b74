package experiment

import "errors"

// Sentinel errors for the experiment engine.
var (
	// ErrInvalidSpec is returned for malformed experiment input, rejected
	// before any state is created.
	ErrInvalidSpec = errors.New("invalid experiment spec")
	// ErrNotFound is returned when a test or variant id is unknown. Not
	// fatal; callers may poll or retry.
	ErrNotFound = errors.New("experiment not found")
)
