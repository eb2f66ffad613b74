package orchestration

import "errors"

// Sentinel errors for the orchestration layer.
var (
	// ErrUnsupportedStrategy is returned for a strategy name outside the
	// four recognized values.
	ErrUnsupportedStrategy = errors.New("unsupported scheduling strategy")
	// ErrInvalidSpec is returned for malformed plan input, rejected before
	// any state is created.
	ErrInvalidSpec = errors.New("invalid plan spec")
	// ErrNotFound is returned when an operation references an unknown or
	// already-fully-fired plan. It is a condition, not a fatal error;
	// callers may poll or retry.
	ErrNotFound = errors.New("plan not found")
	// ErrAlreadyScheduled is returned when a plan id is scheduled twice.
	ErrAlreadyScheduled = errors.New("plan already scheduled")
)
