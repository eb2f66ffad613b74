package performance

import "errors"

// Sentinel errors for the aggregator.
var (
	// ErrNotFound is returned when an operation references an unknown or
	// already-stopped tracking session. Not fatal; callers may poll.
	ErrNotFound = errors.New("tracking session not found")
	// ErrAlreadyTracking is returned when a session is started twice for
	// the same orchestration.
	ErrAlreadyTracking = errors.New("orchestration already has an active tracking session")
	// ErrInvalidSpec is returned for malformed tracking input.
	ErrInvalidSpec = errors.New("invalid tracking spec")
)
