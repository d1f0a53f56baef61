package tracking

import "errors"

var (
	// ErrInvalidArgument is returned for malformed frames and out-of-range
	// configuration values. The tracker is left unchanged.
	ErrInvalidArgument = errors.New("tracking: invalid argument")

	// ErrNotFound is returned when a queried track does not currently exist.
	ErrNotFound = errors.New("tracking: track not found")
)
