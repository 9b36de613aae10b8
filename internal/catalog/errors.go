package catalog

import "errors"

// Domain errors for the catalog package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, catalog.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a time-of-day id does not exist.
	ErrNotFound = errors.New("catalog: time of day not found")

	// ErrInvalidName is returned when an entry name is empty.
	ErrInvalidName = errors.New("catalog: invalid name")

	// ErrInvalidTime is returned when a time is not "HH:MM" 24-hour format.
	ErrInvalidTime = errors.New("catalog: invalid time (must be HH:MM)")
)
