package organizer

import "errors"

// Domain errors for the organizer package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, organizer.ErrUnknownTimeReference) {
//	    // caller-correctable, report to the submitter
//	}
var (
	// ErrNotFound is returned when an organizer id does not exist.
	ErrNotFound = errors.New("organizer: not found")

	// ErrExists is returned when registering a duplicate serial number.
	ErrExists = errors.New("organizer: serial number already registered")

	// ErrForbidden is returned when a principal lacks access to an organizer.
	ErrForbidden = errors.New("organizer: access denied")

	// ErrInvalidName is returned when an organizer name is empty.
	ErrInvalidName = errors.New("organizer: invalid name")

	// ErrInvalidSerial is returned when a serial number is empty.
	ErrInvalidSerial = errors.New("organizer: invalid serial number")

	// ErrInvalidColumnCount is returned when a column count is out of range.
	ErrInvalidColumnCount = errors.New("organizer: invalid column count")

	// Compilation errors. Caller-correctable: surfaced to the submitter,
	// no state is mutated.

	// ErrUnknownTimeReference is returned when schedule input references a
	// time-of-day id with no matching catalog entry.
	ErrUnknownTimeReference = errors.New("organizer: unknown time reference")

	// ErrInvalidColumn is returned when schedule input targets a column
	// outside the organizer's valid range.
	ErrInvalidColumn = errors.New("organizer: column index out of range")

	// ErrInvalidDayCode is returned when schedule input carries an
	// unrecognised weekday token. Checked before compilation.
	ErrInvalidDayCode = errors.New("organizer: invalid day code")

	// Submission errors. Distinguish where a submission failed so callers
	// can tell "never compiled" from "compiled but not persisted" from
	// "persisted but not delivered".

	// ErrStoreWrite is returned when persisting a compiled payload fails.
	ErrStoreWrite = errors.New("organizer: store write failed")

	// ErrVersionConflict is returned by conditional column updates when the
	// slot version does not match the caller's expectation.
	ErrVersionConflict = errors.New("organizer: column version conflict")

	// ErrCommandPublish is returned when the compiled payload was persisted
	// but publishing the device command failed.
	ErrCommandPublish = errors.New("organizer: command publish failed")
)
