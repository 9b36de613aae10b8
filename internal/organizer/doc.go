// Package organizer implements the device-facing half of the control plane:
// registration and sharing of pill organizers, their per-column device state
// store, and the configuration pipeline that turns raw schedule input into
// canonical payloads on the wire.
//
// The pipeline has three independent stages. Compile is a pure translation
// of schedule input against a catalog snapshot; the Repository persists the
// compiled payload with a per-slot version counter; the Service publishes
// the payload to the organizer's command topic. A failure in any stage
// leaves earlier stages' effects intact and is distinguishable by error:
// ErrUnknownTimeReference and ErrInvalidColumn before any mutation,
// ErrStoreWrite before any publish, ErrCommandPublish after persistence.
//
// Column writes default to last-write-wins. Callers that need to detect
// concurrent edits pass an expected version and handle ErrVersionConflict.
package organizer
