package telemetry

import "errors"

var (
	// ErrAppendFailed is returned when a telemetry record cannot be persisted.
	ErrAppendFailed = errors.New("telemetry: append failed")

	// ErrOutageExceeded is returned by the ingestor when the broker
	// connection has been down longer than the configured outage bound.
	ErrOutageExceeded = errors.New("telemetry: broker outage bound exceeded")
)
