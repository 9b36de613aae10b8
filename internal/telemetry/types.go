package telemetry

import "time"

// Record is one append-only telemetry log entry.
//
// Payloads are opaque text: devices define their own status formats and the
// control plane never interprets them, only stores and serves them.
type Record struct {
	// ID is the monotonically increasing log sequence number.
	ID int64 `json:"id"`

	// Topic is the MQTT topic the message arrived on.
	Topic string `json:"topic"`

	// Payload is the raw message body, stored verbatim.
	Payload string `json:"payload"`

	// ReceivedAt is the ingestion timestamp (UTC), assigned by the control
	// plane, not the device.
	ReceivedAt time.Time `json:"received_at"`
}
