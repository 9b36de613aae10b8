package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCommandPublish records a configuration command published to an
// organizer. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - organizerID: The organizer the command was addressed to
//   - payloadBytes: Size of the published payload
func (c *Client) WriteCommandPublish(organizerID string, payloadBytes int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_publish",
		map[string]string{
			"organizer_id": organizerID,
		},
		map[string]interface{}{
			"payload_bytes": payloadBytes,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTelemetryIngest records an inbound telemetry message appended to the
// telemetry log. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - topic: The topic the message arrived on
//   - payloadBytes: Size of the received payload
func (c *Client) WriteTelemetryIngest(topic string, payloadBytes int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"telemetry_ingest",
		map[string]string{
			"topic": topic,
		},
		map[string]interface{}{
			"payload_bytes": payloadBytes,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
