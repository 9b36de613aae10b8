package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (256KB).
// Configuration payloads are tiny; this guards against programming errors.
const maxPayloadSize = 256 << 10

// Publish sends a message to the specified MQTT topic.
//
// Command payloads use QoS 1 (at-least-once) and are not retained: an
// organizer that is offline at publish time will not receive the command
// retroactively.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "update/42")
//   - payload: The message payload (canonical JSON for commands)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure.
//     Publishing on a disconnected client returns ErrNotConnected; an
//     unacknowledged publish times out with ErrPublishFailed.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Publish with a bounded wait on the broker acknowledgement
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishCommand publishes a command payload at the configured QoS,
// not retained. This is the publish path used for organizer configuration.
func (c *Client) PublishCommand(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}
