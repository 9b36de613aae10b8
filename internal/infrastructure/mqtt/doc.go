// Package mqtt provides MQTT client connectivity for DoseBox Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Command publishing to update/{organizer_id} with QoS guarantees
//   - Telemetry topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// DoseBox uses MQTT as the channel between the control plane and the
// pill-organizer fleet. The broker decouples the control plane from
// the devices; commands flow one way, telemetry the other.
//
//	DoseBox Core → MQTT Broker → Organizers
//	Organizers  → MQTT Broker → telemetryd
//
// # Delivery Semantics
//
//   - Commands publish at QoS 1 (at-least-once), not retained. An organizer
//     offline at publish time does not receive the command retroactively.
//   - Telemetry subscriptions use QoS 1; duplicate delivery is possible and
//     is not deduplicated. Consumers must tolerate duplicates.
//   - A publish attempted while disconnected fails visibly with
//     ErrNotConnected; it never succeeds by appearance.
//
// # Security Considerations
//
//   - TLS is required for production deployments (broker port 8883)
//   - The broker password arrives via DOSEBOX_MQTT_PASSWORD at process start
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.OrganizerUpdate(org.ID)
//	err = client.PublishCommand(topic, payload)
package mqtt
