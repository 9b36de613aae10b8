package mqtt

import "fmt"

// Topic prefixes for the DoseBox fleet.
//
// Command topics use the flat scheme update/{organizer_id}: one organizer
// owns exactly one command topic. Telemetry topics are device-defined and
// treated as opaque at ingestion; the status/ prefix is the convention the
// shipped firmware follows.
const (
	// TopicPrefixUpdate is the base for organizer command topics.
	TopicPrefixUpdate = "update"

	// TopicPrefixStatus is the base for organizer telemetry topics.
	TopicPrefixStatus = "status"

	// TopicPrefixSystem is the base for control-plane system topics.
	TopicPrefixSystem = "dosebox/system"
)

// Topics provides builders for DoseBox MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.OrganizerUpdate("5f3a…")
//	// Returns: "update/5f3a…"
type Topics struct{}

// OrganizerUpdate returns the command topic for an organizer.
// Configuration payloads for every column of the organizer are published here.
//
// Example: update/42
func (Topics) OrganizerUpdate(organizerID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixUpdate, organizerID)
}

// OrganizerStatus returns the conventional telemetry topic for an organizer.
//
// Example: status/42
func (Topics) OrganizerStatus(organizerID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixStatus, organizerID)
}

// SystemStatus returns the control-plane status topic (LWT and
// online/offline announcements).
//
// Example: dosebox/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllStatus returns a pattern matching all organizer telemetry topics.
//
// Pattern: status/#
func (Topics) AllStatus() string {
	return fmt.Sprintf("%s/#", TopicPrefixStatus)
}
