package organizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Day codes accepted in schedule input and emitted in dispense events.
const (
	DayMon = "mon"
	DayTue = "tue"
	DayWed = "wed"
	DayThu = "thu"
	DayFri = "fri"
	DaySat = "sat"
	DaySun = "sun"
)

// ValidDayCodes lists all recognised weekday tokens.
var ValidDayCodes = []string{DayMon, DayTue, DayWed, DayThu, DayFri, DaySat, DaySun}

// IsValidDayCode reports whether code is a recognised weekday token.
func IsValidDayCode(code string) bool {
	for _, d := range ValidDayCodes {
		if d == code {
			return true
		}
	}
	return false
}

// Organizer is a physical multi-column pill-dispensing device.
type Organizer struct {
	// ID is the unique organizer identifier (UUID).
	ID string `json:"id"`

	// SerialNumber is the device's manufacturing serial, unique per fleet.
	SerialNumber string `json:"serial_number"`

	// Name is the human-assigned display name.
	Name string `json:"name"`

	// Owner is the registering principal.
	Owner string `json:"owner"`

	// SharedUsers are additional principals with access to this organizer.
	SharedUsers []string `json:"shared_users"`

	// Columns is the number of physical column slots (1..Columns addressable).
	Columns int `json:"columns"`

	// CreatedAt is the registration timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last modification timestamp (UTC).
	UpdatedAt time.Time `json:"updated_at"`
}

// AccessibleBy reports whether the principal owns or has been granted
// access to this organizer.
func (o *Organizer) AccessibleBy(principal string) bool {
	if o.Owner == principal {
		return true
	}
	for _, u := range o.SharedUsers {
		if u == principal {
			return true
		}
	}
	return false
}

// ColumnSlot is one addressable compartment of an organizer.
//
// An empty slot has a nil Payload and Version 0. Version increments on
// every write and backs the optional conditional-update path.
type ColumnSlot struct {
	// Index is the 1-based column index.
	Index int `json:"index"`

	// Payload is the compiled configuration, nil when the slot is empty.
	Payload *Payload `json:"payload,omitempty"`

	// Version is the write counter for this slot (0 when empty).
	Version int64 `json:"version"`

	// UpdatedAt is the last write timestamp (UTC), zero when empty.
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// ScheduleInput is the raw, ephemeral schedule submission for one column.
// It is produced once per configuration submission, consumed by Compile,
// and discarded — never persisted.
type ScheduleInput struct {
	// MedicineName is the display name of the dispensed medicine.
	MedicineName string `json:"medicine_name"`

	// ColumnIndex is the 1-based target column.
	ColumnIndex int `json:"column_index"`

	// TimeIDs references catalog entries by id. May be empty.
	TimeIDs []int64 `json:"time_ids"`

	// DayCodes are weekday tokens (mon..sun). May be empty.
	DayCodes []string `json:"day_codes"`

	// SoundEnabled turns on the audible dispensing alert.
	SoundEnabled bool `json:"sound_enabled"`

	// LightEnabled turns on the visual dispensing alert.
	LightEnabled bool `json:"light_enabled"`
}

// DispenseEvent is one {time, days} pair of a configuration payload.
type DispenseEvent struct {
	// Time is the wall-clock dispense time in "HH:MM" format.
	Time string `json:"time"`

	// Days are the weekday tokens this event fires on.
	Days []string `json:"days"`
}

// Payload is the compiled, canonical device-facing representation of a
// schedule. It is persisted in a column slot and transmitted on the wire.
//
// Encoding is structurally deterministic: identical input and catalog state
// always yield byte-identical JSON (fixed field order, no map iteration),
// so devices and tests can compare payloads for equality.
type Payload struct {
	MedicineName   string          `json:"medicine_name"`
	DispenseEvents []DispenseEvent `json:"dispense_events"`
	SoundEnabled   bool            `json:"sound_enabled"`
	LightEnabled   bool            `json:"light_enabled"`
}

// Disabled reports whether the payload signals "column disabled"
// (zero dispense events).
func (p *Payload) Disabled() bool {
	return len(p.DispenseEvents) == 0
}

// Encode serialises the payload to its canonical wire form.
//
// The encoding is UTF-8 JSON with struct field order, no HTML escaping,
// and no trailing newline. dispense_events is always a JSON array, never
// null, so a disabled column encodes as "dispense_events":[].
func (p *Payload) Encode() ([]byte, error) {
	// Normalise into a copy; encoding must not mutate the receiver.
	out := *p
	if out.DispenseEvents == nil {
		out.DispenseEvents = []DispenseEvent{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	// json.Encoder appends a newline; the wire form has none
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodePayload parses the canonical wire form back into a Payload.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if p.DispenseEvents == nil {
		p.DispenseEvents = []DispenseEvent{}
	}
	return &p, nil
}
