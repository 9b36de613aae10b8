package organizer

import (
	"fmt"

	"github.com/dosebox/dosebox-core/internal/catalog"
)

// Compile translates raw schedule input into a canonical configuration
// payload for one column.
//
// Compile is a pure function: it performs catalog lookups on the supplied
// snapshot, never touches storage or the network, and produces identical
// output for identical input. Writing the payload and publishing it are the
// caller's responsibility.
//
// Semantics:
//   - Each time id resolves against the catalog snapshot in the order
//     supplied; an id with no matching entry fails with
//     ErrUnknownTimeReference.
//   - ColumnIndex must fall within 1..columnCount; otherwise
//     ErrInvalidColumn.
//   - Empty TimeIDs or empty DayCodes is not an error: the result has zero
//     dispense events, signalling "column disabled" to the device. Unknown
//     time ids fail regardless, even when empty day codes would have
//     disabled the column.
//   - Dispense events keep the relative order of the supplied time ids (no
//     sorting by clock time), and every event carries the full day set, so
//     a single time can fire on multiple days.
//   - Duplicate time ids and day codes are collapsed, first occurrence wins.
//
// Parameters:
//   - input: The schedule submission for one column
//   - columnCount: The organizer's column count (valid range 1..columnCount)
//   - times: Catalog snapshot keyed by id
//
// Returns:
//   - *Payload: Compiled configuration, never nil on success
//   - error: ErrUnknownTimeReference or ErrInvalidColumn
func Compile(input ScheduleInput, columnCount int, times map[int64]catalog.TimeOfDay) (*Payload, error) {
	if input.ColumnIndex < 1 || input.ColumnIndex > columnCount {
		return nil, fmt.Errorf("%w: column %d not in 1..%d", ErrInvalidColumn, input.ColumnIndex, columnCount)
	}

	payload := &Payload{
		MedicineName:   input.MedicineName,
		DispenseEvents: []DispenseEvent{},
		SoundEnabled:   input.SoundEnabled,
		LightEnabled:   input.LightEnabled,
	}

	days := dedupe(input.DayCodes)
	timeIDs := dedupeIDs(input.TimeIDs)

	// Every supplied id must resolve, even when empty day codes will
	// disable the column anyway: a dangling reference is invalid input,
	// not an empty schedule.
	resolved := make([]catalog.TimeOfDay, 0, len(timeIDs))
	for _, id := range timeIDs {
		entry, ok := times[id]
		if !ok {
			return nil, fmt.Errorf("%w: time id %d", ErrUnknownTimeReference, id)
		}
		resolved = append(resolved, entry)
	}

	// Either set empty disables the column: no events, no error.
	if len(timeIDs) == 0 || len(days) == 0 {
		return payload, nil
	}

	for _, entry := range resolved {
		// Each event carries its own copy of the day set so payloads
		// remain independent values.
		eventDays := make([]string, len(days))
		copy(eventDays, days)

		payload.DispenseEvents = append(payload.DispenseEvents, DispenseEvent{
			Time: entry.Time,
			Days: eventDays,
		})
	}

	return payload, nil
}

// ValidateDayCodes checks every supplied weekday token.
// Routing layers call this before Compile so malformed submissions are
// rejected before any catalog lookup.
func ValidateDayCodes(codes []string) error {
	for _, code := range codes {
		if !IsValidDayCode(code) {
			return fmt.Errorf("%w: %q", ErrInvalidDayCode, code)
		}
	}
	return nil
}

// dedupe removes duplicate strings, preserving first-occurrence order.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// dedupeIDs removes duplicate ids, preserving first-occurrence order.
func dedupeIDs(values []int64) []int64 {
	seen := make(map[int64]bool, len(values))
	out := make([]int64, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
