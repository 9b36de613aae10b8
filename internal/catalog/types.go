package catalog

import (
	"regexp"
	"time"
)

// TimeOfDay is a named wall-clock time referenced by schedule input.
//
// Entries are administered centrally ("Morning" → 08:00) and referenced by
// id, never embedded by value, from schedule submissions. No uniqueness
// constraint is enforced on Time: two entries may share a wall-clock time.
type TimeOfDay struct {
	// ID is the auto-incremented primary key.
	ID int64 `json:"id"`

	// Name is the display label (e.g., "Morning").
	Name string `json:"name"`

	// Time is the wall-clock time in "HH:MM" 24-hour format.
	Time string `json:"time"`

	// CreatedAt is the creation timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last modification timestamp (UTC).
	UpdatedAt time.Time `json:"updated_at"`
}

// timePattern matches "HH:MM" 24-hour wall-clock times.
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validate checks the entry's fields.
func (t *TimeOfDay) Validate() error {
	if t.Name == "" {
		return ErrInvalidName
	}
	if !timePattern.MatchString(t.Time) {
		return ErrInvalidTime
	}
	return nil
}
