package organizer

import (
	"context"
	"fmt"

	"github.com/dosebox/dosebox-core/internal/catalog"
	"github.com/dosebox/dosebox-core/internal/infrastructure/logging"
	"github.com/dosebox/dosebox-core/internal/infrastructure/mqtt"
)

// CommandPublisher delivers compiled payloads to organizer command topics.
// *mqtt.Client satisfies this; tests substitute a fake.
type CommandPublisher interface {
	PublishCommand(topic string, payload []byte) error
}

// MetricsRecorder mirrors command activity to a time-series store.
// *influxdb.Client satisfies this; a nil recorder disables mirroring.
type MetricsRecorder interface {
	WriteCommandPublish(organizerID string, payloadBytes int)
}

// Service orchestrates configuration submissions: it compiles schedule
// input against the current catalog, persists the result to the device
// state store, and publishes the command to the organizer's topic.
//
// The three stages fail independently so callers can tell them apart:
// compilation errors mutate nothing, a store failure means nothing was
// published, and a publish failure leaves the store as source of truth
// for a later resync.
type Service struct {
	orgs      Repository
	times     catalog.Repository
	publisher CommandPublisher
	metrics   MetricsRecorder
	topics    mqtt.Topics
	logger    *logging.Logger
}

// NewService creates a Service. metrics may be nil.
func NewService(orgs Repository, times catalog.Repository, publisher CommandPublisher, metrics MetricsRecorder, logger *logging.Logger) *Service {
	return &Service{
		orgs:      orgs,
		times:     times,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With("component", "organizer"),
	}
}

// ApplyConfiguration compiles, persists and publishes one column's schedule.
//
// principal is the acting user; an empty principal bypasses the access
// check (trusted internal caller). expectedVersion enables the optional
// conditional write: nil means last-write-wins, otherwise the write only
// succeeds when the slot is at exactly that version (0 for a never-written
// slot) and fails with ErrVersionConflict otherwise.
//
// On a publish failure the slot is already persisted; the returned slot is
// non-nil alongside the ErrCommandPublish error so callers can report the
// stored state.
func (s *Service) ApplyConfiguration(ctx context.Context, principal, organizerID string, input ScheduleInput, expectedVersion *int64) (*ColumnSlot, error) {
	org, err := s.loadAccessible(ctx, principal, organizerID)
	if err != nil {
		return nil, err
	}

	if err := ValidateDayCodes(input.DayCodes); err != nil {
		return nil, err
	}

	// Catalog snapshot is read per submission; concurrent catalog edits
	// affect later submissions only.
	times, err := s.times.Map(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	payload, err := Compile(input, org.Columns, times)
	if err != nil {
		return nil, err
	}

	var slot *ColumnSlot
	if expectedVersion != nil {
		slot, err = s.orgs.SetColumnIf(ctx, org.ID, input.ColumnIndex, payload, *expectedVersion)
	} else {
		slot, err = s.orgs.SetColumn(ctx, org.ID, input.ColumnIndex, payload)
	}
	if err != nil {
		return nil, err
	}

	if err := s.publishSlot(org.ID, slot); err != nil {
		return slot, err
	}

	s.logger.Info("configuration applied",
		"organizer_id", org.ID,
		"column", slot.Index,
		"version", slot.Version,
		"disabled", slot.Payload.Disabled(),
		"principal", principal)

	return slot, nil
}

// ClearColumn empties a slot and tells the device to stop dispensing from
// it. The device command is a payload with zero dispense events, the same
// shape a disabled schedule compiles to.
func (s *Service) ClearColumn(ctx context.Context, principal, organizerID string, index int) error {
	org, err := s.loadAccessible(ctx, principal, organizerID)
	if err != nil {
		return err
	}
	if index < 1 || index > org.Columns {
		return fmt.Errorf("%w: column %d not in 1..%d", ErrInvalidColumn, index, org.Columns)
	}

	if err := s.orgs.ClearColumn(ctx, org.ID, index); err != nil {
		return err
	}

	disabled := &Payload{DispenseEvents: []DispenseEvent{}}
	if err := s.publishSlot(org.ID, &ColumnSlot{Index: index, Payload: disabled}); err != nil {
		return err
	}

	s.logger.Info("column cleared",
		"organizer_id", org.ID,
		"column", index,
		"principal", principal)

	return nil
}

// Resync republishes every stored column payload to the organizer's command
// topic. Used after an organizer reconnects or a publish previously failed.
func (s *Service) Resync(ctx context.Context, principal, organizerID string) (int, error) {
	org, err := s.loadAccessible(ctx, principal, organizerID)
	if err != nil {
		return 0, err
	}

	slots, err := s.orgs.GetColumns(ctx, org.ID)
	if err != nil {
		return 0, err
	}

	for i := range slots {
		if err := s.publishSlot(org.ID, &slots[i]); err != nil {
			return i, err
		}
	}

	s.logger.Info("organizer resynced",
		"organizer_id", org.ID,
		"columns", len(slots),
		"principal", principal)

	return len(slots), nil
}

// publishSlot encodes and publishes one slot's payload to the organizer's
// command topic, recording the publish when metrics are enabled.
func (s *Service) publishSlot(organizerID string, slot *ColumnSlot) error {
	data, err := slot.Payload.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommandPublish, err)
	}

	topic := s.topics.OrganizerUpdate(organizerID)
	if err := s.publisher.PublishCommand(topic, data); err != nil {
		s.logger.Error("command publish failed",
			"organizer_id", organizerID,
			"column", slot.Index,
			"topic", topic,
			"error", err)
		return fmt.Errorf("%w: %v", ErrCommandPublish, err)
	}

	if s.metrics != nil {
		s.metrics.WriteCommandPublish(organizerID, len(data))
	}

	return nil
}

// loadAccessible loads an organizer and enforces principal access.
func (s *Service) loadAccessible(ctx context.Context, principal, organizerID string) (*Organizer, error) {
	org, err := s.orgs.GetByID(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	if principal != "" && !org.AccessibleBy(principal) {
		return nil, ErrForbidden
	}
	return org, nil
}
