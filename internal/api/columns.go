package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dosebox/dosebox-core/internal/organizer"
)

// columnRequest is the PUT body for a column configuration. The target
// column comes from the URL, not the body.
type columnRequest struct {
	MedicineName string   `json:"medicine_name"`
	TimeIDs      []int64  `json:"time_ids"`
	DayCodes     []string `json:"day_codes"`
	SoundEnabled bool     `json:"sound_enabled"`
	LightEnabled bool     `json:"light_enabled"`
}

// parseColumnIndex extracts the numeric {index} route parameter.
func parseColumnIndex(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	return index, err == nil
}

// handleListColumns returns all written column slots of an organizer.
func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	org := s.loadAccessibleOrganizer(w, r)
	if org == nil {
		return
	}

	slots, err := s.organizers.GetColumns(r.Context(), org.ID)
	if err != nil {
		s.logger.Error("listing columns failed", "organizer_id", org.ID, "error", err)
		writeInternalError(w, "failed to list columns")
		return
	}
	if slots == nil {
		slots = []organizer.ColumnSlot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

// handleGetColumn returns one column slot. A never-written slot reads back
// with a nil payload and version 0 rather than 404: the column exists on
// the physical device whether or not it has been configured.
func (s *Server) handleGetColumn(w http.ResponseWriter, r *http.Request) {
	org := s.loadAccessibleOrganizer(w, r)
	if org == nil {
		return
	}

	index, ok := parseColumnIndex(r)
	if !ok {
		writeBadRequest(w, "column index must be numeric")
		return
	}
	if index < 1 || index > org.Columns {
		writeDomainError(w, organizer.ErrInvalidColumn)
		return
	}

	slot, err := s.organizers.GetColumn(r.Context(), org.ID, index)
	if err != nil {
		s.logger.Error("reading column failed", "organizer_id", org.ID, "column", index, "error", err)
		writeInternalError(w, "failed to read column")
		return
	}

	w.Header().Set("ETag", strconv.FormatInt(slot.Version, 10))
	writeJSON(w, http.StatusOK, slot)
}

// handleSetColumn submits a column configuration: compile, persist, publish.
//
// An If-Match header carrying a version number turns the write conditional;
// a stale version is rejected with 409 and nothing is written. Without the
// header concurrent writers race last-write-wins.
func (s *Server) handleSetColumn(w http.ResponseWriter, r *http.Request) {
	index, ok := parseColumnIndex(r)
	if !ok {
		writeBadRequest(w, "column index must be numeric")
		return
	}

	var req columnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var expected *int64
	if match := r.Header.Get("If-Match"); match != "" {
		version, err := strconv.ParseInt(match, 10, 64)
		if err != nil || version < 0 {
			writeBadRequest(w, "If-Match must be a column version number")
			return
		}
		expected = &version
	}

	input := organizer.ScheduleInput{
		MedicineName: req.MedicineName,
		ColumnIndex:  index,
		TimeIDs:      req.TimeIDs,
		DayCodes:     req.DayCodes,
		SoundEnabled: req.SoundEnabled,
		LightEnabled: req.LightEnabled,
	}

	slot, err := s.service.ApplyConfiguration(r.Context(), principal(r), chi.URLParam(r, "id"), input, expected)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("ETag", strconv.FormatInt(slot.Version, 10))
	writeJSON(w, http.StatusOK, slot)
}

// handleClearColumn empties a slot and tells the device to stop dispensing
// from it.
func (s *Server) handleClearColumn(w http.ResponseWriter, r *http.Request) {
	index, ok := parseColumnIndex(r)
	if !ok {
		writeBadRequest(w, "column index must be numeric")
		return
	}

	if err := s.service.ClearColumn(r.Context(), principal(r), chi.URLParam(r, "id"), index); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
