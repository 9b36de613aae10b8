package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dosebox/dosebox-core/internal/catalog"
)

// timeRequest is the create/update body for a catalog entry.
type timeRequest struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// parseID extracts a numeric {id} route parameter. Non-numeric ids are a
// routing-level 400, not a lookup miss.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// handleListTimes returns all catalog entries ordered by wall-clock time.
func (s *Server) handleListTimes(w http.ResponseWriter, r *http.Request) {
	entries, err := s.times.List(r.Context())
	if err != nil {
		s.logger.Error("listing times failed", "error", err)
		writeInternalError(w, "failed to list times")
		return
	}
	if entries == nil {
		entries = []catalog.TimeOfDay{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCreateTime adds a catalog entry.
func (s *Server) handleCreateTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry := &catalog.TimeOfDay{Name: req.Name, Time: req.Time}
	if err := s.times.Create(r.Context(), entry); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// handleGetTime returns one catalog entry.
func (s *Server) handleGetTime(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeBadRequest(w, "id must be numeric")
		return
	}

	entry, err := s.times.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleUpdateTime modifies a catalog entry.
//
// Catalog edits do not rewrite stored column payloads; already-compiled
// schedules keep the time they were compiled with until resubmitted.
func (s *Server) handleUpdateTime(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeBadRequest(w, "id must be numeric")
		return
	}

	var req timeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry, err := s.times.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Name != "" {
		entry.Name = req.Name
	}
	if req.Time != "" {
		entry.Time = req.Time
	}

	if err := s.times.Update(r.Context(), entry); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteTime removes a catalog entry.
func (s *Server) handleDeleteTime(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeBadRequest(w, "id must be numeric")
		return
	}

	if err := s.times.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
