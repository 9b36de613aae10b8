package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dosebox/dosebox-core/internal/organizer"
)

// organizerRequest is the create/update body for an organizer.
type organizerRequest struct {
	SerialNumber string `json:"serial_number"`
	Name         string `json:"name"`
	Columns      int    `json:"columns"`
}

// shareRequest is the body for granting access to a principal.
type shareRequest struct {
	Principal string `json:"principal"`
}

// handleListOrganizers returns organizers visible to the caller.
//
// With an X-Principal header the list is scoped to that principal's owned
// and shared organizers; without one the full fleet is returned (trusted
// internal caller).
func (s *Server) handleListOrganizers(w http.ResponseWriter, r *http.Request) {
	var (
		orgs []organizer.Organizer
		err  error
	)
	if p := principal(r); p != "" {
		orgs, err = s.organizers.ListByPrincipal(r.Context(), p)
	} else {
		orgs, err = s.organizers.List(r.Context())
	}
	if err != nil {
		s.logger.Error("listing organizers failed", "error", err)
		writeInternalError(w, "failed to list organizers")
		return
	}
	if orgs == nil {
		orgs = []organizer.Organizer{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

// handleCreateOrganizer registers an organizer, owned by the caller.
func (s *Server) handleCreateOrganizer(w http.ResponseWriter, r *http.Request) {
	var req organizerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	columns := req.Columns
	if columns == 0 {
		columns = s.fleet.DefaultColumns
	}
	if columns > s.fleet.MaxColumns {
		writeDomainError(w, organizer.ErrInvalidColumnCount)
		return
	}

	org := &organizer.Organizer{
		SerialNumber: req.SerialNumber,
		Name:         req.Name,
		Owner:        principal(r),
		Columns:      columns,
	}
	if err := s.organizers.Create(r.Context(), org); err != nil {
		writeDomainError(w, err)
		return
	}

	// Create does not load shares; a fresh organizer has none
	org.SharedUsers = []string{}
	writeJSON(w, http.StatusCreated, org)
}

// handleShareProfile grants a principal access to every organizer the
// caller owns. Mirrors the per-organizer share for whole-profile handoff
// to a second caregiver.
func (s *Server) handleShareProfile(w http.ResponseWriter, r *http.Request) {
	owner := principal(r)
	if owner == "" {
		writeBadRequest(w, "X-Principal header is required")
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Principal == "" {
		writeBadRequest(w, "principal is required")
		return
	}

	n, err := s.organizers.ShareAllOwnedBy(r.Context(), owner, req.Principal)
	if err != nil {
		s.logger.Error("sharing profile failed", "error", err)
		writeInternalError(w, "failed to share organizers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"organizers_shared": n})
}

// loadAccessibleOrganizer fetches {id} and enforces the caller's access.
// Writes the error response itself; callers just bail on nil.
func (s *Server) loadAccessibleOrganizer(w http.ResponseWriter, r *http.Request) *organizer.Organizer {
	org, err := s.organizers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return nil
	}
	if p := principal(r); p != "" && !org.AccessibleBy(p) {
		writeDomainError(w, organizer.ErrForbidden)
		return nil
	}
	return org
}

// handleGetOrganizerBySerial looks an organizer up by its serial number,
// the identifier printed on the device itself. Same access rules as the
// id lookup.
func (s *Server) handleGetOrganizerBySerial(w http.ResponseWriter, r *http.Request) {
	org, err := s.organizers.GetBySerial(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p := principal(r); p != "" && !org.AccessibleBy(p) {
		writeDomainError(w, organizer.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// handleGetOrganizer returns one organizer.
func (s *Server) handleGetOrganizer(w http.ResponseWriter, r *http.Request) {
	org := s.loadAccessibleOrganizer(w, r)
	if org == nil {
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// handleUpdateOrganizer renames an organizer.
func (s *Server) handleUpdateOrganizer(w http.ResponseWriter, r *http.Request) {
	org := s.loadAccessibleOrganizer(w, r)
	if org == nil {
		return
	}

	var req organizerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	org.Name = req.Name
	if err := s.organizers.Update(r.Context(), org); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// handleDeleteOrganizer removes an organizer. Only the owner may delete.
func (s *Server) handleDeleteOrganizer(w http.ResponseWriter, r *http.Request) {
	org := s.loadAccessibleOrganizer(w, r)
	if org == nil {
		return
	}
	if p := principal(r); p != "" && org.Owner != p {
		writeDomainError(w, organizer.ErrForbidden)
		return
	}

	if err := s.organizers.Delete(r.Context(), org.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleShareOrganizer grants a principal access.
func (s *Server) handleShareOrganizer(w http.ResponseWriter, r *http.Request) {
	org := s.loadAccessibleOrganizer(w, r)
	if org == nil {
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Principal == "" {
		writeBadRequest(w, "principal is required")
		return
	}

	if err := s.organizers.Share(r.Context(), org.ID, req.Principal); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUnshareOrganizer revokes a principal's access.
func (s *Server) handleUnshareOrganizer(w http.ResponseWriter, r *http.Request) {
	org := s.loadAccessibleOrganizer(w, r)
	if org == nil {
		return
	}

	if err := s.organizers.Unshare(r.Context(), org.ID, chi.URLParam(r, "principal")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResyncOrganizer republishes every stored column payload to the
// organizer's command topic.
func (s *Server) handleResyncOrganizer(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.Resync(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"columns_published": n})
}
