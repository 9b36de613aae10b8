package api

import (
	"net/http"
	"strconv"
)

// handleQueryTelemetry reads the telemetry log for one topic, newest first.
//
// Query parameters:
//   - topic: exact topic match, required (topics contain slashes, so they
//     travel as a query parameter rather than a path segment)
//   - limit: maximum records, defaulted and clamped by the repository
func (s *Server) handleQueryTelemetry(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeBadRequest(w, "topic query parameter is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.telemetry.QueryByTopic(r.Context(), topic, limit)
	if err != nil {
		s.logger.Error("telemetry query failed", "topic", topic, "error", err)
		writeInternalError(w, "failed to query telemetry")
		return
	}

	writeJSON(w, http.StatusOK, records)
}
