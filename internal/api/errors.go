package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dosebox/dosebox-core/internal/catalog"
	"github.com/dosebox/dosebox-core/internal/organizer"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeForbidden  = "forbidden"
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
	ErrCodeValidation = "validation_error"
	ErrCodeBadGateway = "publish_failed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps domain errors to HTTP responses.
//
// The mapping keeps submission failure stages distinguishable on the wire:
// validation and compilation errors are 422 (nothing was mutated), store
// failures are 500 (nothing was published), publish failures are 502 (the
// store already holds the payload), and version conflicts are 409.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, organizer.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, organizer.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, organizer.ErrExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, organizer.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, organizer.ErrUnknownTimeReference),
		errors.Is(err, organizer.ErrInvalidColumn),
		errors.Is(err, organizer.ErrInvalidDayCode),
		errors.Is(err, organizer.ErrInvalidName),
		errors.Is(err, organizer.ErrInvalidSerial),
		errors.Is(err, organizer.ErrInvalidColumnCount),
		errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, catalog.ErrInvalidTime):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, organizer.ErrCommandPublish):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	case errors.Is(err, organizer.ErrStoreWrite):
		writeInternalError(w, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
