package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/minihub-dev/minihub-core/internal/area"
	"github.com/minihub-dev/minihub-core/internal/automation"
	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
	"github.com/minihub-dev/minihub-core/internal/history"
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
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
	ErrCodeValidation = "validation_error"
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

// writeDomainError maps a domain error to the matching HTTP response.
// Unrecognised errors become a 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrEntityNotFound),
		errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, area.ErrAreaNotFound),
		errors.Is(err, automation.ErrAutomationNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())

	case errors.Is(err, entity.ErrEntityExists),
		errors.Is(err, device.ErrDeviceExists),
		errors.Is(err, area.ErrAreaExists),
		errors.Is(err, automation.ErrAutomationExists),
		errors.Is(err, area.ErrAreaInUse):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, entity.ErrInvalidEntity),
		errors.Is(err, entity.ErrInvalidEntityID),
		errors.Is(err, entity.ErrInvalidState),
		errors.Is(err, device.ErrInvalidDevice),
		errors.Is(err, area.ErrInvalidName),
		errors.Is(err, area.ErrCycleDetected),
		errors.Is(err, area.ErrParentNotFound),
		errors.Is(err, automation.ErrInvalidAutomation),
		errors.Is(err, automation.ErrInvalidTrigger),
		errors.Is(err, automation.ErrInvalidCondition),
		errors.Is(err, automation.ErrInvalidAction),
		errors.Is(err, automation.ErrAutomationDisabled),
		errors.Is(err, history.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())

	default:
		writeInternalError(w, "internal server error")
	}
}
