package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/valtrion/allocd/internal/core/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidID          = "invalid_id"
	codeInvalidUnitType    = "invalid_unit_type"
	codeInvalidUnitStatus  = "invalid_unit_status"
	codeInvalidPriority    = "invalid_priority"
	codeNotFound           = "not_found"
	codeConflict           = "conflict"
	codeAlreadyReleased    = "already_released"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps domain sentinels to HTTP statuses. Conflicts are
// expected under contention and carry their own code so callers can tell them
// apart from hard failures.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidUnitType):
		writeError(w, http.StatusBadRequest, codeInvalidUnitType, err.Error())
	case errors.Is(err, domain.ErrInvalidUnitStatus):
		writeError(w, http.StatusBadRequest, codeInvalidUnitStatus, err.Error())
	case errors.Is(err, domain.ErrInvalidPriority):
		writeError(w, http.StatusBadRequest, codeInvalidPriority, err.Error())
	case errors.Is(err, domain.ErrUnitNotFound),
		errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrAllocationNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyReleased):
		writeError(w, http.StatusConflict, codeAlreadyReleased, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
