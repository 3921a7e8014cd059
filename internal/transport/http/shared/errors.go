// Package shared holds the JSON response helpers every handler uses so error
// bodies look the same across modules.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	dErrors "hatchseed/pkg/domain-errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error             string `json:"error"`
	ErrorDescription  string `json:"error_description,omitempty"`
	RetryAfterSeconds *int64 `json:"retry_after_seconds,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeInvalidInput:       http.StatusBadRequest,
	dErrors.CodeValidation:         http.StatusBadRequest,
	dErrors.CodeUnauthorized:       http.StatusUnauthorized,
	dErrors.CodeForbidden:          http.StatusForbidden,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeConflict:           http.StatusConflict,
	dErrors.CodeTimeout:            http.StatusServiceUnavailable,
	dErrors.CodeInvariantViolation: http.StatusInternalServerError,
	dErrors.CodeInternal:           http.StatusInternalServerError,

	dErrors.CodeSlotLocked:          http.StatusLocked,
	dErrors.CodeSlotOccupied:        http.StatusConflict,
	dErrors.CodeDeleteWindowExpired: http.StatusForbidden,

	dErrors.CodeIncompleteSet:     http.StatusUnprocessableEntity,
	dErrors.CodeNothingToReview:   http.StatusConflict,
	dErrors.CodeInvalidTransition: http.StatusConflict,
	dErrors.CodeSideEffectFailed:  http.StatusBadGateway,

	dErrors.CodeConversationClosed: http.StatusConflict,
}

// StatusFor maps a domain code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteError renders err as an ErrorResponse. Foreign errors are reported as
// internal without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:            string(dErrors.CodeInternal),
			ErrorDescription: "internal error",
		})
		return
	}

	status := StatusFor(de.Code)
	resp := ErrorResponse{Error: string(de.Code), ErrorDescription: de.Message}
	if status >= http.StatusInternalServerError {
		resp.ErrorDescription = "internal error"
		if de.Code == dErrors.CodeSideEffectFailed || de.Code == dErrors.CodeTimeout {
			resp.ErrorDescription = de.Message
		}
	}
	if retry, ok := retryAfter(de.Details); ok {
		resp.RetryAfterSeconds = &retry
		w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
	}
	WriteJSON(w, status, resp)
}

func retryAfter(details map[string]any) (int64, bool) {
	switch v := details["retry_after_seconds"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
