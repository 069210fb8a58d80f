// Package httputil centralizes JSON encoding and domain error translation so
// every handler returns the same envelopes.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "hackgate/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeInvalidInput:       http.StatusBadRequest,
	dErrors.CodeValidation:         http.StatusUnprocessableEntity,
	dErrors.CodeInvariantViolation: http.StatusUnprocessableEntity,
	dErrors.CodeUnauthorized:       http.StatusUnauthorized,
	dErrors.CodeForbidden:          http.StatusForbidden,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeConflict:           http.StatusConflict,
	dErrors.CodeTimeout:            http.StatusGatewayTimeout,
	dErrors.CodeInternal:           http.StatusInternalServerError,

	dErrors.CodeDuplicateMembership: http.StatusConflict,
	dErrors.CodeTeamFull:            http.StatusConflict,
	dErrors.CodeTokenAlreadyUsed:    http.StatusConflict,
	dErrors.CodeTokenNotFound:       http.StatusNotFound,
	dErrors.CodeQuotaExceeded:       http.StatusConflict,
	dErrors.CodeSelectionLocked:     http.StatusForbidden,
	dErrors.CodeNominationLocked:    http.StatusConflict,
	dErrors.CodeInvalidMemberCount:  http.StatusUnprocessableEntity,
	dErrors.CodeInvalidDateSet:      http.StatusUnprocessableEntity,
	dErrors.CodeContention:          http.StatusConflict,
	dErrors.CodeProvisioningFailed:  http.StatusBadGateway,
}

// ToHTTPStatus maps a domain error code to an HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorEnvelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError renders a coded error as JSON. Internal errors omit the
// description so infrastructure details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	envelope := errorEnvelope{Error: string(code)}
	if code != dErrors.CodeInternal {
		envelope.ErrorDescription = dErrors.MessageOf(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(envelope)
}

// WriteJSON renders a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Decode parses a JSON request body into T, writing a bad_request response and
// returning ok=false on failure so handlers can early-return.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.DebugContext(r.Context(), "request body decode failed", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		var zero T
		return zero, false
	}
	return req, true
}

// Validatable is implemented by request types that validate and parse their
// own fields after decoding.
type Validatable interface {
	Validate() error
}

// DecodeValid decodes into *T and runs its Validate method, writing the error
// response on any failure.
func DecodeValid[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (PT, bool) {
	req, ok := Decode[T](w, r, logger)
	if !ok {
		return nil, false
	}
	ptr := PT(&req)
	if err := ptr.Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return ptr, true
}
