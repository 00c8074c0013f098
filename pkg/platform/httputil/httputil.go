package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "vcflow/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for every failed request. Error carries the
// human readable message the browser client shows; Code is the stable category.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		msg := domainErr.Message
		if msg == "" {
			msg = string(domainErr.Code)
		}
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), ErrorResponse{
			Error: msg,
			Code:  string(domainErr.Code),
		})
		return
	}

	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "Internal server error",
		Code:  string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeVerificationFailed, dErrors.CodeChallengeMismatch, dErrors.CodeExpired:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
