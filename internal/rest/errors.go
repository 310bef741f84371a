package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/sa1dev/regeester/internal/forms"
	"github.com/sa1dev/regeester/pkg/passkey"
)

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
)

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error: err.Error(),
		Code:  statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, err error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    statusCode,
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// mapErrorToStatusCode maps service errors to HTTP status codes.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, passkey.ErrInvalidToken),
		errors.Is(err, passkey.ErrVerificationFailed),
		errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, passkey.ErrUserNotFound),
		errors.Is(err, passkey.ErrCredentialNotFound),
		errors.Is(err, forms.ErrFormNotFound),
		errors.Is(err, forms.ErrFormUnpublished):
		return http.StatusNotFound
	case errors.Is(err, passkey.ErrInvalidCeremony),
		errors.Is(err, passkey.ErrNoCredentials),
		errors.Is(err, forms.ErrInvalidForm),
		errors.Is(err, forms.ErrInvalidSubmission),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, passkey.ErrDuplicateCredential):
		return http.StatusConflict
	case errors.Is(err, forms.ErrFormClosed):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// handleError maps the error to a status code and writes the response.
// Internal errors are not echoed to the client.
func handleError(w http.ResponseWriter, err error) {
	statusCode := mapErrorToStatusCode(err)
	if statusCode == http.StatusInternalServerError {
		writeError(w, errors.New("internal server error"), statusCode)
		return
	}
	writeError(w, err, statusCode)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}
