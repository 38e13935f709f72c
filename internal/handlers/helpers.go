package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contexo-app/contexo/internal/interfaces"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError maps tagged service errors to HTTP statuses so the
// frontend can branch on status alone
func WriteServiceError(w http.ResponseWriter, err error) error {
	var ae *interfaces.AIError
	if !errors.As(err, &ae) {
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case interfaces.ErrKindInvalidCredential, interfaces.ErrKindSignInFailed:
		status = http.StatusUnauthorized
	case interfaces.ErrKindProviderUnavailable, interfaces.ErrKindProviderUnhealthy:
		status = http.StatusServiceUnavailable
	case interfaces.ErrKindConnectionTestFailed,
		interfaces.ErrKindGenerationFailed,
		interfaces.ErrKindCompilationFailed,
		interfaces.ErrKindCondensationFailed:
		status = http.StatusBadGateway
	case interfaces.ErrKindServiceNotReady, interfaces.ErrKindCapacityExceeded:
		status = http.StatusConflict
	case interfaces.ErrKindPipelineStepFailed:
		status = http.StatusUnprocessableEntity
	}

	return WriteJSON(w, status, map[string]string{
		"status":   "error",
		"kind":     string(ae.Kind),
		"provider": ae.Provider,
		"error":    ae.Message,
	})
}

// DecodeJSON reads a JSON request body into dst, writing a 400 on failure
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}
