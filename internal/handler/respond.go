package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"NewsPoster/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors onto HTTP status codes. A late reviewer
// action is not a failure from Slack's point of view.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyResolved):
		return http.StatusOK
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotVetted):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
