package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	db "github.com/privadoc/privadoc/internal/core/database"
	"github.com/privadoc/privadoc/internal/core/engine"
	"github.com/privadoc/privadoc/internal/core/extractor"
	"github.com/privadoc/privadoc/internal/core/llm"
	"github.com/privadoc/privadoc/internal/core/prompt"
	"github.com/privadoc/privadoc/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// statusFor maps pipeline errors onto HTTP statuses. Anything unrecognized is
// an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extractor.ErrUnsupportedFormat),
		errors.Is(err, prompt.ErrUnknownTemplate),
		errors.Is(err, prompt.ErrInvalidTemplate):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, engine.ErrEmptyDocument),
		errors.Is(err, engine.ErrContextWindowExceeded),
		errors.Is(err, services.ErrTooManyPages):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrTooManyRuns):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrSummarizationFailed),
		errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
