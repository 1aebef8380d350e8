package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hugh/turnout-tracker/internal/api/dto"
)

// maxJSONBody caps JSON request bodies. Uploads have their own limits.
const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Kind: kind})
}

func writeValidation(w http.ResponseWriter, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Validation failed",
		Kind:    dto.KindValidation,
		Details: details,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, dto.KindValidation, "Request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, dto.KindValidation, "Request body is required")
	default:
		writeError(w, http.StatusBadRequest, dto.KindValidation, "Invalid request body")
	}
	return false
}
