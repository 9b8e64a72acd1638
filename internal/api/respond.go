package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"calbook/internal/database"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps the ledger's sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrValidation),
		errors.Is(err, database.ErrDateTooFar):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrSlotUnavailable),
		errors.Is(err, database.ErrBookingNotActive),
		errors.Is(err, database.ErrSlugExists),
		errors.Is(err, database.ErrOverrideExists),
		errors.Is(err, database.ErrScheduleInUse):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrLockBusy):
		writeError(w, http.StatusServiceUnavailable, "try again shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
