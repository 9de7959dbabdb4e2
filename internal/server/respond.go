package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/review"
	"github.com/Veraticus/spice-ledger/internal/storage"
)

// maxBodyBytes caps JSON and import request bodies.
const maxBodyBytes = 10 << 20

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps domain errors to status codes: rejected input is 400,
// missing or foreign rows are 404, a bad review transition is 409 and
// everything else is 500.
func writeError(w http.ResponseWriter, err error) {
	var validation *common.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Error(), Field: validation.Field})
	case errors.Is(err, common.ErrValidation), errors.Is(err, storage.ErrInvalidDateRange):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrInvalidTransition):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
