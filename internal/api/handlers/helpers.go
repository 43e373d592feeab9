package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/logger"
	"net/http"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Warning("encode response failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps lifecycle errors onto status codes. Anything
// unclassified is logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var ue *domain.UnresolvableAddressError
	var ce *domain.ConflictError

	switch {
	case errors.As(err, &ve):
		writeError(w, r, http.StatusBadRequest, ve.Message)
	case errors.As(err, &ue):
		writeError(w, r, http.StatusBadRequest, "Invalid address: "+ue.Address)
	case errors.As(err, &ce):
		writeError(w, r, http.StatusBadRequest, conflictMessage(ce))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Load not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Access denied to this load")
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads exactly one JSON object with no unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

func conflictMessage(ce *domain.ConflictError) string {
	var msg string
	switch ce.Op {
	case domain.OpConfirm, domain.OpCancel:
		msg = "Load already confirmed or canceled"
	case domain.OpComplete:
		msg = "Load not confirmed or already completed"
	case domain.OpUpdateLocation:
		msg = "Load not confirmed"
	default:
		return ce.Error()
	}
	return fmt.Sprintf("%s (status: %s)", msg, ce.Status)
}
