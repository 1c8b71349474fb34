package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prepa3/turnstile/internal/turnstile/service"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// writeServiceError maps the service error kinds onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "student_not_found", "student not found")
	case errors.Is(err, service.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "report_not_found", "report not found")
	case errors.Is(err, service.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", "student already exists")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "student changed concurrently, retry")
	case errors.Is(err, service.ErrUpstreamUnavailable):
		s.logger.Printf("%s error: %v", op, err)
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", "storage temporarily unavailable")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		s.logger.Printf("%s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
