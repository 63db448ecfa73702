package web

// errors.go maps pipeline errors onto HTTP responses. Technical detail is
// logged server-side with the request ID; the client receives the
// user-facing message only.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calderglen/joinery-imports/internal/importer"
	"github.com/calderglen/joinery-imports/internal/logging"
	"github.com/calderglen/joinery-imports/internal/sheet"
)

// errorResponse is the JSON body for every error.
type errorResponse struct {
	Error string `json:"error"`
}

// respondError picks the status for a pipeline error and writes it.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusForError(err), err.Error())
}

// statusForError classifies pipeline errors:
// file-level problems are 422 (re-pick the file), unknown resources 404,
// state conflicts and gating 409, throttling 429, the rest 400.
func statusForError(err error) int {
	switch {
	case sheet.IsFileError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrSessionNotFound),
		errors.Is(err, importer.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrTooManyUploads):
		return http.StatusTooManyRequests
	case errors.Is(err, importer.ErrSubmitInProgress),
		errors.Is(err, importer.ErrStaleLoad),
		errors.Is(err, importer.ErrSessionDone):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", message,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing to do but log.
		slog.Error("json encode error", "error", err)
	}
}
