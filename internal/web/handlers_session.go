package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/calderglen/joinery-imports/internal/logging"
)

// actorHeader carries the identity of the person importing; the frontend
// sets it from its auth context. Submits without it are rejected so every
// batch posted to the backend names its actor.
const actorHeader = "X-Actor-ID"

// readUpload pulls the multipart file out of the request. Size is capped
// before the form is parsed.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to read file")
		return "", nil, false
	}
	return header.Filename, data, true
}

// handleOpenSession uploads a file for an importer and creates the review
// session. A file-level failure creates nothing; the error message is the
// banner the frontend shows.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "importer")

	fileName, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	sess, err := s.manager.Open(r.Context(), key, fileName, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(),
		"session_id", sess.ID,
		"importer", key,
	).Info("session opened", "file", fileName)

	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// handleReplaceFile re-runs the whole pipeline over a newly picked file,
// discarding the previous records. A decode that loses the race against an
// even newer file reports a conflict and changes nothing.
func (s *Server) handleReplaceFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	fileName, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	if err := s.manager.ReplaceFile(r.Context(), id, fileName, data); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, ok := s.manager.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.manager.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}

	if err := sess.Advance(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// cellEdit is the body of a single-cell edit.
type cellEdit struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleEditCell(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.manager.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}

	var edit cellEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid edit body")
		return
	}

	if err := sess.EditCell(edit.Row, edit.Field, edit.Value); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.manager.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}

	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid row number")
		return
	}

	if err := sess.DeleteRow(row); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	actorID := r.Header.Get(actorHeader)
	if actorID == "" {
		writeError(w, r, http.StatusBadRequest, "missing "+actorHeader+" header")
		return
	}

	sess, ok := s.manager.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	fileName := sess.View().FileName

	result, err := s.manager.Submit(r.Context(), id, actorID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(),
		"session_id", id,
		"importer", result.Importer,
	).Info("batch submitted", "rows", result.Submitted, "excluded", len(result.ExcludedRows))

	s.recordHistory(r, result, actorID, fileName)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.manager.Discard(id) {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
