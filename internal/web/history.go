package web

import (
	"net/http"

	"github.com/calderglen/joinery-imports/internal/history"
	"github.com/calderglen/joinery-imports/internal/importer"
	"github.com/calderglen/joinery-imports/internal/logging"
)

// recordHistory writes a completed submission to the history store.
// History is best-effort: the batch already reached the backend, so a
// store failure is logged and never surfaced to the user.
func (s *Server) recordHistory(r *http.Request, result *importer.SubmitResult, actorID, fileName string) {
	if s.hist == nil {
		return
	}

	_, err := s.hist.RecordSubmission(r.Context(), history.Entry{
		Importer:  result.Importer,
		ActorID:   actorID,
		FileName:  fileName,
		Submitted: result.Submitted,
		Excluded:  len(result.ExcludedRows),
		Message:   result.Message,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("record submission history",
			"importer", result.Importer, "error", err)
	}
}
