package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/calderglen/joinery-imports/internal/importer"
	"github.com/calderglen/joinery-imports/internal/sheet"
)

// importerInfo is the public shape of a registered importer.
type importerInfo struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Fields   []string `json:"fields"`
	Headers  []string `json:"templateHeaders"`
	Grouped  bool     `json:"grouped"`
	Partial  bool     `json:"partialSubmit"`
	Endpoint string   `json:"endpoint"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListImporters(w http.ResponseWriter, r *http.Request) {
	defs := importer.All()
	infos := make([]importerInfo, len(defs))
	for i, def := range defs {
		infos[i] = importerInfo{
			Key:      def.Key,
			Label:    def.Label,
			Fields:   def.FieldNames(),
			Headers:  def.TemplateHeader(),
			Grouped:  def.GroupField != "",
			Partial:  def.Policy == importer.SkipInvalid,
			Endpoint: def.Endpoint,
		}
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleDownloadTemplate emits the importer's seeded xlsx template. The
// sample rows are chosen to pass the importer's own validator, so a
// template uploaded straight back produces zero row errors.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "importer")
	def, ok := importer.Get(key)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown importer: %s", key))
		return
	}

	data, err := sheet.WriteTemplate(def.TemplateHeader(), def.SampleRows)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to build template")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", def.Key+"-template.xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeError(w, r, http.StatusServiceUnavailable, "submission history is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	entries, err := s.hist.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleStatus reports live session and decode-limiter state, for ops.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":  s.manager.Count(),
		"loads":     s.manager.LoadStatus(),
		"importers": importer.Count(),
	})
}
