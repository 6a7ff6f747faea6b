// File path: internal/api/ingest_handler.go
package api

import (
	"fmt"
	"net/http"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/ingest"
)

// handleIngest re-runs the offline ingestion pipeline and refreshes the
// in-memory corpus so searches see the new documents immediately.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("ingestion not configured"))
		return
	}
	docs, collections, err := ingest.LoadDocs(s.ingestCfg.CollectionsPath, s.ingestCfg.TranslationsPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	summary, err := s.pipeline.RunDocs(r.Context(), docs, collections)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s.retriever != nil {
		s.retriever.Refresh(docs)
	}
	logger.Info("api: ingest complete", "documents", summary.Documents, "upserted", summary.Upserted)
	writeJSON(w, http.StatusOK, summary)
}
