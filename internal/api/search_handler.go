// File path: internal/api/search_handler.go
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/retriever"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	params := r.URL.Query()
	query := retriever.Query{
		Text:       params.Get("q"),
		Department: params.Get("department"),
		Kind:       params.Get("type"),
	}
	if v := params.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			query.Limit = parsed
		}
	}
	logger.Info(
		"api: search request",
		"query", query.Text,
		"limit", query.Limit,
		"department", query.Department,
		"type", query.Kind,
	)
	results, err := s.retriever.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, retriever.ErrMissingQuery) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []retriever.Result{}
	}
	logger.Debug("api: search served", "results", len(results))
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
