// File path: internal/api/chat_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/insight"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/retriever"
)

type chatRequest struct {
	Message    string `json:"message"`
	Limit      int    `json:"limit,omitempty"`
	Department string `json:"department,omitempty"`
	Type       string `json:"type,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: chat decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" && req.Department == "" && req.Type == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message required"))
		return
	}
	logger.Info("api: chat request", "message_length", len(message), "department", req.Department, "type", req.Type)

	query := retriever.Query{Text: message, Limit: req.Limit, Department: req.Department, Kind: req.Type}
	results, err := s.retriever.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	answer, err := s.assembler.Answer(r.Context(), message, results)
	if err != nil {
		if errors.Is(err, insight.ErrGenerationFailed) {
			logger.Error("api: chat generation failed", "error", err)
			writeError(w, http.StatusInternalServerError, fmt.Errorf("I encountered an error while generating the answer, please try again"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":  answer,
		"results": len(results),
	})
}
