// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/ingest"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/insight"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/retriever"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/vector"
)

type Server struct {
	router    chi.Router
	retriever *retriever.Retriever
	assembler *insight.Assembler
	pipeline  *ingest.Pipeline
	vector    vector.Store
	provider  llm.Provider
	ingestCfg ingest.Config
}

func NewServer(retr *retriever.Retriever, assembler *insight.Assembler, pipeline *ingest.Pipeline, store vector.Store, provider llm.Provider, ingestCfg ingest.Config) *Server {
	logger := common.Logger()
	providerName := "none"
	if provider != nil {
		providerName = provider.Name()
	}
	logger.Info(
		"api: building server",
		"provider", providerName,
		"vector_available", store != nil && store.Available(),
	)
	srv := &Server{
		router:    chi.NewRouter(),
		retriever: retr,
		assembler: assembler,
		pipeline:  pipeline,
		vector:    store,
		provider:  provider,
		ingestCfg: ingestCfg,
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})
	// The search and chat endpoints sit behind the dashboard's own login
	// gate; they serve any origin.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Get("/v1/search", s.handleSearch)
	s.router.Post("/v1/chat", s.handleChat)
	s.router.Post("/v1/ingest", s.handleIngest)
	s.router.Get("/v1/logs", s.handleLogs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
