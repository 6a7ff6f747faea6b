// File path: cmd/insights/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/api"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/catalog"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/ingest"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/insight"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/kb"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/retriever"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/vector"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("insights: .env file not loaded", "error", err)
	} else {
		logger.Info("insights: environment loaded from .env")
	}

	addr := flag.String("addr", ":8081", "listen address")
	collectionsPath := flag.String("collections", defaultDataPath("collections.json"), "path to the workshop collections file")
	translationsPath := flag.String("translations", defaultDataPath("en.json"), "path to the English translation table")
	catalogPath := flag.String("catalog", "", "path to the SQLite idea catalog (overrides CATALOG_PATH)")
	ingestOnly := flag.Bool("ingest", false, "run the ingestion pipeline and exit")
	flag.Parse()

	logger.Info("insights: startup initiated", "addr", *addr, "collections", *collectionsPath)

	catalogCfg, err := catalog.LoadConfig()
	if err != nil {
		logger.Error("insights: catalog config load failed", "error", err)
		fmt.Println("catalog config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*catalogPath); trimmed != "" {
		catalogCfg.Path = trimmed
	}
	ideaCatalog, err := catalog.OpenWithConfig(catalogCfg)
	if err != nil {
		logger.Warn("insights: idea catalog unavailable", "path", catalogCfg.Path, "error", err)
		ideaCatalog = nil
	}
	if ideaCatalog != nil {
		defer ideaCatalog.Close()
	}

	vectorClient, err := vector.NewFromEnv(ctx)
	if err != nil {
		logger.Error("insights: vector config load failed", "error", err)
		fmt.Println("vector config error:", err)
		os.Exit(1)
	}
	defer vectorClient.Close()
	if vectorClient.Available() {
		logger.Info("insights: qdrant available", "collection", vectorClient.Collection())
	} else {
		logger.Warn("insights: qdrant unreachable, searches use the in-memory corpus", "collection", vectorClient.Collection())
	}

	provider := llm.NewProvider()
	logger.Info("insights: llm provider ready", "provider", provider.Name())

	ingestCfg := ingest.Config{
		CollectionsPath:  *collectionsPath,
		TranslationsPath: *translationsPath,
	}
	var seeder ingest.CatalogSeeder
	if ideaCatalog != nil {
		seeder = ideaCatalog
	}
	pipeline := ingest.New(provider, vectorClient, seeder, ingestCfg)

	if *ingestOnly {
		summary, err := pipeline.Run(ctx)
		if err != nil {
			logger.Error("insights: ingestion failed", "error", err)
			fmt.Println("ingest error:", err)
			os.Exit(1)
		}
		fmt.Printf("ingested %d documents (%d upserted)\n", summary.Documents, summary.Upserted)
		return
	}

	retr := retriever.New(provider, vectorClient, func() ([]kb.Doc, error) {
		docs, _, err := ingest.LoadDocs(ingestCfg.CollectionsPath, ingestCfg.TranslationsPath)
		return docs, err
	})

	var ideas insight.IdeaCatalog
	if ideaCatalog != nil {
		ideas = ideaCatalog
	}
	assembler := insight.New(provider, ideas, insight.DefaultConfig())

	server := api.NewServer(retr, assembler, pipeline, vectorClient, provider, ingestCfg)
	logger.Info("insights: listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("insights: server stopped", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}
}

func defaultDataPath(name string) string {
	return filepath.Join("data", name)
}
