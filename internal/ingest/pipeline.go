// File path: internal/ingest/pipeline.go
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common/telemetry"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/kb"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm/providers"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/vector"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/workshop"
)

const defaultEmbedBatchSize = 32

// CatalogSeeder replaces the idea metadata catalog with a fresh snapshot.
type CatalogSeeder interface {
	ReplaceIdeas(ctx context.Context, collections []kb.Collection) error
}

type Config struct {
	CollectionsPath  string
	TranslationsPath string
	EmbedBatchSize   int
}

// Summary reports what one ingestion run produced.
type Summary struct {
	Departments        int  `json:"departments"`
	Documents          int  `json:"documents"`
	Upserted           int  `json:"upserted"`
	CatalogSeeded      bool `json:"catalog_seeded"`
	FallbackEmbeddings bool `json:"fallback_embeddings"`
}

// Pipeline loads the workshop data, seeds the idea catalog and pushes
// embedded documents into the vector index. Runs are idempotent: the
// catalog is replaced wholesale and points overwrite by document id.
type Pipeline struct {
	embedder llm.Provider
	store    vector.Store
	catalog  CatalogSeeder
	cfg      Config
}

func New(embedder llm.Provider, store vector.Store, seeder CatalogSeeder, cfg Config) *Pipeline {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaultEmbedBatchSize
	}
	return &Pipeline{embedder: embedder, store: store, catalog: seeder, cfg: cfg}
}

// LoadDocs reads the workshop collections and translation table from disk
// and builds the document corpus. Shared with the retriever's lazy corpus
// loader so search and ingestion see the same documents.
func LoadDocs(collectionsPath, translationsPath string) ([]kb.Doc, []kb.Collection, error) {
	collections, err := workshop.LoadCollections(collectionsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load collections: %w", err)
	}
	translations, err := workshop.LoadTranslations(translationsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load translations: %w", err)
	}
	return kb.BuildDocs(collections, translations), collections, nil
}

// Run executes one full ingestion pass.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	docs, collections, err := LoadDocs(p.cfg.CollectionsPath, p.cfg.TranslationsPath)
	if err != nil {
		return Summary{}, err
	}
	return p.RunDocs(ctx, docs, collections)
}

// RunDocs ingests an already-built corpus. The catalog is seeded first so
// chat metadata lookups work even when the vector index is down; vector
// upserts happen only after each batch is fully embedded.
func (p *Pipeline) RunDocs(ctx context.Context, docs []kb.Doc, collections []kb.Collection) (Summary, error) {
	logger := common.Logger()
	summary := Summary{Departments: len(collections), Documents: len(docs)}

	if p.catalog != nil {
		if err := p.catalog.ReplaceIdeas(ctx, collections); err != nil {
			return summary, fmt.Errorf("seed catalog: %w", err)
		}
		summary.CatalogSeeded = true
	}

	if p.store == nil {
		logger.Warn("ingest: vector index not configured, skipping upsert", "documents", len(docs))
		return summary, nil
	}
	if err := p.store.EnsureCollection(ctx, llm.EmbeddingDim); err != nil {
		if errors.Is(err, vector.ErrUnavailable) {
			logger.Warn("ingest: vector index unavailable, skipping upsert", "documents", len(docs), "error", err)
			return summary, nil
		}
		return summary, fmt.Errorf("ensure collection: %w", err)
	}

	for start := 0; start < len(docs); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		points, usedFallback, err := p.embedBatch(ctx, batch)
		if err != nil {
			return summary, err
		}
		if usedFallback {
			summary.FallbackEmbeddings = true
		}
		if err := p.store.UpsertPoints(ctx, points); err != nil {
			return summary, fmt.Errorf("upsert batch: %w", err)
		}
		summary.Upserted += len(points)
		telemetry.RecordIngestBatch("documents", len(points))
	}
	logger.Info(
		"ingest: run complete",
		"departments", summary.Departments,
		"documents", summary.Documents,
		"upserted", summary.Upserted,
		"fallback_embeddings", summary.FallbackEmbeddings,
	)
	return summary, nil
}

// embedBatch produces one fully-embedded batch of points. A failed remote
// embedding call degrades the whole batch to deterministic fallback
// vectors; a cancelled context aborts instead.
func (p *Pipeline) embedBatch(ctx context.Context, docs []kb.Doc) ([]vector.Point, bool, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	usedFallback := false
	var vectors [][]float32
	if p.embedder != nil {
		embedded, err := p.embedder.Embed(ctx, texts)
		if err == nil && len(embedded) == len(docs) {
			vectors = embedded
			telemetry.RecordEmbedding(false)
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		} else if err != nil {
			common.Logger().Warn("ingest: embedding batch failed, using deterministic fallback", "error", err)
		}
	}
	if vectors == nil {
		usedFallback = true
		telemetry.RecordEmbedding(true)
		vectors = make([][]float32, len(docs))
		for i, text := range texts {
			vectors[i] = providers.FallbackEmbedding(text)
		}
	}
	points := make([]vector.Point, len(docs))
	for i, doc := range docs {
		points[i] = vector.Point{ID: doc.ID, Vector: vectors[i], Payload: doc.Payload()}
	}
	return points, usedFallback, nil
}
