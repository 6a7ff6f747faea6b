// File path: internal/retriever/retriever.go
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common/telemetry"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/kb"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm/providers"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/vector"
)

const (
	// defaultLimit bounds semantic searches when the caller does not ask
	// for a specific count.
	defaultLimit = 10
	// filterCap bounds exhaustive filter-mode listings. Filter mode
	// returns every match, so the cap exists only to keep responses
	// finite.
	filterCap = 200
	// filterScore is the uniform score assigned to filter-mode results;
	// every exact match is equally relevant.
	filterScore = 1.0
)

// ErrMissingQuery is returned when a semantic search is requested without
// query text. Filter-mode searches run fine without one.
var ErrMissingQuery = errors.New("query text required for semantic search")

// Query carries one retrieval request. A non-empty Department or Kind
// switches the retriever into filter mode.
type Query struct {
	Text       string
	Limit      int
	Department string
	Kind       string
}

// Filtered reports whether the query names any exact-match constraint.
func (q Query) Filtered() bool {
	return strings.TrimSpace(q.Department) != "" || strings.TrimSpace(q.Kind) != ""
}

// Result is the canonical retrieval outcome shape. Scores are ordinal
// within one response only: filter hits carry the uniform score, vector
// hits carry cosine similarities and lexical hits carry token-overlap
// ratios, and the scales are deliberately not unified.
type Result struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// CorpusLoader produces the in-memory document corpus on first use.
type CorpusLoader func() ([]kb.Doc, error)

// Retriever routes queries between the vector index and the in-memory
// corpus. Safe for concurrent use; the corpus loads lazily exactly once.
type Retriever struct {
	embedder llm.Provider
	store    vector.Store
	loader   CorpusLoader

	initOnce sync.Once
	initErr  error

	mu     sync.RWMutex
	corpus []kb.Doc
}

func New(embedder llm.Provider, store vector.Store, loader CorpusLoader) *Retriever {
	return &Retriever{embedder: embedder, store: store, loader: loader}
}

// Refresh replaces the in-memory corpus, bypassing the lazy loader.
func (r *Retriever) Refresh(docs []kb.Doc) {
	copied := make([]kb.Doc, len(docs))
	copy(copied, docs)
	r.initOnce.Do(func() {})
	r.mu.Lock()
	r.corpus = copied
	r.initErr = nil
	r.mu.Unlock()
}

func (r *Retriever) docs() []kb.Doc {
	r.initOnce.Do(func() {
		if r.loader == nil {
			return
		}
		docs, err := r.loader()
		if err != nil {
			common.Logger().Warn("retriever: corpus load failed", "error", err)
			r.mu.Lock()
			r.initErr = err
			r.mu.Unlock()
			return
		}
		r.mu.Lock()
		r.corpus = docs
		r.mu.Unlock()
	})
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.corpus
}

// Search runs one retrieval request. Filter mode lists every exact match
// up to the cap; semantic mode ranks the nearest neighbors for the query
// embedding. Backend unavailability never escapes: both modes degrade to
// the in-memory corpus.
func (r *Retriever) Search(ctx context.Context, query Query) ([]Result, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if query.Filtered() {
		return r.filterSearch(ctx, query), nil
	}
	if strings.TrimSpace(query.Text) == "" {
		return nil, ErrMissingQuery
	}
	return r.semanticSearch(ctx, query.Text, limit), nil
}

// filterSearch returns all documents matching the department/kind
// constraints with the uniform score. No embedding is generated; exact
// matching never needs one.
func (r *Retriever) filterSearch(ctx context.Context, query Query) []Result {
	department := strings.TrimSpace(query.Department)
	kind := strings.TrimSpace(query.Kind)
	filter := vector.Filter{Department: department, Kind: kind}
	if r.store != nil {
		hits, err := r.store.Scroll(ctx, filter, filterCap)
		if err == nil {
			results := make([]Result, 0, len(hits))
			for _, hit := range hits {
				normalized := normalizeResult(hit)
				normalized.Score = filterScore
				results = append(results, normalized)
			}
			return results
		}
		common.Logger().Warn("retriever: filter scroll failed, scanning corpus", "error", err)
	}
	return matchFilter(r.docs(), department, kind, filterCap)
}

// semanticSearch embeds the query and ranks vector-index neighbors,
// degrading to the deterministic fallback embedding and then to lexical
// scoring as backends drop away.
func (r *Retriever) semanticSearch(ctx context.Context, text string, limit int) []Result {
	logger := common.Logger()
	if r.store != nil {
		embedding := r.embedQuery(ctx, text)
		hits, err := r.store.Search(ctx, embedding, limit, vector.Filter{})
		if err != nil {
			logger.Warn("retriever: vector search failed, using lexical fallback", "error", err)
		} else if len(hits) > 0 {
			results := make([]Result, 0, len(hits))
			for _, hit := range hits {
				results = append(results, normalizeResult(hit))
			}
			return results
		}
	}
	return lexicalSearch(r.docs(), text, limit)
}

func (r *Retriever) embedQuery(ctx context.Context, text string) []float32 {
	if r.embedder != nil {
		vectors, err := r.embedder.Embed(ctx, []string{text})
		if err == nil && len(vectors) == 1 && len(vectors[0]) > 0 {
			telemetry.RecordEmbedding(false)
			return vectors[0]
		}
		if err != nil {
			common.Logger().Warn("retriever: embedding failed, using deterministic fallback", "error", err)
		}
	}
	telemetry.RecordEmbedding(true)
	return providers.FallbackEmbedding(text)
}

// normalizeResult coerces a raw index hit into the canonical result shape:
// string id, zero score when absent, payload with string defaults and
// "idea" as the default kind. Malformed backend payloads must not reach
// consumers.
func normalizeResult(hit vector.SearchResult) Result {
	payload := hit.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	for _, key := range []string{"text", "department", "ideaKey", "owner", "priority"} {
		payload[key] = stringField(payload, key, "")
	}
	payload["type"] = stringField(payload, "type", kb.KindIdea)
	payload["finalPrio"] = floatField(payload, "finalPrio")
	return Result{
		ID:      strings.TrimSpace(hit.ID),
		Score:   float64(hit.Score),
		Payload: payload,
	}
}

func stringField(payload map[string]interface{}, key, fallback string) string {
	if raw, ok := payload[key]; ok {
		switch value := raw.(type) {
		case string:
			return value
		case fmt.Stringer:
			return value.String()
		}
	}
	return fallback
}

func floatField(payload map[string]interface{}, key string) float64 {
	switch value := payload[key].(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	default:
		return 0
	}
}
