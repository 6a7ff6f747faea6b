// File path: internal/retriever/retriever_test.go
package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/kb"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/vector"
)

type fakeEmbedder struct {
	embedCalls int
	fail       bool
}

func (f *fakeEmbedder) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeEmbedder) Embed(ctx context.Context, input []string) ([][]float32, error) {
	f.embedCalls++
	if f.fail {
		return nil, llm.ErrEmbeddingUnavailable
	}
	vectors := make([][]float32, len(input))
	for i := range input {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

type fakeStore struct {
	available     bool
	searchHits    []vector.SearchResult
	scrollHits    []vector.SearchResult
	searchErr     error
	scrollErr     error
	searchErrOnce error
	scrollErrOnce error
	lastFilter    vector.Filter
	searchCalls   int
	scrollCalls   int
}

func (f *fakeStore) Available() bool    { return f.available }
func (f *fakeStore) Collection() string { return "test" }

func (f *fakeStore) EnsureCollection(ctx context.Context, dim int) error { return nil }

func (f *fakeStore) UpsertPoints(ctx context.Context, points []vector.Point) error { return nil }

func (f *fakeStore) Search(ctx context.Context, vec []float32, limit int, filter vector.Filter) ([]vector.SearchResult, error) {
	f.searchCalls++
	f.lastFilter = filter
	if f.searchErrOnce != nil {
		err := f.searchErrOnce
		f.searchErrOnce = nil
		return nil, err
	}
	if !f.available {
		return nil, vector.ErrUnavailable
	}
	return f.searchHits, f.searchErr
}

func (f *fakeStore) Scroll(ctx context.Context, filter vector.Filter, limit int) ([]vector.SearchResult, error) {
	f.scrollCalls++
	f.lastFilter = filter
	if f.scrollErrOnce != nil {
		err := f.scrollErrOnce
		f.scrollErrOnce = nil
		return nil, err
	}
	if !f.available {
		return nil, vector.ErrUnavailable
	}
	return f.scrollHits, f.scrollErr
}

func testCorpus() []kb.Doc {
	return []kb.Doc{
		{ID: "HR_contract_idea", Department: "HR", IdeaKey: "contract", Kind: kb.KindIdea, Text: "automated contract review"},
		{ID: "HR_contract_problem", Department: "HR", IdeaKey: "contract", Kind: kb.KindProblem, Text: "manual contract checks are slow"},
		{ID: "HR_contract_solution", Department: "HR", IdeaKey: "contract", Kind: kb.KindSolution, Text: "let a model pre-screen contracts"},
		{ID: "IT_monitoring_idea", Department: "IT", IdeaKey: "monitoring", Kind: kb.KindIdea, Text: "unrelated topic"},
	}
}

func newTestRetriever(embedder *fakeEmbedder, store *fakeStore) *Retriever {
	return New(embedder, store, func() ([]kb.Doc, error) {
		return testCorpus(), nil
	})
}

func TestFilterModeSkipsEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{available: false}
	r := newTestRetriever(embedder, store)

	results, err := r.Search(context.Background(), Query{Department: "HR"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if embedder.embedCalls != 0 {
		t.Fatalf("filter mode must not embed, got %d calls", embedder.embedCalls)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 HR documents, got %d", len(results))
	}
	for _, res := range results {
		if res.Payload["department"] != "HR" {
			t.Fatalf("filtered result leaked department %v", res.Payload["department"])
		}
		if res.Score != filterScore {
			t.Fatalf("expected uniform score %v, got %v", filterScore, res.Score)
		}
	}
}

func TestFilterModeEmptyQueryAllowed(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{}, &fakeStore{})
	results, err := r.Search(context.Background(), Query{Text: "", Department: "HR"})
	if err != nil {
		t.Fatalf("empty query with filter must be allowed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected every HR document, got %d", len(results))
	}
}

func TestFilterModeByKind(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{}, &fakeStore{})
	results, err := r.Search(context.Background(), Query{Kind: "problem"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 problem document, got %d", len(results))
	}
	if results[0].ID != "HR_contract_problem" {
		t.Fatalf("unexpected result %q", results[0].ID)
	}
}

func TestFilterModePrefersIndexScroll(t *testing.T) {
	store := &fakeStore{
		available: true,
		scrollHits: []vector.SearchResult{
			{ID: "HR_contract_idea", Payload: map[string]interface{}{"department": "HR", "type": "idea", "text": "automated contract review"}},
		},
	}
	r := newTestRetriever(&fakeEmbedder{}, store)
	results, err := r.Search(context.Background(), Query{Department: "HR", Kind: "idea"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.scrollCalls != 1 {
		t.Fatalf("expected one scroll call, got %d", store.scrollCalls)
	}
	if store.lastFilter.Department != "HR" || store.lastFilter.Kind != "idea" {
		t.Fatalf("filter not forwarded: %+v", store.lastFilter)
	}
	if len(results) != 1 || results[0].Score != filterScore {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestFilterModeFallsBackWhenScrollFails(t *testing.T) {
	store := &fakeStore{available: true, scrollErr: vector.ErrUnavailable}
	r := newTestRetriever(&fakeEmbedder{}, store)
	results, err := r.Search(context.Background(), Query{Department: "IT"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "IT_monitoring_idea" {
		t.Fatalf("expected corpus fallback for IT, got %+v", results)
	}
}

func TestSemanticModeRequiresQuery(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{}, &fakeStore{})
	if _, err := r.Search(context.Background(), Query{Text: "   "}); !errors.Is(err, ErrMissingQuery) {
		t.Fatalf("expected ErrMissingQuery, got %v", err)
	}
}

func TestSemanticModeVectorResults(t *testing.T) {
	store := &fakeStore{
		available: true,
		searchHits: []vector.SearchResult{
			{ID: "HR_contract_idea", Score: 0.91, Payload: map[string]interface{}{"department": "HR", "type": "idea", "text": "automated contract review"}},
			{ID: "HR_contract_problem", Score: 0.74, Payload: map[string]interface{}{"department": "HR", "type": "problem", "text": "manual contract checks are slow"}},
		},
	}
	embedder := &fakeEmbedder{}
	r := newTestRetriever(embedder, store)
	results, err := r.Search(context.Background(), Query{Text: "contract review", Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if embedder.embedCalls != 1 {
		t.Fatalf("expected one embed call, got %d", embedder.embedCalls)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "HR_contract_idea" || results[0].Score != float64(float32(0.91)) {
		t.Fatalf("unexpected top result: %+v", results[0])
	}
}

func TestSemanticModeLexicalFallbackWhenIndexDown(t *testing.T) {
	store := &fakeStore{available: false}
	embedder := &fakeEmbedder{}
	r := newTestRetriever(embedder, store)
	results, err := r.Search(context.Background(), Query{Text: "HR ideas"})
	if err != nil {
		t.Fatalf("unavailable index must not raise: %v", err)
	}
	if store.searchCalls != 1 {
		t.Fatalf("the store must be probed so it can recover, got %d calls", store.searchCalls)
	}
	_ = results
}

func TestSemanticModeLexicalFallbackOnEmptyVectorResults(t *testing.T) {
	store := &fakeStore{available: true, searchHits: nil}
	r := newTestRetriever(&fakeEmbedder{}, store)
	results, err := r.Search(context.Background(), Query{Text: "contract review"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected lexical fallback results")
	}
	if results[0].ID != "HR_contract_idea" {
		t.Fatalf("expected contract idea first, got %q", results[0].ID)
	}
}

func TestSemanticModeFallbackEmbeddingOnFailure(t *testing.T) {
	embedder := &fakeEmbedder{fail: true}
	store := &fakeStore{
		available:  true,
		searchHits: []vector.SearchResult{{ID: "HR_contract_idea", Score: 0.5, Payload: map[string]interface{}{"type": "idea"}}},
	}
	r := newTestRetriever(embedder, store)
	results, err := r.Search(context.Background(), Query{Text: "contract review"})
	if err != nil {
		t.Fatalf("embedding failure must not raise: %v", err)
	}
	if store.searchCalls != 1 {
		t.Fatalf("expected vector search with fallback embedding, got %d calls", store.searchCalls)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestLexicalScoring(t *testing.T) {
	docs := []kb.Doc{
		{ID: "a", Text: "automated contract review"},
		{ID: "b", Text: "unrelated topic"},
	}
	results := lexicalSearch(docs, "contract review", 10)
	if len(results) != 1 {
		t.Fatalf("expected only the matching document, got %d results", len(results))
	}
	if results[0].ID != "a" {
		t.Fatalf("expected document a, got %q", results[0].ID)
	}
	// two token hits plus the contiguous phrase bonus, divided by two tokens
	if results[0].Score != 2.0 {
		t.Fatalf("expected score 2.0, got %v", results[0].Score)
	}
}

func TestLexicalScoringStableTies(t *testing.T) {
	docs := []kb.Doc{
		{ID: "first", Text: "shared term one"},
		{ID: "second", Text: "shared term two"},
	}
	results := lexicalSearch(docs, "shared", 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "first" || results[1].ID != "second" {
		t.Fatalf("tie must keep corpus order, got %q then %q", results[0].ID, results[1].ID)
	}
}

func TestNormalizeResultDefaults(t *testing.T) {
	normalized := normalizeResult(vector.SearchResult{
		ID:      " raw-id ",
		Payload: map[string]interface{}{"text": 42, "finalPrio": "not-a-number"},
	})
	if normalized.ID != "raw-id" {
		t.Fatalf("expected trimmed id, got %q", normalized.ID)
	}
	if normalized.Score != 0 {
		t.Fatalf("missing score must default to 0, got %v", normalized.Score)
	}
	if normalized.Payload["text"] != "" {
		t.Fatalf("non-string text must default to empty, got %v", normalized.Payload["text"])
	}
	if normalized.Payload["type"] != kb.KindIdea {
		t.Fatalf("missing type must default to idea, got %v", normalized.Payload["type"])
	}
	if normalized.Payload["finalPrio"] != 0.0 {
		t.Fatalf("malformed finalPrio must default to 0, got %v", normalized.Payload["finalPrio"])
	}
	for _, key := range []string{"department", "ideaKey", "owner", "priority"} {
		if normalized.Payload[key] != "" {
			t.Fatalf("missing %s must default to empty string, got %v", key, normalized.Payload[key])
		}
	}
	nilPayload := normalizeResult(vector.SearchResult{ID: "x"})
	if nilPayload.Payload == nil {
		t.Fatalf("nil payload must be replaced with defaults")
	}
}

func TestSemanticModeRecoversAfterTransientFailure(t *testing.T) {
	store := &fakeStore{
		available:     true,
		searchErrOnce: vector.ErrUnavailable,
		searchHits: []vector.SearchResult{
			{ID: "HR_contract_idea", Score: 0.9, Payload: map[string]interface{}{"department": "HR", "type": "idea"}},
		},
	}
	r := newTestRetriever(&fakeEmbedder{}, store)

	first, err := r.Search(context.Background(), Query{Text: "contract review"})
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	if len(first) == 0 || first[0].Score == 0.9 {
		t.Fatalf("expected lexical fallback while the index is failing, got %+v", first)
	}

	second, err := r.Search(context.Background(), Query{Text: "contract review"})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if store.searchCalls != 2 {
		t.Fatalf("recovered index must be retried, got %d calls", store.searchCalls)
	}
	if len(second) != 1 || second[0].ID != "HR_contract_idea" || second[0].Score != float64(float32(0.9)) {
		t.Fatalf("expected index results after recovery, got %+v", second)
	}
}

func TestFilterModeRecoversAfterTransientFailure(t *testing.T) {
	store := &fakeStore{
		available:     true,
		scrollErrOnce: vector.ErrUnavailable,
		scrollHits: []vector.SearchResult{
			{ID: "HR_contract_idea", Payload: map[string]interface{}{"department": "HR", "type": "idea"}},
		},
	}
	r := newTestRetriever(&fakeEmbedder{}, store)

	first, err := r.Search(context.Background(), Query{Department: "HR"})
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected corpus scan while the index is failing, got %d results", len(first))
	}

	second, err := r.Search(context.Background(), Query{Department: "HR"})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if store.scrollCalls != 2 {
		t.Fatalf("recovered index must be retried, got %d calls", store.scrollCalls)
	}
	if len(second) != 1 || second[0].ID != "HR_contract_idea" {
		t.Fatalf("expected index results after recovery, got %+v", second)
	}
}

func TestRefreshReplacesCorpus(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{}, &fakeStore{})
	r.Refresh([]kb.Doc{{ID: "only", Department: "Ops", Kind: kb.KindIdea, Text: "fleet telematics"}})
	results, err := r.Search(context.Background(), Query{Department: "Ops"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "only" {
		t.Fatalf("expected refreshed corpus, got %+v", results)
	}
}
