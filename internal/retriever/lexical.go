// File path: internal/retriever/lexical.go
package retriever

import (
	"sort"
	"strings"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common/telemetry"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/kb"
)

// contiguousBonus rewards documents containing the whole query as one
// phrase over documents that merely contain every token somewhere.
const contiguousBonus = 2

// lexicalSearch scores the corpus against the query by token overlap. One
// point per query token found as a substring of the document text, plus the
// phrase bonus when the full query appears contiguously. Zero-score
// documents are dropped, scores are divided by the token count so longer
// queries do not win on raw hit volume, and ties keep corpus order.
func lexicalSearch(docs []kb.Doc, query string, limit int) []Result {
	if limit <= 0 {
		limit = defaultLimit
	}
	normalized := strings.ToLower(strings.TrimSpace(query))
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return nil
	}
	telemetry.RecordLexicalSearch()
	scored := make([]Result, 0, len(docs))
	for _, doc := range docs {
		text := strings.ToLower(doc.Text)
		var score float64
		for _, token := range tokens {
			if strings.Contains(text, token) {
				score++
			}
		}
		if strings.Contains(text, normalized) {
			score += contiguousBonus
		}
		if score == 0 {
			continue
		}
		scored = append(scored, Result{
			ID:      doc.ID,
			Score:   score / float64(len(tokens)),
			Payload: doc.Payload(),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// matchFilter lists corpus documents matching the filter exactly, in corpus
// order, with the uniform filter-mode score.
func matchFilter(docs []kb.Doc, department, kind string, limit int) []Result {
	telemetry.RecordFilterScan()
	matched := make([]Result, 0)
	for _, doc := range docs {
		if department != "" && !strings.EqualFold(doc.Department, department) {
			continue
		}
		if kind != "" && !strings.EqualFold(doc.Kind, kind) {
			continue
		}
		matched = append(matched, Result{
			ID:      doc.ID,
			Score:   filterScore,
			Payload: doc.Payload(),
		})
		if len(matched) >= limit {
			break
		}
	}
	return matched
}
