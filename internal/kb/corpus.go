// File path: internal/kb/corpus.go
package kb

import (
	"fmt"
	"strings"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
)

// BuildDocs flattens department idea collections into retrievable documents.
// Each idea yields three documents (idea, problem, solution) with ids of the
// form {department}_{sourceKey}_{kind}. A department with no name or no ideas
// is skipped with a warning rather than aborting the build; a translation
// lookup that fails leaves the raw key as the text, which downstream checks
// treat as a data defect signal, not an error.
func BuildDocs(collections []Collection, translator Translator) []Doc {
	logger := common.Logger()
	var docs []Doc
	for _, collection := range collections {
		department := strings.TrimSpace(collection.Department)
		if department == "" {
			logger.Warn("kb: skipping collection without department name", "ideas", len(collection.Ideas))
			continue
		}
		if len(collection.Ideas) == 0 {
			logger.Warn("kb: skipping empty department collection", "department", department)
			continue
		}
		for _, idea := range collection.Ideas {
			sourceKey := strings.TrimSpace(idea.Key)
			if sourceKey == "" {
				logger.Warn("kb: skipping idea without source key", "department", department)
				continue
			}
			for _, kind := range Kinds {
				translationKey := idea.translationKey(kind)
				docs = append(docs, Doc{
					ID:         fmt.Sprintf("%s_%s_%s", department, sourceKey, kind),
					Department: department,
					IdeaKey:    sourceKey,
					Kind:       kind,
					Text:       resolveText(translator, translationKey, department),
					Owner:      idea.Owner,
					Priority:   idea.Priority,
					FinalPrio:  idea.FinalPrio,
				})
			}
		}
	}
	logger.Info("kb: corpus built", "collections", len(collections), "docs", len(docs))
	return docs
}

func (i Idea) translationKey(kind string) string {
	switch kind {
	case KindProblem:
		return i.ProblemKey
	case KindSolution:
		return i.SolutionKey
	default:
		return i.IdeaKey
	}
}

func resolveText(translator Translator, key, department string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ""
	}
	if translator != nil {
		if text, ok := translator.Lookup(trimmed); ok && strings.TrimSpace(text) != "" {
			return text
		}
	}
	common.Logger().Warn("kb: translation missing, falling back to raw key", "key", trimmed, "department", department)
	return trimmed
}
