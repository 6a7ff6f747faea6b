// File path: internal/kb/types.go
package kb

import "strings"

// Document kinds. Every workshop idea fans out into exactly one document per
// kind.
const (
	KindIdea     = "idea"
	KindProblem  = "problem"
	KindSolution = "solution"
)

// Kinds lists the document kinds in emission order.
var Kinds = []string{KindIdea, KindProblem, KindSolution}

// ValidKind reports whether value names a known document kind.
func ValidKind(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case KindIdea, KindProblem, KindSolution:
		return true
	}
	return false
}

// Doc is the atomic retrievable unit: one facet (idea, problem or solution)
// of a workshop idea, with its text already resolved through the translation
// table.
type Doc struct {
	ID         string  `json:"id"`
	Department string  `json:"department"`
	IdeaKey    string  `json:"ideaKey"`
	Kind       string  `json:"type"`
	Text       string  `json:"text"`
	Owner      string  `json:"owner,omitempty"`
	Priority   string  `json:"priority,omitempty"`
	FinalPrio  float64 `json:"finalPrio,omitempty"`
}

// Payload renders the document as the metadata map stored alongside its
// vector and echoed back in search results.
func (d Doc) Payload() map[string]interface{} {
	return map[string]interface{}{
		"text":       d.Text,
		"department": d.Department,
		"ideaKey":    d.IdeaKey,
		"owner":      d.Owner,
		"priority":   d.Priority,
		"finalPrio":  d.FinalPrio,
		"type":       d.Kind,
	}
}

// Idea is one raw workshop record as collected from a department session.
// The *Key fields are translation keys, not display text.
type Idea struct {
	Key               string  `json:"key"`
	IdeaKey           string  `json:"ideaKey"`
	ProblemKey        string  `json:"problemKey"`
	SolutionKey       string  `json:"solutionKey"`
	Owner             string  `json:"owner,omitempty"`
	Priority          string  `json:"priority,omitempty"`
	IntegrationEffort string  `json:"integrationEffort,omitempty"`
	Risk              string  `json:"risk,omitempty"`
	FinalPrio         float64 `json:"finalPrio,omitempty"`
}

// Collection groups the ideas gathered from one department workshop.
type Collection struct {
	Department string `json:"department"`
	Ideas      []Idea `json:"ideas"`
}

// Translator resolves translation keys into display text. Lookup returns
// false when the key is unknown.
type Translator interface {
	Lookup(key string) (string, bool)
}
