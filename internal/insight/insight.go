// File path: internal/insight/insight.go
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/catalog"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/retriever"
)

// ErrGenerationFailed marks a chat-completion failure. The HTTP layer maps
// it to a 500 with a user-safe message; the underlying detail stays in the
// logs.
var ErrGenerationFailed = errors.New("answer generation failed")

// NoInformationAnswer is returned verbatim when retrieval produced nothing.
// The generator is never invoked with an empty context.
const NoInformationAnswer = "I could not find any information about that in the workshop results."

const systemInstruction = "You are an assistant for the Duvenbeck AI workshop results dashboard. " +
	"Answer questions using only the workshop context provided in the user message. " +
	"If the context does not contain the answer, say that the workshop results hold no information on the topic."

// IdeaCatalog resolves the owner and priority recorded for an idea when the
// retrieval payload lacks them.
type IdeaCatalog interface {
	Lookup(ctx context.Context, ideaKey string) (catalog.IdeaRecord, bool, error)
}

type Config struct {
	MaxSnippets     int
	MaxSnippetRunes int
}

func DefaultConfig() Config {
	return Config{MaxSnippets: 10, MaxSnippetRunes: 600}
}

// Assembler turns ranked retrieval results into a bounded prompt context
// and generates the final answer.
type Assembler struct {
	provider llm.Provider
	catalog  IdeaCatalog
	cfg      Config
}

func New(provider llm.Provider, ideas IdeaCatalog, cfg Config) *Assembler {
	defaults := DefaultConfig()
	if cfg.MaxSnippets <= 0 {
		cfg.MaxSnippets = defaults.MaxSnippets
	}
	if cfg.MaxSnippetRunes <= 0 {
		cfg.MaxSnippetRunes = defaults.MaxSnippetRunes
	}
	return &Assembler{provider: provider, catalog: ideas, cfg: cfg}
}

// BuildContext formats the top results as one line each:
// [department - KIND] (Owner: x, Priority: y): text
func (a *Assembler) BuildContext(ctx context.Context, results []retriever.Result) string {
	if len(results) == 0 {
		return ""
	}
	bounded := results
	if len(bounded) > a.cfg.MaxSnippets {
		bounded = bounded[:a.cfg.MaxSnippets]
	}
	var builder strings.Builder
	for idx, res := range bounded {
		if idx > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(a.formatSnippet(ctx, res))
	}
	return builder.String()
}

func (a *Assembler) formatSnippet(ctx context.Context, res retriever.Result) string {
	department := payloadString(res.Payload, "department", "Unknown")
	kind := strings.ToUpper(payloadString(res.Payload, "type", "idea"))
	owner := payloadString(res.Payload, "owner", "")
	priority := payloadString(res.Payload, "priority", "")
	if (owner == "" || priority == "") && a.catalog != nil {
		if ideaKey := payloadString(res.Payload, "ideaKey", ""); ideaKey != "" {
			if record, ok, err := a.catalog.Lookup(ctx, ideaKey); err == nil && ok {
				if owner == "" {
					owner = record.Owner
				}
				if priority == "" {
					priority = record.Priority
				}
			}
		}
	}
	if owner == "" {
		owner = "n/a"
	}
	if priority == "" {
		priority = "n/a"
	}
	text := truncateRunes(payloadString(res.Payload, "text", ""), a.cfg.MaxSnippetRunes)
	return fmt.Sprintf("[%s - %s] (Owner: %s, Priority: %s): %s", department, kind, owner, priority, text)
}

// Answer produces the chat response for a question over the retrieved
// results. Zero results short-circuit to the canned answer.
func (a *Assembler) Answer(ctx context.Context, question string, results []retriever.Result) (string, error) {
	if len(results) == 0 {
		common.Logger().Info("insight: no retrieval results, returning canned answer")
		return NoInformationAnswer, nil
	}
	contextBlock := a.BuildContext(ctx, results)
	messages := []llm.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: fmt.Sprintf("Workshop context:\n%s\n\nQuestion: %s", contextBlock, strings.TrimSpace(question))},
	}
	answer, err := a.provider.Chat(ctx, messages)
	if err != nil {
		common.Logger().Error("insight: generation failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return strings.TrimSpace(answer), nil
}

func payloadString(payload map[string]interface{}, key, fallback string) string {
	if payload != nil {
		if value, ok := payload[key].(string); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return fallback
}

func truncateRunes(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "…"
}
