// File path: internal/llm/llm.go
package llm

import (
	"os"
	"strings"
	"time"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/llm/providers"
)

type Message = providers.Message

type Provider = providers.Provider

// EmbeddingDim is the vector width every provider produces.
const EmbeddingDim = providers.Dimension

var (
	ErrEmbeddingUnavailable  = providers.ErrEmbeddingUnavailable
	ErrGenerationUnavailable = providers.ErrGenerationUnavailable
)

// NewProvider selects the remote OpenAI provider when OPENAI_API_KEY is set
// and otherwise degrades to the deterministic fallback provider. Missing
// credentials are a startup warning, never fatal.
func NewProvider() Provider {
	logger := common.Logger()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		logger.Warn("llm: OPENAI_API_KEY not set; using deterministic fallback provider")
		return providers.NewFallbackProvider()
	}
	timeout := 30 * time.Second
	if value := strings.TrimSpace(os.Getenv("OPENAI_HTTP_TIMEOUT")); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			logger.Warn("llm: invalid OPENAI_HTTP_TIMEOUT, using default", "value", value, "error", err)
		} else {
			timeout = parsed
		}
	}
	logger.Info("llm: OpenAI provider selected")
	return providers.NewOpenAIProvider(apiKey, timeout)
}
