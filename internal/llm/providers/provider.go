// File path: internal/llm/providers/provider.go
package providers

import (
	"context"
	"errors"
)

// Dimension is the fixed embedding width shared by every provider and by the
// vector index collection.
const Dimension = 768

// ErrEmbeddingUnavailable marks embedding failures caused by the remote
// backend (transport, quota, auth). Callers route to the deterministic
// fallback embedding on this error.
var ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

// ErrGenerationUnavailable marks chat-completion failures, including the
// absence of any configured generation backend.
var ErrGenerationUnavailable = errors.New("generation backend unavailable")

type Message struct {
	Role    string
	Content string
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Embed(ctx context.Context, input []string) ([][]float32, error)
	Name() string
}
