// File path: internal/llm/providers/fallback.go
package providers

import (
	"context"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FallbackProvider serves deterministic lexical embeddings when no remote
// embedding service is configured or reachable. It carries no semantic
// meaning; it exists so retrieval degrades to a stable ranking instead of
// failing outright. Chat is not supported.
type FallbackProvider struct{}

func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{}
}

func (f *FallbackProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return "", ErrGenerationUnavailable
}

func (f *FallbackProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i, text := range input {
		vectors[i] = FallbackEmbedding(text)
	}
	return vectors, nil
}

func (f *FallbackProvider) Name() string {
	return "fallback"
}

// FallbackEmbedding derives a fixed-width vector purely from the lexical
// structure of text: word count, punctuation count, token lengths and rune
// codes. The function is pure: identical input always yields a bit-exact
// identical vector.
func FallbackEmbedding(text string) []float32 {
	vec := make([]float32, Dimension)
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return vec
	}
	words := strings.Fields(lowered)
	var punct int
	for _, r := range lowered {
		if unicode.IsPunct(r) {
			punct++
		}
	}
	vec[0] = float32(len(words))
	vec[1] = float32(punct)
	vec[2] = float32(utf8.RuneCountInString(lowered))

	const reserved = 3
	span := Dimension - reserved
	for i, word := range words {
		vec[reserved+i%span] += float32(utf8.RuneCountInString(word))
		j := 0
		for _, r := range word {
			slot := reserved + (i*131+j*31+int(r))%span
			vec[slot] += float32(int(r)%97) / 97
			j++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
