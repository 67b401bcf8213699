package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// MockExtractor returns canned extractions for tests.
type MockExtractor struct {
	mu sync.Mutex

	// ExtractFunc overrides the default behavior when set.
	ExtractFunc func(ctx context.Context, text string) (*Extraction, error)

	// Calls records every text passed to Extract.
	Calls []string
}

func (m *MockExtractor) Extract(ctx context.Context, text string, _ GenerateOptions) (*Extraction, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	fn := m.ExtractFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return &Extraction{
		Summary:       "summary of: " + truncate(text, 40),
		Reflection:    "a reflection",
		EmotionalTone: "neutral",
		Tags:          []string{"test"},
	}, nil
}

// MockEmbedder produces deterministic vectors for tests. The same text
// always embeds to the same vector, distinct texts rarely collide.
type MockEmbedder struct {
	mu sync.Mutex

	Dim int // defaults to 8

	// EmbedFunc overrides the default behavior when set.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// Calls records every text embedded.
	Calls []string
}

func (m *MockEmbedder) dim() int {
	if m.Dim <= 0 {
		return 8
	}
	return m.Dim
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	fn := m.EmbedFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return deterministicVector(text, m.dim()), nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (m *MockEmbedder) Dimensions() int {
	return m.dim()
}

// CallCount returns how many texts were embedded so far.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func deterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33))/float32(1<<30) - 1
	}
	return vec
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
