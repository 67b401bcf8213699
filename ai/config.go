// Package ai wraps the external language-model services the SDK depends on:
// chat-based structured extraction and text embeddings.
package ai

import "errors"

// LLMConfig configures the extraction model.
type LLMConfig struct {
	Provider    string  // openai, deepseek, anthropic
	Model       string  // e.g. gpt-4o-mini, deepseek-chat, claude-3-5-haiku-latest
	APIKey      string
	BaseURL     string  // optional override for OpenAI-compatible providers
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.2
}

// EmbeddingConfig configures the embedding model.
type EmbeddingConfig struct {
	Provider   string // openai, siliconflow (OpenAI-compatible)
	Model      string // e.g. text-embedding-3-small
	Dimensions int    // e.g. 1536
	APIKey     string
	BaseURL    string
}

// Validate checks that the LLM configuration is usable.
func (c *LLMConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("llm provider is required")
	}
	if c.Model == "" {
		return errors.New("llm model is required")
	}
	if c.APIKey == "" {
		return errors.New("llm API key is required")
	}
	return nil
}

// Validate checks that the embedding configuration is usable.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if c.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	return nil
}

func (c *LLMConfig) withDefaults() LLMConfig {
	out := *c
	if out.MaxTokens <= 0 {
		out.MaxTokens = 1024
	}
	if out.Temperature == 0 {
		out.Temperature = 0.2
	}
	return out
}
