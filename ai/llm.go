package ai

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// GenerateOptions overrides per-call generation parameters. Zero values
// fall back to the configured defaults.
type GenerateOptions struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// LLMService is the chat interface used by the extractor.
type LLMService interface {
	// Chat performs a synchronous chat completion.
	Chat(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)
}

// NewLLMService creates an LLMService for the configured provider.
func NewLLMService(cfg *LLMConfig) (LLMService, error) {
	resolved := cfg.withDefaults()

	switch cfg.Provider {
	case "openai", "deepseek":
		// DeepSeek (and friends) speak the OpenAI API.
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		return &openaiLLM{
			client: openai.NewClientWithConfig(clientConfig),
			cfg:    resolved,
		}, nil

	case "anthropic":
		client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
		return &anthropicLLM{
			client: &client,
			cfg:    resolved,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

type openaiLLM struct {
	client *openai.Client
	cfg    LLMConfig
}

func (s *openaiLLM) Chat(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	model, maxTokens, temperature := s.cfg.resolve(opts)

	req := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

type anthropicLLM struct {
	client *anthropic.Client
	cfg    LLMConfig
}

func (s *anthropicLLM) Chat(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	model, maxTokens, temperature := s.cfg.resolve(opts)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(temperature)),
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response")
}

// resolve merges per-call options over configured defaults.
func (c *LLMConfig) resolve(opts GenerateOptions) (model string, maxTokens int, temperature float32) {
	model, maxTokens, temperature = c.Model, c.MaxTokens, c.Temperature
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	return model, maxTokens, temperature
}

// SystemPrompt builds a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}
