package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedExtraction reports a model response that could not be
// parsed into a usable extraction result.
var ErrMalformedExtraction = errors.New("malformed extraction response")

// ExtractedLocation is the location detected in the text, if any.
type ExtractedLocation struct {
	Kind string `json:"kind"` // mental, physical, digital, described
	Name string `json:"name"`
}

// Extraction is the structured enrichment derived from raw text.
type Extraction struct {
	Summary       string             `json:"summary"`
	Reflection    string             `json:"reflection"`
	EmotionalTone string             `json:"emotional_tone"`
	Location      *ExtractedLocation `json:"location"`
	Tags          []string           `json:"tags"`
}

// Extractor derives structured enrichment from raw text. opts may
// override the configured model and generation parameters per call.
type Extractor interface {
	Extract(ctx context.Context, text string, opts GenerateOptions) (*Extraction, error)
}

type llmExtractor struct {
	llm LLMService
}

// NewExtractor creates an Extractor on top of a chat model.
func NewExtractor(llm LLMService) Extractor {
	return &llmExtractor{llm: llm}
}

const extractSystemPrompt = `You analyze a piece of personal text and produce a structured memory record.

Respond with a single JSON object and nothing else:
{
  "summary": "one or two sentence summary of the text",
  "reflection": "a short first-person reflection on what this means",
  "emotional_tone": "a single lowercase word or short phrase, e.g. joyful, anxious, neutral",
  "location": {"kind": "physical", "name": "..."} or null if no location is mentioned,
  "tags": ["lowercase", "topic", "tags"]
}

location.kind must be one of: "mental" (imagined or remembered places), "physical" (real-world places), "digital" (websites, apps, games), "described" (places described second-hand).
Return 3-5 tags. Do not wrap the JSON in markdown fences.`

func (e *llmExtractor) Extract(ctx context.Context, text string, opts GenerateOptions) (*Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no text provided for extraction")
	}

	messages := []Message{
		SystemPrompt(extractSystemPrompt),
		UserMessage(text),
	}

	response, err := e.llm.Chat(ctx, messages, opts)
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	result, err := ParseExtraction(response)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ParseExtraction parses a model response into an Extraction. It
// tolerates markdown code fences and leading or trailing prose around
// the JSON object.
func ParseExtraction(response string) (*Extraction, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedExtraction)
	}
	cleaned = cleaned[start : end+1]

	var result Extraction
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}

	if result.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedExtraction)
	}

	result.EmotionalTone = strings.ToLower(strings.TrimSpace(result.EmotionalTone))

	if result.Location != nil {
		result.Location.Kind = strings.ToLower(strings.TrimSpace(result.Location.Kind))
		result.Location.Name = strings.TrimSpace(result.Location.Name)
		// Drop locations the model invented outside the vocabulary
		// instead of failing the whole extraction.
		if result.Location.Name == "" || !validLocationKind(result.Location.Kind) {
			result.Location = nil
		}
	}

	tags := result.Tags[:0]
	for _, tag := range result.Tags {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag != "" {
			tags = append(tags, strings.ToLower(tag))
		}
	}
	result.Tags = tags

	return &result, nil
}

func validLocationKind(kind string) bool {
	switch kind {
	case "mental", "physical", "digital", "described":
		return true
	}
	return false
}
