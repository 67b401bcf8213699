package processors

import (
	"context"
	"regexp"

	"github.com/recallio/recall-go/store"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// Redact masks common high-risk PII patterns in the record content
// before it is persisted. When it rewrites the content, the pipeline
// re-embeds the record, so stored vectors never describe redacted text.
type Redact struct{}

func (Redact) Name() string { return "redact" }

func (Redact) Process(_ context.Context, record *store.Memory) (map[string]any, error) {
	redacted, changed := redactPII(record.Content)
	if changed {
		record.Content = redacted
	}
	return map[string]any{"redacted": changed}, nil
}

func redactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Card numbers match the phone pattern too, so cards go first.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}
