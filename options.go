package recall

import (
	"time"

	"github.com/recallio/recall-go/ai"
)

// callOptions carries per-call overrides for configuration defaults.
type callOptions struct {
	owner       string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	atomic      bool
}

// Option overrides one configured default for a single call.
type Option func(*callOptions)

// WithOwner scopes the call to a different owner than the configured
// default.
func WithOwner(owner string) Option {
	return func(o *callOptions) { o.owner = owner }
}

// WithExtractionModel overrides the extraction model for this call.
func WithExtractionModel(model string) Option {
	return func(o *callOptions) { o.model = model }
}

// WithMaxTokens overrides the generation length cap for this call.
func WithMaxTokens(n int) Option {
	return func(o *callOptions) { o.maxTokens = n }
}

// WithTemperature overrides generation randomness for this call.
func WithTemperature(t float32) Option {
	return func(o *callOptions) { o.temperature = t }
}

// WithTimeout overrides the per-external-call timeout for this call.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) { o.timeout = d }
}

// WithAtomic makes SaveBatch all-or-nothing: if any item fails, the
// items that did persist are rolled back and the batch reports failure.
// It has no effect on other operations.
func WithAtomic() Option {
	return func(o *callOptions) { o.atomic = true }
}

func (c *Client) callOptions(opts []Option) callOptions {
	resolved := callOptions{
		owner:   c.cfg.DefaultOwner,
		timeout: c.cfg.RequestTimeout,
	}
	for _, opt := range opts {
		opt(&resolved)
	}
	return resolved
}

func (o callOptions) generateOptions() ai.GenerateOptions {
	return ai.GenerateOptions{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	}
}
