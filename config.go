package recall

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/recallio/recall-go/ai"
	"github.com/recallio/recall-go/store/db"
)

// Config is the explicit configuration passed at construction. Defaults
// are resolved once in New; nothing mutates configuration afterwards.
type Config struct {
	// DefaultOwner scopes operations whose call options carry no owner.
	DefaultOwner string

	LLM       ai.LLMConfig
	Embedding ai.EmbeddingConfig
	Store     db.Config

	// RequestTimeout bounds each external call. Default 30s.
	RequestTimeout time.Duration

	// MaxConcurrentRequests bounds in-flight saves during SaveBatch and
	// doubles as the admission rate for external calls. Default 4.
	MaxConcurrentRequests int

	// MaxRetries is the total attempt count for transient upstream
	// failures. Default 3.
	MaxRetries int

	// RequestsPerSecond rate-limits external service calls across the
	// whole client. Zero means unlimited.
	RequestsPerSecond float64

	// MaxPageSize caps search and similarity result sizes. Default 200.
	MaxPageSize int

	// EmbeddingCacheSize is the number of vectors kept in the in-process
	// cache. Zero disables caching.
	EmbeddingCacheSize int64

	// LogLevel is one of debug, info, warn, error. Default info.
	LogLevel string

	// MetricsNamespace prefixes the Prometheus instruments. Default
	// "recall".
	MetricsNamespace string
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "recall"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Validate reports the first problem with the client-level settings.
// Service credentials are checked separately in New, and only for the
// services the caller did not inject.
func (c Config) Validate() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("%w: temperature %v outside [0,1]", ErrConfiguration, c.LLM.Temperature)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests per second %v must not be negative", ErrConfiguration, c.RequestsPerSecond)
	}
	return nil
}

func (c Config) slogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig reads configuration from an optional YAML file plus
// RECALL_* environment variables. Environment values win over file
// values, so deployments can override credentials without editing
// files.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("recall")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "recall.db")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("max_concurrent_requests", 4)
	v.SetDefault("max_retries", 3)
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read config %s: %v", ErrConfiguration, path, err)
		}
	}

	cfg := Config{
		DefaultOwner: v.GetString("owner"),
		LLM: ai.LLMConfig{
			Provider:    v.GetString("llm.provider"),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Temperature: float32(v.GetFloat64("llm.temperature")),
		},
		Embedding: ai.EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Model:      v.GetString("embedding.model"),
			APIKey:     v.GetString("embedding.api_key"),
			BaseURL:    v.GetString("embedding.base_url"),
			Dimensions: v.GetInt("embedding.dimensions"),
		},
		Store: db.Config{
			Driver:     v.GetString("store.driver"),
			DSN:        v.GetString("store.dsn"),
			Dimensions: v.GetInt("embedding.dimensions"),
		},
		RequestTimeout:        v.GetDuration("request_timeout"),
		MaxConcurrentRequests: v.GetInt("max_concurrent_requests"),
		MaxRetries:            v.GetInt("max_retries"),
		RequestsPerSecond:     v.GetFloat64("requests_per_second"),
		MaxPageSize:           v.GetInt("max_page_size"),
		EmbeddingCacheSize:    v.GetInt64("embedding_cache_size"),
		LogLevel:              v.GetString("log_level"),
	}
	return cfg, nil
}
