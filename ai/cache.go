package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/ristretto"
)

// CachingEmbedder wraps an EmbeddingService with an in-process cache so
// repeated content (batch retries, unchanged updates) does not pay for
// another embedding call. Keys are content-addressed by model and text.
type CachingEmbedder struct {
	inner EmbeddingService
	model string
	cache *ristretto.Cache
}

// NewCachingEmbedder wraps inner with a cache holding up to maxEntries
// vectors. A zero or negative maxEntries defaults to 4096.
func NewCachingEmbedder(inner EmbeddingService, model string, maxEntries int64) (*CachingEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{inner: inner, model: model, cache: cache}, nil
}

func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if v, ok := c.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec, 1)
	return vec, nil
}

func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Collect the texts whose vectors are not cached yet, preserving
	// their original positions.
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(c.key(text)); ok {
			if vec, ok := v.([]float32); ok {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		i := missingIdx[j]
		out[i] = vec
		c.cache.Set(c.key(texts[i]), vec, 1)
	}
	return out, nil
}

func (c *CachingEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Wait blocks until buffered writes have been applied. Mostly useful
// in tests, since ristretto admits entries asynchronously.
func (c *CachingEmbedder) Wait() {
	c.cache.Wait()
}

// Close releases the cache's background goroutines.
func (c *CachingEmbedder) Close() {
	c.cache.Close()
}

func (c *CachingEmbedder) key(text string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
