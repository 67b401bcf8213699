package ai

import (
	"context"
	"testing"
)

func TestCachingEmbedderReusesVectors(t *testing.T) {
	inner := &MockEmbedder{Dim: 8}
	c, err := NewCachingEmbedder(inner, "test-model", 128)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()

	first, err := c.Embed(ctx, "the same text")
	if err != nil {
		t.Fatal(err)
	}
	c.Wait()

	second, err := c.Embed(ctx, "the same text")
	if err != nil {
		t.Fatal(err)
	}

	if inner.CallCount() != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.CallCount())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached vector differs from original")
		}
	}
}

func TestCachingEmbedderBatchPartialHit(t *testing.T) {
	inner := &MockEmbedder{Dim: 8}
	c, err := NewCachingEmbedder(inner, "test-model", 128)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()

	if _, err := c.Embed(ctx, "cached"); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	vecs, err := c.EmbedBatch(ctx, []string{"fresh", "cached", "fresh"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	// "cached" was served from the cache, "fresh" embedded once per
	// occurrence plus the initial call.
	if inner.CallCount() != 3 {
		t.Fatalf("inner calls = %d, want 3", inner.CallCount())
	}
	if c.Dimensions() != 8 {
		t.Fatalf("dimensions = %d", c.Dimensions())
	}
}
