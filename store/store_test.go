package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T, s *Store, owner, id, content string) *Memory {
	t.Helper()
	mem, err := s.CreateMemory(context.Background(), &Memory{
		ID:      id,
		Owner:   owner,
		Content: content,
	})
	require.NoError(t, err)
	return mem
}

func TestCreateMemoryValidation(t *testing.T) {
	s := New(NewMockDriver(), 0)
	ctx := context.Background()

	tests := []struct {
		name string
		mem  *Memory
	}{
		{"nil memory", nil},
		{"missing owner", &Memory{ID: "a", Content: "c"}},
		{"missing id", &Memory{Owner: "o", Content: "c"}},
		{"missing content", &Memory{Owner: "o", ID: "a"}},
		{"bad location kind", &Memory{Owner: "o", ID: "a", Content: "c", Location: &Location{Kind: "imaginary", Name: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateMemory(ctx, tt.mem)
			assert.Error(t, err)
		})
	}
}

func TestCreateMemoryDefaultsTimestamps(t *testing.T) {
	s := New(NewMockDriver(), 0)

	mem := seedMemory(t, s, "o", "id-1", "content")
	assert.False(t, mem.CreatedAt.IsZero())
	assert.Equal(t, mem.CreatedAt, mem.UpdatedAt)
}

func TestOwnerScoping(t *testing.T) {
	s := New(NewMockDriver(), 0)
	ctx := context.Background()

	seedMemory(t, s, "alice", "m1", "alice's memory")

	_, err := s.GetMemory(ctx, "bob", "m1")
	assert.ErrorIs(t, err, ErrMemoryNotFound)

	err = s.DeleteMemory(ctx, "bob", "m1")
	assert.ErrorIs(t, err, ErrMemoryNotFound)

	got, err := s.GetMemory(ctx, "alice", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
}

func TestListMemoriesCapsLimit(t *testing.T) {
	s := New(NewMockDriver(), 5)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		seedMemory(t, s, "o", string(rune('a'+i)), "content")
	}

	out, err := s.ListMemories(ctx, &FindMemory{Owner: "o", Limit: 100})
	require.NoError(t, err)
	assert.Len(t, out, 5)

	// Non-positive limit falls back to the default page size, still
	// bounded by the configured cap.
	out, err = s.ListMemories(ctx, &FindMemory{Owner: "o"})
	require.NoError(t, err)
	assert.Len(t, out, 5)
}

func TestVectorSearchRejectsBadThreshold(t *testing.T) {
	s := New(NewMockDriver(), 0)
	ctx := context.Background()

	for _, min := range []float64{-0.01, 1.01} {
		_, err := s.VectorSearch(ctx, &VectorSearchOptions{
			Owner:         "o",
			Vector:        []float32{1, 0},
			MinSimilarity: min,
		})
		assert.Error(t, err, "min %v", min)
	}
}

func TestVectorSearchOrdersByScoreThenRecency(t *testing.T) {
	s := New(NewMockDriver(), 0)
	ctx := context.Background()

	now := time.Now().UTC()
	base := []*Memory{
		{ID: "far", Owner: "o", Content: "far", Embedding: []float32{0, 1}, CreatedAt: now},
		{ID: "close-old", Owner: "o", Content: "a", Embedding: []float32{1, 0}, CreatedAt: now.Add(-time.Hour)},
		{ID: "close-new", Owner: "o", Content: "b", Embedding: []float32{1, 0}, CreatedAt: now},
	}
	for _, mem := range base {
		_, err := s.CreateMemory(ctx, mem)
		require.NoError(t, err)
	}

	out, err := s.VectorSearch(ctx, &VectorSearchOptions{
		Owner:  "o",
		Vector: []float32{1, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "close-new", out[0].ID)
	assert.Equal(t, "close-old", out[1].ID)
	assert.Equal(t, "far", out[2].ID)
}

func TestUpdateMemoryMergeMetadata(t *testing.T) {
	s := New(NewMockDriver(), 0)
	ctx := context.Background()

	mem := seedMemory(t, s, "o", "m1", "content")
	_, err := s.UpdateMemory(ctx, &UpdateMemory{
		ID: mem.ID, Owner: "o",
		MergeMetadata: map[string]any{"a": 1, "b": "x"},
	})
	require.NoError(t, err)

	updated, err := s.UpdateMemory(ctx, &UpdateMemory{
		ID: mem.ID, Owner: "o",
		MergeMetadata: map[string]any{"b": "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Metadata["a"])
	assert.Equal(t, "y", updated.Metadata["b"])
}

func TestUpdateMemoryClearLocation(t *testing.T) {
	s := New(NewMockDriver(), 0)
	ctx := context.Background()

	_, err := s.CreateMemory(ctx, &Memory{
		ID: "m1", Owner: "o", Content: "c",
		Location: &Location{Kind: LocationPhysical, Name: "cafe"},
	})
	require.NoError(t, err)

	var cleared *Location
	updated, err := s.UpdateMemory(ctx, &UpdateMemory{ID: "m1", Owner: "o", Location: &cleared})
	require.NoError(t, err)
	assert.Nil(t, updated.Location)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite clamped", []float32{1, 0}, []float32{-1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}
