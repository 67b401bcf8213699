package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallio/recall-go/store"
	"github.com/recallio/recall-go/store/filter"
)

func newTestDB(t *testing.T) store.Driver {
	t.Helper()
	d, err := NewDB(context.Background(), ":memory:", 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newMemory(id, owner string) *store.Memory {
	now := time.Now().UTC().Truncate(time.Second)
	return &store.Memory{
		ID:            id,
		Owner:         owner,
		CreatedAt:     now,
		UpdatedAt:     now,
		Content:       "Had coffee with Alex",
		Reflection:    "A calm morning",
		EmotionalTone: "content",
		Location:      &store.Location{Kind: store.LocationPhysical, Name: "Blue Bottle"},
		Tags:          []string{"coffee", "social"},
		Metadata:      map[string]any{"word_count": float64(4)},
		Embedding:     []float32{0.1, 0.2, 0.3, 0.4},
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	in := newMemory("m1", "alice")
	_, err := d.CreateMemory(ctx, in)
	require.NoError(t, err)

	got, err := d.GetMemory(ctx, "alice", "m1")
	require.NoError(t, err)

	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.Owner, got.Owner)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, in.Content, got.Content)
	assert.Equal(t, in.Reflection, got.Reflection)
	assert.Equal(t, in.EmotionalTone, got.EmotionalTone)
	assert.Equal(t, in.Location, got.Location)
	assert.Equal(t, in.Tags, got.Tags)
	assert.Equal(t, in.Metadata, got.Metadata)
	assert.Equal(t, in.Embedding, got.Embedding)
}

func TestCreateWithoutTagsRoundTrips(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	in := newMemory("m1", "alice")
	in.Tags = nil
	_, err := d.CreateMemory(ctx, in)
	require.NoError(t, err)

	got, err := d.GetMemory(ctx, "alice", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Tags)
}

func TestGetScopedByOwner(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	_, err := d.CreateMemory(ctx, newMemory("m1", "alice"))
	require.NoError(t, err)

	_, err = d.GetMemory(ctx, "bob", "m1")
	assert.ErrorIs(t, err, store.ErrMemoryNotFound)
}

func TestUpdateMergesMetadata(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	_, err := d.CreateMemory(ctx, newMemory("m1", "alice"))
	require.NoError(t, err)

	tone := "nostalgic"
	updated, err := d.UpdateMemory(ctx, &store.UpdateMemory{
		ID: "m1", Owner: "alice",
		EmotionalTone: &tone,
		MergeMetadata: map[string]any{"revisited": true},
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, err)

	assert.Equal(t, "nostalgic", updated.EmotionalTone)
	assert.Equal(t, true, updated.Metadata["revisited"])
	// Existing keys survive the merge.
	assert.Equal(t, float64(4), updated.Metadata["word_count"])

	got, err := d.GetMemory(ctx, "alice", "m1")
	require.NoError(t, err)
	assert.Equal(t, "nostalgic", got.EmotionalTone)
	assert.Equal(t, true, got.Metadata["revisited"])
}

func TestUpdateClearsLocation(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	_, err := d.CreateMemory(ctx, newMemory("m1", "alice"))
	require.NoError(t, err)

	var cleared *store.Location
	updated, err := d.UpdateMemory(ctx, &store.UpdateMemory{
		ID: "m1", Owner: "alice",
		Location:  &cleared,
		UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Location)

	got, err := d.GetMemory(ctx, "alice", "m1")
	require.NoError(t, err)
	assert.Nil(t, got.Location)
}

func TestDeleteIsPermanent(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	_, err := d.CreateMemory(ctx, newMemory("m1", "alice"))
	require.NoError(t, err)

	require.NoError(t, d.DeleteMemory(ctx, "alice", "m1"))
	assert.ErrorIs(t, d.DeleteMemory(ctx, "alice", "m1"), store.ErrMemoryNotFound)

	_, err = d.GetMemory(ctx, "alice", "m1")
	assert.ErrorIs(t, err, store.ErrMemoryNotFound)
}

func TestDeleteAllMemoriesCounts(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := d.CreateMemory(ctx, newMemory(id, "alice"))
		require.NoError(t, err)
	}
	_, err := d.CreateMemory(ctx, newMemory("other", "bob"))
	require.NoError(t, err)

	count, err := d.DeleteAllMemories(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Bob's record is untouched.
	_, err = d.GetMemory(ctx, "bob", "other")
	assert.NoError(t, err)
}

func TestListMemoriesTextSearchAndDates(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	old := newMemory("old", "alice")
	old.Content = "Visited the museum"
	old.CreatedAt = time.Now().UTC().Add(-72 * time.Hour).Truncate(time.Second)
	_, err := d.CreateMemory(ctx, old)
	require.NoError(t, err)

	fresh := newMemory("fresh", "alice")
	fresh.Content = "Morning run in the park"
	_, err = d.CreateMemory(ctx, fresh)
	require.NoError(t, err)

	// Case-insensitive text match.
	out, err := d.ListMemories(ctx, &store.FindMemory{Owner: "alice", Query: "MUSEUM", Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "old", out[0].ID)

	// Date bound excludes the old record.
	since := time.Now().UTC().Add(-time.Hour)
	out, err = d.ListMemories(ctx, &store.FindMemory{Owner: "alice", CreatedAfter: &since, Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "fresh", out[0].ID)
}

func TestListMemoriesWithFilterClause(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	joyful := newMemory("joyful", "alice")
	joyful.EmotionalTone = "joyful"
	_, err := d.CreateMemory(ctx, joyful)
	require.NoError(t, err)

	_, err = d.CreateMemory(ctx, newMemory("plain", "alice"))
	require.NoError(t, err)

	f, err := filter.Compile(`tone == "joyful" && "coffee" in tags`)
	require.NoError(t, err)
	clause, err := f.Clause(filter.DialectSQLite)
	require.NoError(t, err)

	out, err := d.ListMemories(ctx, &store.FindMemory{Owner: "alice", Filter: clause, Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "joyful", out[0].ID)
}

func TestListMemoriesPagination(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		mem := newMemory(string(rune('a'+i)), "alice")
		mem.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := d.CreateMemory(ctx, mem)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for offset := 0; ; offset += 2 {
		page, err := d.ListMemories(ctx, &store.FindMemory{Owner: "alice", Limit: 2, Offset: offset})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		require.LessOrEqual(t, len(page), 2)
		for _, mem := range page {
			require.False(t, seen[mem.ID])
			seen[mem.ID] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestVectorSearchThresholdAndOrder(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	near := newMemory("near", "alice")
	near.Embedding = []float32{0.9, 0.436, 0, 0}
	_, err := d.CreateMemory(ctx, near)
	require.NoError(t, err)

	far := newMemory("far", "alice")
	far.Embedding = []float32{0, 0, 1, 0}
	_, err = d.CreateMemory(ctx, far)
	require.NoError(t, err)

	out, err := d.VectorSearch(ctx, &store.VectorSearchOptions{
		Owner:         "alice",
		Vector:        []float32{1, 0, 0, 0},
		MinSimilarity: 0.7,
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "near", out[0].ID)
	assert.InDelta(t, 0.9, out[0].Score, 0.02)

	// Without a threshold both come back, best first.
	out, err = d.VectorSearch(ctx, &store.VectorSearchOptions{
		Owner:  "alice",
		Vector: []float32{1, 0, 0, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "near", out[0].ID)
}

func TestVectorSearchSkipsRecordsWithoutEmbedding(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	bare := newMemory("bare", "alice")
	bare.Embedding = nil
	_, err := d.CreateMemory(ctx, bare)
	require.NoError(t, err)

	out, err := d.VectorSearch(ctx, &store.VectorSearchOptions{
		Owner:  "alice",
		Vector: []float32{1, 0, 0, 0},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}
