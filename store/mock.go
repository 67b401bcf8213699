package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// MockDriver is an in-memory Driver for tests and local experiments.
// Not durable; safe for concurrent use.
type MockDriver struct {
	mu       sync.RWMutex
	memories map[string]map[string]*Memory // owner -> id -> memory
}

// NewMockDriver creates an empty in-memory driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{memories: make(map[string]map[string]*Memory)}
}

func (d *MockDriver) CreateMemory(_ context.Context, mem *Memory) (*Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byID, ok := d.memories[mem.Owner]
	if !ok {
		byID = make(map[string]*Memory)
		d.memories[mem.Owner] = byID
	}
	byID[mem.ID] = mem.Clone()
	return mem.Clone(), nil
}

func (d *MockDriver) GetMemory(_ context.Context, owner, id string) (*Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	mem, ok := d.memories[owner][id]
	if !ok {
		return nil, ErrMemoryNotFound
	}
	return mem.Clone(), nil
}

func (d *MockDriver) UpdateMemory(_ context.Context, update *UpdateMemory) (*Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.memories[update.Owner][update.ID]
	if !ok {
		return nil, ErrMemoryNotFound
	}
	if update.Content != nil {
		mem.Content = *update.Content
	}
	if update.Reflection != nil {
		mem.Reflection = *update.Reflection
	}
	if update.EmotionalTone != nil {
		mem.EmotionalTone = *update.EmotionalTone
	}
	if update.Location != nil {
		mem.Location = *update.Location
	}
	if update.Tags != nil {
		mem.Tags = append([]string(nil), (*update.Tags)...)
	}
	if update.Embedding != nil {
		mem.Embedding = append([]float32(nil), (*update.Embedding)...)
	}
	if len(update.MergeMetadata) > 0 {
		if mem.Metadata == nil {
			mem.Metadata = make(map[string]any, len(update.MergeMetadata))
		}
		for k, v := range update.MergeMetadata {
			mem.Metadata[k] = v
		}
	}
	mem.UpdatedAt = update.UpdatedAt
	return mem.Clone(), nil
}

func (d *MockDriver) DeleteMemory(_ context.Context, owner, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.memories[owner][id]; !ok {
		return ErrMemoryNotFound
	}
	delete(d.memories[owner], id)
	return nil
}

func (d *MockDriver) DeleteAllMemories(_ context.Context, owner string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := int64(len(d.memories[owner]))
	delete(d.memories, owner)
	return n, nil
}

func (d *MockDriver) ListMemories(_ context.Context, find *FindMemory) ([]*Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Memory
	for _, mem := range d.memories[find.Owner] {
		if !matchesFind(mem, find) {
			continue
		}
		out = append(out, mem.Clone())
	}

	// Newest first; id as a stable tiebreak for records sharing a timestamp.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return paginate(out, find.Limit, find.Offset), nil
}

func (d *MockDriver) VectorSearch(_ context.Context, opts *VectorSearchOptions) ([]*Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Memory
	for _, mem := range d.memories[opts.Owner] {
		if len(mem.Embedding) == 0 {
			continue
		}
		if opts.Filter.Match != nil && !opts.Filter.Match(mem) {
			continue
		}
		score := CosineSimilarity(opts.Vector, mem.Embedding)
		if score < opts.MinSimilarity {
			continue
		}
		c := mem.Clone()
		c.Score = score
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (d *MockDriver) Ping(context.Context) error { return nil }

func (d *MockDriver) Close() error { return nil }

func matchesFind(mem *Memory, find *FindMemory) bool {
	if find.Query != "" {
		q := strings.ToLower(find.Query)
		if !strings.Contains(strings.ToLower(mem.Content), q) &&
			!strings.Contains(strings.ToLower(mem.Reflection), q) {
			return false
		}
	}
	if find.CreatedAfter != nil && mem.CreatedAt.Before(*find.CreatedAfter) {
		return false
	}
	if find.CreatedBefore != nil && !mem.CreatedAt.Before(*find.CreatedBefore) {
		return false
	}
	if find.Filter.Match != nil && !find.Filter.Match(mem) {
		return false
	}
	return true
}

func paginate(items []*Memory, limit, offset int) []*Memory {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// CosineSimilarity returns the cosine similarity of a and b clamped to
// [0, 1]. Embeddings from the supported models rarely point in opposite
// directions, so clamping negatives to 0 keeps the store's score contract
// without distorting the useful range.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
