package store

import (
	"time"
)

// LocationKind classifies where a remembered moment took place.
type LocationKind string

const (
	LocationMental    LocationKind = "mental"
	LocationPhysical  LocationKind = "physical"
	LocationDigital   LocationKind = "digital"
	LocationDescribed LocationKind = "described"
)

// ValidLocationKind reports whether k is one of the known kinds.
func ValidLocationKind(k LocationKind) bool {
	switch k {
	case LocationMental, LocationPhysical, LocationDigital, LocationDescribed:
		return true
	}
	return false
}

// Location is an optional tagged variant attached to a memory.
// A nil *Location means no location was detected.
type Location struct {
	Kind LocationKind `json:"kind"`
	Name string       `json:"name"`
}

// Memory is the central record of the SDK.
//
// ID, Owner and CreatedAt are assigned at creation and never change.
// Content may be rewritten by a redaction-style processor or by Update;
// whenever it changes the embedding is regenerated so that Embedding always
// corresponds to the current content. Metadata is owned by the processor
// chain and is only ever merged key-by-key, never replaced wholesale.
type Memory struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Content       string         `json:"content"`
	Reflection    string         `json:"reflection,omitempty"`
	EmotionalTone string         `json:"emotional_tone,omitempty"`
	Location      *Location      `json:"location,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`

	Embedding []float32 `json:"-"`

	// Score is the cosine similarity in [0, 1] to the query vector.
	// Populated only on results returned by VectorSearch.
	Score float64 `json:"score,omitempty"`
}

// Clone returns a deep copy of the memory.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	out := *m
	if m.Location != nil {
		loc := *m.Location
		out.Location = &loc
	}
	out.Tags = append([]string(nil), m.Tags...)
	out.Embedding = append([]float32(nil), m.Embedding...)
	if m.Metadata != nil {
		out.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// HasTag reports whether the memory carries the given tag.
func (m *Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FindMemory specifies the conditions for listing memories.
// Owner is always required; everything else narrows the result.
type FindMemory struct {
	Owner string

	// Query is an optional full-text term matched against content and
	// reflection.
	Query string

	// Filter holds SQL produced by the filter compiler, with its
	// positional arguments. Empty means no structured filter.
	Filter FilterClause

	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	Limit  int
	Offset int
}

// FilterClause is a compiled structured filter produced by the filter
// package. SQL/Args hold a dialect-specific fragment that is ANDed into the
// WHERE clause by database drivers; Match is the equivalent in-memory
// predicate used by MockDriver. Both views are derived from the same
// expression, so every driver applies identical filter semantics.
type FilterClause struct {
	SQL   string
	Args  []any
	Match func(*Memory) bool
}

// Empty reports whether the clause carries no condition.
func (c FilterClause) Empty() bool { return c.SQL == "" && c.Match == nil }

// UpdateMemory specifies a partial update. Nil fields are left untouched;
// set fields replace the stored value wholesale.
type UpdateMemory struct {
	ID    string
	Owner string

	Content       *string
	Reflection    *string
	EmotionalTone *string
	Location      **Location // set to new(nil) to clear
	Tags          *[]string
	Embedding     *[]float32

	// MergeMetadata is merged key-by-key into the stored metadata map.
	MergeMetadata map[string]any

	UpdatedAt time.Time
}

// VectorSearchOptions drives nearest-neighbor retrieval.
type VectorSearchOptions struct {
	Owner         string
	Vector        []float32
	MinSimilarity float64 // closed range [0, 1]
	Limit         int
	Filter        FilterClause
}
