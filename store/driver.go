package store

import (
	"context"
	"errors"
)

// ErrMemoryNotFound is returned when no memory matches the given id for the
// given owner. Drivers must return it for deleted ids as well: a deleted
// memory never resurrects.
var ErrMemoryNotFound = errors.New("memory not found")

// Driver is the persistence backend interface. Every operation is scoped by
// owner; a driver must make cross-owner access impossible at this layer even
// when the backing database also enforces row-level isolation.
//
// Implementations: postgres (pgvector, production), sqlite (local/dev),
// MockDriver (tests).
type Driver interface {
	// CreateMemory persists a new memory. ID, Owner, CreatedAt and
	// Embedding must be set by the caller.
	CreateMemory(ctx context.Context, mem *Memory) (*Memory, error)

	// GetMemory returns the memory with the given id, or ErrMemoryNotFound.
	GetMemory(ctx context.Context, owner, id string) (*Memory, error)

	// UpdateMemory applies a partial update, or returns ErrMemoryNotFound.
	UpdateMemory(ctx context.Context, update *UpdateMemory) (*Memory, error)

	// DeleteMemory removes the memory permanently, or returns
	// ErrMemoryNotFound when the id does not exist for the owner.
	DeleteMemory(ctx context.Context, owner, id string) error

	// DeleteAllMemories removes every memory of the owner and returns the
	// number of rows removed.
	DeleteAllMemories(ctx context.Context, owner string) (int64, error)

	// ListMemories returns memories matching find, newest first, honoring
	// Limit and Offset.
	ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error)

	// VectorSearch returns the memories nearest to opts.Vector with
	// similarity >= opts.MinSimilarity, ordered by similarity then
	// recency. Score is cosine similarity in [0, 1], computed as
	// 1 - cosine_distance.
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*Memory, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
