package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultPageSize is used when a caller passes a non-positive limit.
	DefaultPageSize = 20
	// MaxPageSize caps every list and search to bound resource use.
	MaxPageSize = 200
)

// Store provides validated, owner-scoped access to memory records on top of
// a Driver. It normalizes limits, rejects blank owners and ids before they
// reach the backend, and guarantees consistent ErrMemoryNotFound semantics.
type Store struct {
	driver      Driver
	maxPageSize int
}

// New creates a Store over the given driver. maxPageSize <= 0 falls back to
// MaxPageSize.
func New(driver Driver, maxPageSize int) *Store {
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	return &Store{driver: driver, maxPageSize: maxPageSize}
}

// Driver exposes the underlying driver.
func (s *Store) Driver() Driver { return s.driver }

// MaxPageSize returns the configured page cap.
func (s *Store) MaxPageSize() int { return s.maxPageSize }

func (s *Store) Close() error { return s.driver.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.driver.Ping(ctx) }

// CreateMemory validates and persists a new memory.
func (s *Store) CreateMemory(ctx context.Context, mem *Memory) (*Memory, error) {
	if mem == nil {
		return nil, errors.New("nil memory")
	}
	if mem.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if mem.ID == "" {
		return nil, errors.New("id is required")
	}
	if mem.Content == "" {
		return nil, errors.New("content is required")
	}
	if mem.Location != nil && !ValidLocationKind(mem.Location.Kind) {
		return nil, fmt.Errorf("invalid location kind %q", mem.Location.Kind)
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now().UTC()
	}
	if mem.UpdatedAt.IsZero() {
		mem.UpdatedAt = mem.CreatedAt
	}
	return s.driver.CreateMemory(ctx, mem)
}

// GetMemory returns one memory scoped by owner.
func (s *Store) GetMemory(ctx context.Context, owner, id string) (*Memory, error) {
	if owner == "" || id == "" {
		return nil, ErrMemoryNotFound
	}
	return s.driver.GetMemory(ctx, owner, id)
}

// UpdateMemory applies a whole-field replacement for the fields set in
// update and bumps UpdatedAt.
func (s *Store) UpdateMemory(ctx context.Context, update *UpdateMemory) (*Memory, error) {
	if update == nil || update.Owner == "" || update.ID == "" {
		return nil, ErrMemoryNotFound
	}
	if update.Content != nil && *update.Content == "" {
		return nil, errors.New("content cannot be cleared")
	}
	if update.Location != nil && *update.Location != nil && !ValidLocationKind((*update.Location).Kind) {
		return nil, fmt.Errorf("invalid location kind %q", (*update.Location).Kind)
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = time.Now().UTC()
	}
	return s.driver.UpdateMemory(ctx, update)
}

// DeleteMemory removes one memory permanently.
func (s *Store) DeleteMemory(ctx context.Context, owner, id string) error {
	if owner == "" || id == "" {
		return ErrMemoryNotFound
	}
	return s.driver.DeleteMemory(ctx, owner, id)
}

// DeleteAllMemories removes every memory of the owner.
func (s *Store) DeleteAllMemories(ctx context.Context, owner string) (int64, error) {
	if owner == "" {
		return 0, errors.New("owner is required")
	}
	return s.driver.DeleteAllMemories(ctx, owner)
}

// ListMemories lists memories newest first with a capped limit.
func (s *Store) ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error) {
	if find == nil || find.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if find.Limit <= 0 {
		find.Limit = DefaultPageSize
	}
	if find.Limit > s.maxPageSize {
		find.Limit = s.maxPageSize
	}
	if find.Offset < 0 {
		find.Offset = 0
	}
	return s.driver.ListMemories(ctx, find)
}

// VectorSearch runs nearest-neighbor retrieval with a capped limit.
// MinSimilarity outside [0, 1] is rejected rather than clamped so callers
// notice sign-convention mistakes (cosine distance vs similarity).
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*Memory, error) {
	if opts == nil || opts.Owner == "" {
		return nil, errors.New("owner is required")
	}
	if len(opts.Vector) == 0 {
		return nil, errors.New("query vector is required")
	}
	if opts.MinSimilarity < 0 || opts.MinSimilarity > 1 {
		return nil, fmt.Errorf("min similarity %v outside [0,1]", opts.MinSimilarity)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultPageSize
	}
	if opts.Limit > s.maxPageSize {
		opts.Limit = s.maxPageSize
	}
	return s.driver.VectorSearch(ctx, opts)
}
