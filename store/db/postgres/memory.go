package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/recallio/recall-go/store"
)

const memoryColumns = `id, owner, created_at, updated_at, content, reflection,
	emotional_tone, location_kind, location_name, tags, metadata, embedding`

// CreateMemory inserts a new memory row.
func (d *DB) CreateMemory(ctx context.Context, mem *store.Memory) (*store.Memory, error) {
	metadata, err := marshalMetadata(mem.Metadata)
	if err != nil {
		return nil, err
	}

	var kind, name sql.NullString
	if mem.Location != nil {
		kind = sql.NullString{String: string(mem.Location.Kind), Valid: true}
		name = sql.NullString{String: mem.Location.Name, Valid: true}
	}

	stmt := rebind(`INSERT INTO memory (` + memoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at`)

	err = d.db.QueryRowContext(ctx, stmt,
		mem.ID,
		mem.Owner,
		mem.CreatedAt,
		mem.UpdatedAt,
		mem.Content,
		mem.Reflection,
		mem.EmotionalTone,
		kind,
		name,
		tagsValue(mem.Tags),
		metadata,
		embeddingValue(mem.Embedding),
	).Scan(&mem.CreatedAt, &mem.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert memory")
	}
	return mem, nil
}

// GetMemory returns one memory scoped by owner.
func (d *DB) GetMemory(ctx context.Context, owner, id string) (*store.Memory, error) {
	stmt := rebind(`SELECT ` + memoryColumns + ` FROM memory WHERE owner = ? AND id = ?`)
	row := d.db.QueryRowContext(ctx, stmt, owner, id)
	mem, err := scanMemory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrMemoryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get memory")
	}
	return mem, nil
}

// UpdateMemory applies a partial update and returns the updated row.
func (d *DB) UpdateMemory(ctx context.Context, update *store.UpdateMemory) (*store.Memory, error) {
	set, args := []string{"updated_at = ?"}, []any{update.UpdatedAt}

	if update.Content != nil {
		set, args = append(set, "content = ?"), append(args, *update.Content)
	}
	if update.Reflection != nil {
		set, args = append(set, "reflection = ?"), append(args, *update.Reflection)
	}
	if update.EmotionalTone != nil {
		set, args = append(set, "emotional_tone = ?"), append(args, *update.EmotionalTone)
	}
	if update.Location != nil {
		var kind, name sql.NullString
		if loc := *update.Location; loc != nil {
			kind = sql.NullString{String: string(loc.Kind), Valid: true}
			name = sql.NullString{String: loc.Name, Valid: true}
		}
		set, args = append(set, "location_kind = ?", "location_name = ?"), append(args, kind, name)
	}
	if update.Tags != nil {
		set, args = append(set, "tags = ?"), append(args, tagsValue(*update.Tags))
	}
	if update.Embedding != nil {
		set, args = append(set, "embedding = ?"), append(args, embeddingValue(*update.Embedding))
	}
	if len(update.MergeMetadata) > 0 {
		merged, err := marshalMetadata(update.MergeMetadata)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "metadata = metadata || ?::jsonb"), append(args, merged)
	}

	stmt := rebind(`UPDATE memory SET ` + strings.Join(set, ", ") +
		` WHERE owner = ? AND id = ? RETURNING ` + memoryColumns)
	args = append(args, update.Owner, update.ID)

	row := d.db.QueryRowContext(ctx, stmt, args...)
	mem, err := scanMemory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrMemoryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update memory")
	}
	return mem, nil
}

// DeleteMemory removes a memory permanently.
func (d *DB) DeleteMemory(ctx context.Context, owner, id string) error {
	stmt := rebind(`DELETE FROM memory WHERE owner = ? AND id = ?`)
	result, err := d.db.ExecContext(ctx, stmt, owner, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete memory")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrMemoryNotFound
	}
	return nil
}

// DeleteAllMemories removes every memory of the owner.
func (d *DB) DeleteAllMemories(ctx context.Context, owner string) (int64, error) {
	result, err := d.db.ExecContext(ctx, rebind(`DELETE FROM memory WHERE owner = ?`), owner)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete memories")
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// ListMemories lists matching memories newest first.
func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	where, args := []string{"owner = ?"}, []any{find.Owner}

	if find.Query != "" {
		where = append(where, `to_tsvector('simple', content || ' ' || reflection) @@ plainto_tsquery('simple', ?)`)
		args = append(args, find.Query)
	}
	if find.CreatedAfter != nil {
		where, args = append(where, "created_at >= ?"), append(args, *find.CreatedAfter)
	}
	if find.CreatedBefore != nil {
		where, args = append(where, "created_at < ?"), append(args, *find.CreatedBefore)
	}
	if find.Filter.SQL != "" {
		where, args = append(where, "("+find.Filter.SQL+")"), append(args, find.Filter.Args...)
	}

	query := `SELECT ` + memoryColumns + ` FROM memory WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, find.Limit, find.Offset)

	rows, err := d.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memories")
	}
	defer rows.Close()

	list := []*store.Memory{}
	for rows.Next() {
		mem, err := scanMemory(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan memory")
		}
		list = append(list, mem)
	}
	return list, rows.Err()
}

// VectorSearch performs nearest-neighbor retrieval with pgvector.
// The <=> operator computes cosine distance, so similarity is
// 1 - (embedding <=> query), ordered descending; ties go to the most
// recent memory.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.Memory, error) {
	vector := pgvector.NewVector(opts.Vector)

	// Args must follow the textual placeholder order: the score expression
	// in the SELECT list comes before the WHERE conditions.
	where := []string{"owner = ?", "embedding IS NOT NULL", "1 - (embedding <=> ?) >= ?"}
	args := []any{vector, opts.Owner, vector, opts.MinSimilarity}
	if opts.Filter.SQL != "" {
		where, args = append(where, "("+opts.Filter.SQL+")"), append(args, opts.Filter.Args...)
	}

	query := `SELECT ` + memoryColumns + `, 1 - (embedding <=> ?) AS score
		FROM memory
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY score DESC, created_at DESC
		LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := d.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	list := []*store.Memory{}
	for rows.Next() {
		var mem *store.Memory
		mem, err = scanMemoryWithScore(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		list = append(list, mem)
	}
	return list, rows.Err()
}

// scanFunc matches both sql.Row.Scan and sql.Rows.Scan.
type scanFunc func(dest ...any) error

func scanMemory(scan scanFunc) (*store.Memory, error) {
	var mem store.Memory
	var kind, name sql.NullString
	var tags pq.StringArray
	var metadata []byte
	var vector nullVector

	err := scan(
		&mem.ID,
		&mem.Owner,
		&mem.CreatedAt,
		&mem.UpdatedAt,
		&mem.Content,
		&mem.Reflection,
		&mem.EmotionalTone,
		&kind,
		&name,
		&tags,
		&metadata,
		&vector,
	)
	if err != nil {
		return nil, err
	}
	finishMemory(&mem, kind, name, tags, metadata, vector)
	return &mem, nil
}

func scanMemoryWithScore(rows *sql.Rows) (*store.Memory, error) {
	var mem store.Memory
	var kind, name sql.NullString
	var tags pq.StringArray
	var metadata []byte
	var vector nullVector

	err := rows.Scan(
		&mem.ID,
		&mem.Owner,
		&mem.CreatedAt,
		&mem.UpdatedAt,
		&mem.Content,
		&mem.Reflection,
		&mem.EmotionalTone,
		&kind,
		&name,
		&tags,
		&metadata,
		&vector,
		&mem.Score,
	)
	if err != nil {
		return nil, err
	}
	finishMemory(&mem, kind, name, tags, metadata, vector)
	return &mem, nil
}

func finishMemory(mem *store.Memory, kind, name sql.NullString, tags pq.StringArray, metadata []byte, vector nullVector) {
	if kind.Valid {
		mem.Location = &store.Location{Kind: store.LocationKind(kind.String), Name: name.String}
	}
	mem.Tags = []string(tags)
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &mem.Metadata)
	}
	if vector.valid {
		mem.Embedding = vector.vec.Slice()
	}
}

// nullVector scans a nullable vector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}
	return b, nil
}

// tagsValue binds tags as a non-null array. Extraction can leave tags
// nil, and pq.Array turns a nil slice into SQL NULL, which the NOT NULL
// tags column rejects.
func tagsValue(tags []string) interface {
	driver.Valuer
	sql.Scanner
} {
	if tags == nil {
		tags = []string{}
	}
	return pq.Array(tags)
}

// embeddingValue converts an embedding for storage; empty embeddings are
// stored as NULL so the vector(D) column never sees a zero-length value.
func embeddingValue(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}
