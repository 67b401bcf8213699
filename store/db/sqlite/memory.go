package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/recallio/recall-go/store"
)

const memoryColumns = `id, owner, created_ts, updated_ts, content, reflection,
	emotional_tone, location_kind, location_name, tags, metadata, embedding`

// CreateMemory inserts a new memory row.
func (d *DB) CreateMemory(ctx context.Context, mem *store.Memory) (*store.Memory, error) {
	tags, metadata, err := marshalFields(mem.Tags, mem.Metadata)
	if err != nil {
		return nil, err
	}

	var kind, name sql.NullString
	if mem.Location != nil {
		kind = sql.NullString{String: string(mem.Location.Kind), Valid: true}
		name = sql.NullString{String: mem.Location.Name, Valid: true}
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO memory (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.ID,
		mem.Owner,
		mem.CreatedAt.Unix(),
		mem.UpdatedAt.Unix(),
		mem.Content,
		mem.Reflection,
		mem.EmotionalTone,
		kind,
		name,
		tags,
		metadata,
		encodeVector(mem.Embedding),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert memory")
	}
	return mem, nil
}

// GetMemory returns one memory scoped by owner.
func (d *DB) GetMemory(ctx context.Context, owner, id string) (*store.Memory, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memory WHERE owner = ? AND id = ?`, owner, id)
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
// SQLite lacks a JSONB merge operator, so metadata is merged in process
// inside a transaction.
func (d *DB) UpdateMemory(ctx context.Context, update *store.UpdateMemory) (*store.Memory, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memory WHERE owner = ? AND id = ?`, update.Owner, update.ID)
	mem, err := scanMemory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrMemoryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load memory for update")
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

	tags, metadata, err := marshalFields(mem.Tags, mem.Metadata)
	if err != nil {
		return nil, err
	}
	var kind, name sql.NullString
	if mem.Location != nil {
		kind = sql.NullString{String: string(mem.Location.Kind), Valid: true}
		name = sql.NullString{String: mem.Location.Name, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE memory SET updated_ts = ?, content = ?, reflection = ?, emotional_tone = ?,
			location_kind = ?, location_name = ?, tags = ?, metadata = ?, embedding = ?
		 WHERE owner = ? AND id = ?`,
		mem.UpdatedAt.Unix(),
		mem.Content,
		mem.Reflection,
		mem.EmotionalTone,
		kind,
		name,
		tags,
		metadata,
		encodeVector(mem.Embedding),
		update.Owner,
		update.ID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update memory")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit update")
	}
	return mem, nil
}

// DeleteMemory removes a memory permanently.
func (d *DB) DeleteMemory(ctx context.Context, owner, id string) error {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM memory WHERE owner = ? AND id = ?`, owner, id)
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
	result, err := d.db.ExecContext(ctx, `DELETE FROM memory WHERE owner = ?`, owner)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete memories")
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// ListMemories lists matching memories newest first. Full-text matching is
// a LIKE scan over content and reflection; good enough for local data sets.
func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	where, args := []string{"owner = ?"}, []any{find.Owner}

	if find.Query != "" {
		pattern := "%" + escapeLike(strings.ToLower(find.Query)) + "%"
		where = append(where, `(LOWER(content) LIKE ? ESCAPE '\' OR LOWER(reflection) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if find.CreatedAfter != nil {
		where, args = append(where, "created_ts >= ?"), append(args, find.CreatedAfter.Unix())
	}
	if find.CreatedBefore != nil {
		where, args = append(where, "created_ts < ?"), append(args, find.CreatedBefore.Unix())
	}
	if find.Filter.SQL != "" {
		where, args = append(where, "("+find.Filter.SQL+")"), append(args, find.Filter.Args...)
	}

	query := `SELECT ` + memoryColumns + ` FROM memory WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_ts DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, find.Limit, find.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
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

// VectorSearch ranks candidate rows by cosine similarity computed in
// process. Score is 1-to-1 with the postgres driver's
// `1 - (embedding <=> query)` so backends are interchangeable.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.Memory, error) {
	where, args := []string{"owner = ?", "embedding IS NOT NULL"}, []any{opts.Owner}
	if opts.Filter.SQL != "" {
		where, args = append(where, "("+opts.Filter.SQL+")"), append(args, opts.Filter.Args...)
	}

	query := `SELECT ` + memoryColumns + ` FROM memory WHERE ` + strings.Join(where, " AND ")
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	list := []*store.Memory{}
	for rows.Next() {
		mem, err := scanMemory(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan memory")
		}
		if len(mem.Embedding) == 0 {
			continue
		}
		score := store.CosineSimilarity(opts.Vector, mem.Embedding)
		if score < opts.MinSimilarity {
			continue
		}
		mem.Score = score
		list = append(list, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[:opts.Limit]
	}
	return list, nil
}

type scanFunc func(dest ...any) error

func scanMemory(scan scanFunc) (*store.Memory, error) {
	var mem store.Memory
	var createdTs, updatedTs int64
	var kind, name sql.NullString
	var tags, metadata string
	var embedding []byte

	err := scan(
		&mem.ID,
		&mem.Owner,
		&createdTs,
		&updatedTs,
		&mem.Content,
		&mem.Reflection,
		&mem.EmotionalTone,
		&kind,
		&name,
		&tags,
		&metadata,
		&embedding,
	)
	if err != nil {
		return nil, err
	}

	mem.CreatedAt = time.Unix(createdTs, 0).UTC()
	mem.UpdatedAt = time.Unix(updatedTs, 0).UTC()
	if kind.Valid {
		mem.Location = &store.Location{Kind: store.LocationKind(kind.String), Name: name.String}
	}
	if err := json.Unmarshal([]byte(tags), &mem.Tags); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal tags")
	}
	if err := json.Unmarshal([]byte(metadata), &mem.Metadata); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal metadata")
	}
	mem.Embedding = decodeVector(embedding)
	return &mem, nil
}

func marshalFields(tags []string, metadata map[string]any) (string, string, error) {
	if tags == nil {
		tags = []string{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	t, err := json.Marshal(tags)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal tags")
	}
	m, err := json.Marshal(metadata)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal metadata")
	}
	return string(t), string(m), nil
}
