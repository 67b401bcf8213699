package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/recallio/recall-go/store"
)

// DB is the PostgreSQL driver. It is the reference backend: vector search
// runs on pgvector and full-text search on ts_vector.
type DB struct {
	db         *sql.DB
	dimensions int
}

// NewDB opens a PostgreSQL connection, verifies it, and provisions the
// memory schema for the given embedding dimension.
func NewDB(ctx context.Context, dsn string, dimensions int) (store.Driver, error) {
	if dsn == "" {
		return nil, errors.New("dsn is required")
	}
	if dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	d := &DB{db: db, dimensions: dimensions}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory (
			id UUID PRIMARY KEY,
			owner TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			content TEXT NOT NULL,
			reflection TEXT NOT NULL DEFAULT '',
			emotional_tone TEXT NOT NULL DEFAULT '',
			location_kind TEXT,
			location_name TEXT,
			tags TEXT[] NOT NULL DEFAULT '{}',
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d)
		)`, d.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_memory_owner_created ON memory (owner, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration failed on %q", firstLine(stmt))
		}
	}
	return nil
}

func (d *DB) GetDB() *sql.DB { return d.db }

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) Close() error { return d.db.Close() }

// rebind rewrites `?` placeholders to PostgreSQL's positional `$n` form.
// Queries are assembled with `?` so filter fragments compose across
// dialects.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
