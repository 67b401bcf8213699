package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"strings"

	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
	"github.com/pkg/errors"

	"github.com/recallio/recall-go/store"
)

// DB is the SQLite driver, intended for local development and tests.
// SQLite has no vector extension here, so embeddings are stored as
// little-endian float32 blobs and similarity is ranked in process. That
// keeps every store operation available locally at a scale where a linear
// scan is fine.
type DB struct {
	db         *sql.DB
	dimensions int
}

// NewDB opens (or creates) a SQLite database and provisions the schema.
// dsn may be a file path or ":memory:".
func NewDB(ctx context.Context, dsn string, dimensions int) (store.Driver, error) {
	if dsn == "" {
		return nil, errors.New("dsn is required")
	}
	if dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+"_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)

	d := &DB{db: db, dimensions: dimensions}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS memory (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		created_ts INTEGER NOT NULL,
		updated_ts INTEGER NOT NULL,
		content TEXT NOT NULL,
		reflection TEXT NOT NULL DEFAULT '',
		emotional_tone TEXT NOT NULL DEFAULT '',
		location_kind TEXT,
		location_name TEXT,
		tags TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_memory_owner_created ON memory (owner, created_ts DESC);`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}

func (d *DB) GetDB() *sql.DB { return d.db }

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) Close() error { return d.db.Close() }

// encodeVector packs an embedding as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks little-endian float32 bytes.
func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// escapeLike escapes LIKE wildcards for the fallback text search.
func escapeLike(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
