// Package db selects a concrete store driver.
//
// PostgreSQL is the production backend: pgvector similarity search plus
// ts_vector full-text search. SQLite serves local development and tests;
// it stores vectors as blobs and ranks them in process, so every feature
// works there too, just without index acceleration.
package db

import (
	"context"

	"github.com/pkg/errors"

	"github.com/recallio/recall-go/store"
	"github.com/recallio/recall-go/store/db/postgres"
	"github.com/recallio/recall-go/store/db/sqlite"
)

// Config describes the backend to open.
type Config struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	// DSN is the connection string (postgres URL or sqlite file path;
	// ":memory:" is accepted for sqlite).
	DSN string
	// Dimensions is the embedding dimension the schema is provisioned for.
	Dimensions int
}

// NewDriver opens the configured backend and provisions its schema.
func NewDriver(ctx context.Context, cfg Config) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch cfg.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(ctx, cfg.DSN, cfg.Dimensions)
	case "postgres":
		driver, err = postgres.NewDB(ctx, cfg.DSN, cfg.Dimensions)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
