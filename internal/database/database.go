package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kozaktomas/facefinder/internal/config"
)

// ErrUnavailable indicates the store could not be reached. Live sync keeps
// polling and retries on the next cycle; web callers map it to 503.
var ErrUnavailable = errors.New("face store unavailable")

// Connect creates a connection pool to PostgreSQL.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return pool, nil
}

// Migrate runs database migrations. embeddingDim must match the extractor
// model's output width; changing it requires a fresh faces table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) error {
	// Create pgvector extension
	_, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createFacesTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS faces (
			id           BIGSERIAL PRIMARY KEY,
			event_id     VARCHAR(255) NOT NULL,
			photo_url    TEXT NOT NULL,
			face_index   INTEGER NOT NULL,
			embedding    vector(%d) NOT NULL,
			det_score    DOUBLE PRECISION NOT NULL,
			dim          INTEGER NOT NULL DEFAULT %d,
			created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, embeddingDim, embeddingDim)

	_, err = pool.Exec(ctx, createFacesTable)
	if err != nil {
		return fmt.Errorf("failed to create faces table: %w", err)
	}

	// Index on event_id: every read path filters on one event partition.
	_, err = pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS faces_event_id_idx ON faces(event_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create faces event_id index: %w", err)
	}

	return nil
}
