package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// FaceRepository handles database operations for face records.
type FaceRepository struct {
	pool *pgxpool.Pool
}

// NewFaceRepository creates a new face repository.
func NewFaceRepository(pool *pgxpool.Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// Append inserts a single face record. Appends from concurrent ingestion
// jobs are safe and commutative; read correctness does not depend on order.
func (r *FaceRepository) Append(ctx context.Context, rec FaceRecord) error {
	vec := pgvector.NewVector(rec.Embedding)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO faces (event_id, photo_url, face_index, embedding, det_score, dim, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, rec.EventID, rec.PhotoURL, rec.FaceIndex, vec, rec.DetScore, len(rec.Embedding))
	if err != nil {
		return fmt.Errorf("%w: append face: %w", ErrUnavailable, err)
	}
	return nil
}

// ListByEvent retrieves all face records for an event.
func (r *FaceRepository) ListByEvent(ctx context.Context, eventID string) ([]FaceRecord, error) {
	rows, err := r.query(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FaceRecord
	for rows.Next() {
		rec, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list faces: %w", ErrUnavailable, err)
	}
	return records, nil
}

// StreamByEvent scans the event partition row by row without materializing
// the whole partition. Each call issues a fresh query.
func (r *FaceRepository) StreamByEvent(ctx context.Context, eventID string, fn func(FaceRecord) error) error {
	rows, err := r.query(ctx, eventID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanFace(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: stream faces: %w", ErrUnavailable, err)
	}
	return nil
}

// CountByEvent returns the number of face records stored for an event.
func (r *FaceRepository) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces WHERE event_id = $1", eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count faces: %w", ErrUnavailable, err)
	}
	return count, nil
}

// CountPhotosByEvent returns the number of distinct photos with faces for an event.
func (r *FaceRepository) CountPhotosByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(DISTINCT photo_url) FROM faces WHERE event_id = $1", eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count photos: %w", ErrUnavailable, err)
	}
	return count, nil
}

func (r *FaceRepository) query(ctx context.Context, eventID string) (pgx.Rows, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, photo_url, face_index, embedding, det_score, dim, created_at
		FROM faces
		WHERE event_id = $1
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: query faces: %w", ErrUnavailable, err)
	}
	return rows, nil
}

func scanFace(rows pgx.Rows) (FaceRecord, error) {
	var rec FaceRecord
	var vec pgvector.Vector
	if err := rows.Scan(&rec.ID, &rec.EventID, &rec.PhotoURL, &rec.FaceIndex, &vec, &rec.DetScore, &rec.Dim, &rec.CreatedAt); err != nil {
		return FaceRecord{}, fmt.Errorf("%w: scan face: %w", ErrUnavailable, err)
	}
	rec.Embedding = vec.Slice()
	return rec, nil
}

var _ FaceStore = (*FaceRepository)(nil)
