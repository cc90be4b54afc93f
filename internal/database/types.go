package database

import (
	"context"
	"time"
)

// FaceRecord is one detected face stored in the database. Records are
// append-only: they are never updated after insert, and a record's event_id
// never changes. Multiple records may share the same photo URL (one per
// face on the photo).
type FaceRecord struct {
	ID        int64
	EventID   string
	PhotoURL  string
	FaceIndex int
	Embedding []float32
	DetScore  float64
	Dim       int
	CreatedAt time.Time
}

// FaceStore is the storage contract used by the ingestion pipeline and the
// matching engine. Implementations must support concurrent appends and
// concurrent reads without blocking each other.
type FaceStore interface {
	// Append inserts a single face record. Never overwrites. The pipeline
	// appends face by face so that records written before a mid-photo
	// failure survive (no rollback).
	Append(ctx context.Context, rec FaceRecord) error
	// ListByEvent returns a fresh snapshot of the event partition.
	ListByEvent(ctx context.Context, eventID string) ([]FaceRecord, error)
	// StreamByEvent scans the event partition row by row. Each call issues
	// a fresh query, so the scan is restartable. fn returning an error
	// stops the scan and propagates the error.
	StreamByEvent(ctx context.Context, eventID string, fn func(FaceRecord) error) error
	// CountByEvent returns the number of face records in the partition.
	CountByEvent(ctx context.Context, eventID string) (int, error)
	// CountPhotosByEvent returns the number of distinct photos in the partition.
	CountPhotosByEvent(ctx context.Context, eventID string) (int, error)
}
