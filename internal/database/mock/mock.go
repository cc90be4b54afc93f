// Package mock provides an in-memory implementation of database.FaceStore
// for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/facefinder/internal/database"
)

// FaceStore is an in-memory, append-only face store.
type FaceStore struct {
	mu      sync.RWMutex
	records []database.FaceRecord
	nextID  int64

	// Error injection
	AppendError error
	ListError   error
}

// NewFaceStore creates an empty in-memory face store.
func NewFaceStore() *FaceStore {
	return &FaceStore{nextID: 1}
}

// Append inserts a single face record.
func (s *FaceStore) Append(ctx context.Context, rec database.FaceRecord) error {
	if s.AppendError != nil {
		return s.AppendError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	rec.Dim = len(rec.Embedding)
	s.records = append(s.records, rec)
	return nil
}

// ListByEvent returns a copy of the event partition.
func (s *FaceStore) ListByEvent(ctx context.Context, eventID string) ([]database.FaceRecord, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.FaceRecord
	for _, rec := range s.records {
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// StreamByEvent calls fn for every record in the event partition.
func (s *FaceStore) StreamByEvent(ctx context.Context, eventID string, fn func(database.FaceRecord) error) error {
	recs, err := s.ListByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// CountByEvent returns the number of records in the event partition.
func (s *FaceStore) CountByEvent(ctx context.Context, eventID string) (int, error) {
	recs, err := s.ListByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// CountPhotosByEvent returns the number of distinct photo URLs in the partition.
func (s *FaceStore) CountPhotosByEvent(ctx context.Context, eventID string) (int, error) {
	recs, err := s.ListByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	photos := make(map[string]struct{})
	for _, rec := range recs {
		photos[rec.PhotoURL] = struct{}{}
	}
	return len(photos), nil
}

var _ database.FaceStore = (*FaceStore)(nil)
