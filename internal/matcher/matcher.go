package matcher

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/kozaktomas/facefinder/internal/database"
)

// Match is one matched photo with its best (minimum) face distance.
type Match struct {
	PhotoURL string  `json:"photo_url"`
	Distance float64 `json:"distance"`
}

// Engine scans an event partition for faces close to a probe embedding.
// The scan is a linear pass over the partition; per-event collections top
// out at a few thousand faces, where that is cheap.
type Engine struct {
	store  database.FaceStore
	logger *zap.Logger
}

// New creates a matching engine over the given store.
func New(store database.FaceStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// Match returns the distinct photo URLs in the event partition that have at
// least one face within threshold of the probe. The result is a
// deduplicated set with no ordering guarantee; an empty result is a valid
// outcome, not an error. Records whose embedding dimension differs from the
// probe are skipped.
func (e *Engine) Match(ctx context.Context, eventID string, probe []float32, threshold float64) ([]string, error) {
	best, err := e.scan(ctx, eventID, probe, threshold)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(best))
	for url := range best {
		urls = append(urls, url)
	}
	return urls, nil
}

// MatchRanked returns matches sorted by best distance ascending, keeping
// the minimum distance across faces on the same photo.
func (e *Engine) MatchRanked(ctx context.Context, eventID string, probe []float32, threshold float64) ([]Match, error) {
	best, err := e.scan(ctx, eventID, probe, threshold)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(best))
	for url, dist := range best {
		matches = append(matches, Match{PhotoURL: url, Distance: dist})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	return matches, nil
}

// scan streams the partition and keeps the minimum distance per photo URL
// among faces below threshold. Aggregating into a map makes the result
// independent of scan order.
func (e *Engine) scan(ctx context.Context, eventID string, probe []float32, threshold float64) (map[string]float64, error) {
	best := make(map[string]float64)

	err := e.store.StreamByEvent(ctx, eventID, func(rec database.FaceRecord) error {
		dist, err := EuclideanDistance(probe, rec.Embedding)
		if err != nil {
			if errors.Is(err, ErrDimensionMismatch) {
				// Fatal only to this one comparison; keep scanning.
				e.logger.Debug("skipping face with mismatched embedding",
					zap.Int64("face_id", rec.ID),
					zap.String("event_id", eventID),
					zap.Int("record_dim", len(rec.Embedding)),
					zap.Int("probe_dim", len(probe)))
				return nil
			}
			return err
		}
		if dist < threshold {
			if cur, ok := best[rec.PhotoURL]; !ok || dist < cur {
				best[rec.PhotoURL] = dist
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return best, nil
}
