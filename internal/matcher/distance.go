// Package matcher compares probe embeddings against an event's stored face
// records and returns the photos that belong to the same person.
package matcher

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two embeddings have different
// lengths. During a partition scan the mismatched record is skipped; the
// scan itself never aborts on it.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EuclideanDistance computes the euclidean distance between two embedding
// vectors. Lower means more similar; identical vectors yield 0. The
// function is symmetric and deterministic.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
