// Package ingest runs the photo ingestion pipeline: face detection on the
// original image, storage optimization, object upload, and face record
// persistence.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facefinder/internal/config"
	"github.com/kozaktomas/facefinder/internal/database"
	"github.com/kozaktomas/facefinder/internal/detector"
	"github.com/kozaktomas/facefinder/internal/storage"
)

// Detector is the face extraction dependency of the pipeline.
// *detector.Client satisfies it.
type Detector interface {
	DetectAll(ctx context.Context, imageData []byte) ([]detector.Face, error)
}

// Job is one image to ingest into an event.
type Job struct {
	EventID    string
	SourceName string // original filename, used for the storage key and logs
	Data       []byte // original full-resolution image bytes
}

// Result is the outcome of one ingestion job. Faces counts the records
// actually appended, which can be lower than the number of detected faces
// when a mid-photo append fails; Err is set in that case but the appended
// records remain valid.
type Result struct {
	SourceName string
	PhotoURL   string
	Faces      int
	Err        error
}

// Pipeline ingests photos for an event. Safe for concurrent use.
type Pipeline struct {
	detector Detector
	objects  storage.ObjectStore
	faces    database.FaceStore
	img      config.ImageConfig
	logger   *zap.Logger

	now func() time.Time // swapped in tests
}

// New creates an ingestion pipeline.
func New(det Detector, objects storage.ObjectStore, faces database.FaceStore, img config.ImageConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		detector: det,
		objects:  objects,
		faces:    faces,
		img:      img,
		logger:   logger,
		now:      time.Now,
	}
}

// IngestOne runs the full pipeline for one image.
//
// Step order is a contract: detection runs on the original bytes before any
// resize. If the upload fails, the job aborts with zero records — a record
// must never reference an object that does not exist. If appending fails
// partway through the detected faces, the records already appended remain
// and Result.Faces reflects them; callers must not treat that as total
// failure. A photo with zero detected faces is still uploaded (the event
// gallery shows every photo) and succeeds with zero records.
func (p *Pipeline) IngestOne(ctx context.Context, job Job) Result {
	res := Result{SourceName: job.SourceName}

	// 1. Detect on the original, full-resolution image.
	faces, err := p.detector.DetectAll(ctx, job.Data)
	if err != nil {
		res.Err = fmt.Errorf("detect faces in %s: %w", job.SourceName, err)
		return res
	}

	// 2. Produce the storage-optimized raster.
	optimized, err := OptimizeImage(job.Data, p.img.MaxSize, p.img.JPEGQuality)
	if err != nil {
		res.Err = fmt.Errorf("optimize %s: %w", job.SourceName, err)
		return res
	}

	// 3. Upload under a collision-resistant key.
	key := storage.BuildKey(job.EventID, job.SourceName, p.now())
	photoURL, err := p.objects.Put(ctx, key, optimized, "image/jpeg")
	if err != nil {
		res.Err = fmt.Errorf("upload %s: %w", job.SourceName, err)
		return res
	}
	res.PhotoURL = photoURL

	// 4. Persist one record per detected face.
	for _, face := range faces {
		rec := database.FaceRecord{
			EventID:   job.EventID,
			PhotoURL:  photoURL,
			FaceIndex: face.FaceIndex,
			Embedding: face.Embedding,
			DetScore:  face.DetScore,
		}
		if err := p.faces.Append(ctx, rec); err != nil {
			// No rollback: earlier records stay valid, they reference an
			// uploaded object.
			res.Err = fmt.Errorf("append face %d of %s: %w", face.FaceIndex, job.SourceName, err)
			return res
		}
		res.Faces++
	}

	p.logger.Info("photo ingested",
		zap.String("event_id", job.EventID),
		zap.String("source", job.SourceName),
		zap.String("photo_url", photoURL),
		zap.Int("faces", res.Faces))

	return res
}

// IngestBatch ingests jobs with per-job failure isolation: a failed job
// contributes an error Result and never stops the rest. concurrency <= 1
// runs serially in submission order.
func (p *Pipeline) IngestBatch(ctx context.Context, jobs []Job, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(jobs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = p.IngestOne(ctx, job)
			if results[i].Err != nil {
				p.logger.Warn("ingestion failed",
					zap.String("source", job.SourceName),
					zap.Error(results[i].Err))
			}
		}(i, job)
	}
	wg.Wait()

	return results
}
