package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kozaktomas/facefinder/internal/config"
	"github.com/kozaktomas/facefinder/internal/database"
	"github.com/kozaktomas/facefinder/internal/detector"
	"github.com/kozaktomas/facefinder/internal/ingest"
	"github.com/kozaktomas/facefinder/internal/matcher"
	"github.com/kozaktomas/facefinder/internal/storage"
)

// stack bundles the wired core components shared by the commands.
type stack struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	faces    *database.FaceRepository
	objects  storage.ObjectStore
	detector *detector.Client
	pipeline *ingest.Pipeline
	engine   *matcher.Engine
	logger   *zap.Logger
}

// buildStack connects the database, object storage, and the embedding
// service, and wires the pipeline and matching engine on top. The detector
// models are loaded synchronously; the first call takes a while.
func buildStack(ctx context.Context, logger *zap.Logger) (*stack, error) {
	cfg := config.Load()
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	objects, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		pool.Close()
		return nil, err
	}

	det := detector.New(cfg.Detector)
	if err := det.LoadModels(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("loading face models: %w", err)
	}

	faces := database.NewFaceRepository(pool)
	return &stack{
		cfg:      cfg,
		pool:     pool,
		faces:    faces,
		objects:  objects,
		detector: det,
		pipeline: ingest.New(det, objects, faces, cfg.Image, logger),
		engine:   matcher.New(faces, logger),
		logger:   logger,
	}, nil
}

func (s *stack) Close() {
	s.pool.Close()
}

// newObjectStore picks the configured object storage backend: a local
// directory when STORAGE_LOCAL_DIR is set, S3 (or compatible) otherwise.
func newObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	if cfg.LocalDir != "" {
		return storage.NewLocal(cfg.LocalDir, cfg.PublicURL), nil
	}
	if cfg.Bucket == "" {
		return nil, errors.New("STORAGE_BUCKET or STORAGE_LOCAL_DIR is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// MinIO and friends want path-style addressing.
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return storage.NewS3(client, cfg.Bucket, cfg.Prefix, cfg.PublicURL), nil
}
