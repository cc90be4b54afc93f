package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Detector DetectorConfig
	Match    MatchConfig
	Image    ImageConfig
	Sync     SyncConfig
	Database DatabaseConfig
	Storage  StorageConfig
}

// DetectorConfig configures the external face embedding service.
type DetectorConfig struct {
	URL                  string  // defaults to http://localhost:8000
	Dim                  int     // embedding dimension, must match the model (128 for face-api recognition net)
	MinConfidencePrimary float64 // probe selfies: only the most confident face above this
	MinConfidenceAll     float64 // indexing: lower floor to catch small faces in group photos
	MaxFaces             int     // cap per image, bounds cost on pathological group shots
}

// MatchConfig configures the matching engine.
type MatchConfig struct {
	Threshold float64 // max euclidean distance to count as the same person
}

// ImageConfig configures storage optimization of uploaded photos.
type ImageConfig struct {
	MaxSize     int // longest edge in pixels after resize
	JPEGQuality int
}

// SyncConfig configures the live folder sync scheduler.
type SyncConfig struct {
	Interval  time.Duration // poll interval
	QueueSize int           // pending ingestion job buffer per session
}

type DatabaseConfig struct {
	URL string // PostgreSQL connection URL (pgvector extension required)
}

// StorageConfig configures the object store where optimized photos land.
type StorageConfig struct {
	Bucket    string
	Prefix    string // optional key prefix inside the bucket
	Endpoint  string // optional custom endpoint for S3-compatible stores (MinIO, R2)
	Region    string
	PublicURL string // public base URL under which uploaded keys are reachable
	LocalDir  string // when set, use a local directory store instead of S3
}

// defaults mirrors defaults.yaml.
type defaults struct {
	Detector struct {
		Dim                  int     `yaml:"dim"`
		MinConfidencePrimary float64 `yaml:"min_confidence_primary"`
		MinConfidenceAll     float64 `yaml:"min_confidence_all"`
		MaxFaces             int     `yaml:"max_faces"`
	} `yaml:"detector"`
	Match struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"match"`
	Image struct {
		MaxSize     int `yaml:"max_size"`
		JPEGQuality int `yaml:"jpeg_quality"`
	} `yaml:"image"`
	Sync struct {
		IntervalSec int `yaml:"interval_sec"`
		QueueSize   int `yaml:"queue_size"`
	} `yaml:"sync"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// Embedded file, cannot fail in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL:                  envString("DETECTOR_URL", "http://localhost:8000"),
			Dim:                  envInt("DETECTOR_DIM", d.Detector.Dim),
			MinConfidencePrimary: envFloat("DETECTOR_MIN_CONFIDENCE", d.Detector.MinConfidencePrimary),
			MinConfidenceAll:     envFloat("DETECTOR_MIN_CONFIDENCE_ALL", d.Detector.MinConfidenceAll),
			MaxFaces:             envInt("DETECTOR_MAX_FACES", d.Detector.MaxFaces),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", d.Match.Threshold),
		},
		Image: ImageConfig{
			MaxSize:     envInt("IMAGE_MAX_SIZE", d.Image.MaxSize),
			JPEGQuality: envInt("IMAGE_JPEG_QUALITY", d.Image.JPEGQuality),
		},
		Sync: SyncConfig{
			Interval:  time.Duration(envInt("SYNC_INTERVAL_SEC", d.Sync.IntervalSec)) * time.Second,
			QueueSize: envInt("SYNC_QUEUE_SIZE", d.Sync.QueueSize),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Storage: StorageConfig{
			Bucket:    os.Getenv("STORAGE_BUCKET"),
			Prefix:    os.Getenv("STORAGE_PREFIX"),
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			Region:    envString("STORAGE_REGION", "us-east-1"),
			PublicURL: os.Getenv("STORAGE_PUBLIC_URL"),
			LocalDir:  os.Getenv("STORAGE_LOCAL_DIR"),
		},
	}
}
