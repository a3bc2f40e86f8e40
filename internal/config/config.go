// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package config loads the Archivum configuration from layered sources:
// built-in defaults, an optional YAML file and environment variables, with
// environment variables taking the highest precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for the Archivum server.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Database      DatabaseConfig      `koanf:"database"`
	Storage       StorageConfig       `koanf:"storage"`
	Authz         AuthzConfig         `koanf:"authz"`
	Search        SearchConfig        `koanf:"search"`
	Embedding     EmbeddingConfig     `koanf:"embedding"`
	FaceDetection FaceDetectionConfig `koanf:"face_detection"`
	Pipeline      PipelineConfig      `koanf:"pipeline"`
	Geocoder      GeocoderConfig      `koanf:"geocoder"`
	Navigation    NavigationConfig    `koanf:"navigation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MaxUploadBytes bounds a single multipart upload request.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// PageSize is the result page size for search and album listings.
	PageSize int `koanf:"page_size"`

	// RateLimitPerMinute bounds requests per client IP. 0 disables.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// CORSOrigins lists allowed origins. Empty disables CORS handling.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	FilePath string `koanf:"file_path"`
	Caller   bool   `koanf:"caller"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path, or ":memory:" for tests.
	Path string `koanf:"path"`

	// Threads caps DuckDB worker threads. 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`

	// MaxMemory is the DuckDB memory limit, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// Root is the directory under which all media files are stored.
	Root string `koanf:"root"`
}

// AuthzConfig holds Casbin settings.
type AuthzConfig struct {
	// ModelPath overrides the embedded Casbin model when set.
	ModelPath string `koanf:"model_path"`

	// PolicyPath persists policies to a CSV file when set; otherwise
	// policies live in memory and are rebuilt from the object store at
	// startup.
	PolicyPath string `koanf:"policy_path"`
}

// SearchConfig holds ranking settings.
type SearchConfig struct {
	// SemanticEnabled turns on embedding-based similarity. When false the
	// semantic signal is pinned at -1 for every record.
	SemanticEnabled bool `koanf:"semantic_enabled"`

	// AutocompleteMaxLength truncates autocomplete suggestions.
	AutocompleteMaxLength int `koanf:"autocomplete_max_length"`
}

// EmbeddingConfig holds the embedding sidecar client settings.
type EmbeddingConfig struct {
	// Endpoint is the base URL of the CLIP inference sidecar.
	Endpoint string `koanf:"endpoint"`

	// Model and TextModel name the joint image/text embedding models.
	Model     string `koanf:"model"`
	TextModel string `koanf:"text_model"`

	// CacheDir is where the sidecar is asked to cache model weights so
	// subsequent process starts avoid the registry download.
	CacheDir string `koanf:"cache_dir"`

	// Dimension is the shared embedding dimensionality.
	Dimension int `koanf:"dimension"`

	// Quantize requests the dynamically quantized model variant. It trades
	// precision for memory and must not change Dimension.
	Quantize bool `koanf:"quantize"`

	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`

	// SyncOnUpload embeds images on the upload request path instead of
	// through the job queue, so fresh uploads are immediately searchable.
	SyncOnUpload bool `koanf:"sync_on_upload"`
}

// FaceDetectionConfig holds pigo face detection settings.
type FaceDetectionConfig struct {
	Enabled bool `koanf:"enabled"`

	// CascadePath is the pigo facefinder cascade file.
	CascadePath string `koanf:"cascade_path"`

	// MinSize is the smallest face edge in pixels worth boxing.
	MinSize int `koanf:"min_size"`

	// MinQuality is the detection quality cutoff.
	MinQuality float32 `koanf:"min_quality"`
}

// PipelineConfig holds the deferred-job pipeline settings.
type PipelineConfig struct {
	// Transport selects the message transport: "channel" (in-process) or
	// "jetstream" (external NATS).
	Transport string `koanf:"transport"`

	// NATSURL is used when Transport is "jetstream".
	NATSURL string `koanf:"nats_url"`

	// QueueDepth bounds the in-process channel transport.
	QueueDepth int `koanf:"queue_depth"`

	// MaxRetries bounds attempts per job before the message is poisoned.
	MaxRetries int `koanf:"max_retries"`

	// RetryInterval is the fixed backoff between attempts.
	RetryInterval time.Duration `koanf:"retry_interval"`

	// JobTimeout bounds a single job execution.
	JobTimeout time.Duration `koanf:"job_timeout"`

	// FFmpegPath locates the transcoder binary.
	FFmpegPath string `koanf:"ffmpeg_path"`
}

// GeocoderConfig holds the offline reverse geocoder settings.
type GeocoderConfig struct {
	// PlacesPath is a GeoNames-style CSV of known places. Empty disables
	// reverse geocoding; GPS-tagged uploads then carry no location.
	PlacesPath string `koanf:"places_path"`

	// CellSizeDegrees is the spatial grid cell edge used for nearest
	// lookups.
	CellSizeDegrees float64 `koanf:"cell_size_degrees"`
}

// NavigationConfig holds navigation-context session settings.
type NavigationConfig struct {
	// Path is the badger directory. Empty keeps the store in memory.
	Path string `koanf:"path"`

	// SessionTTL expires a session's navigation context after inactivity.
	SessionTTL time.Duration `koanf:"session_ttl"`

	// GCInterval is how often the badger value log is compacted.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// layered first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8480,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       60 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			MaxUploadBytes:     512 << 20, // 512 MiB per batch
			PageSize:           24,
			RateLimitPerMinute: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:      "data/archivum.db",
			Threads:   0,
			MaxMemory: "2GB",
		},
		Storage: StorageConfig{
			Root: "data/media",
		},
		Authz: AuthzConfig{
			PolicyPath: "data/authz_policy.csv",
		},
		Search: SearchConfig{
			SemanticEnabled:       false,
			AutocompleteMaxLength: 70,
		},
		Embedding: EmbeddingConfig{
			Endpoint:          "http://127.0.0.1:8481",
			Model:             "clip-ViT-B-32",
			TextModel:         "clip-ViT-B-32-multilingual-v1",
			CacheDir:          "data/ai_models",
			Dimension:         512,
			Quantize:          false,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
		},
		FaceDetection: FaceDetectionConfig{
			Enabled:     false,
			CascadePath: "data/cascade/facefinder",
			MinSize:     35,
			MinQuality:  5.0,
		},
		Pipeline: PipelineConfig{
			Transport:     "channel",
			QueueDepth:    256,
			MaxRetries:    3,
			RetryInterval: 10 * time.Second,
			JobTimeout:    5 * time.Minute,
			FFmpegPath:    "ffmpeg",
		},
		Geocoder: GeocoderConfig{
			PlacesPath:      "",
			CellSizeDegrees: 1.0,
		},
		Navigation: NavigationConfig{
			Path:       "data/navigation",
			SessionTTL: 12 * time.Hour,
			GCInterval: 10 * time.Minute,
		},
	}
}

// Validation errors.
var (
	ErrInvalidPort      = errors.New("server port out of range")
	ErrInvalidPageSize  = errors.New("page size must be positive")
	ErrInvalidTransport = errors.New("pipeline transport must be channel or jetstream")
	ErrInvalidDimension = errors.New("embedding dimension must be positive")
)

// Validate checks cross-field constraints after loading.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if c.Server.PageSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, c.Server.PageSize)
	}
	switch c.Pipeline.Transport {
	case "channel", "jetstream":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransport, c.Pipeline.Transport)
	}
	if c.Pipeline.Transport == "jetstream" && c.Pipeline.NATSURL == "" {
		return errors.New("pipeline.nats_url required for jetstream transport")
	}
	if c.Search.SemanticEnabled && c.Embedding.Dimension < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, c.Embedding.Dimension)
	}
	if c.Pipeline.MaxRetries < 0 {
		return errors.New("pipeline.max_retries must not be negative")
	}
	return nil
}
