package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	IndexKindFlat = "flat"
	IndexKindHNSW = "hnsw"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Providers
	ProviderType     string `envconfig:"PROVIDER_TYPE" default:"deepface"`
	DetectorType     string `envconfig:"DETECTOR_TYPE" default:"deepface"`
	DeepFaceURL      string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel    string `envconfig:"DEEPFACE_MODEL" default:"ArcFace"`
	DeepFaceDetector string `envconfig:"DEEPFACE_DETECTOR" default:"mtcnn"`
	AWSRegion        string `envconfig:"AWS_REGION" default:"us-east-1"`
	EmbeddingDim     int    `envconfig:"EMBEDDING_DIM" default:"512"`

	// Matching
	RecognitionThreshold    float64 `envconfig:"RECOGNITION_THRESHOLD" default:"0.65"`
	RegisterDetectThreshold float64 `envconfig:"REGISTER_DETECT_THRESHOLD" default:"0.90"`
	ScanDetectThreshold     float64 `envconfig:"SCAN_DETECT_THRESHOLD" default:"0.95"`
	IndexKind               string  `envconfig:"INDEX_KIND" default:"flat"`

	// Gallery
	SyncInterval            time.Duration `envconfig:"SYNC_INTERVAL" default:"0s"`
	RegistrationConcurrency int           `envconfig:"REGISTRATION_CONCURRENCY" default:"4"`

	// Live scan
	ScanMaxFPS       float64       `envconfig:"SCAN_MAX_FPS" default:"5"`
	ScanFrameTimeout time.Duration `envconfig:"SCAN_FRAME_TIMEOUT" default:"2s"`

	// Alerts
	WebhookURLs        []string `envconfig:"WEBHOOK_URLS"`
	WebhookSecret      string   `envconfig:"WEBHOOK_SECRET"`
	WebhookEvents      []string `envconfig:"WEBHOOK_EVENTS" default:"identity.matched"`
	WebhookMaxAttempts int      `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"4"`
	AuditEnabled       bool     `envconfig:"AUDIT_ENABLED" default:"true"`

	// HTTP rate limiting
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"40"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations envconfig cannot express
func (c *Config) Validate() error {
	if c.RecognitionThreshold < -1 || c.RecognitionThreshold > 1 {
		return fmt.Errorf("RECOGNITION_THRESHOLD must be in [-1,1], got %v", c.RecognitionThreshold)
	}
	for name, v := range map[string]float64{
		"REGISTER_DETECT_THRESHOLD": c.RegisterDetectThreshold,
		"SCAN_DETECT_THRESHOLD":     c.ScanDetectThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.IndexKind != IndexKindFlat && c.IndexKind != IndexKindHNSW {
		return fmt.Errorf("INDEX_KIND must be %q or %q, got %q", IndexKindFlat, IndexKindHNSW, c.IndexKind)
	}
	if c.RegistrationConcurrency <= 0 {
		return fmt.Errorf("REGISTRATION_CONCURRENCY must be positive, got %d", c.RegistrationConcurrency)
	}
	if len(c.WebhookURLs) > 0 && c.WebhookSecret == "" && c.IsProduction() {
		return fmt.Errorf("WEBHOOK_SECRET is required when WEBHOOK_URLS is set in production")
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("SYNC_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
