package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration shared by all binaries.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"condo-assistant"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	// DynamoDB tables
	StateTable           string `env:"STATE_TABLE,notEmpty"`
	DirectoryTable       string `env:"DIRECTORY_TABLE,notEmpty"`
	DirectoryLookupIndex string `env:"DIRECTORY_LOOKUP_INDEX" envDefault:"lookup-index"`
	AuditTable           string `env:"AUDIT_TABLE,notEmpty"`
	DeletionTable        string `env:"DELETION_TABLE,notEmpty"`

	// SSM parameter prefix holding provider secrets
	ParamPrefix string `env:"PARAM_PREFIX,notEmpty"`

	// WhatsApp Cloud API
	WhatsAppPhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppBaseURL       string `env:"WHATSAPP_API_BASE_URL" envDefault:"https://graph.facebook.com/v20.0"`
	WhatsAppVerifyToken   string `env:"WHATSAPP_VERIFY_TOKEN"`
	SendMaxRetries        int    `env:"SEND_MAX_RETRIES" envDefault:"2"`

	// Object storage
	MediaBucket        string        `env:"MEDIA_BUCKET"`
	MediaPublicBaseURL string        `env:"MEDIA_PUBLIC_BASE_URL"`
	MediaMaxBytes      int64         `env:"MEDIA_MAX_BYTES" envDefault:"16777216"`
	AWSRegion          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	StatementTTL       time.Duration `env:"STATEMENT_TTL" envDefault:"1h"`

	// External collaborators
	ReportRendererURL string        `env:"REPORT_RENDERER_URL"`
	ShortenerURL      string        `env:"SHORTENER_URL"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`

	// Sweeper
	SweepSchedule       string        `env:"SWEEP_SCHEDULE" envDefault:"@every 5m"`
	SweepBatchSize      int           `env:"SWEEP_BATCH_SIZE" envDefault:"50"`
	SweepRetention      time.Duration `env:"SWEEP_RETENTION" envDefault:"168h"`
	SweepReclaimBatches int           `env:"SWEEP_RECLAIM_BATCHES" envDefault:"4"`
}

const maxSweepBatch = 50

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	cfg.WhatsAppBaseURL = strings.TrimRight(strings.TrimSpace(cfg.WhatsAppBaseURL), "/")
	cfg.MediaBucket = strings.TrimSpace(cfg.MediaBucket)
	cfg.MediaPublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.MediaPublicBaseURL), "/")
	if cfg.MediaMaxBytes <= 0 {
		cfg.MediaMaxBytes = 16 * 1024 * 1024
	}
	if cfg.SendMaxRetries < 0 {
		cfg.SendMaxRetries = 0
	}
	// A sweep batch commits as one DynamoDB transaction of two actions per row.
	if cfg.SweepBatchSize <= 0 || cfg.SweepBatchSize > maxSweepBatch {
		cfg.SweepBatchSize = maxSweepBatch
	}
	if cfg.SweepReclaimBatches <= 0 {
		cfg.SweepReclaimBatches = 1
	}
	if cfg.ParamPrefix == "" {
		return nil, errors.New("config: PARAM_PREFIX must not be blank")
	}
	return cfg, nil
}

// ValidateWebhook checks the settings only the webhook-serving binaries need.
func (c *Config) ValidateWebhook() error {
	var missing []string
	if c.WhatsAppPhoneNumberID == "" {
		missing = append(missing, "WHATSAPP_PHONE_NUMBER_ID")
	}
	if c.MediaBucket == "" {
		missing = append(missing, "MEDIA_BUCKET")
	}
	if c.ReportRendererURL == "" {
		missing = append(missing, "REPORT_RENDERER_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
