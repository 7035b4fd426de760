// Package config loads process configuration from the environment, with an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-content-conversions/internal/storage"
)

// Config is the process configuration shared by the commands
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	TempDir         string
	QueueName       string
	ConversionsFile string

	DefaultDisk string
	StorageDir  string
	S3          storage.S3Config
	GCSBucket   string
	GCSCredFile string

	DBOSDatabaseURL string
	DBOSAppName     string
	DBOSQueueName   string
	DBOSConcurrency int
	DBOSAppVersion  string

	LedgerDatabaseURL string

	LocalQueueDir          string
	LocalQueuePollInterval time.Duration

	PDFToPPMBin string
	RSVGBin     string
	FFmpegBin   string
}

// Load reads .env if present then the environment
func Load() (Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (Config, error) {
	e := env(getenv)

	cfg := Config{
		HTTPAddr:  e.str("HTTP_ADDR", ":8080"),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "text"),

		TempDir:         e.str("TEMP_DIR", os.TempDir()),
		QueueName:       e.str("MEDIA_QUEUE_NAME", ""),
		ConversionsFile: e.str("CONVERSIONS_FILE", ""),

		DefaultDisk: e.str("DEFAULT_DISK", "local"),
		StorageDir:  e.str("STORAGE_DIR", "./dev-data"),
		S3: storage.S3Config{
			Bucket:          e.str("S3_BUCKET", ""),
			Region:          e.str("S3_REGION", "us-east-1"),
			AccessKeyID:     e.str("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: e.str("S3_SECRET_ACCESS_KEY", ""),
			Endpoint:        e.str("S3_ENDPOINT", ""),
		},
		GCSBucket:   e.str("GCS_BUCKET", ""),
		GCSCredFile: e.str("GCS_CREDENTIALS_FILE", ""),

		DBOSDatabaseURL: e.str("DBOS_SYSTEM_DATABASE_URL", ""),
		DBOSAppName:     e.str("DBOS_APP_NAME", "conversion-worker"),
		DBOSQueueName:   e.str("DBOS_QUEUE_NAME", "default"),
		DBOSAppVersion:  e.str("DBOS_APPLICATION_VERSION", ""),

		LedgerDatabaseURL: e.str("LEDGER_DATABASE_URL", ""),

		LocalQueueDir: e.str("LOCAL_QUEUE_DIR", "./dev-queue"),

		PDFToPPMBin: e.str("PDFTOPPM_BIN", "pdftoppm"),
		RSVGBin:     e.str("RSVG_BIN", "rsvg-convert"),
		FFmpegBin:   e.str("FFMPEG_BIN", "ffmpeg"),
	}

	var err error
	if cfg.S3.UsePathStyle, err = e.boolean("S3_USE_PATH_STYLE", false); err != nil {
		return Config{}, err
	}
	if cfg.DBOSConcurrency, err = e.integer("DBOS_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}
	if cfg.LocalQueuePollInterval, err = e.duration("LOCAL_QUEUE_POLL_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}

	if cfg.DBOSConcurrency < 1 {
		return Config{}, fmt.Errorf("DBOS_CONCURRENCY must be at least 1, got %d", cfg.DBOSConcurrency)
	}
	if cfg.LocalQueuePollInterval <= 0 {
		return Config{}, fmt.Errorf("LOCAL_QUEUE_POLL_INTERVAL must be positive, got %s", cfg.LocalQueuePollInterval)
	}

	return cfg, nil
}

type env func(string) string

func (e env) str(key, def string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return def
}

func (e env) integer(key string, def int) (int, error) {
	v := strings.TrimSpace(e(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func (e env) boolean(key string, def bool) (bool, error) {
	v := strings.TrimSpace(e(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

func (e env) duration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(e(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
