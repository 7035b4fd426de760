package runner

import (
	"log/slog"
	"time"

	"github.com/tendant/simple-content/pkg/simplecontent"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Config holds the configuration for initializing the conversion runner
type Config struct {
	DatabaseURL        string   // DBOS PostgreSQL connection string
	AppName            string   // Application name for DBOS
	QueueName          string   // Queue conversion jobs are submitted to
	ExtraQueues        []string // Additional DBOS queues served by this process
	Concurrency        int      // Number of concurrent workers per queue
	ApplicationVersion string   // Optional: Override binary hash for version matching

	LocalQueueDir          string        // Pebble queue directory used by NewLocal
	LocalQueuePollInterval time.Duration // Poll interval of the local worker

	ConversionsFile string                    // TOML conversion declarations
	Conversions     []pipeline.ConversionSpec // Declared in code, registered after the file
	TempDir         string                    // Parent of per-call workspaces

	DefaultDisk        string
	StorageDir         string // Local disk root
	S3Bucket           string
	S3Region           string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	S3Endpoint         string
	S3UsePathStyle     bool
	GCSBucket          string
	GCSCredentialsFile string
	ContentService     simplecontent.Service // Registered as the "content" disk

	LedgerDatabaseURL string // Optional Postgres derived file ledger

	PDFToPPMBin string
	RSVGBin     string
	FFmpegBin   string

	Logger *slog.Logger
}

func (c *Config) withDefaults() {
	if c.AppName == "" {
		c.AppName = "conversion-worker"
	}
	if c.LocalQueuePollInterval <= 0 {
		c.LocalQueuePollInterval = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
