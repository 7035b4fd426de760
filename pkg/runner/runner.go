// Package runner embeds the conversion pipeline in another program, with
// queued conversions executed either by DBOS or by a local Pebble queue.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/simple-content-conversions/internal/conversion"
	"github.com/tendant/simple-content-conversions/internal/dbosruntime"
	"github.com/tendant/simple-content-conversions/internal/events"
	"github.com/tendant/simple-content-conversions/internal/generator"
	"github.com/tendant/simple-content-conversions/internal/handlers"
	"github.com/tendant/simple-content-conversions/internal/ledger"
	"github.com/tendant/simple-content-conversions/internal/library"
	"github.com/tendant/simple-content-conversions/internal/manipulator"
	"github.com/tendant/simple-content-conversions/internal/metrics"
	"github.com/tendant/simple-content-conversions/internal/queue"
	"github.com/tendant/simple-content-conversions/internal/responsive"
	"github.com/tendant/simple-content-conversions/internal/storage"
	"github.com/tendant/simple-content-conversions/internal/workflows"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Runner provides a high-level API for generating derived files
type Runner struct {
	manipulator *manipulator.FileManipulator
	selector    *generator.Selector
	disks       *storage.Disks
	bus         *events.Bus
	jobs        handlers.JobTracker
	ledger      *ledger.Ledger
	library     *library.Service
	logger      *slog.Logger

	runtime *dbosruntime.Runtime
	queue   *queue.DBQueue
	worker  *queue.Worker

	closers []func() error
}

// New creates a runner executing queued conversions as DBOS workflows
func New(cfg Config) (*Runner, error) {
	cfg.withDefaults()
	ctx := context.Background()

	r, err := assemble(ctx, cfg)
	if err != nil {
		return nil, err
	}

	dbosRuntime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		ExtraQueues:        cfg.ExtraQueues,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		r.close()
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}
	r.runtime = dbosRuntime

	// Workflows are registered by NewWorkflowRunner and must precede Launch
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime, cfg.Logger)
	workflowRunner.SetHandler(metrics.InstrumentHandler(dbosRuntime.QueueName(), r.manipulator))
	r.manipulator.SetDispatcher(metrics.InstrumentDispatcher(workflowRunner))
	r.jobs = workflowRunner

	if err := dbosRuntime.Launch(); err != nil {
		r.close()
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	cfg.Logger.Info("DBOS runtime initialized",
		"queue", dbosRuntime.QueueName(),
		"concurrency", dbosRuntime.Concurrency(),
		"conversions", len(r.manipulator.Registry().All()))
	return r, nil
}

// NewLocal creates a runner executing queued conversions from a Pebble queue
// on this process. Call Run to start the worker.
func NewLocal(cfg Config) (*Runner, error) {
	cfg.withDefaults()
	if cfg.LocalQueueDir == "" {
		return nil, errors.New("local queue directory is required")
	}

	r, err := assemble(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	q, err := queue.OpenQueue(cfg.LocalQueueDir)
	if err != nil {
		r.close()
		return nil, err
	}
	r.queue = q
	r.closers = append(r.closers, q.Close)

	queueName := cfg.QueueName
	if queueName == "" {
		queueName = queue.DefaultQueue
	}
	r.manipulator.SetDispatcher(metrics.InstrumentDispatcher(queue.NewDispatcher(q)))
	r.worker = queue.NewWorker(q, queueName, metrics.InstrumentHandler(queueName, r.manipulator), cfg.LocalQueuePollInterval, cfg.Logger)
	r.jobs = q

	cfg.Logger.Info("local queue initialized", "dir", cfg.LocalQueueDir, "queue", queueName)
	return r, nil
}

// assemble builds everything but the queue backend
func assemble(ctx context.Context, cfg Config) (*Runner, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	disks, closeDisks, err := storage.OpenDisks(ctx, storage.DiskConfig{
		Default:  cfg.DefaultDisk,
		LocalDir: cfg.StorageDir,
		S3: storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
		},
		GCSBucket:          cfg.GCSBucket,
		GCSCredentialsFile: cfg.GCSCredentialsFile,
		Content:            cfg.ContentService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	r := &Runner{
		disks:   disks,
		bus:     events.NewBus(metrics.NewObserver()),
		logger:  cfg.Logger,
		closers: []func() error{closeDisks},
	}

	if cfg.LedgerDatabaseURL != "" {
		l, err := ledger.Open(ctx, cfg.LedgerDatabaseURL, cfg.Logger)
		if err != nil {
			r.close()
			return nil, err
		}
		r.ledger = l
		r.closers = append(r.closers, l.Close)
		r.bus.Subscribe(ledger.NewObserver(l, cfg.Logger))
	}

	r.selector = generator.DefaultSelector(generator.Tools{
		PDFToPPM:    cfg.PDFToPPMBin,
		RSVGConvert: cfg.RSVGBin,
		FFmpeg:      cfg.FFmpegBin,
	})

	r.manipulator = manipulator.NewFileManipulator(manipulator.Config{
		TempDir:   cfg.TempDir,
		QueueName: cfg.QueueName,
	}, manipulator.Deps{
		Registry:   registry,
		Selector:   r.selector,
		Store:      disks,
		Publisher:  r.bus,
		Responsive: responsive.NewGenerator(disks, cfg.TempDir, cfg.Logger),
		Logger:     cfg.Logger,
	})

	r.library = library.NewService(library.NewMemoryRepository(), disks, r.manipulator, r.bus, cfg.Logger)

	return r, nil
}

func loadRegistry(cfg Config) (*conversion.Registry, error) {
	registry := &conversion.Registry{}
	if cfg.ConversionsFile != "" {
		loaded, err := conversion.LoadFile(cfg.ConversionsFile)
		if err != nil {
			return nil, err
		}
		registry = loaded
	}
	for _, spec := range cfg.Conversions {
		if err := registry.Register(conversion.FromSpec(spec)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Subscribe adds an observer of conversion.completed and collection.cleared
// events
func (r *Runner) Subscribe(fn func(ctx context.Context, kind string, media pipeline.Media, file *pipeline.DerivedFile)) {
	r.bus.Subscribe(events.ObserverFunc(func(ctx context.Context, e events.Event) {
		fn(ctx, e.Kind, e.Media, e.DerivedFile)
	}))
}

// CreateDerivedFiles runs the synchronous conversions of the media and
// submits the queued ones
func (r *Runner) CreateDerivedFiles(ctx context.Context, media pipeline.Media) (*pipeline.DerivedFilesResponse, error) {
	report, err := r.manipulator.CreateDerivedFiles(ctx, media)
	if err != nil {
		return nil, err
	}
	resp := report.Response()
	return &resp, nil
}

// JobStatus returns the state of a queued job
func (r *Runner) JobStatus(ctx context.Context, id string) (*pipeline.JobStatus, error) {
	return r.jobs.JobStatus(ctx, id)
}

// Manipulator returns the underlying file manipulator
func (r *Runner) Manipulator() *manipulator.FileManipulator {
	return r.manipulator
}

// Library returns the media library kept by the runner
func (r *Runner) Library() *library.Service {
	return r.library
}

// Disks returns the storage router
func (r *Runner) Disks() *storage.Disks {
	return r.disks
}

// Handler returns the HTTP API served by the runner
func (r *Runner) Handler(mode string) http.Handler {
	opts := handlers.Options{
		Drivers: r.selector,
		Jobs:    r.jobs,
		Library: r.library,
		Mode:    mode,
		Logger:  r.logger,
	}
	if r.ledger != nil {
		opts.Ledger = r.ledger
	}
	return handlers.New(r.manipulator, opts).Router()
}

// Run processes the local queue until ctx is cancelled. With DBOS it only
// blocks, the DBOS runtime already runs the workers.
func (r *Runner) Run(ctx context.Context) error {
	if r.worker == nil {
		<-ctx.Done()
		return nil
	}
	return r.worker.Run(ctx)
}

// Shutdown gracefully shuts down the runner
func (r *Runner) Shutdown(timeoutSeconds int) {
	if r.runtime != nil {
		r.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
	if err := r.close(); err != nil {
		r.logger.Warn("failed to release resources", "error", err)
	}
}

func (r *Runner) close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}
