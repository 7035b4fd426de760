// Package manipulator runs conversions against a media item's source file and
// hands queued conversions to a job dispatcher.
package manipulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-content-conversions/internal/conversion"
	"github.com/tendant/simple-content-conversions/internal/events"
	"github.com/tendant/simple-content-conversions/internal/generator"
	"github.com/tendant/simple-content-conversions/internal/manipulation"
	"github.com/tendant/simple-content-conversions/internal/responsive"
	"github.com/tendant/simple-content-conversions/internal/storage"
	"github.com/tendant/simple-content-conversions/internal/workspace"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Config is passed to the manipulator at construction
type Config struct {
	// TempDir is the base directory for run workspaces. Empty uses the system temp dir.
	TempDir string

	// QueueName tags dispatched jobs. Empty uses the dispatcher's default queue.
	QueueName string
}

// Dispatcher submits deferred conversion jobs to an asynchronous job system
type Dispatcher interface {
	Submit(ctx context.Context, job pipeline.ConversionJob, queueName string) (string, error)
}

// Selector picks the driver for a source file
type Selector interface {
	Select(path string) (generator.Driver, bool)
}

// ResponsiveGenerator stores responsive variants of a conversion result
type ResponsiveGenerator interface {
	Generate(ctx context.Context, media pipeline.Media, sourcePath, label string) ([]responsive.Image, error)
}

// Deps are the collaborators of a FileManipulator. Dispatcher, Publisher and
// Responsive are optional.
type Deps struct {
	Registry   *conversion.Registry
	Selector   Selector
	Store      storage.MediaStore
	Dispatcher Dispatcher
	Publisher  events.Publisher
	Responsive ResponsiveGenerator
	Logger     *slog.Logger
}

// Report summarizes a CreateDerivedFiles call
type Report struct {
	RunID     string
	Media     pipeline.Media
	Completed []pipeline.DerivedFile
	Queued    []string
	JobID     string
}

// Response converts the report to its wire form
func (r *Report) Response() pipeline.DerivedFilesResponse {
	return pipeline.DerivedFilesResponse{
		RunID:     r.RunID,
		MediaID:   r.Media.ID,
		Completed: r.Completed,
		Queued:    r.Queued,
		JobID:     r.JobID,
	}
}

// FileManipulator generates derived files for media items
type FileManipulator struct {
	config     Config
	registry   *conversion.Registry
	selector   Selector
	store      storage.MediaStore
	dispatcher Dispatcher
	publisher  events.Publisher
	responsive ResponsiveGenerator
	logger     *slog.Logger
}

// NewFileManipulator creates a new file manipulator
func NewFileManipulator(cfg Config, deps Deps) *FileManipulator {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Discard
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := deps.Registry
	if registry == nil {
		registry = &conversion.Registry{}
	}

	return &FileManipulator{
		config:     cfg,
		registry:   registry,
		selector:   deps.Selector,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		publisher:  publisher,
		responsive: deps.Responsive,
		logger:     logger,
	}
}

// SetDispatcher replaces the job dispatcher
func (m *FileManipulator) SetDispatcher(d Dispatcher) {
	m.dispatcher = d
}

// Registry returns the conversion registry
func (m *FileManipulator) Registry() *conversion.Registry {
	return m.registry
}

// CreateDerivedFiles runs the synchronous conversions for the media's
// collection and submits one job carrying every queued conversion. It never
// waits on queued work.
func (m *FileManipulator) CreateDerivedFiles(ctx context.Context, media pipeline.Media) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Media: media}
	log := m.logger.With("run_id", report.RunID, "media_id", media.ID)

	conversions := m.registry.ForMedia(media)
	nonQueued, queued := conversions.Partition(media.CollectionName)
	log.Info("creating derived files",
		"collection", media.CollectionName,
		"synchronous", len(nonQueued),
		"queued", len(queued),
	)

	completed, err := m.performConversions(ctx, log, nonQueued, media)
	report.Completed = completed
	if err != nil {
		return report, err
	}

	if len(queued) == 0 {
		return report, nil
	}

	if m.dispatcher == nil {
		return report, ErrNoDispatcher
	}

	job := pipeline.NewConversionJob(media, queued.Specs())
	jobID, err := m.dispatcher.Submit(ctx, job, m.config.QueueName)
	if err != nil {
		return report, fmt.Errorf("failed to dispatch queued conversions: %w", err)
	}

	report.Queued = queued.Names()
	report.JobID = jobID
	log.Info("queued conversions dispatched", "job_id", jobID, "conversions", report.Queued)

	return report, nil
}

// PerformConversions runs the conversions in order against the media's source
// file and stores each result as a derived file. It is a no-op when the set is
// empty or no driver can convert the source. A failure stops the run; derived
// files stored before it are kept.
func (m *FileManipulator) PerformConversions(ctx context.Context, conversions conversion.Collection, media pipeline.Media) ([]pipeline.DerivedFile, error) {
	return m.performConversions(ctx, m.logger.With("media_id", media.ID), conversions, media)
}

// HandleJob executes a queued conversion job
func (m *FileManipulator) HandleJob(ctx context.Context, job pipeline.ConversionJob) ([]pipeline.DerivedFile, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	log := m.logger.With("media_id", job.Media.ID, "queued_at", job.QueuedAt)
	log.Info("handling queued conversions", "conversions", len(job.Conversions))

	return m.performConversions(ctx, log, conversion.CollectionFromSpecs(job.Conversions), job.Media)
}

func (m *FileManipulator) performConversions(ctx context.Context, log *slog.Logger, conversions conversion.Collection, media pipeline.Media) ([]pipeline.DerivedFile, error) {
	if len(conversions) == 0 {
		return nil, nil
	}
	if m.store == nil || m.selector == nil {
		return nil, fmt.Errorf("manipulator requires a media store and a generator selector")
	}

	ws, err := workspace.Acquire(m.config.TempDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Delete(); err != nil {
			log.Warn("failed to delete workspace", "path", ws.Path(), "error", err)
		}
	}()

	source := ws.RandomName(media.Extension())
	if err := m.store.CopyIn(ctx, media, source); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug("source file does not exist", "file_name", media.FileName)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to copy source file: %w", err)
	}

	driver, ok := m.selector.Select(source)
	if !ok {
		log.Debug("no generator can convert source", "file_name", media.FileName)
		return nil, nil
	}
	log.Debug("generator selected", "driver", driver.Kind())

	var completed []pipeline.DerivedFile
	for _, conv := range conversions {
		if err := ctx.Err(); err != nil {
			return completed, err
		}

		file, err := m.runConversion(ctx, ws, driver, media, conv, source)
		if err != nil {
			log.Error("conversion failed", "conversion", conv.Name(), "error", err)
			return completed, fmt.Errorf("failed to perform conversion %s: %w", conv.Name(), err)
		}
		completed = append(completed, file)
	}

	log.Info("conversions performed", "count", len(completed))
	return completed, nil
}

// runConversion converts, renames, stores and announces one derived file
func (m *FileManipulator) runConversion(ctx context.Context, ws *workspace.Workspace, driver generator.Driver, media pipeline.Media, conv *conversion.Conversion, source string) (pipeline.DerivedFile, error) {
	started := time.Now()

	intermediate, err := driver.Convert(ctx, source, conv)
	if err != nil {
		return pipeline.DerivedFile{}, fmt.Errorf("driver %s failed: %w", driver.Kind(), err)
	}
	if intermediate != source {
		defer os.Remove(intermediate)
	}

	result, err := m.PerformConversion(ctx, media, conv, intermediate)
	if err != nil {
		return pipeline.DerivedFile{}, err
	}

	file := pipeline.DerivedFile{
		ConversionName: conv.Name(),
		Extension:      strings.TrimPrefix(filepath.Ext(result), "."),
	}

	renamed := ws.Join(file.FileName())
	if err := os.Rename(result, renamed); err != nil {
		return pipeline.DerivedFile{}, fmt.Errorf("failed to rename result: %w", err)
	}

	if err := m.store.CopyOut(ctx, renamed, media, file.FileName(), true); err != nil {
		return pipeline.DerivedFile{}, fmt.Errorf("failed to store derived file: %w", err)
	}

	if conv.GeneratesResponsiveImages() && m.responsive != nil {
		if _, err := m.responsive.Generate(ctx, media, renamed, conv.Name()); err != nil {
			return pipeline.DerivedFile{}, fmt.Errorf("failed to generate responsive images: %w", err)
		}
	}

	event := events.ConversionCompleted(media, file)
	event.Duration = time.Since(started)
	m.publisher.Publish(ctx, event)

	return file, nil
}

// PerformConversion copies inputFile to a fresh scratch name next to it and
// applies the conversion's manipulations. The result is not stored.
func (m *FileManipulator) PerformConversion(ctx context.Context, media pipeline.Media, conv *conversion.Conversion, inputFile string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	scratch := filepath.Join(filepath.Dir(inputFile), workspace.RandomString(16)+filepath.Ext(inputFile))
	if err := copyFile(inputFile, scratch); err != nil {
		return "", err
	}

	result, err := manipulation.Apply(scratch, conv.Manipulations())
	if err != nil {
		os.Remove(scratch)
		return "", fmt.Errorf("failed to apply manipulations: %w", err)
	}
	return result, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
