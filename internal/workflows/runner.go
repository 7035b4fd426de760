// Package workflows runs queued conversion jobs as DBOS durable workflows.
package workflows

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"

	"github.com/tendant/simple-content-conversions/internal/dbosruntime"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

func init() {
	// Custom property values are stored behind interfaces
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// JobHandler executes a conversion job
type JobHandler interface {
	HandleJob(ctx context.Context, job pipeline.ConversionJob) ([]pipeline.DerivedFile, error)
}

// JobResult is the recorded output of a conversion workflow
type JobResult struct {
	MediaID   string                 `json:"media_id"`
	Completed []pipeline.DerivedFile `json:"completed"`
}

// WorkflowRunner submits conversion jobs to DBOS queues and executes them
// with the registered handler
type WorkflowRunner struct {
	mu          sync.RWMutex
	handler     JobHandler
	dbosRuntime *dbosruntime.Runtime
	logger      *slog.Logger
}

// NewWorkflowRunner creates a new workflow runner with DBOS support. It must
// be created before the runtime is launched.
func NewWorkflowRunner(dbosRuntime *dbosruntime.Runtime, logger *slog.Logger) *WorkflowRunner {
	if logger == nil {
		logger = slog.Default()
	}
	runner := &WorkflowRunner{
		dbosRuntime: dbosRuntime,
		logger:      logger,
	}

	// Register the DBOS workflow function
	if dbosRuntime != nil {
		dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeJobDBOS)
	}

	return runner
}

// SetHandler sets the handler executing dequeued jobs
func (r *WorkflowRunner) SetHandler(h JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

// Submit enqueues the job on the named queue, or the default queue when
// queueName is empty, and returns the workflow id
func (r *WorkflowRunner) Submit(ctx context.Context, job pipeline.ConversionJob, queueName string) (string, error) {
	if r.dbosRuntime == nil {
		return "", ErrRuntimeNotInitialized
	}

	if queueName == "" {
		queueName = r.dbosRuntime.QueueName()
	}
	if !r.dbosRuntime.HasQueue(queueName) {
		return "", fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}

	job.Queue = queueName

	// Generate workflow ID for exactly-once semantics
	workflowID := WorkflowID(job)

	// Enqueue workflow with DBOS (generic function with type parameters)
	handle, err := dbos.RunWorkflow[pipeline.ConversionJob, *JobResult](
		r.dbosRuntime.Context(),
		r.executeJobDBOS,
		job,
		dbos.WithWorkflowID(workflowID),
		dbos.WithQueue(queueName),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue workflow: %w", err)
	}

	r.logger.Info("conversion job enqueued", "workflow_id", handle.GetWorkflowID(), "queue", queueName, "media_id", job.Media.ID)
	return handle.GetWorkflowID(), nil
}

// GetStatus retrieves the status of a workflow execution
func (r *WorkflowRunner) GetStatus(ctx context.Context, workflowID string) (*dbosruntime.WorkflowStatusInfo, error) {
	if r.dbosRuntime == nil {
		return nil, ErrRuntimeNotInitialized
	}
	return r.dbosRuntime.GetWorkflowStatus(ctx, workflowID)
}

// JobStatus reports the state of a submitted job using the DBOS status names
func (r *WorkflowRunner) JobStatus(ctx context.Context, workflowID string) (*pipeline.JobStatus, error) {
	info, err := r.GetStatus(ctx, workflowID)
	if errors.Is(err, dbosruntime.ErrWorkflowNotFound) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrJobNotFound, workflowID)
	}
	if err != nil {
		return nil, err
	}

	return &pipeline.JobStatus{
		ID:        info.WorkflowUUID,
		Queue:     info.QueueName,
		Status:    info.Status,
		UpdatedAt: time.UnixMilli(info.UpdatedAt).UTC(),
	}, nil
}

// executeJobDBOS is the DBOS workflow function wrapping the job handler
func (r *WorkflowRunner) executeJobDBOS(dbosCtx dbos.DBOSContext, job pipeline.ConversionJob) (*JobResult, error) {
	// Get workflow ID from DBOS context
	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		return nil, err
	}

	// DBOSContext implements context.Context
	return r.execute(dbosCtx, workflowID, job)
}

func (r *WorkflowRunner) execute(ctx context.Context, workflowID string, job pipeline.ConversionJob) (*JobResult, error) {
	r.mu.RLock()
	handler := r.handler
	r.mu.RUnlock()

	if handler == nil {
		return nil, ErrNoHandler
	}

	log := r.logger.With("run_id", workflowID, "media_id", job.Media.ID)
	log.Info("executing conversion job", "conversions", len(job.Conversions))

	completed, err := handler.HandleJob(ctx, job)
	if err != nil {
		log.Error("conversion job failed", "error", err)
		return &JobResult{MediaID: job.Media.ID, Completed: completed}, err
	}

	log.Info("conversion job completed", "completed", len(completed))
	return &JobResult{MediaID: job.Media.ID, Completed: completed}, nil
}

// WorkflowID derives the workflow id of a job
func WorkflowID(job pipeline.ConversionJob) string {
	queuedAt := job.QueuedAt
	if queuedAt.IsZero() {
		queuedAt = time.Now()
	}
	return fmt.Sprintf("conversions-%s-%d", job.Media.ID, queuedAt.UnixNano())
}
