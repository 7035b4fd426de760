package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/simple-content-conversions/internal/dbosruntime"
	"github.com/tendant/simple-content-conversions/internal/workflows"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Client provides a client-only API for submitting conversion jobs without
// executing them. Workers must be running separately to execute the jobs.
type Client struct {
	runtime *dbosruntime.Runtime
	runner  *workflows.WorkflowRunner
}

// NewClient creates a client that can submit jobs but doesn't execute them
func NewClient(cfg Config) (*Client, error) {
	cfg.withDefaults()

	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		ExtraQueues:        cfg.ExtraQueues,
		ApplicationVersion: cfg.ApplicationVersion,
		EnqueueOnly:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	// The workflow is registered so RunWorkflow can reference it
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime, cfg.Logger)

	if err := dbosRuntime.Launch(); err != nil {
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Client{
		runtime: dbosRuntime,
		runner:  workflowRunner,
	}, nil
}

// Submit enqueues the conversions of media on the named queue, or the
// default queue when queueName is empty, and returns the job id
func (c *Client) Submit(ctx context.Context, media pipeline.Media, conversions []pipeline.ConversionSpec, queueName string) (string, error) {
	if media.ID == "" {
		return "", fmt.Errorf("media id is required")
	}
	if len(conversions) == 0 {
		return "", fmt.Errorf("at least one conversion is required")
	}
	return c.runner.Submit(ctx, pipeline.NewConversionJob(media, conversions), queueName)
}

// JobStatus returns the state of a submitted job
func (c *Client) JobStatus(ctx context.Context, id string) (*pipeline.JobStatus, error) {
	return c.runner.JobStatus(ctx, id)
}

// Shutdown gracefully shuts down the client
func (c *Client) Shutdown(timeoutSeconds int) {
	if c.runtime != nil {
		c.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
}
