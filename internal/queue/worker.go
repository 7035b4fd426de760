package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Dispatcher submits conversion jobs to a DBQueue
type Dispatcher struct {
	queue *DBQueue
}

// NewDispatcher creates a dispatcher on q
func NewDispatcher(q *DBQueue) *Dispatcher {
	return &Dispatcher{queue: q}
}

// Submit stores the job on the named queue
func (d *Dispatcher) Submit(ctx context.Context, job pipeline.ConversionJob, queueName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.queue.Enqueue(queueName, job)
}

// JobHandler executes a conversion job
type JobHandler interface {
	HandleJob(ctx context.Context, job pipeline.ConversionJob) ([]pipeline.DerivedFile, error)
}

// Worker polls one queue and hands each job to the handler. Failed jobs are
// moved to the failed set and never retried.
type Worker struct {
	queue     *DBQueue
	queueName string
	handler   JobHandler
	interval  time.Duration
	logger    *slog.Logger
}

// NewWorker creates a worker for the named queue
func NewWorker(q *DBQueue, queueName string, handler JobHandler, interval time.Duration, logger *slog.Logger) *Worker {
	if queueName == "" {
		queueName = DefaultQueue
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:     q,
		queueName: queueName,
		handler:   handler,
		interval:  interval,
		logger:    logger.With("queue", queueName),
	}
}

// Run processes jobs until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("queue worker started", "poll_interval", w.interval)
	for {
		// Drain the queue before waiting for the next tick
		for {
			processed, err := w.ProcessNext(ctx)
			if err != nil {
				w.logger.Error("queue worker error", "error", err)
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			w.logger.Info("queue worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessNext handles the oldest pending job. It reports false when the queue
// is empty. Handler failures are recorded, not returned.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, nil
	}

	entry, ok, err := w.queue.Claim(w.queueName)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if !ok {
		return false, nil
	}

	log := w.logger.With("run_id", entry.ID, "media_id", entry.Job.Media.ID)
	log.Info("executing conversion job", "conversions", len(entry.Job.Conversions))

	completed, err := w.handler.HandleJob(ctx, entry.Job)
	if err != nil {
		log.Error("conversion job failed", "error", err, "completed", len(completed))
		if ferr := w.queue.Fail(entry, err); ferr != nil {
			return true, fmt.Errorf("failed to record job failure: %w", ferr)
		}
		return true, nil
	}

	if err := w.queue.Ack(entry.ID); err != nil {
		return true, fmt.Errorf("failed to ack job: %w", err)
	}
	log.Info("conversion job completed", "completed", len(completed))
	return true, nil
}
