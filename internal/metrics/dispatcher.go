package metrics

import (
	"context"

	"github.com/tendant/simple-content-conversions/internal/manipulator"
	"github.com/tendant/simple-content-conversions/internal/queue"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

type instrumentedDispatcher struct {
	next manipulator.Dispatcher
}

// InstrumentDispatcher counts the jobs submitted through next
func InstrumentDispatcher(next manipulator.Dispatcher) manipulator.Dispatcher {
	return instrumentedDispatcher{next: next}
}

func (d instrumentedDispatcher) Submit(ctx context.Context, job pipeline.ConversionJob, queueName string) (string, error) {
	id, err := d.next.Submit(ctx, job, queueName)
	JobsDispatched.WithLabelValues(queueLabel(queueName), status(err)).Inc()
	return id, err
}

type instrumentedHandler struct {
	queue string
	next  queue.JobHandler
}

// InstrumentHandler counts the jobs a worker executes through next. Jobs are
// labelled with the queue they were submitted to, or queueName when the job
// does not carry one.
func InstrumentHandler(queueName string, next queue.JobHandler) queue.JobHandler {
	return instrumentedHandler{queue: queueLabel(queueName), next: next}
}

func (h instrumentedHandler) HandleJob(ctx context.Context, job pipeline.ConversionJob) ([]pipeline.DerivedFile, error) {
	files, err := h.next.HandleJob(ctx, job)
	label := h.queue
	if job.Queue != "" {
		label = job.Queue
	}
	JobsProcessed.WithLabelValues(label, status(err)).Inc()
	return files, err
}

func queueLabel(name string) string {
	if name == "" {
		return queue.DefaultQueue
	}
	return name
}
