package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tendant/simple-content-conversions/internal/events"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"ConversionsCompleted", ConversionsCompleted},
		{"ConversionDuration", ConversionDuration},
		{"CollectionsCleared", CollectionsCleared},
		{"JobsDispatched", JobsDispatched},
		{"JobsProcessed", JobsProcessed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestObserverCountsEvents(t *testing.T) {
	completed := ConversionsCompleted.WithLabelValues("observer-thumb")
	before := testutil.ToFloat64(completed)
	clearedBefore := testutil.ToFloat64(CollectionsCleared)

	obs := NewObserver()
	e := events.ConversionCompleted(pipeline.Media{ID: "1"}, pipeline.DerivedFile{ConversionName: "observer-thumb", Extension: "jpg"})
	e.Duration = 20 * time.Millisecond
	obs.Notify(context.Background(), e)
	obs.Notify(context.Background(), events.CollectionCleared(pipeline.Owner{Type: "post", ID: "1"}, "images"))

	if got := testutil.ToFloat64(completed) - before; got != 1 {
		t.Errorf("Expected 1 completed conversion, got %v", got)
	}
	if got := testutil.ToFloat64(CollectionsCleared) - clearedBefore; got != 1 {
		t.Errorf("Expected 1 cleared collection, got %v", got)
	}
}

type stubDispatcher struct {
	err error
}

func (s stubDispatcher) Submit(ctx context.Context, job pipeline.ConversionJob, queueName string) (string, error) {
	return "job-1", s.err
}

func TestInstrumentDispatcher(t *testing.T) {
	okCounter := JobsDispatched.WithLabelValues("metrics-test", "ok")
	errCounter := JobsDispatched.WithLabelValues("metrics-test", "error")
	okBefore, errBefore := testutil.ToFloat64(okCounter), testutil.ToFloat64(errCounter)

	job := pipeline.NewConversionJob(pipeline.Media{ID: "1"}, nil)

	id, err := InstrumentDispatcher(stubDispatcher{}).Submit(context.Background(), job, "metrics-test")
	if err != nil || id != "job-1" {
		t.Fatalf("Submit = %q, %v", id, err)
	}
	if _, err := InstrumentDispatcher(stubDispatcher{err: errors.New("down")}).Submit(context.Background(), job, "metrics-test"); err == nil {
		t.Fatal("Expected error to be passed through")
	}

	if got := testutil.ToFloat64(okCounter) - okBefore; got != 1 {
		t.Errorf("Expected 1 ok dispatch, got %v", got)
	}
	if got := testutil.ToFloat64(errCounter) - errBefore; got != 1 {
		t.Errorf("Expected 1 failed dispatch, got %v", got)
	}
}

type stubHandler struct{}

func (stubHandler) HandleJob(ctx context.Context, job pipeline.ConversionJob) ([]pipeline.DerivedFile, error) {
	return []pipeline.DerivedFile{{ConversionName: "thumb"}}, nil
}

func TestInstrumentHandlerDefaultsQueueLabel(t *testing.T) {
	counter := JobsProcessed.WithLabelValues("default", "ok")
	before := testutil.ToFloat64(counter)

	files, err := InstrumentHandler("", stubHandler{}).HandleJob(context.Background(), pipeline.ConversionJob{})
	if err != nil || len(files) != 1 {
		t.Fatalf("HandleJob = %v, %v", files, err)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("Expected 1 processed job, got %v", got)
	}
}

func TestInstrumentHandlerLabelsJobQueue(t *testing.T) {
	extra := JobsProcessed.WithLabelValues("thumbnails", "ok")
	fallback := JobsProcessed.WithLabelValues("default", "ok")
	extraBefore, fallbackBefore := testutil.ToFloat64(extra), testutil.ToFloat64(fallback)

	h := InstrumentHandler("default", stubHandler{})
	if _, err := h.HandleJob(context.Background(), pipeline.ConversionJob{Queue: "thumbnails"}); err != nil {
		t.Fatalf("HandleJob failed: %v", err)
	}

	if got := testutil.ToFloat64(extra) - extraBefore; got != 1 {
		t.Errorf("Expected the job's queue to be counted once, got %v", got)
	}
	if got := testutil.ToFloat64(fallback) - fallbackBefore; got != 0 {
		t.Errorf("Expected the fallback queue to stay untouched, got %v", got)
	}
}
