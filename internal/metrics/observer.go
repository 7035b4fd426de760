package metrics

import (
	"context"

	"github.com/tendant/simple-content-conversions/internal/events"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// eventObserver records pipeline events into the counters in metrics.go
type eventObserver struct{}

// NewObserver creates an events.Observer backed by Prometheus
func NewObserver() events.Observer {
	return eventObserver{}
}

func (eventObserver) Notify(ctx context.Context, e events.Event) {
	switch e.Kind {
	case pipeline.EventConversionCompleted:
		ConversionsCompleted.WithLabelValues(e.Conversion).Inc()
		if e.Duration > 0 {
			ConversionDuration.WithLabelValues(e.Conversion).Observe(e.Duration.Seconds())
		}
	case pipeline.EventCollectionCleared:
		CollectionsCleared.Inc()
	}
}
