package ledger

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-content-conversions/internal/events"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Store is the part of the ledger the observer writes to
type Store interface {
	Record(ctx context.Context, media pipeline.Media, file pipeline.DerivedFile) (int, error)
	ForgetCollection(ctx context.Context, owner pipeline.Owner, collection string) (int64, error)
	ForgetMedia(ctx context.Context, mediaID string) (int64, error)
}

// Observer keeps a Store in step with pipeline events. Write failures are
// logged and never reach the publisher.
type Observer struct {
	store  Store
	logger *slog.Logger
}

// NewObserver creates a ledger observer
func NewObserver(store Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

// Notify implements events.Observer
func (o *Observer) Notify(ctx context.Context, e events.Event) {
	switch e.Kind {
	case pipeline.EventConversionCompleted:
		if e.DerivedFile == nil {
			return
		}
		count, err := o.store.Record(ctx, e.Media, *e.DerivedFile)
		if err != nil {
			o.logger.Warn("failed to record derived file", "media_id", e.Media.ID, "conversion", e.Conversion, "error", err)
			return
		}
		o.logger.Debug("derived file recorded", "media_id", e.Media.ID, "conversion", e.Conversion, "completed_count", count)

	case pipeline.EventCollectionCleared:
		if _, err := o.store.ForgetCollection(ctx, e.Media.Owner, e.Collection); err != nil {
			o.logger.Warn("failed to forget collection", "collection", e.Collection, "error", err)
		}

	case pipeline.EventMediaDeleted:
		if _, err := o.store.ForgetMedia(ctx, e.Media.ID); err != nil {
			o.logger.Warn("failed to forget media", "media_id", e.Media.ID, "error", err)
		}
	}
}
