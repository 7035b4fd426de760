// Package events delivers pipeline notifications to an explicit list of
// observers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

// Event is a pipeline notification. Conversion and DerivedFile are set for
// conversion.completed, Collection for collection.cleared. media.deleted
// carries only the media.
type Event struct {
	Kind        string                `json:"kind"`
	Media       pipeline.Media        `json:"media"`
	Conversion  string                `json:"conversion,omitempty"`
	DerivedFile *pipeline.DerivedFile `json:"derived_file,omitempty"`
	Collection  string                `json:"collection,omitempty"`
	Duration    time.Duration         `json:"duration,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at"`
}

// ConversionCompleted builds a conversion.completed event
func ConversionCompleted(media pipeline.Media, file pipeline.DerivedFile) Event {
	return Event{
		Kind:        pipeline.EventConversionCompleted,
		Media:       media,
		Conversion:  file.ConversionName,
		DerivedFile: &file,
		OccurredAt:  time.Now().UTC(),
	}
}

// CollectionCleared builds a collection.cleared event
func CollectionCleared(owner pipeline.Owner, collection string) Event {
	return Event{
		Kind:       pipeline.EventCollectionCleared,
		Media:      pipeline.Media{Owner: owner, CollectionName: collection},
		Collection: collection,
		OccurredAt: time.Now().UTC(),
	}
}

// MediaDeleted builds a media.deleted event
func MediaDeleted(media pipeline.Media) Event {
	return Event{
		Kind:       pipeline.EventMediaDeleted,
		Media:      media,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher accepts events
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Observer receives events from a Bus
type Observer interface {
	Notify(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) Notify(ctx context.Context, event Event) { f(ctx, event) }

// Bus publishes every event to its observers in subscription order
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewBus creates a bus with the given observers
func NewBus(observers ...Observer) *Bus {
	return &Bus{observers: append([]Observer(nil), observers...)}
}

// Subscribe appends an observer
func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Publish notifies every observer synchronously
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	observers := append([]Observer(nil), b.observers...)
	b.mu.RUnlock()

	for _, o := range observers {
		o.Notify(ctx, event)
	}
}

// Discard is a Publisher that drops every event
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}
