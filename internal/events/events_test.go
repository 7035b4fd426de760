package events

import (
	"context"
	"testing"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

func TestBusNotifiesObserversInOrder(t *testing.T) {
	var order []string
	record := func(name string) Observer {
		return ObserverFunc(func(ctx context.Context, e Event) {
			order = append(order, name+":"+e.Kind)
		})
	}

	bus := NewBus(record("a"))
	bus.Subscribe(record("b"))

	media := pipeline.Media{ID: "1"}
	bus.Publish(context.Background(), ConversionCompleted(media, pipeline.DerivedFile{ConversionName: "thumb", Extension: "jpg"}))

	want := []string{"a:conversion.completed", "b:conversion.completed"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, order[i])
		}
	}
}

func TestChannelDropsWhenFull(t *testing.T) {
	ch := NewChannel(1)
	bus := NewBus(ch)

	bus.Publish(context.Background(), CollectionCleared(pipeline.Owner{Type: "post", ID: "7"}, "images"))
	bus.Publish(context.Background(), CollectionCleared(pipeline.Owner{Type: "post", ID: "7"}, "images"))

	e := <-ch.Events()
	if e.Kind != pipeline.EventCollectionCleared || e.Collection != "images" {
		t.Errorf("Unexpected event %+v", e)
	}

	select {
	case extra := <-ch.Events():
		t.Errorf("Expected second event to be dropped, got %+v", extra)
	default:
	}
}

func TestConversionCompletedCarriesDerivedFile(t *testing.T) {
	e := ConversionCompleted(pipeline.Media{ID: "1"}, pipeline.DerivedFile{ConversionName: "thumb", Extension: "png"})
	if e.Conversion != "thumb" || e.DerivedFile == nil || e.DerivedFile.FileName() != "thumb.png" {
		t.Errorf("Unexpected event %+v", e)
	}
	if e.OccurredAt.IsZero() {
		t.Error("Expected OccurredAt to be set")
	}
}
