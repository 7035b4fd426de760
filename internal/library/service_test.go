package library

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tendant/simple-content-conversions/internal/events"
	"github.com/tendant/simple-content-conversions/internal/manipulator"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

type recordingRemover struct {
	removed []string
}

func (r *recordingRemover) RemoveAll(ctx context.Context, media pipeline.Media) error {
	r.removed = append(r.removed, media.ID)
	return nil
}

type recordingCreator struct {
	created []string
}

func (c *recordingCreator) CreateDerivedFiles(ctx context.Context, media pipeline.Media) (*manipulator.Report, error) {
	c.created = append(c.created, media.ID)
	return &manipulator.Report{Media: media}, nil
}

var post = pipeline.Owner{Type: "post", ID: "1"}

func seed(t *testing.T, repo *MemoryRepository, media ...pipeline.Media) {
	t.Helper()
	for _, m := range media {
		if err := repo.Save(context.Background(), m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func strPtr(s string) *string { return &s }

func TestAddMediaAppendsAndCreatesDerivedFiles(t *testing.T) {
	repo := NewMemoryRepository()
	creator := &recordingCreator{}
	svc := NewService(repo, nil, creator, nil, nil)
	ctx := context.Background()

	first, err := svc.AddMedia(ctx, pipeline.Media{FileName: "a.jpg", CollectionName: "images", Owner: post})
	if err != nil {
		t.Fatalf("AddMedia failed: %v", err)
	}
	second, err := svc.AddMedia(ctx, pipeline.Media{ID: "fixed", FileName: "b.jpg", CollectionName: "images", Owner: post})
	if err != nil {
		t.Fatalf("AddMedia failed: %v", err)
	}

	if first.Media.ID == "" {
		t.Error("Expected an id to be assigned")
	}
	if first.Media.Order != 1 || second.Media.Order != 2 {
		t.Errorf("Expected orders 1 and 2, got %d and %d", first.Media.Order, second.Media.Order)
	}
	if len(creator.created) != 2 || creator.created[1] != "fixed" {
		t.Errorf("Unexpected derived file calls %v", creator.created)
	}
}

func TestUpdateMedia(t *testing.T) {
	repo := NewMemoryRepository()
	files := &recordingRemover{}
	svc := NewService(repo, files, nil, nil, nil)
	ctx := context.Background()

	seed(t, repo,
		pipeline.Media{ID: "a", Name: "a", CollectionName: "images", Owner: post, Order: 1},
		pipeline.Media{ID: "b", Name: "b", CollectionName: "images", Owner: post, Order: 2},
		pipeline.Media{ID: "c", Name: "c", CollectionName: "images", Owner: post, Order: 3},
		pipeline.Media{ID: "other", CollectionName: "docs", Owner: post, Order: 1},
	)

	updated, err := svc.UpdateMedia(ctx, post, "images", []UpdateItem{
		{ID: "c", Name: strPtr("cover")},
		{ID: "a", CustomProperties: map[string]any{"alt": "first"}},
	})
	if err != nil {
		t.Fatalf("UpdateMedia failed: %v", err)
	}

	if len(updated) != 2 || updated[0].ID != "c" || updated[0].Order != 1 || updated[1].Order != 2 {
		t.Fatalf("Unexpected result %+v", updated)
	}
	if updated[0].Name != "cover" {
		t.Errorf("Expected name to be updated, got %s", updated[0].Name)
	}
	if updated[1].Name != "a" {
		t.Errorf("Expected name to be kept, got %s", updated[1].Name)
	}
	if updated[1].CustomProperty("alt", nil) != "first" {
		t.Errorf("Expected custom properties to be replaced, got %v", updated[1].CustomProperties)
	}

	if _, err := repo.Get(ctx, "b"); !errors.Is(err, ErrMediaNotFound) {
		t.Errorf("Expected b to be removed, got %v", err)
	}
	if len(files.removed) != 1 || files.removed[0] != "b" {
		t.Errorf("Expected files of b to be removed, got %v", files.removed)
	}
	if _, err := repo.Get(ctx, "other"); err != nil {
		t.Errorf("Expected other collection to be untouched: %v", err)
	}
}

func TestUpdateMediaRejectsForeignMedia(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	seed(t, repo,
		pipeline.Media{ID: "a", CollectionName: "images", Owner: post, Order: 1},
		pipeline.Media{ID: "doc", CollectionName: "docs", Owner: post, Order: 1},
	)

	_, err := svc.UpdateMedia(ctx, post, "images", []UpdateItem{{ID: "doc"}})
	if !errors.Is(err, ErrMediaCannotBeUpdated) {
		t.Fatalf("Expected ErrMediaCannotBeUpdated, got %v", err)
	}

	// Nothing is removed when the update is rejected
	if _, err := repo.Get(ctx, "a"); err != nil {
		t.Errorf("Expected a to survive a rejected update: %v", err)
	}
}

func TestDeleteMedia(t *testing.T) {
	repo := NewMemoryRepository()
	files := &recordingRemover{}
	svc := NewService(repo, files, nil, nil, nil)
	ctx := context.Background()

	seed(t, repo, pipeline.Media{ID: "a", CollectionName: "images", Owner: post})

	stranger := pipeline.Owner{Type: "post", ID: "2"}
	if err := svc.DeleteMedia(ctx, stranger, "a"); !errors.Is(err, ErrMediaCannotBeDeleted) {
		t.Errorf("Expected ErrMediaCannotBeDeleted for another owner, got %v", err)
	}
	if err := svc.DeleteMedia(ctx, post, "missing"); !errors.Is(err, ErrMediaCannotBeDeleted) {
		t.Errorf("Expected ErrMediaCannotBeDeleted for unknown media, got %v", err)
	}

	if err := svc.DeleteMedia(ctx, post, "a"); err != nil {
		t.Fatalf("DeleteMedia failed: %v", err)
	}
	if _, err := repo.Get(ctx, "a"); !errors.Is(err, ErrMediaNotFound) {
		t.Errorf("Expected media to be deleted, got %v", err)
	}
	if len(files.removed) != 1 {
		t.Errorf("Expected files to be removed once, got %v", files.removed)
	}
}

func TestClearMediaCollectionPublishesEvent(t *testing.T) {
	repo := NewMemoryRepository()
	files := &recordingRemover{}
	ch := events.NewChannel(4)
	svc := NewService(repo, files, nil, events.NewBus(ch), nil)
	ctx := context.Background()

	seed(t, repo,
		pipeline.Media{ID: "a", CollectionName: "images", Owner: post, Order: 1},
		pipeline.Media{ID: "b", CollectionName: "images", Owner: post, Order: 2},
		pipeline.Media{ID: "doc", CollectionName: "docs", Owner: post, Order: 1},
	)

	if err := svc.ClearMediaCollection(ctx, post, "images"); err != nil {
		t.Fatalf("ClearMediaCollection failed: %v", err)
	}

	left, _ := repo.ListCollection(ctx, post, "images")
	if len(left) != 0 {
		t.Errorf("Expected collection to be empty, got %v", left)
	}
	if len(files.removed) != 2 {
		t.Errorf("Expected 2 removals, got %v", files.removed)
	}

	var kinds []string
	var last events.Event
	for len(ch.Events()) > 0 {
		last = <-ch.Events()
		kinds = append(kinds, last.Kind)
	}
	want := []string{pipeline.EventMediaDeleted, pipeline.EventMediaDeleted, pipeline.EventCollectionCleared}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("Expected events %v, got %v", want, kinds)
	}
	if last.Collection != "images" || last.Media.Owner != post {
		t.Errorf("Unexpected collection.cleared event %+v", last)
	}
}

func TestRemovalsPublishMediaDeleted(t *testing.T) {
	repo := NewMemoryRepository()
	ch := events.NewChannel(4)
	svc := NewService(repo, nil, nil, events.NewBus(ch), nil)
	ctx := context.Background()

	seed(t, repo,
		pipeline.Media{ID: "a", CollectionName: "images", Owner: post, Order: 1},
		pipeline.Media{ID: "b", CollectionName: "images", Owner: post, Order: 2},
	)

	if _, err := svc.UpdateMedia(ctx, post, "images", []UpdateItem{{ID: "b"}}); err != nil {
		t.Fatalf("UpdateMedia failed: %v", err)
	}
	if err := svc.DeleteMedia(ctx, post, "b"); err != nil {
		t.Fatalf("DeleteMedia failed: %v", err)
	}

	var deleted []string
	for len(ch.Events()) > 0 {
		e := <-ch.Events()
		if e.Kind == pipeline.EventMediaDeleted {
			deleted = append(deleted, e.Media.ID)
		}
	}
	if !reflect.DeepEqual(deleted, []string{"a", "b"}) {
		t.Errorf("Expected media.deleted for a then b, got %v", deleted)
	}
}
