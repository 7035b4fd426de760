package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tendant/simple-content-conversions/internal/library"
	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

func newLibraryHandlers(t *testing.T) (*Handlers, *library.MemoryRepository) {
	t.Helper()
	repo := library.NewMemoryRepository()
	h, m := newTestHandlers(t, Options{})
	h.library = library.NewService(repo, nil, m, nil, nil)
	return h, repo
}

func TestAddMediaRoute(t *testing.T) {
	h, repo := newLibraryHandlers(t)

	rec := do(t, h, http.MethodPost, "/v1/media", pipeline.Media{
		ID:             "m1",
		FileName:       "photo.jpg",
		CollectionName: "images",
		Owner:          pipeline.Owner{Type: "post", ID: "7"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := repo.Get(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Expected media to be stored: %v", err)
	}
	if stored.Order != 1 {
		t.Errorf("Expected order 1, got %d", stored.Order)
	}

	if rec := do(t, h, http.MethodPost, "/v1/media", pipeline.Media{ID: "m2"}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without file name, got %d", rec.Code)
	}
}

func TestUpdateAndClearCollectionRoutes(t *testing.T) {
	h, repo := newLibraryHandlers(t)
	owner := pipeline.Owner{Type: "post", ID: "7"}
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		repo.Save(ctx, pipeline.Media{ID: id, FileName: id + ".jpg", CollectionName: "images", Owner: owner, Order: i + 1})
	}
	repo.Save(ctx, pipeline.Media{ID: "other", FileName: "x.jpg", CollectionName: "docs", Owner: owner, Order: 1})

	name := "renamed"
	rec := do(t, h, http.MethodPut, "/v1/owners/post/7/collections/images", []library.UpdateItem{
		{ID: "c", Name: &name},
		{ID: "a"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated []pipeline.Media
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(updated) != 2 || updated[0].ID != "c" || updated[0].Name != "renamed" || updated[1].Order != 2 {
		t.Errorf("Unexpected update result %+v", updated)
	}
	if _, err := repo.Get(ctx, "b"); err == nil {
		t.Error("Expected omitted media to be removed")
	}

	rec = do(t, h, http.MethodPut, "/v1/owners/post/7/collections/images", []library.UpdateItem{{ID: "other"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for media of another collection, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/v1/owners/post/7/collections/images", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	left, _ := repo.ListCollection(ctx, owner, "images")
	if len(left) != 0 {
		t.Errorf("Expected collection to be empty, got %d items", len(left))
	}
}

func TestDeleteMediaRoute(t *testing.T) {
	h, repo := newLibraryHandlers(t)
	repo.Save(context.Background(), pipeline.Media{ID: "a", FileName: "a.jpg", Owner: pipeline.Owner{Type: "post", ID: "7"}})

	if rec := do(t, h, http.MethodDelete, "/v1/owners/post/8/media/a", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for another owner, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/v1/owners/post/7/media/a", nil); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/v1/owners/post/7/media/a", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for missing media, got %d", rec.Code)
	}
}

func TestLibraryRoutesAbsentWithoutLibrary(t *testing.T) {
	h, _ := newTestHandlers(t, Options{})
	if rec := do(t, h, http.MethodPost, "/v1/media", pipeline.Media{FileName: "a.jpg"}); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without a library, got %d", rec.Code)
	}
}

func TestLibraryRoutesRejectWrongMethod(t *testing.T) {
	h, _ := newLibraryHandlers(t)
	if rec := do(t, h, http.MethodGet, "/v1/owners/post/7/collections/images", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}
