package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

func newContentStore(t *testing.T) (*ContentStore, simplecontent.Service) {
	t.Helper()
	svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(t.TempDir()))
	if err != nil {
		t.Fatalf("NewDevelopment failed: %v", err)
	}
	t.Cleanup(cleanup)
	return NewContentStore(svc), svc
}

func uploadOriginal(t *testing.T, svc simplecontent.Service, body string) pipeline.Media {
	t.Helper()
	content, err := svc.UploadContent(context.Background(), simplecontent.UploadContentRequest{
		OwnerID:  uuid.New(),
		TenantID: uuid.New(),
		Name:     "photo",
		FileName: "photo.jpg",
		Reader:   strings.NewReader(body),
	})
	if err != nil {
		t.Fatalf("UploadContent failed: %v", err)
	}
	return pipeline.Media{ID: content.ID.String(), FileName: "photo.jpg", Disk: DiskContent}
}

func downloadVariant(t *testing.T, cs *ContentStore, svc simplecontent.Service, media pipeline.Media, variant string) []string {
	t.Helper()
	derived, err := cs.DerivedVariant(context.Background(), media, variant)
	if err != nil {
		t.Fatalf("DerivedVariant failed: %v", err)
	}
	var bodies []string
	for _, d := range derived {
		r, err := svc.DownloadContent(context.Background(), d.ContentID)
		if err != nil {
			t.Fatalf("DownloadContent failed: %v", err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		bodies = append(bodies, string(data))
	}
	return bodies
}

func TestContentStoreCopyIn(t *testing.T) {
	cs, svc := newContentStore(t)
	media := uploadOriginal(t, svc, "original bytes")

	dst := filepath.Join(t.TempDir(), "in", "source.jpg")
	if err := cs.CopyIn(context.Background(), media, dst); err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}
	if got := readFile(t, dst); got != "original bytes" {
		t.Errorf("Expected original bytes, got %q", got)
	}
}

func TestContentStoreCopyOutReplacesVariant(t *testing.T) {
	cs, svc := newContentStore(t)
	media := uploadOriginal(t, svc, "original")
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		body      string
		overwrite bool
		want      string
	}{
		{"first", true, "first"},
		{"second", true, "second"},
		{"third", false, "second"},
	}

	for _, tt := range tests {
		src := filepath.Join(dir, tt.body+".jpg")
		writeFile(t, src, tt.body)
		if err := cs.CopyOut(ctx, src, media, "thumb.jpg", tt.overwrite); err != nil {
			t.Fatalf("CopyOut(%s, overwrite=%v) failed: %v", tt.body, tt.overwrite, err)
		}

		bodies := downloadVariant(t, cs, svc, media, "thumb.jpg")
		if len(bodies) != 1 {
			t.Fatalf("After writing %s: expected one thumb.jpg variant, got %d", tt.body, len(bodies))
		}
		if bodies[0] != tt.want {
			t.Errorf("After writing %s: expected %q, got %q", tt.body, tt.want, bodies[0])
		}
	}

	other := filepath.Join(dir, "large.webp")
	writeFile(t, other, "large")
	if err := cs.CopyOut(ctx, other, media, "large.webp", true); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	if bodies := downloadVariant(t, cs, svc, media, "thumb.jpg"); len(bodies) != 1 || bodies[0] != "second" {
		t.Errorf("Expected other variants to be left alone, got %v", bodies)
	}
}

func TestContentStoreRemoveAll(t *testing.T) {
	cs, svc := newContentStore(t)
	media := uploadOriginal(t, svc, "original")
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "thumb.jpg")
	writeFile(t, src, "thumb")
	if err := cs.CopyOut(ctx, src, media, "thumb.jpg", true); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}

	if err := cs.RemoveAll(ctx, media); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if bodies := downloadVariant(t, cs, svc, media, ""); len(bodies) != 0 {
		t.Errorf("Expected no derived content, got %d", len(bodies))
	}
	if _, err := svc.GetContent(ctx, uuid.MustParse(media.ID)); err == nil {
		t.Error("Expected the original content to be deleted")
	}
}

func TestContentStoreCopyInMissing(t *testing.T) {
	cs, _ := newContentStore(t)
	media := pipeline.Media{ID: uuid.NewString(), FileName: "photo.jpg"}

	err := cs.CopyIn(context.Background(), media, filepath.Join(t.TempDir(), "x.jpg"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestContentStoreRejectsInvalidIDs(t *testing.T) {
	cs, _ := newContentStore(t)
	media := pipeline.Media{ID: "not-a-uuid", FileName: "photo.jpg"}
	ctx := context.Background()

	if err := cs.CopyIn(ctx, media, filepath.Join(t.TempDir(), "x.jpg")); err == nil {
		t.Error("Expected CopyIn to reject a non-uuid id")
	}
	if err := cs.CopyOut(ctx, "unused", media, "thumb.jpg", true); err == nil {
		t.Error("Expected CopyOut to reject a non-uuid id")
	}
	if err := cs.RemoveAll(ctx, media); err == nil {
		t.Error("Expected RemoveAll to reject a non-uuid id")
	}
}
