package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/simple-content-conversions/pkg/pipeline"
)

func newFilesystemStore(t *testing.T) (*BucketStore, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := NewFilesystemStorage(root)
	if err != nil {
		t.Fatalf("NewFilesystemStorage failed: %v", err)
	}
	return NewBucketStore(fs), root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestKeys(t *testing.T) {
	media := pipeline.Media{ID: "42", FileName: "photo.jpg"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"original", OriginalKey(media), "42/photo.jpg"},
		{"derived", DerivedKey(media, "thumb.jpg"), "42/conversions/thumb.jpg"},
		{"responsive", DerivedKey(media, "responsive-images/photo___thumb_100_50.jpg"), "42/conversions/responsive-images/photo___thumb_100_50.jpg"},
		{"traversal", DerivedKey(media, "../../etc/passwd"), "42/conversions/etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestBucketStoreCopyInAndOut(t *testing.T) {
	ctx := context.Background()
	store, root := newFilesystemStore(t)
	media := pipeline.Media{ID: "1", FileName: "photo.jpg"}

	writeFile(t, filepath.Join(root, "1", "photo.jpg"), "original")

	dst := filepath.Join(t.TempDir(), "in.jpg")
	if err := store.CopyIn(ctx, media, dst); err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}
	if got := readFile(t, dst); got != "original" {
		t.Errorf("Expected original content, got %q", got)
	}

	first := filepath.Join(t.TempDir(), "thumb.jpg")
	writeFile(t, first, "v1")
	if err := store.CopyOut(ctx, first, media, "thumb.jpg", true); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}

	second := filepath.Join(t.TempDir(), "thumb.jpg")
	writeFile(t, second, "v2")

	// Without overwrite the existing file is kept
	if err := store.CopyOut(ctx, second, media, "thumb.jpg", false); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	derived := filepath.Join(root, "1", "conversions", "thumb.jpg")
	if got := readFile(t, derived); got != "v1" {
		t.Errorf("Expected v1 to be kept, got %q", got)
	}

	if err := store.CopyOut(ctx, second, media, "thumb.jpg", true); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	if got := readFile(t, derived); got != "v2" {
		t.Errorf("Expected v2 after overwrite, got %q", got)
	}
}

func TestBucketStoreCopyInMissing(t *testing.T) {
	store, _ := newFilesystemStore(t)
	media := pipeline.Media{ID: "1", FileName: "missing.jpg"}

	err := store.CopyIn(context.Background(), media, filepath.Join(t.TempDir(), "x.jpg"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBucketStoreRemoveAll(t *testing.T) {
	ctx := context.Background()
	store, root := newFilesystemStore(t)

	writeFile(t, filepath.Join(root, "1", "photo.jpg"), "a")
	writeFile(t, filepath.Join(root, "1", "conversions", "thumb.jpg"), "b")
	writeFile(t, filepath.Join(root, "2", "other.jpg"), "c")

	if err := store.RemoveAll(ctx, pipeline.Media{ID: "1"}); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "1")); !os.IsNotExist(err) {
		t.Errorf("Expected media directory to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "2", "other.jpg")); err != nil {
		t.Errorf("Expected other media to be kept: %v", err)
	}

	if err := store.RemoveAll(ctx, pipeline.Media{}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for empty id, got %v", err)
	}
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	fs, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStorage failed: %v", err)
	}

	if _, err := fs.GetReader(context.Background(), "../outside"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
	if _, err := fs.Exists(context.Background(), "../../etc/passwd"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
	if err := fs.DeletePrefix(context.Background(), ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected root deletion to be refused, got %v", err)
	}
}

type memoryStore struct {
	copiedIn []string
}

func (m *memoryStore) CopyIn(ctx context.Context, media pipeline.Media, dst string) error {
	m.copiedIn = append(m.copiedIn, media.ID)
	return nil
}

func (m *memoryStore) CopyOut(ctx context.Context, src string, media pipeline.Media, derivedName string, overwrite bool) error {
	return nil
}

func TestDisksRouting(t *testing.T) {
	ctx := context.Background()
	local := &memoryStore{}
	remote := &memoryStore{}

	disks := NewDisks("local")
	disks.Register("local", local)
	disks.Register("s3", remote)

	if err := disks.CopyIn(ctx, pipeline.Media{ID: "a"}, "x"); err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}
	if err := disks.CopyIn(ctx, pipeline.Media{ID: "b", Disk: "s3"}, "x"); err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}
	if len(local.copiedIn) != 1 || local.copiedIn[0] != "a" {
		t.Errorf("Expected default disk to receive a, got %v", local.copiedIn)
	}
	if len(remote.copiedIn) != 1 || remote.copiedIn[0] != "b" {
		t.Errorf("Expected s3 disk to receive b, got %v", remote.copiedIn)
	}

	if err := disks.CopyIn(ctx, pipeline.Media{ID: "c", Disk: "ftp"}, "x"); !errors.Is(err, ErrUnknownDisk) {
		t.Errorf("Expected ErrUnknownDisk, got %v", err)
	}

	// Stores without removal support are skipped
	if err := disks.RemoveAll(ctx, pipeline.Media{ID: "a"}); err != nil {
		t.Errorf("Expected RemoveAll to be a no-op, got %v", err)
	}

	if got := disks.Names(); len(got) != 2 || got[0] != "local" || got[1] != "s3" {
		t.Errorf("Unexpected disk names %v", got)
	}
}

func TestOpenDisks(t *testing.T) {
	disks, closeFn, err := OpenDisks(context.Background(), DiskConfig{LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenDisks failed: %v", err)
	}
	defer closeFn()

	if names := disks.Names(); len(names) != 1 || names[0] != DiskLocal {
		t.Errorf("Expected only the local disk, got %v", names)
	}

	if _, _, err := OpenDisks(context.Background(), DiskConfig{Default: DiskS3, LocalDir: t.TempDir()}); !errors.Is(err, ErrUnknownDisk) {
		t.Errorf("Expected ErrUnknownDisk for an unconfigured default, got %v", err)
	}
}
