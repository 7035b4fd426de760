package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndDelete(t *testing.T) {
	base := filepath.Join(t.TempDir(), "temp")

	ws, err := Acquire(base)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if !strings.HasPrefix(ws.Path(), base) {
		t.Errorf("Expected workspace under %s, got %s", base, ws.Path())
	}

	nested := filepath.Join(ws.Path(), "nested")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "file.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := ws.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(ws.Path()); !os.IsNotExist(err) {
		t.Errorf("Expected workspace to be removed, stat err = %v", err)
	}

	// Deleting twice is fine
	if err := ws.Delete(); err != nil {
		t.Errorf("Second Delete failed: %v", err)
	}
}

func TestAcquireGivesDistinctDirectories(t *testing.T) {
	base := t.TempDir()

	a, err := Acquire(base)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer a.Delete()

	b, err := Acquire(base)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer b.Delete()

	if a.Path() == b.Path() {
		t.Errorf("Expected distinct workspaces, both at %s", a.Path())
	}
}

func TestRandomNamePreservesExtension(t *testing.T) {
	ws, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer ws.Delete()

	first := ws.RandomName("jpg")
	second := ws.RandomName(".jpg")

	if filepath.Ext(first) != ".jpg" || filepath.Ext(second) != ".jpg" {
		t.Errorf("Expected .jpg names, got %s and %s", first, second)
	}
	if first == second {
		t.Errorf("Expected distinct names, got %s twice", first)
	}
	if filepath.Dir(first) != ws.Path() {
		t.Errorf("Expected name inside workspace, got %s", first)
	}
	if got := len(strings.TrimSuffix(filepath.Base(first), ".jpg")); got != 16 {
		t.Errorf("Expected 16 random characters, got %d", got)
	}
}

func TestJoinStaysInsideWorkspace(t *testing.T) {
	ws, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer ws.Delete()

	if got := ws.Join("../../etc/passwd"); got != filepath.Join(ws.Path(), "passwd") {
		t.Errorf("Expected join to strip directories, got %s", got)
	}
}
