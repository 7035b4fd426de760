// Package workspace provides temporary directories owned by a single
// pipeline run.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is a temporary directory removed by Delete
type Workspace struct {
	path string
}

// Acquire creates a new, exclusively owned directory under base. An empty base
// uses the system temp directory.
func Acquire(base string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace base directory: %w", err)
	}

	dir, err := os.MkdirTemp(base, "conversion-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return &Workspace{path: dir}, nil
}

// Path returns the workspace directory
func (w *Workspace) Path() string {
	return w.path
}

// Join returns a path inside the workspace
func (w *Workspace) Join(name string) string {
	return filepath.Join(w.path, filepath.Base(name))
}

// RandomName returns a fresh path inside the workspace with the given extension
func (w *Workspace) RandomName(extension string) string {
	name := RandomString(16)
	if ext := strings.TrimPrefix(extension, "."); ext != "" {
		name += "." + ext
	}
	return filepath.Join(w.path, name)
}

// Delete removes the workspace and everything in it
func (w *Workspace) Delete() error {
	if w == nil || w.path == "" {
		return nil
	}
	if err := os.RemoveAll(w.path); err != nil {
		return fmt.Errorf("failed to delete workspace %s: %w", w.path, err)
	}
	return nil
}

// RandomString returns n random hex characters (n <= 32)
func RandomString(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > 0 && n < len(s) {
		return s[:n]
	}
	return s
}
