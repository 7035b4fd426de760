// Package generator selects the format driver able to turn a source file into
// an image the manipulation pipeline can process.
package generator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/simple-content-conversions/internal/conversion"
)

// Kind tags a driver variant
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindSVG   Kind = "svg"
	KindVideo Kind = "video"
)

// Driver converts a source format into an intermediate processable image
type Driver interface {
	// Kind returns the driver variant
	Kind() Kind

	// SupportedExtensions returns lower-case extensions without the dot
	SupportedExtensions() []string

	// SupportedMimetypes returns the mimetypes the driver accepts
	SupportedMimetypes() []string

	// RequirementsInstalled reports live whether the external toolchain is available
	RequirementsInstalled() bool

	// CanConvert reports whether the driver can process the file at path
	CanConvert(path string) bool

	// Convert produces the intermediate image for conv and returns its path
	Convert(ctx context.Context, path string, conv *conversion.Conversion) (string, error)
}

// canConvert implements the capability check shared by every driver: the file
// exists, the requirements are installed, and either the extension or the
// detected mimetype is supported.
func canConvert(d Driver, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	if !d.RequirementsInstalled() {
		return false
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, supported := range d.SupportedExtensions() {
		if ext != "" && ext == supported {
			return true
		}
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	for _, supported := range d.SupportedMimetypes() {
		if mime.Is(supported) {
			return true
		}
	}

	return false
}

// binaryInstalled reports whether the command can be found
func binaryInstalled(command string) bool {
	if strings.TrimSpace(command) == "" {
		return false
	}
	_, err := exec.LookPath(command)
	return err == nil
}

// commandRunner runs an external tool and returns its combined output
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// siblingPath returns a path next to path with a suffix and a new extension
func siblingPath(path, suffix, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix + "." + ext
}
