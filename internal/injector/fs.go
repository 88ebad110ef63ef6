package injector

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/conneroisu/injector/internal/manifest"
)

// FileSystem is the storage the injector reads templates, sources and
// manifests from and writes destinations to.
type FileSystem interface {
	manifest.Files
	WriteFile(path string, data []byte) error
}

// OSFileSystem is a FileSystem backed by the local disk. Writes go through a
// temporary file and rename so a destination is never left half written.
type OSFileSystem struct {
	manifest.OSFiles
}

// WriteFile creates missing parent directories and atomically replaces path.
func (OSFileSystem) WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
