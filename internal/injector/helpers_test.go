package injector

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/stretchr/testify/require"
)

// memFS is an in-memory FileSystem that counts writes.
type memFS struct {
	files  map[string]string
	writes map[string]int
}

func newMemFS(files map[string]string) *memFS {
	if files == nil {
		files = make(map[string]string)
	}

	return &memFS{files: files, writes: make(map[string]int)}
}

func (m *memFS) Exists(path string) bool {
	_, ok := m.files[path]
	return ok
}

func (m *memFS) ReadFile(path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}

	return []byte(content), nil
}

func (m *memFS) Glob(pattern string) ([]string, error) {
	var matches []string
	for path := range m.files {
		ok, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, path)
		}
	}
	slices.Sort(matches)

	return matches, nil
}

func (m *memFS) WriteFile(path string, data []byte) error {
	m.files[path] = string(data)
	m.writes[path]++

	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
