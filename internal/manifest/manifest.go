// Package manifest expands dependency manifests into the files they
// reference, so a manifest listed as an injection source stands for all of
// its dependencies' main files.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Dependency is one resolved dependency and its files, in injection order.
type Dependency struct {
	Name  string   `json:"name" yaml:"name"`
	Files []string `json:"files" yaml:"files"`
}

// Expander resolves one manifest format.
type Expander interface {
	// Name is the tag prefix given to expanded files, without the colon.
	Name() string
	// Matches reports whether path is a manifest this expander understands.
	Matches(path string) bool
	// Expand returns the manifest's dependencies, dependencies first.
	Expand(path string) ([]Dependency, error)
}

// Files is the read access an expander needs.
type Files interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	// Glob returns the files matching pattern, which may use **.
	Glob(pattern string) ([]string, error)
}

// OSFiles reads the local disk.
type OSFiles struct{}

// Exists reports whether path exists.
func (OSFiles) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads the whole file.
func (OSFiles) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Glob matches pattern against the disk.
func (OSFiles) Glob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern)
}

// Find returns the first expander matching path, or nil.
func Find(expanders []Expander, path string) Expander {
	for _, e := range expanders {
		if e.Matches(path) {
			return e
		}
	}

	return nil
}

// Flatten concatenates the files of every dependency in order.
func Flatten(deps []Dependency) []string {
	var files []string
	for _, dep := range deps {
		files = append(files, dep.Files...)
	}

	return files
}

func baseIs(path, name string) bool {
	return filepath.Base(filepath.FromSlash(path)) == name
}
