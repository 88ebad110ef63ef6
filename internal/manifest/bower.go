package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/logging"
)

const (
	bowerManifest      = "bower.json"
	bowerRC            = ".bowerrc"
	defaultBowerFolder = "bower_components"
)

// componentManifests are tried in order inside a component directory.
var componentManifests = []string{".bower.json", bowerManifest, "package.json"}

// BowerExpander resolves bower.json files against their installed
// components directory.
type BowerExpander struct {
	logger logging.Logger
	files  Files
}

// BowerOption configures a BowerExpander.
type BowerOption func(*BowerExpander)

// WithFiles reads manifests and components from files instead of the disk.
func WithFiles(files Files) BowerOption {
	return func(b *BowerExpander) { b.files = files }
}

// NewBowerExpander creates an expander that reports skipped components to
// logger.
func NewBowerExpander(logger logging.Logger, opts ...BowerOption) *BowerExpander {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	b := &BowerExpander{
		logger: logger.WithComponent("bower"),
		files:  OSFiles{},
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Name implements Expander.
func (b *BowerExpander) Name() string { return "bower" }

// Matches implements Expander.
func (b *BowerExpander) Matches(path string) bool { return baseIs(path, bowerManifest) }

// Expand implements Expander. Dependencies are visited depth first in
// declaration order, so every component follows the components it depends
// on. Components that are not installed or declare no main file are logged
// and skipped.
func (b *BowerExpander) Expand(path string) ([]Dependency, error) {
	data, err := b.files.ReadFile(path)
	if err != nil {
		return nil, errors.NewManifestError(errors.ErrCodeManifestInvalid, "cannot read manifest", err).WithFile(path)
	}

	root, err := parseBowerConfig(data)
	if err != nil {
		return nil, errors.NewManifestError(errors.ErrCodeManifestInvalid, "cannot parse manifest", err).WithFile(path)
	}

	r := &bowerResolver{
		expander:  b,
		dir:       b.componentsDir(filepath.Dir(path)),
		overrides: root.Overrides,
		state:     make(map[string]visitState),
	}
	for _, name := range root.Dependencies {
		r.visit(name)
	}

	return r.deps, nil
}

// componentsDir honours the directory setting of a .bowerrc next to the
// manifest.
func (b *BowerExpander) componentsDir(base string) string {
	dir := defaultBowerFolder

	if data, err := b.files.ReadFile(filepath.Join(base, bowerRC)); err == nil {
		var rc struct {
			Directory string `yaml:"directory"`
		}
		if err := yaml.Unmarshal(data, &rc); err == nil && rc.Directory != "" {
			dir = rc.Directory
		}
	}

	if filepath.IsAbs(dir) {
		return dir
	}

	return filepath.Join(base, dir)
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

type bowerResolver struct {
	expander  *BowerExpander
	dir       string
	overrides map[string]bowerOverride
	state     map[string]visitState
	deps      []Dependency
}

func (r *bowerResolver) visit(name string) {
	if r.state[name] != unvisited {
		return
	}
	r.state[name] = visiting
	defer func() { r.state[name] = visited }()

	ctx := context.Background()
	componentDir := filepath.Join(r.dir, name)

	cfg, err := r.load(componentDir)
	if err != nil {
		r.expander.logger.Warn(ctx, err, "Skipping bower component", "dependency", name)
		return
	}

	if override, ok := r.overrides[name]; ok {
		if override.Main != nil {
			cfg.Main = override.Main
		}
		if override.Dependencies != nil {
			cfg.Dependencies = override.Dependencies
		}
	}

	for _, dep := range cfg.Dependencies {
		r.visit(dep)
	}

	files := r.mainFiles(componentDir, cfg.Main)
	if len(files) == 0 {
		r.expander.logger.Warn(ctx, nil, "Bower component has no main file", "dependency", name)
		return
	}

	r.deps = append(r.deps, Dependency{Name: name, Files: files})
}

func (r *bowerResolver) load(componentDir string) (*bowerConfig, error) {
	for _, name := range componentManifests {
		data, err := r.expander.files.ReadFile(filepath.Join(componentDir, name))
		if err != nil {
			continue
		}

		return parseBowerConfig(data)
	}

	return nil, fmt.Errorf("component not installed in %s", componentDir)
}

func (r *bowerResolver) mainFiles(componentDir string, mains []string) []string {
	var files []string
	for _, main := range mains {
		p := filepath.Join(componentDir, filepath.FromSlash(main))
		if strings.ContainsAny(main, "*?[{") {
			matches, err := r.expander.files.Glob(p)
			if err == nil {
				files = append(files, matches...)
			}
			continue
		}
		if r.expander.files.Exists(p) {
			files = append(files, p)
		}
	}

	return files
}

type bowerOverride struct {
	Main         []string
	Dependencies []string
}

type bowerConfig struct {
	Main         []string
	Dependencies []string
	Overrides    map[string]bowerOverride
}

// parseBowerConfig reads a bower.json document. JSON is decoded through the
// YAML node tree so dependency declaration order survives.
func parseBowerConfig(data []byte) (*bowerConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	cfg := &bowerConfig{Overrides: make(map[string]bowerOverride)}
	if len(doc.Content) == 0 {
		return cfg, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected an object at top level, found %s", kindName(root.Kind))
	}

	for key, value := range mappingPairs(root) {
		switch key {
		case "main":
			cfg.Main = stringList(value)
		case "dependencies":
			cfg.Dependencies = mappingKeys(value)
		case "overrides":
			for name, node := range mappingPairs(value) {
				var o bowerOverride
				for field, v := range mappingPairs(node) {
					switch field {
					case "main":
						o.Main = stringList(v)
					case "dependencies":
						o.Dependencies = mappingKeys(v)
						if o.Dependencies == nil {
							o.Dependencies = []string{}
						}
					}
				}
				cfg.Overrides[name] = o
			}
		}
	}

	return cfg, nil
}

// mappingPairs iterates a mapping node's key/value pairs in document order.
// Non-mapping nodes yield nothing.
func mappingPairs(node *yaml.Node) func(yield func(string, *yaml.Node) bool) {
	return func(yield func(string, *yaml.Node) bool) {
		if node == nil || node.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			if !yield(node.Content[i].Value, node.Content[i+1]) {
				return
			}
		}
	}
}

func mappingKeys(node *yaml.Node) []string {
	var keys []string
	for key := range mappingPairs(node) {
		keys = append(keys, key)
	}

	return keys
}

// stringList accepts a scalar or a sequence of scalars.
func stringList(node *yaml.Node) []string {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return nil
		}
		return []string{node.Value}
	case yaml.SequenceNode:
		var out []string
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode && item.Value != "" {
				out = append(out, item.Value)
			}
		}
		return out
	default:
		return nil
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "array"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "unknown node"
	}
}
