// Package injector rewrites marker-delimited regions of a template with
// references to a set of source files.
//
// A run groups source files into tags by extension (or by manifest prefix and
// extension), finds each tag's start/end marker pair in the template and
// replaces the region body with one rendered line per file, keeping the
// marker's indentation. Everything outside the regions is left untouched,
// and running again over the output with the same files is a no-op.
//
// Basic usage:
//
//	inj := injector.New(injector.WithLogger(logger))
//	res, err := inj.Run(ctx, injector.Target{
//		Name:    "app",
//		Sources: []string{"js/app.js", "css/site.css"},
//		Dest:    "index.html",
//		Options: injector.DefaultOptions(),
//	})
package injector

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"

	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/logging"
	"github.com/conneroisu/injector/internal/manifest"
)

// Default marker patterns.
const (
	DefaultStartTag = "<!-- injector:{{ext}} -->"
	DefaultEndTag   = "<!-- endinjector -->"
)

// Options control how a target is injected.
type Options struct {
	// Min prefers name.min.ext over name.ext when it exists.
	Min bool
	// Template is read instead of the destination when set.
	Template string
	// StartTag and EndTag are marker patterns containing {{ext}}.
	StartTag string
	EndTag   string
	// Transform renders a normalized path. Nil means DefaultTransform.
	Transform Transform
	// IgnorePath prefixes are stripped from rendered paths, in order.
	IgnorePath []string
	// Sort reorders each tag's entries by original path. Nil keeps
	// discovery order.
	Sort Comparator
	// DestFile overrides the target destination and, without Template,
	// is also the template.
	DestFile string
}

// DefaultOptions returns the default marker patterns and transform.
func DefaultOptions() Options {
	return Options{
		StartTag:  DefaultStartTag,
		EndTag:    DefaultEndTag,
		Transform: DefaultTransform,
	}
}

func (o Options) withDefaults() Options {
	if o.StartTag == "" {
		o.StartTag = DefaultStartTag
	}
	if o.EndTag == "" {
		o.EndTag = DefaultEndTag
	}
	if o.Transform == nil {
		o.Transform = DefaultTransform
	}

	return o
}

// Target is one template/destination pair and the files injected into it.
type Target struct {
	Name string
	// Sources is the resolved file list in discovery order.
	Sources []string
	Dest    string
	Options Options
}

// TagSummary describes what was injected for one tag.
type TagSummary struct {
	Key         string        `json:"key" yaml:"key"`
	StartMarker string        `json:"start_marker" yaml:"start_marker"`
	EndMarker   string        `json:"end_marker" yaml:"end_marker"`
	Regions     int           `json:"regions" yaml:"regions"`
	Entries     []SourceEntry `json:"entries" yaml:"entries"`
}

// Result is the outcome of one target run.
type Result struct {
	Target      string       `json:"target" yaml:"target"`
	Template    string       `json:"template" yaml:"template"`
	Destination string       `json:"destination" yaml:"destination"`
	Tags        []TagSummary `json:"tags" yaml:"tags"`
	Warnings    []string     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	// Changed is true when the injected text differs from the template.
	Changed bool `json:"changed" yaml:"changed"`
	// Written is true when the destination was (or, in a dry run, would
	// have been) written.
	Written bool `json:"written" yaml:"written"`
	DryRun  bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	// Content is the final document.
	Content string `json:"-" yaml:"-"`
}

// Injector runs targets. It holds no per-run state and can be reused.
type Injector struct {
	fs        FileSystem
	logger    logging.Logger
	expanders []manifest.Expander
	dryRun    bool
}

// Option configures an Injector.
type Option func(*Injector)

// WithFileSystem replaces the local disk.
func WithFileSystem(fs FileSystem) Option {
	return func(in *Injector) { in.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(in *Injector) { in.logger = logger }
}

// WithExpanders sets the manifest expanders consulted for every source file.
func WithExpanders(expanders ...manifest.Expander) Option {
	return func(in *Injector) { in.expanders = expanders }
}

// WithDryRun computes results without writing destinations.
func WithDryRun(dryRun bool) Option {
	return func(in *Injector) { in.dryRun = dryRun }
}

// New creates an Injector. By default it uses the local disk, discards logs
// and expands bower.json manifests read from the same file system.
func New(opts ...Option) *Injector {
	in := &Injector{fs: OSFileSystem{}}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = logging.NewNopLogger()
	}
	if in.expanders == nil {
		in.expanders = []manifest.Expander{manifest.NewBowerExpander(in.logger, manifest.WithFiles(in.fs))}
	}
	in.logger = in.logger.WithComponent("injector")

	return in
}

// RunAll runs every target. A failing target does not stop the others; all
// failures are returned joined, next to the results of the targets that
// succeeded.
func (in *Injector) RunAll(ctx context.Context, targets []Target) ([]*Result, error) {
	results := make([]*Result, 0, len(targets))
	var errs []error

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := in.Run(ctx, target)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}

	return results, stderrors.Join(errs...)
}

// Run injects a single target.
func (in *Injector) Run(ctx context.Context, target Target) (*Result, error) {
	opts := target.Options.withDefaults()
	logger := in.logger.With("target", target.Name)
	perf := logging.StartOperation(logger, "inject")
	defer perf.End(ctx)

	destination := target.Dest
	if opts.DestFile != "" {
		destination = opts.DestFile
	}
	if destination == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "no destination configured").
			WithTarget(target.Name)
	}

	templatePath := opts.Template
	if templatePath == "" {
		logger.Warn(ctx, nil, "Missing option template, using destination as template", "destination", destination)
		templatePath = destination
	}

	if !in.fs.Exists(templatePath) {
		return nil, errors.ErrTemplateNotFound(templatePath).WithTarget(target.Name)
	}

	raw, err := in.fs.ReadFile(templatePath)
	if err != nil {
		return nil, errors.NewTemplateError(errors.ErrCodeTemplateRead, "cannot read template", err).
			WithTarget(target.Name).
			WithFile(templatePath)
	}
	original := string(raw)

	res := &Result{
		Target:      target.Name,
		Template:    templatePath,
		Destination: destination,
		DryRun:      in.dryRun,
	}

	registry := NewRegistry(opts.StartTag, opts.EndTag, opts.Sort)
	if err := in.collect(ctx, logger, target, opts, registry, res); err != nil {
		return nil, err
	}

	content := original
	for _, tag := range registry.Tags() {
		var regions int
		content, regions = Rewrite(content, tag)
		if regions > 0 {
			logger.Info(ctx, "Injecting files", "tag", tag.Key, "count", len(tag.Entries))
		} else {
			logger.Debug(ctx, "No region found for tag", "tag", tag.Key, "start_marker", tag.StartMarker)
		}
		res.Tags = append(res.Tags, TagSummary{
			Key:         tag.Key,
			StartMarker: tag.StartMarker,
			EndMarker:   tag.EndMarker,
			Regions:     regions,
			Entries:     tag.Entries,
		})
	}

	res.Content = content
	res.Changed = content != original

	if !res.Changed && in.fs.Exists(destination) {
		logger.Info(ctx, "Nothing changed", "destination", destination)
		return res, nil
	}

	res.Written = true
	if in.dryRun {
		logger.Info(ctx, "Dry run, destination not written", "destination", destination)
		return res, nil
	}

	if err := in.fs.WriteFile(destination, []byte(content)); err != nil {
		return nil, errors.ErrWriteFailed(destination, err).WithTarget(target.Name)
	}
	logger.Info(ctx, "Destination written", "destination", destination)

	return res, nil
}

// collect feeds every source file through normalization and rendering into
// the registry.
func (in *Injector) collect(
	ctx context.Context,
	logger logging.Logger,
	target Target,
	opts Options,
	registry *Registry,
	res *Result,
) error {
	for _, src := range target.Sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !in.fs.Exists(src) {
			warning := errors.ErrSourceNotFound(src).WithTarget(target.Name)
			logger.Warn(ctx, warning, "Source file not found", "source", src)
			res.Warnings = append(res.Warnings, warning.Message)
			continue
		}

		expander := manifest.Find(in.expanders, src)
		if expander == nil {
			in.add(ctx, logger, registry, res, opts, "", src, opts.IgnorePath)
			continue
		}

		deps, err := expander.Expand(src)
		if err != nil {
			return fmt.Errorf("target %s: %w", target.Name, err)
		}

		bases := append(append([]string{}, opts.IgnorePath...), filepath.ToSlash(filepath.Dir(src)))
		prefix := expander.Name() + ":"
		for _, file := range manifest.Flatten(deps) {
			in.add(ctx, logger, registry, res, opts, prefix, file, bases)
		}
	}

	return nil
}

func (in *Injector) add(
	ctx context.Context,
	logger logging.Logger,
	registry *Registry,
	res *Result,
	opts Options,
	prefix, file string,
	bases []string,
) {
	normalized := NormalizePath(file, opts.Min, bases, in.fs)

	rendered, ok := opts.Transform(normalized)
	if !ok {
		warning := errors.ErrTransformUnknown(file, prefix+extensionOf(file)).WithTarget(res.Target)
		logger.Warn(ctx, warning, "No transform for file", "source", file)
		res.Warnings = append(res.Warnings, warning.Message)
		return
	}

	registry.Add(prefix, file, normalized, rendered)
}
