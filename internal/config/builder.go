package config

import (
	"fmt"
)

// AdHocTarget is the name given to a target assembled from flags.
const AdHocTarget = "cli"

// TargetBuilder provides a fluent interface for assembling a single-target
// configuration, as the run command does from flags.
//
// Usage:
//
//	cfg, err := config.NewTargetBuilder(config.AdHocTarget).
//	    WithSources("src/**/*.js").
//	    WithDest("dist/index.html").
//	    WithSort("natural").
//	    Build()
type TargetBuilder struct {
	global     OptionsConfig
	target     TargetConfig
	validators []ValidatorFunc
}

// ValidatorFunc represents a configuration validation function
type ValidatorFunc func(*Config) error

// NewTargetBuilder creates a builder for a target called name.
func NewTargetBuilder(name string) *TargetBuilder {
	return &TargetBuilder{target: TargetConfig{Name: name}}
}

// WithGlobalOptions sets the options the target's own options are merged
// over, usually the loaded configuration's.
func (tb *TargetBuilder) WithGlobalOptions(opts OptionsConfig) *TargetBuilder {
	tb.global = opts
	return tb
}

// WithTemplate sets the template read instead of the destination.
func (tb *TargetBuilder) WithTemplate(path string) *TargetBuilder {
	tb.target.Template = path
	return tb
}

// WithSources appends source patterns.
func (tb *TargetBuilder) WithSources(patterns ...string) *TargetBuilder {
	tb.target.Src = append(tb.target.Src, patterns...)
	return tb
}

// WithDest sets the destination.
func (tb *TargetBuilder) WithDest(path string) *TargetBuilder {
	tb.target.Dest = path
	return tb
}

// WithMin prefers minified variants.
func (tb *TargetBuilder) WithMin(minified bool) *TargetBuilder {
	tb.target.Options.Min = &minified
	return tb
}

// WithIgnorePath appends base paths stripped from rendered paths.
func (tb *TargetBuilder) WithIgnorePath(paths ...string) *TargetBuilder {
	tb.target.Options.IgnorePath = append(tb.target.Options.IgnorePath, paths...)
	return tb
}

// WithSort sets the named comparator.
func (tb *TargetBuilder) WithSort(name string) *TargetBuilder {
	tb.target.Options.Sort = name
	return tb
}

// WithMarkers sets the start and end marker patterns. Empty values keep the
// inherited ones.
func (tb *TargetBuilder) WithMarkers(start, end string) *TargetBuilder {
	tb.target.Options.StartTag = start
	tb.target.Options.EndTag = end
	return tb
}

// WithTransform adds a format string for one extension.
func (tb *TargetBuilder) WithTransform(ext, format string) *TargetBuilder {
	if tb.target.Options.Transform == nil {
		tb.target.Options.Transform = make(map[string]string)
	}
	tb.target.Options.Transform[ext] = format
	return tb
}

// AddValidator adds a custom validation function
func (tb *TargetBuilder) AddValidator(validator ValidatorFunc) *TargetBuilder {
	tb.validators = append(tb.validators, validator)
	return tb
}

// Build creates the configuration after applying all settings and validations
func (tb *TargetBuilder) Build() (*Config, error) {
	cfg := &Config{
		Options: tb.global,
		Targets: []TargetConfig{tb.target},
	}

	for _, validator := range tb.validators {
		if err := validator(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
