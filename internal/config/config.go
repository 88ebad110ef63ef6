// Package config provides configuration management for the injector using
// Viper for loading from files, environment variables, and command-line
// flags.
//
// A configuration holds global injection options and a list of targets. Each
// target's own options are merged over the global ones, so a target only
// states what differs. Environment overrides use the INJECTOR_ prefix
// (INJECTOR_OPTIONS_MIN=true, INJECTOR_OPTIONS_SORT=natural).
package config

import (
	"fmt"
	"maps"
	"slices"

	"dario.cat/mergo"
	"github.com/spf13/viper"

	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/injector"
)

type Config struct {
	Options OptionsConfig  `mapstructure:"options" yaml:"options"`
	Targets []TargetConfig `mapstructure:"targets" yaml:"targets"`
}

// OptionsConfig is the configuration form of injector.Options. Min is a
// pointer so a target can switch it off when the global options switch it on.
type OptionsConfig struct {
	Min        *bool             `mapstructure:"min" yaml:"min,omitempty"`
	Template   string            `mapstructure:"template" yaml:"template,omitempty"`
	StartTag   string            `mapstructure:"starttag" yaml:"starttag,omitempty"`
	EndTag     string            `mapstructure:"endtag" yaml:"endtag,omitempty"`
	Transform  map[string]string `mapstructure:"transform" yaml:"transform,omitempty"`
	IgnorePath []string          `mapstructure:"ignore_path" yaml:"ignore_path,omitempty"`
	Sort       string            `mapstructure:"sort" yaml:"sort,omitempty"`
	DestFile   string            `mapstructure:"dest_file" yaml:"dest_file,omitempty"`
}

type TargetConfig struct {
	Name     string        `mapstructure:"name" yaml:"name"`
	Template string        `mapstructure:"template" yaml:"template,omitempty"`
	Src      []string      `mapstructure:"src" yaml:"src"`
	Dest     string        `mapstructure:"dest" yaml:"dest"`
	Options  OptionsConfig `mapstructure:"options" yaml:"options,omitempty"`
}

// SetDefaults registers the option defaults on v. Keys with a default are
// also the keys Viper resolves from INJECTOR_ environment variables.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("options.min", false)
	v.SetDefault("options.template", "")
	v.SetDefault("options.starttag", injector.DefaultStartTag)
	v.SetDefault("options.endtag", injector.DefaultEndTag)
	v.SetDefault("options.ignore_path", []string{})
	v.SetDefault("options.sort", injector.SortNone)
	v.SetDefault("options.dest_file", "")
}

// Load reads the configuration from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot decode configuration").
			WithContext("cause", err.Error())
	}

	// Viper keeps environment values as strings; slices need re-reading.
	if v.IsSet("options.ignore_path") && len(config.Options.IgnorePath) == 0 {
		config.Options.IgnorePath = v.GetStringSlice("options.ignore_path")
	}
	if v.IsSet("options.min") {
		minified := v.GetBool("options.min")
		config.Options.Min = &minified
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Names lists the configured target names in order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		names = append(names, t.Name)
	}

	return names
}

// Select returns the named targets in the order given, or every target when
// names is empty.
func (c *Config) Select(names []string) ([]TargetConfig, error) {
	if len(names) == 0 {
		return c.Targets, nil
	}

	selected := make([]TargetConfig, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(c.Targets, func(t TargetConfig) bool { return t.Name == name })
		if i < 0 {
			return nil, errors.ErrTargetNotFound(name).
				WithContext("available", c.Names())
		}
		selected = append(selected, c.Targets[i])
	}

	return selected, nil
}

// Effective returns the target's options with the global options filled in
// underneath. Target values win; maps are merged key by key.
func (c *Config) Effective(t TargetConfig) (OptionsConfig, error) {
	opts := t.Options
	if opts.Transform != nil {
		opts.Transform = maps.Clone(opts.Transform)
	}

	if err := mergo.Merge(&opts, c.Options, mergo.WithoutDereference); err != nil {
		return OptionsConfig{}, fmt.Errorf("merging options for target %s: %w", t.Name, err)
	}
	if t.Template != "" {
		opts.Template = t.Template
	}

	return opts, nil
}

// Resolve turns the named targets (all when names is empty) into runnable
// injector targets, expanding source patterns against the working directory.
func (c *Config) Resolve(names []string) ([]injector.Target, error) {
	selected, err := c.Select(names)
	if err != nil {
		return nil, err
	}

	targets := make([]injector.Target, 0, len(selected))
	for _, tc := range selected {
		opts, err := c.Effective(tc)
		if err != nil {
			return nil, err
		}

		target, err := buildTarget(tc, opts)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}

	return targets, nil
}

func buildTarget(tc TargetConfig, opts OptionsConfig) (injector.Target, error) {
	injOpts, err := opts.ToOptions()
	if err != nil {
		return injector.Target{}, fmt.Errorf("target %s: %w", tc.Name, err)
	}

	sources, err := injector.ExpandSources(tc.Src)
	if err != nil {
		return injector.Target{}, errors.NewSourceError(errors.ErrCodeSourcePattern, err.Error()).
			WithTarget(tc.Name)
	}

	return injector.Target{
		Name:    tc.Name,
		Sources: sources,
		Dest:    tc.Dest,
		Options: injOpts,
	}, nil
}

// ToOptions converts configuration values into injector options.
func (o OptionsConfig) ToOptions() (injector.Options, error) {
	cmp, err := injector.ComparatorByName(o.Sort)
	if err != nil {
		return injector.Options{}, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error()).
			WithContext("sort", o.Sort)
	}

	transform := injector.DefaultTransform
	if len(o.Transform) > 0 {
		transform = injector.TemplateTransform(o.Transform)
	}

	return injector.Options{
		Min:        o.Min != nil && *o.Min,
		Template:   o.Template,
		StartTag:   o.StartTag,
		EndTag:     o.EndTag,
		Transform:  transform,
		IgnorePath: o.IgnorePath,
		Sort:       cmp,
		DestFile:   o.DestFile,
	}, nil
}
