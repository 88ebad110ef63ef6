package config

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/injector"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		writeIssues(&builder, vr.Errors)
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		writeIssues(&builder, vr.Warnings)
	}

	return builder.String()
}

func writeIssues(builder *strings.Builder, issues []ValidationError) {
	for _, issue := range issues {
		builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
		for _, suggestion := range issue.Suggestions {
			builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
		}
	}
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// Validate returns a CONFIG_INVALID error listing every validation error.
// Warnings are ignored here; see ValidateConfigWithDetails.
func (c *Config) Validate() error {
	result := ValidateConfigWithDetails(c)
	if !result.HasErrors() {
		return nil
	}

	var collection errors.ValidationErrorCollection
	for _, e := range result.Errors {
		collection.AddField(e.Field, e.Value, e.Message, e.Suggestions...)
	}

	return collection.ToInjectorError()
}

// ValidateConfigWithDetails performs validation of the global options and
// every target, with suggestions for each finding.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateOptionsDetails("options", &config.Options, result)

	seen := make(map[string]int)
	destinations := make(map[string]string)
	for i := range config.Targets {
		validateTargetDetails(config, i, seen, destinations, result)
	}

	result.Valid = !result.HasErrors()

	return result
}

func validateOptionsDetails(prefix string, opts *OptionsConfig, result *ValidationResult) {
	if opts.StartTag != "" && strings.TrimSpace(opts.StartTag) == "" {
		result.addError(prefix+".starttag", opts.StartTag, "start marker pattern is blank",
			"Remove the option to use "+injector.DefaultStartTag)
	}
	if opts.EndTag != "" && strings.TrimSpace(opts.EndTag) == "" {
		result.addError(prefix+".endtag", opts.EndTag, "end marker pattern is blank",
			"Remove the option to use "+injector.DefaultEndTag)
	}
	if strings.TrimSpace(opts.StartTag) != "" && !strings.Contains(opts.StartTag, injector.ExtPlaceholder) {
		result.addWarning(prefix+".starttag", opts.StartTag,
			"start marker has no "+injector.ExtPlaceholder+", every extension shares one region",
			"Use a pattern like <!-- injector:{{ext}} -->")
	}

	if _, err := injector.ComparatorByName(opts.Sort); err != nil {
		result.addError(prefix+".sort", opts.Sort, err.Error(),
			"Available sorts: "+strings.Join(injector.SortNames, ", "))
	}

	for i, base := range opts.IgnorePath {
		if base == "" {
			result.addWarning(fmt.Sprintf("%s.ignore_path[%d]", prefix, i), base, "empty ignore path has no effect")
		}
	}

	for _, ext := range slices.Sorted(maps.Keys(opts.Transform)) {
		format := opts.Transform[ext]
		if !strings.Contains(format, "{{path}}") {
			result.addWarning(fmt.Sprintf("%s.transform.%s", prefix, ext), format,
				"format does not reference {{path}}",
				"Every file with this extension renders the same line")
		}
	}
}

func validateTargetDetails(
	config *Config,
	i int,
	seen map[string]int,
	destinations map[string]string,
	result *ValidationResult,
) {
	target := &config.Targets[i]
	field := fmt.Sprintf("targets[%d]", i)

	if target.Name == "" {
		result.addError(field+".name", target.Name, "target has no name",
			"Targets are selected by name on the command line")
	} else if first, dup := seen[target.Name]; dup {
		result.addError(field+".name", target.Name,
			fmt.Sprintf("duplicate target name, first used by targets[%d]", first))
	} else {
		seen[target.Name] = i
	}

	validateOptionsDetails(field+".options", &target.Options, result)

	destination := target.Dest
	if destFile := cmp.Or(target.Options.DestFile, config.Options.DestFile); destFile != "" {
		destination = destFile
	}
	if destination == "" {
		result.addError(field+".dest", target.Dest, "target has no destination",
			"Set dest, or options.dest_file")
	} else if other, dup := destinations[destination]; dup {
		result.addWarning(field+".dest", destination, "destination is also written by target "+other)
	} else {
		destinations[destination] = target.Name
	}

	if len(target.Src) == 0 {
		result.addWarning(field+".src", target.Src, "no sources, regions will be emptied")
	} else if slices.ContainsFunc(target.Src, func(s string) bool { return s == "!" || s == "" }) {
		result.addWarning(field+".src", target.Src, "empty source pattern is ignored")
	}
}
