package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/injector/internal/injector"
)

// Output formats shared by list and check.
var outputFormats = []string{"table", "json", "yaml"}

// TargetFlags are the ad-hoc target flags of the run command
type TargetFlags struct {
	Template   string
	Dest       string
	Src        []string
	Min        bool
	IgnorePath []string
	Sort       string
	StartTag   string
	EndTag     string
}

// AddTargetFlags adds the flags that describe a target on the command line.
func AddTargetFlags(cmd *cobra.Command) *TargetFlags {
	flags := &TargetFlags{}

	cmd.Flags().StringVarP(&flags.Template, "template", "t", "", "Template read instead of the destination")
	cmd.Flags().StringVarP(&flags.Dest, "dest", "d", "", "Destination file")
	cmd.Flags().StringArrayVarP(&flags.Src, "src", "s", nil, "Source pattern, repeatable (globs, ** and !negation)")
	cmd.Flags().BoolVar(&flags.Min, "min", false, "Prefer name.min.ext when it exists")
	cmd.Flags().StringArrayVar(&flags.IgnorePath, "ignore-path", nil, "Base path stripped from rendered paths, repeatable")
	cmd.Flags().StringVar(&flags.Sort, "sort", "", "Entry order (none, asc, desc, natural, length)")
	cmd.Flags().StringVar(&flags.StartTag, "starttag", "", "Start marker pattern containing {{ext}}")
	cmd.Flags().StringVar(&flags.EndTag, "endtag", "", "End marker pattern")

	AddFlagValidation(cmd.Flags(), "sort", func(name string) error {
		if name == "" {
			return nil
		}
		return ValidateChoice("sort", name, injector.SortNames)
	})

	return flags
}

// AdHoc reports whether any flag that defines a target was given.
func (f *TargetFlags) AdHoc(cmd *cobra.Command) bool {
	for _, name := range []string{"template", "dest", "src"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}

	return false
}

// optionFlags are the target flags that only shape the ad-hoc target.
var optionFlags = []string{"min", "ignore-path", "sort", "starttag", "endtag"}

// ChangedOptions returns the option flags that were given, as --name.
func (f *TargetFlags) ChangedOptions(cmd *cobra.Command) []string {
	var changed []string
	for _, name := range optionFlags {
		if cmd.Flags().Changed(name) {
			changed = append(changed, "--"+name)
		}
	}

	return changed
}

// AddOutputFlag adds --output with format validation and returns its target.
func AddOutputFlag(cmd *cobra.Command) *string {
	var format string
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format (table|json|yaml)")
	AddFlagValidation(cmd.Flags(), "output", func(value string) error {
		return ValidateChoice("output format", value, outputFormats)
	})

	return &format
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}

	// Store original value setter
	originalSet := flag.Value.Set

	// Create wrapper that validates
	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: originalSet,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidateChoice checks value against the allowed values, case-insensitively.
func ValidateChoice(what, value string, allowed []string) error {
	if slices.Contains(allowed, strings.ToLower(value)) {
		return nil
	}

	return fmt.Errorf("invalid %s %q, must be one of: %s", what, value, strings.Join(allowed, ", "))
}
