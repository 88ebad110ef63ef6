package cmd

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/injector/internal/config"
	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/injector"
	"github.com/conneroisu/injector/internal/inspect"
)

var checkCmd = &cobra.Command{
	Use:     "check [target...]",
	Aliases: []string{"c"},
	Short:   "Inspect templates for marker problems",
	Long: `Inspect the template of every configured target, or only the named ones,
and report marker problems:

  unterminated    a start marker with no end marker after it
  orphan-end      an end marker that closes no region
  overlapping     a start marker inside another region's body
  unused-region   a region no source file maps to
  missing-region  source files whose tag has no region in the template

The first three are errors; the rest are warnings and only fail with --strict.

Examples:
  injector check                 # Check every target
  injector check app --strict    # Fail on warnings too
  injector check -o json         # Machine-readable report`,
	RunE: runCheck,
}

var (
	checkFormat *string
	checkStrict bool
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkFormat = AddOutputFlag(checkCmd)
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Treat warnings as failures")
}

// checkReport is the inspection outcome of one target.
type checkReport struct {
	Target         string `json:"target" yaml:"target"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
	inspect.Report `yaml:",inline"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	cfg, targets, err := targetsFor(ctx, cmd, args, nil, logger)
	if err != nil {
		printSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	for _, w := range config.ValidateConfigWithDetails(cfg).Warnings {
		logger.Warn(ctx, nil, w.Message, "field", w.Field)
	}

	fs := injector.OSFileSystem{}
	inj := injector.New(injector.WithLogger(logger), injector.WithDryRun(true))

	reports := make([]checkReport, 0, len(targets))
	var failures, warnings int
	for _, target := range targets {
		rep := checkReport{Target: target.Name}

		res, err := inj.Run(ctx, target)
		if err != nil {
			rep.Error = err.Error()
			failures++
			reports = append(reports, rep)
			continue
		}

		text, err := fs.ReadFile(res.Template)
		if err != nil {
			rep.Error = err.Error()
			failures++
			reports = append(reports, rep)
			continue
		}

		scanned := inspect.Scan(string(text), inspect.Options{
			StartTag: cmp.Or(target.Options.StartTag, injector.DefaultStartTag),
			EndTag:   cmp.Or(target.Options.EndTag, injector.DefaultEndTag),
			HTML:     inspect.IsHTML(res.Template),
		})
		keys := make([]string, 0, len(res.Tags))
		for _, tag := range res.Tags {
			keys = append(keys, tag.Key)
		}
		scanned.CheckKeys(keys)
		scanned.Template = res.Template

		for _, p := range scanned.Problems {
			if p.Severity == inspect.SeverityError {
				failures++
			} else {
				warnings++
			}
		}

		rep.Report = *scanned
		reports = append(reports, rep)
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(*checkFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(reports)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		err = encoder.Encode(reports)
		_ = encoder.Close()
	default:
		err = outputCheckTable(out, reports)
	}
	if err != nil {
		return err
	}

	if failures > 0 || (checkStrict && warnings > 0) {
		return errors.NewValidationError(fmt.Sprintf("%d error(s), %d warning(s) found", failures, warnings))
	}

	return nil
}

func outputCheckTable(w io.Writer, reports []checkReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TARGET\tTEMPLATE\tSEVERITY\tLINE\tKIND\tMESSAGE")

	for _, rep := range reports {
		if rep.Error != "" {
			fmt.Fprintf(tw, "%s\t%s\terror\t-\t-\t%s\n", rep.Target, cmp.Or(rep.Template, "-"), rep.Error)
			continue
		}
		if len(rep.Problems) == 0 {
			fmt.Fprintf(tw, "%s\t%s\tok\t-\t-\t%d regions\n", rep.Target, rep.Template, len(rep.Regions))
			continue
		}
		for _, p := range rep.Problems {
			line := "-"
			if p.Line > 0 {
				line = fmt.Sprint(p.Line)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", rep.Target, rep.Template, p.Severity, line, p.Kind, p.Message)
		}
	}

	return nil
}
