package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/injector/internal/config"
	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/injector"
	"github.com/conneroisu/injector/internal/logging"
)

var runCmd = &cobra.Command{
	Use:     "run [target...]",
	Aliases: []string{"r"},
	Short:   "Inject source references into target templates",
	Long: `Run every configured target, or only the named ones, rewriting each marker
region of the template with one reference per matching source file.

Without a configuration file a single target can be given with flags. The
option flags (--min, --sort, --ignore-path, --starttag, --endtag) apply to
that target and are merged over the configured global options. Given without
--template, --dest or --src they are rejected.

Examples:
  injector run                                   # Run every target
  injector run app admin                         # Run two targets
  injector run --dry-run                         # Show what would change
  injector run -s 'src/**/*.js' -s '!src/**/*.spec.js' -d dist/index.html -t src/index.html`,
	RunE: runRun,
}

var (
	runTargetFlags *TargetFlags
	runDryRun      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runTargetFlags = AddTargetFlags(runCmd)
	runCmd.Flags().BoolVarP(&runDryRun, "dry-run", "n", false, "Compute results without writing destinations")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	_, targets, err := targetsFor(ctx, cmd, args, runTargetFlags, logger)
	if err != nil {
		printSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	inj := injector.New(injector.WithLogger(logger), injector.WithDryRun(runDryRun))
	results, err := inj.RunAll(ctx, targets)
	printResults(cmd.OutOrStdout(), results)

	return reportFailures(ctx, cmd, logger, err, len(targets)-len(results))
}

// targetsFor resolves the targets a command works on: the ad-hoc target
// when target flags were given, otherwise the named (or all) configured
// targets.
func targetsFor(
	ctx context.Context,
	cmd *cobra.Command,
	args []string,
	tf *TargetFlags,
	logger logging.Logger,
) (*config.Config, []injector.Target, error) {
	cfg, err := loadConfig(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	if tf != nil && !tf.AdHoc(cmd) {
		if changed := tf.ChangedOptions(cmd); len(changed) > 0 {
			return nil, nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				strings.Join(changed, ", ")+" only apply with --template, --dest or --src").
				WithContext("hint", "set options for configured targets in .injector.yml")
		}
	}

	if tf != nil && tf.AdHoc(cmd) {
		if len(args) > 0 {
			return nil, nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				"target names cannot be combined with --template, --dest or --src")
		}

		builder := config.NewTargetBuilder(config.AdHocTarget).
			WithGlobalOptions(cfg.Options).
			WithTemplate(tf.Template).
			WithSources(tf.Src...).
			WithDest(tf.Dest).
			WithMarkers(tf.StartTag, tf.EndTag)
		if cmd.Flags().Changed("min") {
			builder.WithMin(tf.Min)
		}
		if len(tf.IgnorePath) > 0 {
			builder.WithIgnorePath(tf.IgnorePath...)
		}
		if tf.Sort != "" {
			builder.WithSort(tf.Sort)
		}

		if cfg, err = builder.Build(); err != nil {
			return nil, nil, err
		}
		logger.Debug(ctx, "Using ad-hoc target", "sources", len(tf.Src), "dest", tf.Dest)
	}

	targets, err := cfg.Resolve(args)
	if err != nil {
		return nil, nil, err
	}
	if len(targets) == 0 {
		return nil, nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "no targets configured").
			WithContext("hint", "add targets to .injector.yml or pass --src and --dest")
	}

	return cfg, targets, nil
}

// reportFailures logs every joined failure and returns a summary error, or
// nil when nothing failed.
func reportFailures(ctx context.Context, cmd *cobra.Command, logger logging.Logger, err error, failed int) error {
	if err == nil {
		return nil
	}

	errors.NewErrorHandler(logger).Handle(ctx, err)
	printSuggestions(cmd.ErrOrStderr(), err)
	if failed <= 0 {
		return err
	}

	return fmt.Errorf("%d target(s) failed", failed)
}

func printResults(w io.Writer, results []*injector.Result) {
	for _, res := range results {
		files := 0
		for _, tag := range res.Tags {
			files += len(tag.Entries)
		}

		switch {
		case res.Written && res.DryRun:
			fmt.Fprintf(w, "%s: would write %s (%d tags, %d files)\n", res.Target, res.Destination, len(res.Tags), files)
		case res.Written:
			fmt.Fprintf(w, "%s: wrote %s (%d tags, %d files)\n", res.Target, res.Destination, len(res.Tags), files)
		default:
			fmt.Fprintf(w, "%s: %s unchanged\n", res.Target, res.Destination)
		}
	}
}
