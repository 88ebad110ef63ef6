package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/injector/internal/injector"
)

var listCmd = &cobra.Command{
	Use:     "list [target...]",
	Aliases: []string{"l"},
	Short:   "Show the tags and files each target would inject",
	Long: `Dry-run every configured target, or only the named ones, and print the tags
found for each with the files that would be injected. Nothing is written.

Examples:
  injector list                    # List all targets in table format
  injector list app -o json        # One target as JSON
  injector list -o yaml            # Output as YAML
  injector list -s 'src/*.js' -d index.html`,
	RunE: runList,
}

var (
	listTargetFlags *TargetFlags
	listFormat      *string
)

func init() {
	rootCmd.AddCommand(listCmd)

	listTargetFlags = AddTargetFlags(listCmd)
	listFormat = AddOutputFlag(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	_, targets, err := targetsFor(ctx, cmd, args, listTargetFlags, logger)
	if err != nil {
		printSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	inj := injector.New(injector.WithLogger(logger), injector.WithDryRun(true))
	results, runErr := inj.RunAll(ctx, targets)

	out := cmd.OutOrStdout()
	switch strings.ToLower(*listFormat) {
	case "json":
		err = outputListJSON(out, results)
	case "yaml":
		err = outputListYAML(out, results)
	default:
		err = outputListTable(out, results)
	}
	if err != nil {
		return err
	}

	return reportFailures(ctx, cmd, logger, runErr, len(targets)-len(results))
}

func outputListJSON(w io.Writer, results []*injector.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func outputListYAML(w io.Writer, results []*injector.Result) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(results)
}

func outputListTable(w io.Writer, results []*injector.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TARGET\tTAG\tREGIONS\tFILE\tRENDERED")
	fmt.Fprintln(tw, strings.Repeat("-", 6)+"\t"+strings.Repeat("-", 3)+"\t"+strings.Repeat("-", 7)+
		"\t"+strings.Repeat("-", 4)+"\t"+strings.Repeat("-", 8))

	files := 0
	for _, res := range results {
		if len(res.Tags) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\n", res.Target)
			continue
		}
		for _, tag := range res.Tags {
			for _, entry := range tag.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					res.Target, tag.Key, tag.Regions, entry.OriginalPath, entry.Rendered)
				files++
			}
		}
	}

	fmt.Fprintf(tw, "\nTotal: %d targets, %d files\n", len(results), files)

	return nil
}
