package cmd

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/injector/internal/config"
	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/injector"
	"github.com/conneroisu/injector/internal/livereload"
	"github.com/conneroisu/injector/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [target...]",
	Aliases: []string{"w"},
	Short:   "Re-inject targets whenever templates or sources change",
	Long: `Run the targets once, then watch their templates, source directories and
manifests and run them again after every change. New files matching a source
glob are picked up on the next run.

With --livereload, browsers connected through a LiveReload extension or the
/livereload.js script reload after each destination is written.

Examples:
  injector watch                          # Watch every target
  injector watch app --livereload         # Live reload on :35729
  injector watch --livereload :9000       # Live reload on another port
  injector watch -s 'src/**/*.js' -d index.html`,
	RunE: runWatch,
}

var (
	watchTargetFlags *TargetFlags
	watchLiveReload  string
	watchDebounce    time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchTargetFlags = AddTargetFlags(watchCmd)
	watchCmd.Flags().StringVar(&watchLiveReload, "livereload", "", "Serve live reload on this address")
	watchCmd.Flags().Lookup("livereload").NoOptDefVal = livereload.DefaultAddr
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Wait this long for changes to settle")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	cfg, targets, err := targetsFor(ctx, cmd, args, watchTargetFlags, logger)
	if err != nil {
		printSuggestions(cmd.ErrOrStderr(), err)
		return err
	}
	// The ad-hoc configuration holds only its own target.
	names := args
	if watchTargetFlags.AdHoc(cmd) {
		names = nil
	}
	selected, err := cfg.Select(names)
	if err != nil {
		return err
	}

	var hub *livereload.Hub
	if watchLiveReload != "" {
		ln, err := net.Listen("tcp", watchLiveReload)
		if err != nil {
			return fmt.Errorf("failed to start live reload on %s: %w", watchLiveReload, err)
		}
		hub = livereload.NewHub(logger)
		go func() {
			if err := hub.Serve(ctx, ln); err != nil {
				logger.Error(ctx, err, "Live reload server failed", "addr", watchLiveReload)
			}
		}()
	}

	fileWatcher, err := watcher.NewFileWatcher(watchDebounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	files, patterns, destinations := watchSet(targets, selected)
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.NoEditorTempFilter)
	fileWatcher.AddFilter(watcher.MatchFilter(files, patterns))
	fileWatcher.AddFilter(func(path string) bool {
		abs, err := filepath.Abs(path)
		return err != nil || !destinations[abs]
	})

	inj := injector.New(injector.WithLogger(logger))
	run := func(ctx context.Context) {
		current, err := cfg.Resolve(names)
		if err != nil {
			errors.NewErrorHandler(logger).Handle(ctx, err)
			return
		}

		results, err := inj.RunAll(ctx, current)
		printResults(cmd.OutOrStdout(), results)
		if err != nil {
			errors.NewErrorHandler(logger).Handle(ctx, err)
		}
		if hub != nil {
			for _, res := range results {
				if res.Written {
					hub.Notify(ctx, "/"+filepath.ToSlash(res.Destination))
				}
			}
		}
	}

	fileWatcher.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, event := range events {
			logger.Debug(ctx, "File changed", "type", event.Type.String(), "path", event.Path)
		}
		logger.Info(ctx, "Changes detected, running targets", "files", len(events))
		run(ctx)
		return nil
	})

	roots, recursive := watcher.Roots(files, patterns)
	for _, root := range roots {
		add := fileWatcher.AddPath
		if recursive[root] {
			add = fileWatcher.AddRecursive
		}
		if err := add(root); err != nil {
			logger.Warn(ctx, err, "Cannot watch path", "path", root)
		}
	}

	run(ctx)

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	logger.Info(ctx, "Watching for changes (Ctrl+C to stop)", "paths", len(fileWatcher.WatchList()))

	<-ctx.Done()
	logger.Info(ctx, "Stopping file watcher")

	return nil
}

// watchSet returns what a change can affect: the templates and resolved
// source files, the source patterns, and the destinations that are not also
// templates. Writing those must not trigger another run.
func watchSet(
	targets []injector.Target,
	selected []config.TargetConfig,
) (files, patterns []string, destinations map[string]bool) {
	templates := make(map[string]bool)
	destinations = make(map[string]bool)

	for _, t := range targets {
		dest := cmp.Or(t.Options.DestFile, t.Dest)
		template := cmp.Or(t.Options.Template, dest)
		files = append(files, template)
		files = append(files, t.Sources...)

		if abs, err := filepath.Abs(template); err == nil {
			templates[abs] = true
		}
		if abs, err := filepath.Abs(dest); err == nil {
			destinations[abs] = true
		}
	}
	for _, tc := range selected {
		patterns = append(patterns, tc.Src...)
	}

	for dest := range destinations {
		if templates[dest] {
			delete(destinations, dest)
		}
	}

	slices.Sort(files)
	return slices.Compact(files), patterns, destinations
}
