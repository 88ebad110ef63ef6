// Package cmd provides the command-line interface for injector with
// configuration drawn from several sources.
//
// Configuration System:
//
//	Values are resolved with clear precedence:
//	1. Command-line flags (--config, --sort, etc.) - highest priority
//	2. INJECTOR_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (INJECTOR_OPTIONS_MIN, etc.)
//	4. Configuration file (.injector.yml) - lowest priority
//
// Environment Variables:
//
//	INJECTOR_CONFIG_FILE: Path to custom configuration file
//	INJECTOR_OPTIONS_MIN: Prefer minified files
//	INJECTOR_OPTIONS_SORT: Entry order (none, asc, desc, natural, length)
//	INJECTOR_LOG_LEVEL: Log level
//	And the rest of the options following the INJECTOR_OPTIONS_<OPTION> pattern
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/injector/internal/config"
	"github.com/conneroisu/injector/internal/errors"
	"github.com/conneroisu/injector/internal/logging"
)

var (
	cfgFile string

	// configErr holds a config file read failure until a command needs the
	// configuration.
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "injector",
	Short: "Inject script, stylesheet and import references into HTML templates",
	Long: `Injector rewrites marker-delimited regions of a template with references
to the files matched by a set of source patterns.

A region looks like this; its body is replaced on every run:

  <!-- injector:js -->
  <script src="/app.js"></script>
  <!-- endinjector -->

Quick Start:
  injector run                                  Inject every configured target
  injector run --src 'src/**/*.js' --dest index.html
  injector list                                 Show what would be injected
  injector check                                Inspect templates for marker problems
  injector watch --livereload :35729            Re-inject on change and reload browsers

Configuration is read from .injector.yml, INJECTOR_ environment variables and flags.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .injector.yml, can also use INJECTOR_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	bindLogFlags()

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", func(level string) error {
		_, err := logging.ParseLevel(level)
		return err
	})
	AddFlagValidation(rootCmd.PersistentFlags(), "log-format", func(format string) error {
		return ValidateChoice("log format", format, []string{"text", "json"})
	})
}

func bindLogFlags() {
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system with support for multiple
// config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. INJECTOR_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .injector.yml in current directory
//
// A missing default file is not an error; every target can then come from
// flags. An explicitly named file that cannot be read is reported when a
// command loads the configuration.
func initConfig() {
	configErr = nil

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("INJECTOR_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".injector")
	}

	// INJECTOR_OPTIONS_MIN, INJECTOR_OPTIONS_IGNORE_PATH, INJECTOR_LOG_LEVEL
	viper.SetEnvPrefix("INJECTOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			configErr = errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot read config file").
				WithFile(viper.ConfigFileUsed()).
				WithContext("cause", err.Error())
		}
	}
}

// newLogger builds the command logger from the log flags. Logs go to the
// command's error stream.
func newLogger(cmd *cobra.Command) (logging.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: viper.GetString("log.format"),
		Output: cmd.ErrOrStderr(),
	}).WithComponent("cli"), nil
}

// loadConfig reads and validates the configuration.
func loadConfig(ctx context.Context, logger logging.Logger) (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug(ctx, "Using config file", "path", used)
	}

	return cfg, nil
}

// printSuggestions writes fix hints for the known error codes in err.
func printSuggestions(w io.Writer, err error) {
	suggestions := errors.Suggest(err)
	if len(suggestions) == 0 {
		return
	}

	fmt.Fprintln(w, "\nSuggestions:")
	for _, s := range suggestions {
		fmt.Fprintf(w, "  • %s\n", s.Title)
		if s.Description != "" {
			fmt.Fprintf(w, "    %s\n", s.Description)
		}
		if s.Command != "" {
			fmt.Fprintf(w, "    $ %s\n", s.Command)
		}
		if s.Example != "" {
			for _, line := range strings.Split(s.Example, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}
