package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/pkgbuild/internal/config"
	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pkgbuild",
	Short: "Build npm packages through a pipeline of pluggable builders",
	Long: `pkgbuild builds a publishable package from a TypeScript or JavaScript
project by running a pipeline of builders over it.

Builders:
  standard-pkg   transpile with tsc into dist-src/ and lint the output
  types          produce dist-types/index.d.ts through a fallback chain
  deno           copy the sources into dist-deno/

Quick Start:
  pkgbuild init                   Write a default .pkgbuild.yml
  pkgbuild build                  Build into ./pkg
  pkgbuild watch                  Rebuild on source changes
  pkgbuild list                   Show the builtin builders`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints a failure with its remediation
// steps.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌ "+errors.FormatErrorWithSuggestions(err))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .pkgbuild.yml, can also use PKGBUILD_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points viper at the configuration file and the environment.
//
// Precedence, highest first: --config, PKGBUILD_CONFIG_FILE, then
// .pkgbuild.yml in the current directory. Every key can also be overridden
// with a PKGBUILD_<SECTION>_<KEY> variable, for example PKGBUILD_PACKAGE_OUT.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PKGBUILD_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.FileName, ".yml"))
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	// A missing file falls back to defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the structured logger described by cfg.
func newLogger(cfg *config.Config, out io.Writer) logging.Logger {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.LogFormat,
		Output:    out,
		Component: "pkgbuild",
	})
}
