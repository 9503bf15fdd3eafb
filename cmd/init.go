package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pkgbuild/internal/config"
	"github.com/conneroisu/pkgbuild/internal/plugins/builtin"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a default .pkgbuild.yml",
	Long: `Write a .pkgbuild.yml holding the default configuration into the
given directory, or the current one.

Examples:
  pkgbuild init                       # Configure the current package
  pkgbuild init packages/core         # Configure another package
  pkgbuild init --builders types      # Start from a single builder
  pkgbuild init --force               # Overwrite an existing file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initForce    bool
	initBuilders []string
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file")
	initCmd.Flags().StringSliceVarP(&initBuilders, "builders", "b", nil, "Builders to enable (default "+fmt.Sprint(builtin.DefaultOrder)+")")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if len(initBuilders) > 0 {
		cfg.Pipeline.Builders = initBuilders
	}
	if result := config.Validate(cfg); result.HasErrors() {
		return fmt.Errorf("invalid configuration: %w", result.Err())
	}

	if err := cfg.Write(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %s\n", path)
	return nil
}
