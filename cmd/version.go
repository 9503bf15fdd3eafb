package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pkgbuild/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the pkgbuild version, the commit it was built from, the Go
version and the target platform.

Examples:
  pkgbuild version                # Show version
  pkgbuild version --short        # Version only
  pkgbuild version --detailed     # One line per field
  pkgbuild version --format json  # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
	AddFlagValidation(versionCmd, "format", func(format string) error {
		return ValidateFormat(format, []string{"text", "json"})
	})
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch {
	case versionFormat == "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			version.Info
			IsRelease bool `json:"is_release"`
		}{info, info.IsRelease()})
	case versionShort:
		fmt.Fprintln(out, info.Short())
	case versionDetailed:
		fmt.Fprintln(out, info.Detailed())
	default:
		fmt.Fprintf(out, "pkgbuild %s\n", info.Short())
		fmt.Fprintf(out, "Go: %s\nPlatform: %s\n", info.GoVersion, info.Platform)
	}
	return nil
}
