package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pkgbuild/internal/config"
	"github.com/conneroisu/pkgbuild/internal/plugins"
	"github.com/conneroisu/pkgbuild/internal/plugins/builtin"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the builtin builders",
	Long: `List the builtin builders with the lifecycle hooks they implement and
whether the current configuration runs them.

Examples:
  pkgbuild list                   # Table output
  pkgbuild list -f json           # Output as JSON
  pkgbuild list --format yaml     # Output as YAML`,
	RunE: runList,
}

var listFormat string

var listFormats = []string{"table", "json", "yaml"}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format ("+strings.Join(listFormats, "|")+")")
	AddFlagValidation(listCmd, "format", func(format string) error {
		return ValidateFormat(format, listFormats)
	})
}

// builderListing is one row of the list output.
type builderListing struct {
	plugins.PluginInfo `yaml:",inline"`
	DisplayName        string `json:"display_name" yaml:"display_name"`
	Position           int    `json:"position,omitempty" yaml:"position,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	listings, err := describeBuilders(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(listFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(listings)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(listings)
	case "table":
		return outputBuilderTable(out, listings)
	default:
		return fmt.Errorf("unsupported format: %s", listFormat)
	}
}

// describeBuilders lists every builtin builder, sorted by name. Position is
// the builder's 1-based place in the configured pipeline, 0 when unused.
func describeBuilders(cfg *config.Config) ([]builderListing, error) {
	position := make(map[string]int, len(cfg.Pipeline.Builders))
	for i, name := range cfg.Pipeline.Builders {
		position[name] = i + 1
	}

	title := cases.Title(language.English)
	var listings []builderListing
	for _, name := range builtin.Names() {
		builder, err := builtin.New(name)
		if err != nil {
			return nil, err
		}
		listings = append(listings, builderListing{
			PluginInfo:  plugins.Describe(builder),
			DisplayName: title.String(strings.ReplaceAll(name, "-", " ")),
			Position:    position[name],
		})
	}
	return listings, nil
}

func outputBuilderTable(out io.Writer, listings []builderListing) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NAME\tDISPLAY NAME\tHOOKS\tGATED\tORDER")
	fmt.Fprintln(w, "----\t------------\t-----\t-----\t-----")
	for _, l := range listings {
		order := "-"
		if l.Position > 0 {
			order = fmt.Sprint(l.Position)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			l.Name, l.DisplayName, strings.Join(l.Hooks, ","), l.Gated, order)
	}
	fmt.Fprintf(w, "\nTotal: %d builders\n", len(listings))

	return w.Flush()
}
