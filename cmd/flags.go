package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BuildFlags are shared by the commands that run the pipeline.
type BuildFlags struct {
	Out      string
	Clean    bool
	Builders []string
}

// buildBindings maps BuildFlags onto configuration keys.
var buildBindings = map[string]string{
	"out":      "package.out",
	"builders": "pipeline.builders",
}

// AddBuildFlags registers --out, --clean and --builders on cmd.
func AddBuildFlags(cmd *cobra.Command) *BuildFlags {
	flags := &BuildFlags{}
	cmd.Flags().StringVarP(&flags.Out, "out", "o", "", "Output directory (default \"pkg\")")
	cmd.Flags().BoolVar(&flags.Clean, "clean", false, "Remove the output directory before building")
	cmd.Flags().StringSliceVarP(&flags.Builders, "builders", "b", nil, "Builders to run, in order (e.g. types,deno)")
	return flags
}

// SetViperBindings binds cmd's flags to configuration keys. Binding happens
// when the command runs, so two commands sharing a flag name do not steal
// each other's binding on the global viper instance.
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", flagName, err)
		}
	}
	return nil
}

// AddFlagValidation validates every value assigned to flagName.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormat accepts one of formats, case-insensitively.
func ValidateFormat(format string, formats []string) error {
	for _, f := range formats {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(formats, ", "))
}
