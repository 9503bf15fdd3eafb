// Package config provides configuration management for pkgbuild using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration lives in .pkgbuild.yml next to package.json. Every key
// can be overridden from the environment with the PKGBUILD_ prefix, for
// example PKGBUILD_PACKAGE_OUT=build. Load applies defaults for anything
// left unset and validates the result.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pkgbuild/internal/plugins/builtin"
)

// FileName is the configuration file looked up in the package directory.
const FileName = ".pkgbuild.yml"

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "PKGBUILD"

type Config struct {
	Package   PackageConfig  `mapstructure:"package" yaml:"package"`
	Pipeline  PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Watch     WatchConfig    `mapstructure:"watch" yaml:"watch"`
	LogLevel  string         `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string         `mapstructure:"log_format" yaml:"log_format"`
}

type PackageConfig struct {
	Out        string   `mapstructure:"out" yaml:"out"`
	Src        string   `mapstructure:"src" yaml:"src"`
	Manifest   string   `mapstructure:"manifest" yaml:"manifest"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`
}

type PipelineConfig struct {
	Builders []string                  `mapstructure:"builders" yaml:"builders"`
	Options  map[string]BuilderOptions `mapstructure:"options" yaml:"options,omitempty"`
}

// BuilderOptions is the options bag handed to one builder.
type BuilderOptions map[string]interface{}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

// MarshalYAML writes the debounce as a duration string such as "300ms".
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Debounce string   `yaml:"debounce"`
		Ignore   []string `yaml:"ignore"`
	}{w.Debounce.String(), w.Ignore}, nil
}

// Defaults.
const (
	DefaultOut      = "pkg"
	DefaultSrc      = "src"
	DefaultManifest = "package.json"
	DefaultDebounce = 300 * time.Millisecond
	DefaultLogLevel = "info"
)

var (
	DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs"}
	DefaultExclude    = []string{"**/*.test.*", "**/*.spec.*", "**/__tests__/**"}
	DefaultIgnore     = []string{"node_modules", ".git"}
)

// Default returns the configuration used when no file or override exists.
func Default() *Config {
	return &Config{
		Package: PackageConfig{
			Out:        DefaultOut,
			Src:        DefaultSrc,
			Manifest:   DefaultManifest,
			Extensions: append([]string(nil), DefaultExtensions...),
			Exclude:    append([]string(nil), DefaultExclude...),
		},
		Pipeline: PipelineConfig{
			Builders: append([]string(nil), builtin.DefaultOrder...),
			Options:  map[string]BuilderOptions{},
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
			Ignore:   append([]string(nil), DefaultIgnore...),
		},
		LogLevel:  DefaultLogLevel,
		LogFormat: "text",
	}
}

// Keys lists every configuration key, in viper's dotted form.
var Keys = []string{
	"package.out",
	"package.src",
	"package.manifest",
	"package.extensions",
	"package.exclude",
	"pipeline.builders",
	"watch.debounce",
	"watch.ignore",
	"log_level",
	"log_format",
}

// BindEnv binds every key to its PKGBUILD_ variable so overrides reach
// Unmarshal even when no configuration file mentions the key. v needs its
// env prefix and key replacer set first.
func BindEnv(v *viper.Viper) error {
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the configuration from the global viper instance, which the
// root command has pointed at the configuration file, environment and flags.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle slices set via viper from flags or env (workaround for viper slice handling)
	if v.IsSet("pipeline.builders") && len(config.Pipeline.Builders) == 0 {
		config.Pipeline.Builders = v.GetStringSlice("pipeline.builders")
	}
	if v.IsSet("package.extensions") && len(config.Package.Extensions) == 0 {
		config.Package.Extensions = v.GetStringSlice("package.extensions")
	}

	applyDefaults(&config, v)

	result := Validate(&config)
	if result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", result.Err())
	}

	return &config, nil
}

func applyDefaults(config *Config, v *viper.Viper) {
	defaults := Default()

	if config.Package.Out == "" && !v.IsSet("package.out") {
		config.Package.Out = defaults.Package.Out
	}
	if config.Package.Src == "" {
		config.Package.Src = defaults.Package.Src
	}
	if config.Package.Manifest == "" {
		config.Package.Manifest = defaults.Package.Manifest
	}
	if len(config.Package.Extensions) == 0 {
		config.Package.Extensions = defaults.Package.Extensions
	}
	if !v.IsSet("package.exclude") {
		config.Package.Exclude = defaults.Package.Exclude
	}

	if len(config.Pipeline.Builders) == 0 {
		config.Pipeline.Builders = defaults.Pipeline.Builders
	}
	if config.Pipeline.Options == nil {
		config.Pipeline.Options = make(map[string]BuilderOptions)
	}

	if !v.IsSet("watch.debounce") {
		config.Watch.Debounce = defaults.Watch.Debounce
	}
	if !v.IsSet("watch.ignore") {
		config.Watch.Ignore = defaults.Watch.Ignore
	}

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.LogFormat == "" {
		config.LogFormat = defaults.LogFormat
	}
}

// BuilderConfig returns the options bag for builder, never nil.
func (c *Config) BuilderConfig(builder string) map[string]interface{} {
	opts := c.Pipeline.Options[builder]
	out := make(map[string]interface{}, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}

// Write stores c as YAML at path.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	header := "# pkgbuild configuration. Every key can be overridden with a PKGBUILD_ environment variable.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}
