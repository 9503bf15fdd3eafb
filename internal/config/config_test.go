package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pkgbuild/internal/plugins/builtin"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults",
			setup: func() { viper.Reset() },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "custom package layout",
			setup: func() {
				viper.Reset()
				viper.Set("package.out", "build")
				viper.Set("package.src", "lib")
				viper.Set("package.extensions", []string{".ts"})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "build", cfg.Package.Out)
				assert.Equal(t, "lib", cfg.Package.Src)
				assert.Equal(t, []string{".ts"}, cfg.Package.Extensions)
				assert.Equal(t, DefaultExclude, cfg.Package.Exclude)
			},
		},
		{
			name: "builders from a comma separated override",
			setup: func() {
				viper.Reset()
				viper.Set("pipeline.builders", "types,deno")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"types", "deno"}, cfg.Pipeline.Builders)
			},
		},
		{
			name: "explicitly empty exclude list",
			setup: func() {
				viper.Reset()
				viper.Set("package.exclude", []string{})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Package.Exclude)
			},
		},
		{
			name: "unknown builder",
			setup: func() {
				viper.Reset()
				viper.Set("pipeline.builders", []string{"types", "babel"})
			},
			expectError: "unknown builder 'babel'",
		},
		{
			name: "empty out dir",
			setup: func() {
				viper.Reset()
				viper.Set("package.out", "")
			},
			expectError: "output directory cannot be empty",
		},
		{
			name: "traversal in src",
			setup: func() {
				viper.Reset()
				viper.Set("package.src", "../other/src")
			},
			expectError: "path traversal detected",
		},
		{
			name: "non-positive debounce",
			setup: func() {
				viper.Reset()
				viper.Set("watch.debounce", "0s")
			},
			expectError: "debounce must be positive",
		},
		{
			name: "invalid viper config",
			setup: func() {
				viper.Reset()
				viper.Set("watch.debounce", "soon")
			},
			expectError: "debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			t.Cleanup(viper.Reset)

			cfg, err := Load()

			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFrom_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
package:
  out: dist
  exclude: ["**/*.stories.ts"]
pipeline:
  builders: [types, standard-pkg]
  options:
    types:
      tsconfig: tsconfig.build.json
    standard-pkg:
      lint: false
watch:
  debounce: 1s
log_level: debug
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "dist", cfg.Package.Out)
	assert.Equal(t, []string{"**/*.stories.ts"}, cfg.Package.Exclude)
	assert.Equal(t, []string{"types", "standard-pkg"}, cfg.Pipeline.Builders)
	assert.Equal(t, "tsconfig.build.json", cfg.BuilderConfig("types")["tsconfig"])
	assert.Equal(t, false, cfg.BuilderConfig("standard-pkg")["lint"])
	assert.Empty(t, cfg.BuilderConfig("deno"))
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, DefaultIgnore, cfg.Watch.Ignore)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFrom_EnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("package:\n  out: dist\n"), 0o644))
	t.Setenv("PKGBUILD_PACKAGE_OUT", "from-env")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Package.Out)
}

func TestBindEnv_WithoutFile(t *testing.T) {
	t.Setenv("PKGBUILD_PACKAGE_SRC", "lib")
	t.Setenv("PKGBUILD_WATCH_DEBOUNCE", "2s")
	t.Setenv("PKGBUILD_PIPELINE_BUILDERS", "types,deno")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	require.NoError(t, BindEnv(v))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "lib", cfg.Package.Src)
	assert.Equal(t, DefaultOut, cfg.Package.Out)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, []string{"types", "deno"}, cfg.Pipeline.Builders)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	original := Default()
	original.Pipeline.Options["types"] = BuilderOptions{"tsconfig": "tsconfig.build.json"}
	require.NoError(t, original.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# pkgbuild configuration."))
	assert.Contains(t, string(data), "debounce: 300ms")

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	loaded, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, original.Package, loaded.Package)
	assert.Equal(t, original.Pipeline.Builders, loaded.Pipeline.Builders)
	assert.Equal(t, "tsconfig.build.json", loaded.BuilderConfig("types")["tsconfig"])
	assert.Equal(t, original.Watch, loaded.Watch)
}

func TestValidate(t *testing.T) {
	t.Run("default is valid", func(t *testing.T) {
		result := Validate(Default())
		assert.True(t, result.Valid)
		assert.False(t, result.HasErrors())
		assert.False(t, result.HasWarnings())
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := Default()
		cfg.Package.Out = "."
		cfg.Package.Src = "/abs/src"
		cfg.Package.Extensions = []string{"ts"}
		cfg.Package.Exclude = []string{"[unclosed"}
		cfg.Pipeline.Builders = []string{"types", "types"}
		cfg.Watch.Debounce = -time.Second
		cfg.LogLevel = "loud"
		cfg.LogFormat = "xml"

		result := Validate(cfg)
		require.False(t, result.Valid)

		fields := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			fields = append(fields, e.Field)
		}
		assert.ElementsMatch(t, []string{
			"package.out",
			"package.src",
			"package.extensions[0]",
			"package.exclude[0]",
			"pipeline.builders[1]",
			"watch.debounce",
			"log_level",
			"log_format",
		}, fields)

		out := result.String()
		assert.Contains(t, out, "❌ Validation Errors:")
		assert.Contains(t, out, "builder 'types' listed twice")
		assert.Contains(t, result.Err().Error(), "validation error in watch.debounce")
	})

	t.Run("options for an unused builder warn", func(t *testing.T) {
		cfg := Default()
		cfg.Pipeline.Builders = []string{builtin.TypesName}
		cfg.Pipeline.Options["deno"] = BuilderOptions{"x": 1}

		result := Validate(cfg)
		assert.True(t, result.Valid)
		require.True(t, result.HasWarnings())
		assert.Equal(t, "pipeline.options.deno", result.Warnings[0].Field)
		assert.Contains(t, result.String(), "⚠️  Validation Warnings:")
	})
}

func TestBuilderConfigIsACopy(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Options["types"] = BuilderOptions{"tsconfig": "a.json"}

	opts := cfg.BuilderConfig("types")
	opts["tsconfig"] = "b.json"

	assert.Equal(t, "a.json", cfg.Pipeline.Options["types"]["tsconfig"])
}
