package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/pkgbuild/internal/errors"
	"github.com/conneroisu/pkgbuild/internal/logging"
	"github.com/conneroisu/pkgbuild/internal/plugins/builtin"
	"github.com/conneroisu/pkgbuild/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Err combines the errors into one, or returns nil.
func (vr *ValidationResult) Err() error {
	errs := make([]error, 0, len(vr.Errors))
	for i := range vr.Errors {
		errs = append(errs, &vr.Errors[i])
	}
	return errors.CombineErrors(errs...)
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// Validate checks every section of config.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validatePackageConfig(&config.Package, result)
	validatePipelineConfig(&config.Pipeline, result)
	validateWatchConfig(&config.Watch, result)

	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log_level",
			Value:       config.LogLevel,
			Message:     err.Error(),
			Suggestions: []string{"Use one of debug, info, warn, error"},
		})
	}
	if config.LogFormat != "" && config.LogFormat != "text" && config.LogFormat != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log_format",
			Value:       config.LogFormat,
			Message:     fmt.Sprintf("unknown log format %q", config.LogFormat),
			Suggestions: []string{"Use 'text' or 'json'"},
		})
	}

	result.Valid = !result.HasErrors()
	return result
}

func validatePackageConfig(config *PackageConfig, result *ValidationResult) {
	if strings.TrimSpace(config.Out) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "package.out",
			Value:   config.Out,
			Message: "output directory cannot be empty",
			Suggestions: []string{
				"Use 'pkg' to build into ./pkg",
			},
		})
	} else if !filepath.IsAbs(config.Out) && filepath.Clean(config.Out) == "." {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "package.out",
			Value:   config.Out,
			Message: "output directory cannot be the package directory",
			Suggestions: []string{
				"Build into a subdirectory such as 'pkg'",
			},
		})
	}

	if err := validation.ValidatePath(config.Src); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "package.src",
			Value:   config.Src,
			Message: err.Error(),
			Suggestions: []string{
				"Use a path relative to the package directory, such as 'src'",
				"Avoid parent directory references (..)",
			},
		})
	}

	if err := validation.ValidatePath(config.Manifest); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "package.manifest",
			Value:   config.Manifest,
			Message: err.Error(),
		})
	}

	for i, ext := range config.Extensions {
		if err := validation.ValidateFileExtension(ext); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:       fmt.Sprintf("package.extensions[%d]", i),
				Value:       ext,
				Message:     err.Error(),
				Suggestions: []string{"Extensions start with a dot, for example '.ts'"},
			})
		}
	}

	for i, pattern := range config.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("package.exclude[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("malformed glob pattern: %v", doublestar.ErrBadPattern),
			})
		}
	}
}

func validatePipelineConfig(config *PipelineConfig, result *ValidationResult) {
	seen := make(map[string]bool)
	for i, name := range config.Builders {
		if !builtin.IsBuiltin(name) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("pipeline.builders[%d]", i),
				Value:   name,
				Message: fmt.Sprintf("unknown builder '%s'", name),
				Suggestions: []string{
					"Available builders: " + strings.Join(builtin.Names(), ", "),
				},
			})
			continue
		}
		if seen[name] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("pipeline.builders[%d]", i),
				Value:   name,
				Message: fmt.Sprintf("builder '%s' listed twice", name),
			})
		}
		seen[name] = true
	}

	for name := range config.Options {
		if !seen[name] {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "pipeline.options." + name,
				Value:   name,
				Message: fmt.Sprintf("options for '%s', which is not in pipeline.builders", name),
				Suggestions: []string{
					fmt.Sprintf("Add '%s' to pipeline.builders or remove its options", name),
				},
			})
		}
	}
}

func validateWatchConfig(config *WatchConfig, result *ValidationResult) {
	if config.Debounce <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce,
			Message: fmt.Sprintf("debounce must be positive, got %v", config.Debounce),
			Suggestions: []string{
				"Use a short duration such as '300ms'",
			},
		})
	}
}
