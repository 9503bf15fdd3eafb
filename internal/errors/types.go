// Package errors defines the structured error taxonomy used by the build
// pipeline. A BuildError always names its category so the orchestrator can
// tell a malformed compiler configuration from a failed external process or
// an exhausted declaration fallback chain.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeProcess      ErrorType = "process"
	ErrorTypeDeclaration  ErrorType = "declaration"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeInternal     ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeConfigNotFound      = "ERR_CONFIG_NOT_FOUND"
	ErrCodeConfigEmpty         = "ERR_CONFIG_EMPTY"
	ErrCodeConfigMalformed     = "ERR_CONFIG_MALFORMED"
	ErrCodeConfigMissing       = "ERR_CONFIG_MISSING"
	ErrCodeProcessFailed       = "ERR_PROCESS_FAILED"
	ErrCodeInvalidCommand      = "ERR_INVALID_COMMAND"
	ErrCodeDeclarationsMissing = "ERR_DECLARATIONS_MISSING"
	ErrCodeMaterialize         = "ERR_MATERIALIZE"
	ErrCodeInvalidPath         = "ERR_INVALID_PATH"
	ErrCodeValidationFailed    = "ERR_VALIDATION_FAILED"
	ErrCodeInternalError       = "ERR_INTERNAL"
)

// BuildError is a structured error type with context.
type BuildError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Builder     string
	FilePath    string
	Suggestions []ErrorSuggestion
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Builder != "" {
		parts = append(parts, "builder:"+e.Builder)
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is matches another BuildError with the same type and code.
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *BuildError) WithContext(key string, value interface{}) *BuildError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the file the error refers to.
func (e *BuildError) WithPath(path string) *BuildError {
	e.FilePath = path

	return e
}

// WithBuilder records the builder that raised the error.
func (e *BuildError) WithBuilder(name string) *BuildError {
	e.Builder = name

	return e
}

// WithSuggestions attaches remediation steps.
func (e *BuildError) WithSuggestions(suggestions ...ErrorSuggestion) *BuildError {
	e.Suggestions = append(e.Suggestions, suggestions...)

	return e
}

// NewConfigError creates a malformed-configuration error.
func NewConfigError(code, message string, cause error) *BuildError {
	return &BuildError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPreconditionError creates an error raised before any artifact exists.
func NewPreconditionError(code, message string) *BuildError {
	return &BuildError{
		Type:    ErrorTypePrecondition,
		Code:    code,
		Message: message,
	}
}

// NewProcessError creates an external process failure.
func NewProcessError(message string, cause error) *BuildError {
	return &BuildError{
		Type:    ErrorTypeProcess,
		Code:    ErrCodeProcessFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewDeclarationError creates the terminal error of the declaration chain.
func NewDeclarationError(message string) *BuildError {
	return &BuildError{
		Type:    ErrorTypeDeclaration,
		Code:    ErrCodeDeclarationsMissing,
		Message: message,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *BuildError {
	return &BuildError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *BuildError {
	return &BuildError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err is a BuildError of the given type.
func IsType(err error, errType ErrorType) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Type == errType
	}

	return false
}

// IsConfigError checks if an error stems from a malformed configuration.
func IsConfigError(err error) bool {
	return IsType(err, ErrorTypeConfig)
}

// IsProcessError checks if an error stems from an external process.
func IsProcessError(err error) bool {
	return IsType(err, ErrorTypeProcess)
}

// IsFatal reports whether err should stop the pipeline. Validation warnings
// are advisory; everything else, including non-BuildErrors, is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var be *BuildError
	if errors.As(err, &be) {
		return be.Type != ErrorTypeValidation
	}

	return true
}
