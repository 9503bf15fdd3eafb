package errors

import (
	"errors"
	"strings"
)

// Wrap wraps an error with additional context, creating a BuildError if the
// input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *BuildError {
	if err == nil {
		return nil
	}

	wrapped := &BuildError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}

	var be *BuildError
	if errors.As(err, &be) {
		wrapped.Builder = be.Builder
		wrapped.FilePath = be.FilePath
		wrapped.Context = be.Context
	}

	return wrapped
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *BuildError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *BuildError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapBuilder attributes err to a builder without changing its category.
// Errors that are not BuildErrors become internal errors.
func WrapBuilder(err error, builder string) error {
	if err == nil {
		return nil
	}

	var be *BuildError
	if errors.As(err, &be) {
		if be.Builder == "" {
			be.Builder = builder
		}
		return err
	}

	return &BuildError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: "builder failed",
		Cause:   err,
		Builder: builder,
	}
}

// FormatErrorWithSuggestions renders err and, when it is a BuildError with
// remediation steps, the steps underneath.
func FormatErrorWithSuggestions(err error) string {
	if err == nil {
		return ""
	}

	var be *BuildError
	if errors.As(err, &be) && len(be.Suggestions) > 0 {
		return FormatSuggestions(err.Error(), be.Suggestions)
	}

	return err.Error()
}

// CollectErrors filters out nil errors
func CollectErrors(errs ...error) []error {
	var result []error
	for _, err := range errs {
		if err != nil {
			result = append(result, err)
		}
	}
	return result
}

// CombineErrors joins non-nil errors into one, or returns nil.
func CombineErrors(errs ...error) error {
	collected := CollectErrors(errs...)
	switch len(collected) {
	case 0:
		return nil
	case 1:
		return collected[0]
	default:
		return &MultiError{Errors: collected}
	}
}

// MultiError aggregates several errors, one per line.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
