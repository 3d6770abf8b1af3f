package tessera

import (
	"errors"
	"fmt"
)

// Standard sentinel errors.
var (
	// ErrNotFound is returned when a requested model definition does
	// not exist in the metadata registry. Callers treat it as "deny /
	// no dependency" rather than propagate it.
	ErrNotFound = errors.New("tessera: model not found")

	// ErrConfig is returned for malformed policy, metadata, or
	// planner-override configuration. Configuration errors surface at
	// build/load time, never at per-record resolution time.
	ErrConfig = errors.New("tessera: invalid configuration")
)

// NotFoundError represents a failed model-metadata lookup.
type NotFoundError struct {
	model string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tessera: model %q not found", e.model)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(err, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Model returns the model name that was looked up.
func (e *NotFoundError) Model() string { return e.model }

// NewNotFoundError returns a new NotFoundError for the given model name.
func NewNotFoundError(model string) *NotFoundError {
	return &NotFoundError{model: model}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConfigError represents malformed configuration: an uninterpretable
// scope spec, an invalid planner-override literal, or an invalid
// policy or metadata document.
type ConfigError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	if e.wrap != nil {
		return fmt.Sprintf("tessera: %s: %v", e.msg, e.wrap)
	}
	return fmt.Sprintf("tessera: %s", e.msg)
}

// Is reports whether the target error matches ConfigError.
// This allows errors.Is(err, ErrConfig) to return true.
func (e *ConfigError) Is(err error) bool {
	return err == ErrConfig
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.wrap }

// NewConfigError returns a new ConfigError with the given message.
func NewConfigError(format string, a ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, a...)}
}

// WrapConfigError returns a new ConfigError wrapping the given error.
func WrapConfigError(err error, format string, a ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, a...), wrap: err}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e) || errors.Is(err, ErrConfig)
}
