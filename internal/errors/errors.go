// Package errors provides structured error types and exit codes for smoketest.
package errors

import (
	"fmt"

	"github.com/vvdec/smoketest/pkg/smoketest"
)

// Exit codes returned by the harness.
const (
	ExitSuccess          = smoketest.ExitSuccess
	ExitRuntimeError     = smoketest.ExitFailure
	ExitConfigError      = smoketest.ExitConfigError
	ExitEnvironmentError = smoketest.ExitEnvError
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindNotFound
	KindValidation
	KindEnvironment
)

// HarnessError is the base error type for smoketest.
type HarnessError struct {
	Kind    ErrorKind
	Message string
	Build   string // Build key if applicable
	Phase   string // Phase name (cmake, make, run) if applicable
	Cause   error  // Underlying error
}

func (e *HarnessError) Error() string {
	msg := e.Message
	if e.Cause != nil && msg == "" {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Build != "" && e.Phase != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Build, e.Phase, msg)
	}
	if e.Build != "" {
		return fmt.Sprintf("[%s] %s", e.Build, msg)
	}
	return msg
}

func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *HarnessError) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindValidation:
		return ExitConfigError
	case KindEnvironment, KindNotFound:
		return ExitEnvironmentError
	default:
		return ExitRuntimeError
	}
}

// New creates a new runtime error.
func New(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Config creates a new configuration error.
func Config(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *HarnessError {
	return Config(fmt.Sprintf(format, args...))
}

// Environment creates a new environment (setup) error.
func Environment(message string) *HarnessError {
	return &HarnessError{
		Kind:    KindEnvironment,
		Message: message,
	}
}

// Environmentf creates a new environment error with formatting.
func Environmentf(format string, args ...interface{}) *HarnessError {
	return Environment(fmt.Sprintf(format, args...))
}

// WrapKind wraps an error and assigns it a kind.
func WrapKind(kind ErrorKind, err error, message string) *HarnessError {
	return &HarnessError{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// BuildError attributes err to a build and phase.
func BuildError(build, phase string, err error) *HarnessError {
	return &HarnessError{
		Kind:  KindRuntime,
		Build: build,
		Phase: phase,
		Cause: err,
	}
}

// NotFound creates a not found error. Missing files and executables are
// setup problems, so these map to the environment exit code.
func NotFound(what, name string) *HarnessError {
	return &HarnessError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, name),
	}
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var he *HarnessError
	if As(err, &he) {
		return he.ExitCode()
	}
	return ExitRuntimeError
}
