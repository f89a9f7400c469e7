package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies run errors.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindDependency ErrorKind = "dependency"
	ErrorKindExecution  ErrorKind = "execution"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindCancelled  ErrorKind = "cancelled"
	ErrorKindFatal      ErrorKind = "fatal"
	ErrorKindNotFound   ErrorKind = "not_found"
)

// RunError is the error type for pipeline failures. StepID names the
// step that failed when the error is tied to one.
type RunError struct {
	Kind      ErrorKind `json:"kind"`
	StepID    string    `json:"step_id,omitempty"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Retryable bool      `json:"retryable"`
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	if e.StepID != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewStepValidationError reports that a step refused to run.
func NewStepValidationError(stepID, message string) *RunError {
	return &RunError{
		Kind:    ErrorKindValidation,
		StepID:  stepID,
		Message: message,
	}
}

// NewDependencyError reports an unmet step dependency.
func NewDependencyError(stepID, dependsOn string) *RunError {
	return &RunError{
		Kind:    ErrorKindDependency,
		StepID:  stepID,
		Message: fmt.Sprintf("dependency %s not satisfied", dependsOn),
	}
}

// NewExecutionError wraps a step failure. Retryable marks transient
// failures the manager may attempt again.
func NewExecutionError(stepID string, cause error, retryable bool) *RunError {
	return &RunError{
		Kind:      ErrorKindExecution,
		StepID:    stepID,
		Message:   "step execution failed",
		Cause:     cause,
		Retryable: retryable,
	}
}

// NewTimeoutError reports that a step exceeded its timeout.
func NewTimeoutError(stepID, timeout string) *RunError {
	return &RunError{
		Kind:      ErrorKindTimeout,
		StepID:    stepID,
		Message:   fmt.Sprintf("step exceeded timeout of %s", timeout),
		Retryable: true,
	}
}

// NewCancellationError reports a cancelled run.
func NewCancellationError(stepID string) *RunError {
	return &RunError{
		Kind:    ErrorKindCancelled,
		StepID:  stepID,
		Message: "run was cancelled",
	}
}

// NewFatalError reports a failure no retry can fix.
func NewFatalError(message string, cause error) *RunError {
	return &RunError{
		Kind:    ErrorKindFatal,
		Message: message,
		Cause:   cause,
	}
}

// IsRetryable reports whether the manager may retry after this error.
func IsRetryable(err error) bool {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Retryable
	}
	return false
}

// WrapError attaches run context to an error. An existing RunError keeps
// its kind and gains the step and message; anything else becomes an
// execution error.
func WrapError(err error, stepID, message string) *RunError {
	if err == nil {
		return nil
	}

	var runErr *RunError
	if errors.As(err, &runErr) {
		if runErr.StepID == "" {
			runErr.StepID = stepID
		}
		if message != "" {
			runErr.Message = fmt.Sprintf("%s: %s", message, runErr.Message)
		}
		return runErr
	}

	return &RunError{
		Kind:    ErrorKindExecution,
		StepID:  stepID,
		Message: message,
		Cause:   err,
	}
}

// ErrRunNotFound is returned when a run cannot be found.
var ErrRunNotFound = &RunError{
	Kind:    ErrorKindNotFound,
	Message: "run not found",
}
