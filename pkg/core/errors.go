package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: server_launch, element_not_found, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code.
// Copies made by WithCause/WithMessage/WithDetails still match their sentinel.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok || t == nil {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// IsFatal returns true for launch-class errors that must abort the run.
func (e *ExecutionError) IsFatal() bool {
	return e.Category == ErrCategoryLaunch
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Launch errors (fatal)
	ErrServerLaunch = &ExecutionError{
		Category: ErrCategoryLaunch,
		Code:     "server_launch",
		Message:  "failed to launch appium server",
	}
	ErrServerAlreadyRunning = &ExecutionError{
		Category: ErrCategoryLaunch,
		Code:     "server_already_running",
		Message:  "appium server is already running",
	}
	ErrAppiumInstall = &ExecutionError{
		Category: ErrCategoryLaunch,
		Code:     "appium_install_failed",
		Message:  "failed to install appium",
	}
	ErrAppiumMissing = &ExecutionError{
		Category: ErrCategoryLaunch,
		Code:     "appium_missing",
		Message:  "appium executable does not exist",
	}
	ErrServerNotReady = &ExecutionError{
		Category: ErrCategoryLaunch,
		Code:     "server_not_ready",
		Message:  "appium server did not become ready",
	}
	ErrLogFile = &ExecutionError{
		Category: ErrCategoryLaunch,
		Code:     "log_file",
		Message:  "failed to create appium log file",
	}

	// Stop errors
	ErrServerStop = &ExecutionError{
		Category: ErrCategoryStop,
		Code:     "server_stop",
		Message:  "failed to stop appium server",
	}

	// Resolution errors (soft)
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrInvalidLocator = &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "invalid_locator",
		Message:  "invalid locator",
	}
	ErrXPathUnavailable = &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "xpath_unavailable",
		Message:  "element was not found by xpath",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)
