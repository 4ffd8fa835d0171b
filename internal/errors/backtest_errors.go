package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory classifies failures raised by the backtest core
type ErrorCategory string

const (
	// Bad or insufficient input data. Surfaced to the caller verbatim.
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	// State machine invariant breach. Indicates a logic bug upstream.
	ErrorCategoryOrderConflict ErrorCategory = "ORDER_CONFLICT"
	// Bad configuration detected before any simulation work begins.
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	// A worker task failed inside the grid scheduler.
	ErrorCategoryTask ErrorCategory = "TASK"
)

// BacktestError is a categorized error with context
type BacktestError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *BacktestError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *BacktestError) Unwrap() error {
	return e.Underlying
}

// IsRetryable always reports false: every core failure is deterministic
func (e *BacktestError) IsRetryable() bool {
	return false
}

// IsFatal reports whether the error indicates a bug rather than bad input
func (e *BacktestError) IsFatal() bool {
	return e.Category == ErrorCategoryOrderConflict
}

// WithContext adds context information to the error
func (e *BacktestError) WithContext(key string, value interface{}) *BacktestError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newError(category ErrorCategory, component, operation, message string) *BacktestError {
	return &BacktestError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// NewDataValidationError reports bad or insufficient input data
func NewDataValidationError(component, operation, message string) *BacktestError {
	return newError(ErrorCategoryValidation, component, operation, message)
}

// WrapDataValidationError wraps an I/O or parse failure of input data
func WrapDataValidationError(err error, component, operation, message string) *BacktestError {
	if err == nil {
		return nil
	}
	e := newError(ErrorCategoryValidation, component, operation, message)
	e.Underlying = err
	return e
}

// NewPendingOrderConflictError reports an attempt to queue a second pending order
func NewPendingOrderConflictError(component, operation, message string) *BacktestError {
	return newError(ErrorCategoryOrderConflict, component, operation, message)
}

// NewConfigError reports an invalid configuration value
func NewConfigError(component, operation, message string) *BacktestError {
	return newError(ErrorCategoryConfiguration, component, operation, message)
}

// WrapConfigError wraps a lower-level configuration failure (parse, struct validation)
func WrapConfigError(err error, component, operation string) *BacktestError {
	if err == nil {
		return nil
	}
	e := newError(ErrorCategoryConfiguration, component, operation, "invalid configuration")
	e.Underlying = err
	return e
}

// WrapTaskError wraps a failure of the grid combination at index
func WrapTaskError(err error, component string, index int) *BacktestError {
	if err == nil {
		return nil
	}
	e := newError(ErrorCategoryTask, component, "execute", fmt.Sprintf("combination %d failed", index))
	e.Underlying = err
	return e.WithContext("index", index)
}

// CategoryOf returns the category of the outermost BacktestError in the chain, or "".
func CategoryOf(err error) ErrorCategory {
	var be *BacktestError
	if stderrors.As(err, &be) {
		return be.Category
	}
	return ""
}

func hasCategory(err error, category ErrorCategory) bool {
	for err != nil {
		var be *BacktestError
		if !stderrors.As(err, &be) {
			return false
		}
		if be.Category == category {
			return true
		}
		err = be.Underlying
	}
	return false
}

// IsDataValidation reports whether err carries a DataValidationError anywhere in its chain
func IsDataValidation(err error) bool {
	return hasCategory(err, ErrorCategoryValidation)
}

// IsPendingOrderConflict reports whether err carries a PendingOrderConflictError anywhere in its chain
func IsPendingOrderConflict(err error) bool {
	return hasCategory(err, ErrorCategoryOrderConflict)
}

// IsConfig reports whether err carries a ConfigError anywhere in its chain
func IsConfig(err error) bool {
	return hasCategory(err, ErrorCategoryConfiguration)
}

// ExitCode maps an error to a process exit code for the CLI boundary
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsPendingOrderConflict(err):
		return 3
	case IsConfig(err), IsDataValidation(err):
		return 2
	case CategoryOf(err) == ErrorCategoryTask:
		return 3
	default:
		return 1
	}
}
