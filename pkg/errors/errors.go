package errors

import (
	"errors"
	"fmt"
)

// Error categories

var (
	// ErrParse indicates malformed or inconsistent model text
	ErrParse = errors.New("model parse error")

	// ErrValidation indicates a predict call was rejected before any work was done
	ErrValidation = errors.New("validation error")

	// ErrNumericDegenerate indicates an iterative computation stopped at its cap
	// and the last iterate was returned
	ErrNumericDegenerate = errors.New("numeric computation did not converge")

	// ErrInvalidHandle indicates use of an unknown or destroyed handle
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrInternal indicates an unexpected engine failure
	ErrInternal = errors.New("internal error")

	// ErrNotFound indicates a model or input missing from its source
	ErrNotFound = errors.New("not found")
)

// Validation errors

var (
	// ErrNoModelLoaded indicates a predict call on a context without a model
	ErrNoModelLoaded = errors.New("no model loaded")

	// ErrCapacityExceeded indicates more problems than the configured capacity
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrDimensionMismatch indicates input or output buffers of the wrong length
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrUnsupportedOperation indicates an operation the loaded model type cannot serve
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidArgument indicates an argument outside its allowed range
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrNoProbabilityModel is a status rather than a failure: the model carries
// no calibration parameters and probability output was zeroed.
var ErrNoProbabilityModel = errors.New("model has no probability information")

// ParseKind classifies a model parse failure
type ParseKind string

const (
	ParseMalformedHeader          ParseKind = "malformed_header"
	ParseMissingField             ParseKind = "missing_field"
	ParseSVCountMismatch          ParseKind = "sv_count_mismatch"
	ParseNonIncreasingIndex       ParseKind = "non_increasing_index"
	ParseUnknownKernelType        ParseKind = "unknown_kernel_type"
	ParseUnknownSvmType           ParseKind = "unknown_svm_type"
	ParseCoefficientCountMismatch ParseKind = "coefficient_count_mismatch"
	ParseMalformedSupportVector   ParseKind = "malformed_support_vector"
	ParseInvalidParameter         ParseKind = "invalid_parameter"
)

// ParseError describes why a model text was rejected
type ParseError struct {
	Kind    ParseKind
	Line    int // 1-based, 0 when the error is not tied to a line
	Field   string
	Message string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	var loc string
	if e.Line > 0 {
		loc = fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Field != "" {
		return fmt.Sprintf("parse error%s: %s: field '%s': %s", loc, e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("parse error%s: %s: %s", loc, e.Kind, e.Message)
}

// Unwrap lets errors.Is(err, ErrParse) match every parse error
func (e *ParseError) Unwrap() error {
	return ErrParse
}

// NewParseError creates a new parse error
func NewParseError(kind ParseKind, line int, field, message string) *ParseError {
	return &ParseError{
		Kind:    kind,
		Line:    line,
		Field:   field,
		Message: message,
	}
}

// ValidationError represents a rejected predict call with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
	Err     error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap exposes both the validation category and the specific sentinel
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// NewValidationError creates a new validation error
func NewValidationError(sentinel error, field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Err:     sentinel,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Unwrap returns the collected errors
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
