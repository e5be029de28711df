package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Standard error types that can be used throughout the application
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternalError = errors.New("internal error")

	// Domain-specific error sentinel values
	ErrInvalidConfig         = errors.New("invalid transmission configuration")
	ErrEmptySignal           = errors.New("empty signal buffer")
	ErrSampleRateMismatch    = errors.New("sample rate mismatch between reference and degraded signals")
	ErrLengthMismatch        = errors.New("length mismatch between reference and degraded signals")
	ErrUnsupportedSampleRate = errors.New("sample rate not supported by metric")
	ErrTranscriptionFailed   = errors.New("transcription failed")
)

// Error represents a structured error with source location and additional context
type Error struct {
	// original is the underlying error
	original error

	// message is the error message
	message string

	// fields contains contextual information
	fields map[string]interface{}

	// file and line record where the error was created
	file string
	line int
}

// New creates a new structured error with the given message
func New(message string, fields ...map[string]interface{}) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: errors.New(message),
		message:  message,
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: err,
		message:  message,
		fields:   firstOrEmpty(fields),
		file:     file,
		line:     line,
	}
}

func firstOrEmpty(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 && fields[0] != nil {
		return fields[0]
	}
	return make(map[string]interface{})
}

// WithField adds a single field to the error context
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}

	// Create a copy to avoid modifying the original
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+1),
		file:     e.file,
		line:     e.line,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	result.fields[key] = value
	return result
}

// WithFields adds multiple fields to the error context
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}

	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+len(fields)),
		file:     e.file,
		line:     e.line,
	}
	for k, v := range e.fields {
		result.fields[k] = v
	}
	for k, v := range fields {
		result.fields[k] = v
	}
	return result
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.message)

	if e.original != nil && e.original.Error() != e.message {
		sb.WriteString(": ")
		sb.WriteString(e.original.Error())
	}

	if len(e.fields) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.fields {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/errors.As support
func (e *Error) Unwrap() error {
	return e.original
}

// GetFields returns the contextual fields attached to the error
func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// Location returns the file and line where the error was created
func (e *Error) Location() string {
	if e == nil || e.file == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

// NewInvalidConfig creates a configuration error for a specific field
func NewInvalidConfig(field string, value interface{}, reason string) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: ErrInvalidConfig,
		message:  fmt.Sprintf("invalid configuration: %s", reason),
		fields: map[string]interface{}{
			"field": field,
			"value": value,
		},
		file: file,
		line: line,
	}
}

// NewEmptySignal creates an empty-signal error naming the offending input
func NewEmptySignal(which string) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		original: ErrEmptySignal,
		message:  "empty signal buffer",
		fields:   map[string]interface{}{"signal": which},
		file:     file,
		line:     line,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
