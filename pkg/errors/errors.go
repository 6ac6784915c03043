// Package errors provides coded errors for codepage. Only errors built from
// a recovered panic carry a stack trace.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sort"
	"strings"
)

// Error codes for programmatic handling
type Code string

const (
	// Source errors (1xx)
	CodeSourceUnavailable Code = "E101"
	CodeInvalidLocator    Code = "E102"

	// Configuration errors (2xx)
	CodeUnknownDetector Code = "E201"
	CodeInvalidConfig   Code = "E202"

	// Output errors (3xx)
	CodeReportFailed Code = "E301"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"
	CodeTimeout         Code = "E402"

	// Unknown
	CodeUnknown Code = "E999"
)

// CodepageError is the base error type for all codepage errors.
type CodepageError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *CodepageError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *CodepageError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *CodepageError) Is(target error) bool {
	if t, ok := target.(*CodepageError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *CodepageError) WithContext(key string, value interface{}) *CodepageError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new CodepageError.
func New(code Code, message string) *CodepageError {
	return &CodepageError{Code: code, Message: message}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *CodepageError {
	if err == nil {
		return nil
	}

	return &CodepageError{Code: code, Message: message, Cause: err}
}

// Recovered turns a value returned by recover into an E999 error. Call it
// from the deferred function itself so the trace starts at the panic.
func Recovered(message string, p interface{}) *CodepageError {
	e := New(CodeUnknown, message).WithContext("panic", fmt.Sprint(p))
	e.StackTrace = captureStack(2)
	return e
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 16 {
			break
		}
	}
	return frames
}

// FormatStack renders the captured frames, one "at function / file:line"
// pair per frame. It is empty for errors that were not recovered panics.
func (e *CodepageError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// Stack returns the trace of the first CodepageError in err's chain.
func Stack(err error) string {
	var e *CodepageError
	if errors.As(err, &e) {
		return e.FormatStack()
	}
	return ""
}

// --- Convenience constructors ---

// SourceUnavailable creates an error for a source that could not be opened or
// read. Context cancellation and deadlines keep their own codes so callers can
// tell a caller-imposed timeout from a missing file.
func SourceUnavailable(location string, cause error) *CodepageError {
	code := CodeSourceUnavailable
	message := "source unavailable"
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		code, message = CodeTimeout, "source read timed out"
	case errors.Is(cause, context.Canceled):
		code, message = CodeContextCanceled, "source read canceled"
	case errors.Is(cause, fs.ErrNotExist):
		message = "source not found"
	case errors.Is(cause, fs.ErrPermission):
		message = "source permission denied"
	case errors.Is(cause, fs.ErrClosed):
		message = "source closed"
	}

	e := Wrap(cause, code, message)
	if e == nil {
		e = New(code, message)
	}
	return e.WithContext("location", location)
}

// InvalidLocator creates an error for a locator no source can serve.
func InvalidLocator(locator string, cause error) *CodepageError {
	e := Wrap(cause, CodeInvalidLocator, "invalid locator")
	if e == nil {
		e = New(CodeInvalidLocator, "invalid locator")
	}
	return e.WithContext("locator", locator)
}

// UnknownDetector creates an error for an unregistered detector name.
func UnknownDetector(name string, available []string) *CodepageError {
	return New(CodeUnknownDetector, "unknown detector").
		WithContext("name", name).
		WithContext("available", available)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var cpErr *CodepageError
	if errors.As(err, &cpErr) {
		return cpErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var cpErr *CodepageError
	if errors.As(err, &cpErr) {
		return cpErr.Code
	}
	return CodeUnknown
}

// IsSourceFailure reports whether err means the bytes could not be read,
// including caller-imposed timeouts and cancellation.
func IsSourceFailure(err error) bool {
	switch GetCode(err) {
	case CodeSourceUnavailable, CodeInvalidLocator, CodeTimeout, CodeContextCanceled:
		return true
	default:
		return false
	}
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
