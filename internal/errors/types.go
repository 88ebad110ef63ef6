// Package errors defines the structured error type used across injector.
//
// Every failure that reaches a user carries a type, a stable code and enough
// context (target, file path, tag key) to be diagnosed without a debugger.
package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeTemplate   ErrorType = "template"
	ErrorTypeSource     ErrorType = "source"
	ErrorTypeTransform  ErrorType = "transform"
	ErrorTypeManifest   ErrorType = "manifest"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateRead     = "TEMPLATE_READ"
	ErrCodeSourceNotFound   = "SOURCE_NOT_FOUND"
	ErrCodeSourcePattern    = "SOURCE_PATTERN"
	ErrCodeTransformUnknown = "TRANSFORM_UNKNOWN"
	ErrCodeManifestInvalid  = "MANIFEST_INVALID"
	ErrCodeWriteFailed      = "WRITE_FAILED"
	ErrCodeConfigInvalid    = "CONFIG_INVALID"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeTargetNotFound   = "TARGET_NOT_FOUND"
)

// InjectorError is a structured error type with context.
type InjectorError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Target      string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *InjectorError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Target != "" {
		parts = append(parts, "target:"+e.Target)
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
func (e *InjectorError) Unwrap() error {
	return e.Cause
}

// Is matches another InjectorError with the same type and code.
func (e *InjectorError) Is(target error) bool {
	var t *InjectorError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *InjectorError) WithContext(key string, value interface{}) *InjectorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithTarget records the target the error belongs to.
func (e *InjectorError) WithTarget(target string) *InjectorError {
	e.Target = target

	return e
}

// WithFile records the file the error is about.
func (e *InjectorError) WithFile(path string) *InjectorError {
	e.FilePath = path

	return e
}

// Fields flattens the error into key/value pairs for structured logging.
// Context keys are emitted in sorted order.
func (e *InjectorError) Fields() []interface{} {
	fields := []interface{}{"type", string(e.Type), "code", e.Code}
	if e.Target != "" {
		fields = append(fields, "target", e.Target)
	}
	if e.FilePath != "" {
		fields = append(fields, "file", e.FilePath)
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, k, e.Context[k])
	}

	return fields
}

// Error creation functions

// NewTemplateError creates a template error. Template errors abort their
// target.
func NewTemplateError(code, message string, cause error) *InjectorError {
	return &InjectorError{
		Type:        ErrorTypeTemplate,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewSourceError creates a source error. Source errors are warnings.
func NewSourceError(code, message string) *InjectorError {
	return &InjectorError{
		Type:        ErrorTypeSource,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewManifestError creates a manifest expansion error.
func NewManifestError(code, message string, cause error) *InjectorError {
	return &InjectorError{
		Type:        ErrorTypeManifest,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *InjectorError {
	return &InjectorError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *InjectorError {
	return &InjectorError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewValidationError creates the error reported when a template fails
// inspection.
func NewValidationError(message string) *InjectorError {
	return &InjectorError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeValidationFailed,
		Message:     message,
		Recoverable: false,
	}
}

// Helper functions for common errors

// ErrTemplateNotFound creates the error reported when a target's template
// does not exist.
func ErrTemplateNotFound(path string) *InjectorError {
	return NewTemplateError(
		ErrCodeTemplateNotFound,
		fmt.Sprintf("could not find template %q, injection not possible", path),
		nil,
	).WithFile(path)
}

// ErrSourceNotFound creates the warning reported for a missing source file.
func ErrSourceNotFound(path string) *InjectorError {
	return NewSourceError(ErrCodeSourceNotFound, fmt.Sprintf("source file %q not found", path)).
		WithFile(path)
}

// ErrTransformUnknown creates the warning reported when no transform renders
// a file's extension.
func ErrTransformUnknown(path, tagKey string) *InjectorError {
	err := &InjectorError{
		Type:        ErrorTypeTransform,
		Code:        ErrCodeTransformUnknown,
		Message:     fmt.Sprintf("no transform for %q, skipping", path),
		Recoverable: true,
	}

	return err.WithFile(path).WithContext("tag", tagKey)
}

// ErrWriteFailed creates the error reported when a destination cannot be
// written.
func ErrWriteFailed(path string, cause error) *InjectorError {
	return NewIOError(ErrCodeWriteFailed, "failed to write destination", cause).WithFile(path)
}

// ErrTargetNotFound creates the error reported for an unknown target name.
func ErrTargetNotFound(name string) *InjectorError {
	return NewConfigError(ErrCodeTargetNotFound, fmt.Sprintf("no target named %q", name))
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ie *InjectorError
	if errors.As(err, &ie) {
		return ie.Recoverable
	}

	return false
}

// IsType reports whether err is an InjectorError of type t.
func IsType(err error, t ErrorType) bool {
	var ie *InjectorError
	if errors.As(err, &ie) {
		return ie.Type == t
	}

	return false
}

// HasCode reports whether err is an InjectorError with the given code.
func HasCode(err error, code string) bool {
	var ie *InjectorError
	if errors.As(err, &ie) {
		return ie.Code == code
	}

	return false
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler logs errors at a level matching their recoverability.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err. Joined errors are unpacked and handled one by one.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			h.Handle(ctx, e)
		}
		return
	}

	var ie *InjectorError
	if !errors.As(err, &ie) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	if ie.Recoverable {
		h.logger.Warn(ctx, ie, ie.Message, ie.Fields()...)
		return
	}
	h.logger.Error(ctx, ie, ie.Message, ie.Fields()...)
}
