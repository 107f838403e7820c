package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Recoverable kinds: the batch continues and the problem is counted
	// in the per-run report.
	ErrTypeSchemaMismatch  ErrorType = "SCHEMA_MISMATCH"
	ErrTypeUnparseableDate ErrorType = "UNPARSEABLE_DATE"

	// Warning kinds surfaced in aggregation output.
	ErrTypeDanglingDependency ErrorType = "DANGLING_DEPENDENCY"
	ErrTypeDependencyCycle    ErrorType = "DEPENDENCY_CYCLE"

	// Fatal kinds: the current batch aborts.
	ErrTypeEmptyInput   ErrorType = "EMPTY_INPUT"
	ErrTypeSaveConflict ErrorType = "SAVE_CONFLICT"

	ErrTypeParsing  ErrorType = "PARSING"
	ErrTypeStorage  ErrorType = "STORAGE"
	ErrTypeNotFound ErrorType = "NOT_FOUND"
	ErrTypeConfig   ErrorType = "CONFIG"
	ErrTypeRender   ErrorType = "RENDER"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err (or anything it wraps) is an AppError of the
// given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// Helper functions for common error types

// NewSchemaMismatchError marks a source file whose header row does not
// match any recognized schema. The file is skipped, the batch continues.
func NewSchemaMismatchError(file string, cause error) *AppError {
	return NewAppError(ErrTypeSchemaMismatch, fmt.Sprintf("file %s does not match a recognized schema", file), cause)
}

// NewEmptyInputError signals that a folder produced zero valid files after
// filtering. Fatal: there is nothing to aggregate.
func NewEmptyInputError(dir string) *AppError {
	return NewAppError(ErrTypeEmptyInput, fmt.Sprintf("no valid input files in %s", dir), nil)
}

// NewSaveConflictError signals that an edited workbook could not be
// persisted. In-memory staging guarantees the source file is untouched.
func NewSaveConflictError(path string, cause error) *AppError {
	return NewAppError(ErrTypeSaveConflict, fmt.Sprintf("cannot save workbook %s", path), cause)
}

// NewUnparseableDateError creates a row-level date parsing error
func NewUnparseableDateError(row int, value string) *AppError {
	return NewAppError(ErrTypeUnparseableDate, fmt.Sprintf("row %d: unparseable date %q", row, value), nil).
		WithContext("row", row).
		WithContext("value", value)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewRenderError creates a renderer-related error
func NewRenderError(message string, cause error) *AppError {
	return NewAppError(ErrTypeRender, message, cause)
}
