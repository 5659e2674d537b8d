// Package errors provides structured error types for tokenfield.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP surface and the pipeline
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - NOT_FOUND_*: Resource not found
//   - CONFIGURATION / ARCHIVE_*: Fatal setup problems detected before any mutation
//   - ITEM_TOO_LARGE, VERTICAL_OVERFLOW: Layout outcomes
//   - FOLDER_CHAIN: Per-actor archive folder failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfiguration, "grid size must be positive, got %d", size)
//	if errors.Is(err, errors.ErrCodeConfiguration) {
//	    // abort before touching the scene
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFolderChain, origErr, "create folder %q", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidName   Code = "INVALID_NAME"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"
	ErrCodeArchiveNotFound Code = "ARCHIVE_NOT_FOUND"

	// Fatal setup errors, raised before any mutation
	ErrCodeConfiguration Code = "CONFIGURATION"
	ErrCodeArchiveLocked Code = "ARCHIVE_LOCKED"

	// Layout errors
	ErrCodeItemTooLarge     Code = "ITEM_TOO_LARGE"
	ErrCodeVerticalOverflow Code = "VERTICAL_OVERFLOW"

	// Archive mirroring errors
	ErrCodeFolderChain Code = "FOLDER_CHAIN"

	// Backend errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// coder is implemented by typed errors that carry their own code.
type coder interface {
	Code() Code
}

// Is reports whether any error in err's chain carries the given code,
// either as an *Error or as a typed error exposing a Code method.
func Is(err error, code Code) bool {
	if code == "" {
		return false
	}
	for err != nil {
		switch e := err.(type) {
		case *Error:
			if e.Code == code {
				return true
			}
		case coder:
			if e.Code() == code {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error carries no code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// ItemError describes a layout item that could not be placed.
// Kind is either ErrCodeItemTooLarge or ErrCodeVerticalOverflow.
type ItemError struct {
	Kind     Code
	ItemID   string
	ItemName string
	Width    int
	Height   int
	X, Y     int // cursor at the point of failure
	Limit    int // the bound that was exceeded, in grid units
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	switch e.Kind {
	case ErrCodeItemTooLarge:
		return fmt.Sprintf("%s: item %q (%s) is %d wide, no row up to %d can hold it",
			e.Kind, e.ItemName, e.ItemID, e.Width, e.Limit)
	case ErrCodeVerticalOverflow:
		return fmt.Sprintf("%s: item %q (%s) at y=%d with height %d crosses bottom limit %d",
			e.Kind, e.ItemName, e.ItemID, e.Y, e.Height, e.Limit)
	}
	return fmt.Sprintf("%s: item %q (%s)", e.Kind, e.ItemName, e.ItemID)
}

// Code returns the error code for this error type.
func (e *ItemError) Code() Code {
	return e.Kind
}
