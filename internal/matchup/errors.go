package matchup

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of matchup failure.
type ErrorCode string

const (
	ErrInvalidFrame      ErrorCode = "INVALID_FRAME"       // bad frame/fps arithmetic input
	ErrSourceLoad        ErrorCode = "SOURCE_LOAD"         // media failed to load or seek in time
	ErrEmptyOutput       ErrorCode = "EMPTY_OUTPUT"        // encoder produced unusable output
	ErrInvalidAlignment  ErrorCode = "INVALID_ALIGNMENT"   // tag data inconsistent with clip content
	ErrNotFound          ErrorCode = "NOT_FOUND"           // registry or store lookup missed
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // entity name collision
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // malformed caller input
)

// Error is the structured error returned by trim, compose and service operations.
// All codes are terminal for the operation in progress; nothing retries them.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewInvalidFrame reports negative, non-finite or otherwise unusable frame/fps input.
func NewInvalidFrame(msg string, details map[string]any) *Error {
	return &Error{Code: ErrInvalidFrame, Message: msg, Details: details}
}

// NewSourceLoad reports media that failed to load metadata, seek or decode within the timeout.
func NewSourceLoad(msg string, err error) *Error {
	return &Error{Code: ErrSourceLoad, Message: msg, Err: err}
}

// NewEmptyOutput reports an encode that produced fewer than min bytes.
func NewEmptyOutput(size, min int) *Error {
	return &Error{
		Code:    ErrEmptyOutput,
		Message: fmt.Sprintf("encoded clip is implausibly small: %d bytes (min %d)", size, min),
		Details: map[string]any{"size_bytes": size, "min_bytes": min},
	}
}

// NewInvalidAlignment reports tagging data that contradicts the clips being aligned.
func NewInvalidAlignment(msg string, details map[string]any) *Error {
	return &Error{Code: ErrInvalidAlignment, Message: msg, Details: details}
}

// NewNotFound reports a missing entity or clip.
func NewNotFound(kind, identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNameAlreadyExists reports a uniqueness violation on an entity name.
func NewNameAlreadyExists(kind, name string) *Error {
	return &Error{
		Code:    ErrNameAlreadyExists,
		Message: fmt.Sprintf("%s with name %q already exists", kind, name),
		Details: map[string]any{"kind": kind, "name": name},
	}
}

// NewInvalidRequest reports malformed caller input.
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: ErrInvalidRequest, Message: msg}
}

// IsCode reports whether err, or anything it wraps, is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}
