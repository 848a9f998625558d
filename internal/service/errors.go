package service

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist or the caller may not see it.
var ErrNotFound = errors.New("not found")

// ValidationError is a user-correctable input problem. Key is the i18n
// error key, Fields maps offending field names to messages.
type ValidationError struct {
	Key     string
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// invalid builds a ValidationError for a single field.
func invalid(key, field, msg string) *ValidationError {
	return &ValidationError{Key: key, Message: msg, Fields: map[string]string{field: msg}}
}

// fieldErrors collects per-field messages and turns them into one ValidationError.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f fieldErrors) err(key string) error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Key: key, Message: "Invalid input", Fields: f}
}

// UpstreamError wraps a failure of an AI or transcription backend.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AsValidation unwraps err into a ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
