package wire

import (
	"errors"
	"fmt"
)

// Common codec errors
var (
	ErrMalformedVarint  = errors.New("malformed varint")
	ErrTruncatedMessage = errors.New("truncated message")
	ErrNoPayload        = errors.New("message has no payload")
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
)

// DecodeError annotates a decode failure with the field that was being read.
type DecodeError struct {
	Field string
	Cause error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Field, e.Cause)
}

// Unwrap returns the underlying error
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func decodeErr(field string, cause error) error {
	return &DecodeError{Field: field, Cause: cause}
}
