package mat

import (
	"errors"
	"fmt"
)

// Sentinel errors for error classification.
var (
	// ErrDecode indicates a malformed or truncated container. Callers
	// treat this as a protocol-level failure, not a remote-computation
	// error.
	ErrDecode = errors.New("malformed container")

	// ErrUnsupported indicates a host value or container construct the
	// codec cannot represent.
	ErrUnsupported = errors.New("unsupported value")
)

// DecodeError describes a failure to parse a container.
type DecodeError struct {
	// Offset is the byte offset where parsing failed.
	Offset int

	// Message describes the failure.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the failure description with its byte offset.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mat: %s at offset %d: %v", e.Message, e.Offset, e.Err)
	}
	return fmt.Sprintf("mat: %s at offset %d", e.Message, e.Offset)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target.
// DecodeError matches ErrDecode to allow sentinel-style error checking.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
