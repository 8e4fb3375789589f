package umapgo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOption is returned by option setters for an unrecognized key.
	ErrUnknownOption = errors.New("unknown option")

	// ErrInvalidOptionValue is returned by option setters for a value outside
	// the accepted set or range. The options are left unchanged.
	ErrInvalidOptionValue = errors.New("invalid option value")

	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = errors.New("k must not be negative")

	// ErrClosed is returned by every method of a closed context.
	ErrClosed = errors.New("context is closed")

	// ErrBufferTooSmall is returned when an output slice cannot hold k results.
	ErrBufferTooSmall = errors.New("output buffer too small")

	// ErrInvalidShape is returned for a non-positive count or dimension, or a
	// buffer whose length does not match them.
	ErrInvalidShape = errors.New("invalid matrix shape")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrIndexOutOfRange indicates an observation index outside [0, Count).
type ErrIndexOutOfRange struct {
	Index int
	Count int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Count)
}

func unknownOption(key string) error {
	return fmt.Errorf("%w: %q", ErrUnknownOption, key)
}

func invalidValue(key string, value any) error {
	return fmt.Errorf("%w: %s=%v", ErrInvalidOptionValue, key, value)
}
