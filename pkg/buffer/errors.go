package buffer

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Buffer, Allocator and Pool operations.
var (
	// Bounds errors
	ErrIndexOutOfBounds = errors.New("buffer: index out of bounds")
	ErrInvalidSize      = errors.New("buffer: invalid size")

	// Lifecycle errors
	ErrUseAfterRelease = errors.New("buffer: use after release")
	ErrDoubleRelease   = errors.New("buffer: double release")
	ErrRefCntOverflow  = errors.New("buffer: reference count overflow")
	ErrPoolExhausted   = errors.New("buffer: pool exhausted")
)

func outOfBounds(index, width, capacity int) error {
	return fmt.Errorf("%w: index %d, width %d, capacity %d", ErrIndexOutOfBounds, index, width, capacity)
}

func invalidSize(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSize, fmt.Sprintf(format, args...))
}
