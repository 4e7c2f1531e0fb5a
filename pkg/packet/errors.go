package packet

import (
	"errors"
	"fmt"
)

// Sentinel errors returned while wrapping headers.
var (
	ErrInsufficientBuffer   = errors.New("packet: insufficient buffer")
	ErrInvalidHeaderLength  = errors.New("packet: invalid header length")
	ErrInvalidVersion       = errors.New("packet: invalid version")
	ErrMalformedOption      = errors.New("packet: malformed option")
	ErrUnsupportedLayerType = errors.New("packet: unsupported layer")
)

func insufficient(t Type, need, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, %d readable", ErrInsufficientBuffer, t, need, have)
}

func invalidHeaderLength(t Type, length, min int) error {
	return fmt.Errorf("%w: %s header length %d below minimum %d", ErrInvalidHeaderLength, t, length, min)
}
