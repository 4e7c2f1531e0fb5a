// Package core defines the frame type handed over by capture sources and
// the sentinel errors shared by the netcodec internals.
package core

import "errors"

var (
	// Source errors
	ErrSourceClosed      = errors.New("netcodec: source closed")
	ErrUnsupportedFormat = errors.New("netcodec: unsupported capture format")
	ErrCaptureTruncated  = errors.New("netcodec: capture file truncated")

	// Engine errors
	ErrEngineRunning = errors.New("netcodec: engine already running")
	ErrFrameDropped  = errors.New("netcodec: frame dropped")

	// Handler factory errors
	ErrHandlerUnknown = errors.New("netcodec: unknown handler")

	// Configuration errors
	ErrConfigInvalid = errors.New("netcodec: invalid configuration")
)
