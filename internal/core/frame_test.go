package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameTruncated(t *testing.T) {
	assert.False(t, Frame{CaptureLen: 60, OrigLen: 60}.Truncated())
	assert.True(t, Frame{CaptureLen: 96, OrigLen: 1514}.Truncated())
}

func TestSentinelsWrap(t *testing.T) {
	err := fmt.Errorf("read frame 3: %w", ErrSourceClosed)
	assert.True(t, errors.Is(err, ErrSourceClosed))
	assert.False(t, errors.Is(err, ErrFrameDropped))
}
