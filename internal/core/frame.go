package core

import "time"

// Frame is one captured frame as delivered by a source. Data is only valid
// until the next read from the same source.
type Frame struct {
	Data       []byte
	Timestamp  time.Time
	CaptureLen uint32 // bytes present in Data
	OrigLen    uint32 // length on the wire
}

// Truncated reports whether the capture cut the frame short.
func (f Frame) Truncated() bool { return f.CaptureLen < f.OrigLen }
