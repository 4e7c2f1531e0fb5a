// Package file reads frames from pcap and pcapng capture files.
package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/netcodec/internal/core"
)

const Name = "file"

// pcapng files start with a section header block.
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source yields frames in file order. It is not safe for concurrent use.
type Source struct {
	name     string
	closer   io.Closer
	reader   packetReader
	format   string
	linkType uint32
}

// Open opens a capture file, detecting pcap or pcapng from its magic.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	s, err := NewSource(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewSource reads a capture stream from r. name labels errors.
func NewSource(name string, r io.Reader) (*Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(ngMagic))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, core.ErrUnsupportedFormat, err)
	}

	s := &Source{name: name}
	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", name, core.ErrUnsupportedFormat, err)
		}
		s.reader, s.format, s.linkType = ng, "pcapng", uint32(ng.LinkType())
		return s, nil
	}
	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, core.ErrUnsupportedFormat, err)
	}
	s.reader, s.format, s.linkType = pr, "pcap", uint32(pr.LinkType())
	return s, nil
}

// ReadFrame returns the next frame, or io.EOF at the end of the file. A
// record cut short fails with core.ErrCaptureTruncated. The frame data is
// overwritten by the following call.
func (s *Source) ReadFrame() (core.Frame, error) {
	if s.reader == nil {
		return core.Frame{}, fmt.Errorf("%s: %w", s.name, core.ErrSourceClosed)
	}
	data, ci, err := s.reader.ZeroCopyReadPacketData()
	if err != nil {
		// EOF after a record header means the body is missing.
		if errors.Is(err, io.EOF) && ci.CaptureLength == 0 {
			return core.Frame{}, io.EOF
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return core.Frame{}, fmt.Errorf("%s: %w: %w", s.name, core.ErrCaptureTruncated, io.ErrUnexpectedEOF)
		}
		return core.Frame{}, fmt.Errorf("%s: read frame: %w", s.name, err)
	}
	return core.Frame{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

// LinkType is the DLT code of the capture, used as the link registry key.
func (s *Source) LinkType() uint32 { return s.linkType }

// Format reports "pcap" or "pcapng".
func (s *Source) Format() string { return s.format }

func (s *Source) Close() error {
	s.reader = nil
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
