package file

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netcodec/internal/core"
)

var ts = time.Unix(1700000000, 123456000)

func frames() [][]byte {
	return [][]byte{
		bytes.Repeat([]byte{0xaa}, 60),
		bytes.Repeat([]byte{0xbb}, 20),
	}
}

func writePcap(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for i, data := range frames() {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Second), CaptureLength: len(data), Length: len(data)}
		if i == 1 {
			ci.Length = 100
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
}

func writePcapng(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeRaw)
	require.NoError(t, err)
	for _, data := range frames() {
		ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	require.NoError(t, w.Flush())
}

func TestReadPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.pcap")
	writePcap(t, path)

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "pcap", s.Format())
	assert.Equal(t, uint32(1), s.LinkType())

	f, err := s.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, frames()[0], f.Data)
	assert.True(t, f.Timestamp.Equal(ts))
	assert.False(t, f.Truncated())

	f, err = s.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, uint32(20), f.CaptureLen)
	assert.Equal(t, uint32(100), f.OrigLen)
	assert.True(t, f.Truncated())

	_, err = s.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestReadPcapng(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.pcapng")
	writePcapng(t, path)

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "pcapng", s.Format())
	assert.Equal(t, uint32(layers.LinkTypeRaw), s.LinkType())

	var n int
	for {
		f, err := s.ReadFrame()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, frames()[n], f.Data)
		n++
	}
	assert.Equal(t, 2, n)
}

func TestTruncatedRecord(t *testing.T) {
	for name, cut := range map[string]int64{"body missing": 20, "body short": 10, "header short": 30} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cut.pcap")
			writePcap(t, path)
			info, err := os.Stat(path)
			require.NoError(t, err)
			require.NoError(t, os.Truncate(path, info.Size()-cut))

			s, err := Open(path)
			require.NoError(t, err)
			defer s.Close()

			_, err = s.ReadFrame()
			require.NoError(t, err)
			_, err = s.ReadFrame()
			assert.ErrorIs(t, err, core.ErrCaptureTruncated)
			assert.NotErrorIs(t, err, io.EOF)
		})
	}
}

func TestRejectsUnknownFormat(t *testing.T) {
	_, err := NewSource("junk", bytes.NewReader([]byte("definitely not a capture file")))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	_, err = NewSource("short", bytes.NewReader([]byte{1}))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestReadAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.pcap")
	writePcap(t, path)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.ReadFrame()
	assert.ErrorIs(t, err, core.ErrSourceClosed)
	assert.Equal(t, uint32(1), s.LinkType())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.pcap"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
