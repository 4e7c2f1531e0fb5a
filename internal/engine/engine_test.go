package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"firestige.xyz/netcodec/internal/config"
	"firestige.xyz/netcodec/internal/core"
	"firestige.xyz/netcodec/internal/source/file"
	"firestige.xyz/netcodec/pkg/buffer"
	"firestige.xyz/netcodec/pkg/handler"
	"firestige.xyz/netcodec/pkg/packet"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return append([]byte(nil), buf.Bytes()...)
}

func ipLayer(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{Version: 4, TTL: 64, Protocol: proto,
		SrcIP: net.IP{192, 168, 0, 1}, DstIP: net.IP{192, 168, 0, 2}}
}

func udpFrame(t *testing.T, dst layers.UDPPort, inner ...gopacket.SerializableLayer) []byte {
	t.Helper()
	ip := ipLayer(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 40000, DstPort: dst}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	if len(inner) == 0 {
		inner = []gopacket.SerializableLayer{gopacket.Payload("hello")}
	}
	return serialize(t, append([]gopacket.SerializableLayer{
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		},
		ip, udp,
	}, inner...)...)
}

func writeCapture(t *testing.T, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, data := range frames {
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

type sliceSource struct {
	frames   []core.Frame
	linkType uint32
}

func (s *sliceSource) ReadFrame() (core.Frame, error) {
	if len(s.frames) == 0 {
		return core.Frame{}, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *sliceSource) LinkType() uint32 { return s.linkType }
func (s *sliceSource) Close() error     { return nil }

func frame(data []byte) core.Frame {
	return core.Frame{Data: data, CaptureLen: uint32(len(data)), OrigLen: uint32(len(data))}
}

func newPool(t *testing.T, max, capacity int) *buffer.Pool {
	t.Helper()
	p, err := buffer.NewPool(buffer.Options{InitialSize: 0, MaxSize: max, BlockCapacity: capacity})
	require.NoError(t, err)
	return p
}

func counter(typ packet.Type, n *atomic.Int64) handler.Handler {
	return handler.Func(typ, func(packet.Packet) error {
		n.Inc()
		return nil
	})
}

func TestRunDecodesCaptureFile(t *testing.T) {
	bad := udpFrame(t, 53)
	bad[14] = 0x43 // IHL 3

	src, err := file.Open(writeCapture(t, udpFrame(t, 53), udpFrame(t, 53), bad, udpFrame(t, 53)))
	require.NoError(t, err)
	defer src.Close()

	var udp, eth atomic.Int64
	pl := handler.NewPipeline()
	require.NoError(t, pl.AddLast("udp", counter(packet.TypeUDP, &udp)))
	require.NoError(t, pl.AddLast("eth", counter(packet.TypeEthernet, &eth)))

	pool := newPool(t, 8, 2048)
	e := New(Options{Workers: 2, LinkType: -1}, pool, nil, pl)
	require.NoError(t, e.Run(context.Background(), src))

	assert.Equal(t, int64(3), udp.Load())
	assert.Equal(t, int64(4), eth.Load())

	s := e.Stats()
	assert.Equal(t, uint64(4), s.Frames)
	assert.Equal(t, uint64(1), s.DecodeErrors)
	assert.Zero(t, s.Dropped)
	assert.Zero(t, s.HandlerErrors)

	ps := pool.Stats()
	assert.Zero(t, ps.InUse)
	assert.Equal(t, ps.Acquired, ps.Released)
}

func TestRunReportsTruncatedCapture(t *testing.T) {
	path := writeCapture(t, udpFrame(t, 53), udpFrame(t, 53))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-5))

	src, err := file.Open(path)
	require.NoError(t, err)
	defer src.Close()

	pool := newPool(t, 4, 2048)
	e := New(Options{Workers: 1, LinkType: -1}, pool, nil, handler.NewPipeline())
	err = e.Run(context.Background(), src)
	assert.ErrorIs(t, err, core.ErrCaptureTruncated)
	assert.Equal(t, uint64(1), e.Stats().Frames)
	assert.Zero(t, pool.Stats().InUse)
}

func TestRunCountsHandlerErrors(t *testing.T) {
	pl := handler.NewPipeline()
	require.NoError(t, pl.AddLast("reject", handler.Func(packet.TypeUDP, func(packet.Packet) error {
		return errors.New("rejected")
	})))

	src := &sliceSource{linkType: packet.LinkTypeEthernet, frames: []core.Frame{
		frame(udpFrame(t, 53)), frame(udpFrame(t, 53)),
	}}
	e := New(Options{Workers: 1, LinkType: -1}, newPool(t, 4, 2048), nil, pl)
	require.NoError(t, e.Run(context.Background(), src))
	assert.Equal(t, uint64(2), e.Stats().HandlerErrors)
	assert.Zero(t, e.Stats().DecodeErrors)
}

func TestIngestDropsWhenPoolExhausted(t *testing.T) {
	pool := newPool(t, 1, 2048)
	held, err := pool.Allocate(16, 2048)
	require.NoError(t, err)

	e := New(Options{Workers: 1, LinkType: -1}, pool, nil, nil)
	_, ok := e.ingest(frame(udpFrame(t, 53)))
	assert.False(t, ok)
	assert.Equal(t, uint64(1), e.Stats().Dropped)
	assert.Equal(t, uint64(1), pool.Stats().Exhausted)

	_, err = held.Release()
	require.NoError(t, err)
	buf, ok := e.ingest(frame(udpFrame(t, 53)))
	require.True(t, ok)
	_, err = buf.Release()
	require.NoError(t, err)
}

func TestTruncatesToBlockCapacity(t *testing.T) {
	data := serialize(t,
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetType(0x88b5),
		},
		gopacket.Payload(make([]byte, 100)),
	)

	var length atomic.Int64
	pl := handler.NewPipeline()
	require.NoError(t, pl.AddLast("eth", handler.Func(packet.TypeEthernet, func(p packet.Packet) error {
		length.Store(int64(p.Length()))
		return nil
	})))

	src := &sliceSource{linkType: packet.LinkTypeEthernet, frames: []core.Frame{frame(data)}}
	e := New(Options{Workers: 1, LinkType: -1}, newPool(t, 2, 64), nil, pl)
	require.NoError(t, e.Run(context.Background(), src))

	assert.Equal(t, uint64(1), e.Stats().Truncated)
	assert.Equal(t, uint64(len(data)), e.Stats().Bytes)
	assert.Equal(t, int64(64), length.Load())
}

func TestLinkTypeOverride(t *testing.T) {
	ipOnly := udpFrame(t, 53)[14:]

	var root atomic.String
	pl := handler.NewPipeline()
	require.NoError(t, pl.AddLast("first", handler.Func(packet.TypeAny, func(p packet.Packet) error {
		if p.Parent() == nil {
			root.Store(p.Type().String())
		}
		return nil
	})))

	src := &sliceSource{linkType: packet.LinkTypeEthernet, frames: []core.Frame{frame(ipOnly)}}
	e := New(Options{Workers: 1, LinkType: int(packet.LinkTypeRaw)}, newPool(t, 2, 2048), nil, pl)
	require.NoError(t, e.Run(context.Background(), src))
	assert.Equal(t, packet.TypeIPv4.String(), root.Load())
}

type blockingSource struct {
	release chan struct{}
}

func (s *blockingSource) ReadFrame() (core.Frame, error) {
	<-s.release
	return core.Frame{}, io.EOF
}

func (s *blockingSource) LinkType() uint32 { return packet.LinkTypeEthernet }
func (s *blockingSource) Close() error     { return nil }

func TestRunRejectsSecondSource(t *testing.T) {
	e := New(Options{Workers: 1, LinkType: -1}, newPool(t, 2, 2048), nil, nil)
	src := &blockingSource{release: make(chan struct{})}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), src) }()
	require.Eventually(t, e.running.Load, time.Second, time.Millisecond)

	assert.ErrorIs(t, e.Run(context.Background(), &sliceSource{}), core.ErrEngineRunning)

	close(src.release)
	require.NoError(t, <-done)
	require.NoError(t, e.Run(context.Background(), &sliceSource{}))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &sliceSource{linkType: packet.LinkTypeEthernet, frames: []core.Frame{frame(udpFrame(t, 53))}}
	e := New(Options{Workers: 1, LinkType: -1}, newPool(t, 2, 2048), nil, handler.NewPipeline())
	err := e.Run(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, e.Stats().Frames)
}

func TestNewDecoderDisablesTunnels(t *testing.T) {
	vxlan := udpFrame(t, layers.UDPPort(packet.PortVXLAN),
		&layers.VXLAN{ValidIDFlag: true, VNI: 9},
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 3},
			DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 4},
			EthernetType: layers.EthernetTypeIPv4,
		},
		ipLayer(layers.IPProtocolICMPv4),
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)},
	)

	on := NewDecoder(config.TunnelConfig{VXLAN: true})
	root, err := on.Decode(packet.LinkTypeEthernet, buffer.Wrap(vxlan))
	require.NoError(t, err)
	assert.NotNil(t, packet.Find(root, packet.TypeVXLAN))
	assert.NotNil(t, packet.Find(root, packet.TypeICMPv4Echo))

	off := NewDecoder(config.TunnelConfig{})
	root, err = off.Decode(packet.LinkTypeEthernet, buffer.Wrap(vxlan))
	require.NoError(t, err)
	assert.Nil(t, packet.Find(root, packet.TypeVXLAN))
	chain, err := packet.Chain(root)
	require.NoError(t, err)
	assert.Equal(t, packet.TypeOpaque, chain[len(chain)-1].Type())

	_, ok := off.Transport.Lookup(packet.IPProtocolGRE)
	assert.False(t, ok)
	_, ok = on.Transport.Lookup(packet.IPProtocolIPIP)
	assert.False(t, ok)
}
