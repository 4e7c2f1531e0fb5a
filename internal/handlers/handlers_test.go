package handlers

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netcodec/internal/config"
	"firestige.xyz/netcodec/internal/core"
	"firestige.xyz/netcodec/internal/log"
	"firestige.xyz/netcodec/pkg/buffer"
	"firestige.xyz/netcodec/pkg/handler"
	"firestige.xyz/netcodec/pkg/packet"
)

var (
	srcIP = net.IP{192, 168, 0, 1}
	dstIP = net.IP{192, 168, 0, 2}
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return append([]byte(nil), buf.Bytes()...)
}

func eth(typ layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
		EthernetType: typ,
	}
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{Version: 4, TTL: 64, Protocol: proto, SrcIP: srcIP, DstIP: dstIP}
}

// udpFrame is Ethernet / [VLAN tags] / IPv4 / UDP 40000 > 53 / "query".
func udpFrame(t *testing.T, vlans ...uint16) []byte {
	t.Helper()
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	ls := []gopacket.SerializableLayer{eth(layers.EthernetTypeIPv4)}
	if len(vlans) > 0 {
		ls[0] = eth(layers.EthernetTypeDot1Q)
		for i, id := range vlans {
			next := layers.EthernetTypeDot1Q
			if i == len(vlans)-1 {
				next = layers.EthernetTypeIPv4
			}
			ls = append(ls, &layers.Dot1Q{VLANIdentifier: id, Type: next})
		}
	}
	return serialize(t, append(ls, ip, udp, gopacket.Payload("query"))...)
}

func decode(t *testing.T, frame []byte) packet.Packet {
	t.Helper()
	root, err := packet.Decode(packet.LinkTypeEthernet, buffer.Wrap(frame))
	require.NoError(t, err)
	return root
}

func TestRegistryNames(t *testing.T) {
	assert.Equal(t, []string{"checksum", "dump", "flowlog", "stats", "vlan"}, Names())

	_, err := New("nope", nil)
	assert.ErrorIs(t, err, core.ErrHandlerUnknown)

	assert.Panics(t, func() { Register(StatsName, newStats) })
	assert.Panics(t, func() { Register("", newStats) })
	assert.Panics(t, func() { Register("nil", nil) })
}

func TestBuildPipeline(t *testing.T) {
	p, err := Build([]config.HandlerConfig{
		{Name: "stats"},
		{Name: "ip-sum", Type: "checksum"},
		{Name: "udp-sum", Type: "checksum", Options: map[string]interface{}{"protocol": "UDP", "strict": "true"}},
		{Name: "flows", Type: "flowlog", Options: map[string]interface{}{"sample": 10, "level": "debug"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"stats", "ip-sum", "udp-sum", "flows"}, p.Names())

	h, ok := p.Get("udp-sum")
	require.True(t, ok)
	assert.Equal(t, packet.TypeUDP, h.Type())
	assert.True(t, h.(*Checksum).strict)
}

func TestBuildRejectsBadConfig(t *testing.T) {
	tests := map[string][]config.HandlerConfig{
		"unknown option":    {{Name: "stats", Options: map[string]interface{}{"colour": "red"}}},
		"checksum protocol": {{Name: "c", Type: "checksum", Options: map[string]interface{}{"protocol": "arp"}}},
		"flow level":        {{Name: "f", Type: "flowlog", Options: map[string]interface{}{"level": "loud"}}},
		"flow sample":       {{Name: "f", Type: "flowlog", Options: map[string]interface{}{"sample": 0}}},
		"duplicate":         {{Name: "a", Type: "stats"}, {Name: "b", Type: "stats"}},
	}
	for name, cfgs := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Build(cfgs)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}

	_, err := Build([]config.HandlerConfig{{Name: "a", Type: "stats"}, {Name: "b", Type: "stats"}})
	assert.ErrorIs(t, err, handler.ErrDuplicateHandler)
}

func TestStatsCounts(t *testing.T) {
	s := NewStats(false)
	p := handler.NewPipeline()
	require.NoError(t, p.AddLast("stats", s))

	require.NoError(t, p.Start(decode(t, udpFrame(t, 7, 8))))
	require.NoError(t, p.Start(decode(t, udpFrame(t))))

	counts := s.Counts()
	assert.Equal(t, uint64(2), counts["Ethernet"])
	assert.Equal(t, uint64(2), counts["Dot1Q"])
	assert.Equal(t, uint64(2), counts["UDP"])
	assert.Equal(t, uint64(2), counts["Opaque"])
}

func TestChecksumDetectsCorruption(t *testing.T) {
	ipSum, err := NewChecksum(packet.TypeIPv4, false)
	require.NoError(t, err)
	udpSum, err := NewChecksum(packet.TypeUDP, true)
	require.NoError(t, err)

	p := handler.NewPipeline()
	require.NoError(t, p.AddLast("ip", ipSum))
	require.NoError(t, p.AddLast("udp", udpSum))

	require.NoError(t, p.Start(decode(t, udpFrame(t))))

	frame := udpFrame(t)
	frame[14+20+6] ^= 0xff // UDP checksum
	err = p.Start(decode(t, frame))
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	assert.Equal(t, uint64(2), ipSum.Checked())
	assert.Zero(t, ipSum.Mismatched())
	assert.Equal(t, uint64(2), udpSum.Checked())
	assert.Equal(t, uint64(1), udpSum.Mismatched())
}

func TestChecksumZeroUDPFollowsNetworkHeader(t *testing.T) {
	v4 := udpFrame(t)
	v4[14+20+6], v4[14+20+7] = 0, 0

	ip6 := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolUDP,
		SrcIP: net.ParseIP("::ffff:192.168.0.1"), DstIP: net.ParseIP("::ffff:192.168.0.2")}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip6))
	v6 := serialize(t, eth(layers.EthernetTypeIPv6), ip6, udp, gopacket.Payload("query"))
	v6[14+40+6], v6[14+40+7] = 0, 0

	sum, err := NewChecksum(packet.TypeUDP, true)
	require.NoError(t, err)
	p := handler.NewPipeline()
	require.NoError(t, p.AddLast("udp", sum))

	require.NoError(t, p.Start(decode(t, v4)))
	assert.ErrorIs(t, p.Start(decode(t, v6)), ErrChecksumMismatch)
	assert.Equal(t, uint64(2), sum.Checked())
	assert.Equal(t, uint64(1), sum.Mismatched())
}

func TestChecksumSkipsQuotedHeaders(t *testing.T) {
	inner := ipv4(layers.IPProtocolUDP)
	inner.SrcIP, inner.DstIP = dstIP, srcIP
	udp := &layers.UDP{SrcPort: 53, DstPort: 40000}
	require.NoError(t, udp.SetNetworkLayerForChecksum(inner))
	quote := serialize(t, inner, udp)
	quote[20+6] ^= 0xff

	frame := serialize(t,
		eth(layers.EthernetTypeIPv4),
		ipv4(layers.IPProtocolICMPv4),
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodePort)},
		gopacket.Payload(quote),
	)
	root := decode(t, frame)
	require.NotNil(t, packet.Find(root, packet.TypeUDP))

	udpSum, err := NewChecksum(packet.TypeUDP, true)
	require.NoError(t, err)
	icmpSum, err := NewChecksum(packet.TypeICMPv4, true)
	require.NoError(t, err)
	p := handler.NewPipeline()
	require.NoError(t, p.AddLast("udp", udpSum))
	require.NoError(t, p.AddLast("icmp", icmpSum))

	require.NoError(t, p.Start(root))
	assert.Zero(t, udpSum.Checked())
	assert.Equal(t, uint64(1), icmpSum.Checked())
}

func TestFlowLogSampling(t *testing.T) {
	var out bytes.Buffer
	l, err := log.New(&log.Config{Level: "debug", Pattern: "%msg %field%n"}, &out)
	require.NoError(t, err)

	f, err := NewFlowLog("debug", 2)
	require.NoError(t, err)
	f.logger = l

	udp := packet.Find(decode(t, udpFrame(t)), packet.TypeUDP)
	require.NotNil(t, udp)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.Handle(udp))
	}
	require.NoError(t, f.Handle(packet.Find(decode(t, udpFrame(t)), packet.TypeIPv4)))

	assert.Equal(t, uint64(3), f.Seen())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "src=192.168.0.1:40000")
	assert.Contains(t, lines[0], "dst=192.168.0.2:53")
	assert.Contains(t, lines[0], "proto=udp")
}

func TestVLANCountsStackedTags(t *testing.T) {
	v := NewVLAN()
	p := handler.NewPipeline()
	require.NoError(t, p.AddLast("vlan", v))

	require.NoError(t, p.Start(decode(t, udpFrame(t, 100, 200))))
	require.NoError(t, p.Start(decode(t, udpFrame(t, 100))))
	require.NoError(t, p.Start(decode(t, udpFrame(t))))

	assert.Equal(t, map[uint16]uint64{100: 2, 200: 1}, v.Counts())
}

func TestDumpWritesOneLinePerFrame(t *testing.T) {
	var out bytes.Buffer
	p := handler.NewPipeline()
	require.NoError(t, p.AddLast("dump", NewDump(&out)))

	require.NoError(t, p.Start(decode(t, udpFrame(t))))
	require.NoError(t, p.Start(decode(t, udpFrame(t, 5))))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Ethernet["))
	assert.Contains(t, lines[0], " / UDP[40000 > 53")
	assert.Contains(t, lines[1], "Dot1Q")
}
