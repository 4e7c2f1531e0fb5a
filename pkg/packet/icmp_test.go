package packet

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netcodec/pkg/buffer"
)

func TestICMPv4EchoChain(t *testing.T) {
	ip := ipv4Layer(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 77, Seq: 3}
	frame := serialize(t, ethernet(layers.EthernetTypeIPv4), ip, icmp, gopacket.Payload([]byte("ping")))

	root := decodeFrame(t, LinkTypeEthernet, frame)
	assert.Equal(t,
		[]Type{TypeEthernet, TypeIPv4, TypeICMPv4, TypeICMPv4Echo, TypeOpaque},
		chainTypes(t, root))

	common := Find(root, TypeICMPv4).(*ICMPv4)
	typ, code := common.TypeCode()
	assert.Equal(t, ICMPv4TypeEchoRequest, typ)
	assert.Equal(t, uint8(0), code)
	assert.Equal(t, "echo", common.MessageTypeName())
	assert.True(t, common.IsValidChecksum())

	echo := Find(root, TypeICMPv4Echo).(*ICMPv4Echo)
	assert.Equal(t, uint16(77), echo.Identifier())
	assert.Equal(t, uint16(3), echo.SequenceNumber())

	echo.SetSequenceNumber(4)
	assert.False(t, common.IsValidChecksum())
	common.UpdateChecksum()
	assert.True(t, common.IsValidChecksum())
}

func quotedUDP(t *testing.T) []byte {
	t.Helper()
	inner := ipv4Layer(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 33434, DstPort: 33435}
	require.NoError(t, udp.SetNetworkLayerForChecksum(inner))
	full := serialize(t, inner, udp, gopacket.Payload(make([]byte, 32)))
	// Routers quote the IP header plus the first 8 payload bytes.
	return full[:28]
}

func TestICMPv4DestinationUnreachableQuotesDatagram(t *testing.T) {
	ip := ipv4Layer(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodePort)}
	frame := serialize(t, ethernet(layers.EthernetTypeIPv4), ip, icmp, gopacket.Payload(quotedUDP(t)))

	root := decodeFrame(t, LinkTypeEthernet, frame)
	chain, err := Chain(root)
	require.NoError(t, err)
	require.Len(t, chain, 6)
	assert.Equal(t, TypeICMPv4DestinationUnreachable, chain[3].Type())
	assert.Equal(t, TypeIPv4, chain[4].Type())
	assert.Equal(t, TypeUDP, chain[5].Type())

	unreach := chain[3].(*ICMPv4DestinationUnreachable)
	invoking := unreach.Invoking()
	require.NotNil(t, invoking)
	assert.Equal(t, net.IP(testDstIP4), invoking.DstIP())
	assert.Equal(t, uint16(33435), chain[5].(*UDP).DstPort())
	assert.Same(t, chain[4], chain[5].Parent())
}

func TestICMPv4ErrorWithTruncatedQuoteDegradesToOpaque(t *testing.T) {
	inner := ipv4Layer(layers.IPProtocolTCP)
	quote := serialize(t, inner, gopacket.Payload(make([]byte, 8)))

	ip := ipv4Layer(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeTimeExceeded, 0)}
	frame := serialize(t, ip, icmp, gopacket.Payload(quote))

	root := decodeFrame(t, LinkTypeRaw, frame)
	assert.Equal(t,
		[]Type{TypeIPv4, TypeICMPv4, TypeICMPv4TimeExceeded, TypeIPv4, TypeOpaque},
		chainTypes(t, root))
}

func TestICMPv4UnknownTypeIsOpaque(t *testing.T) {
	ip := ipv4Layer(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(40, 1)}
	frame := serialize(t, ip, icmp)

	root := decodeFrame(t, LinkTypeRaw, frame)
	assert.Equal(t, []Type{TypeIPv4, TypeICMPv4, TypeOpaque}, chainTypes(t, root))
}

func TestICMPv4ExactCodeOverridesTypeWildcard(t *testing.T) {
	d := NewDecoder()
	d.ICMPv4Messages.Register(ICMPKey(ICMPv4TypeDestinationUnreachable, 4), DecodeOpaque)

	ip := ipv4Layer(layers.IPProtocolICMPv4)
	build := func(code uint8) []byte {
		icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, code)}
		return serialize(t, ip, icmp, gopacket.Payload(quotedUDP(t)))
	}

	root, err := d.Decode(LinkTypeRaw, buffer.Wrap(build(4)))
	require.NoError(t, err)
	assert.Equal(t, []Type{TypeIPv4, TypeICMPv4, TypeOpaque}, chainTypes(t, root))

	root, err = d.Decode(LinkTypeRaw, buffer.Wrap(build(1)))
	require.NoError(t, err)
	assert.Equal(t, TypeICMPv4DestinationUnreachable, chainTypes(t, root)[2])
}

func TestICMPv4Timestamp(t *testing.T) {
	body := []byte{0, 9, 0, 1, 0, 0, 0, 100, 0, 0, 0, 200, 0, 0, 1, 44}
	ip := ipv4Layer(layers.IPProtocolICMPv4)
	frame := serialize(t, ip, &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(ICMPv4TypeTimestampRequest, 0), Id: 9, Seq: 1},
		gopacket.Payload(body[4:]))

	root := decodeFrame(t, LinkTypeRaw, frame)
	ts := Find(root, TypeICMPv4Timestamp).(*ICMPv4Timestamp)
	require.NotNil(t, ts)
	assert.Equal(t, uint16(9), ts.Identifier())
	assert.Equal(t, uint16(1), ts.SequenceNumber())
	assert.Equal(t, uint32(100), ts.Originate())
	assert.Equal(t, uint32(200), ts.Receive())
	assert.Equal(t, uint32(300), ts.Transmit())
}

func ipv6Layer(next layers.IPProtocol) *layers.IPv6 {
	return &layers.IPv6{Version: 6, HopLimit: 255, NextHeader: next, SrcIP: testSrcIP6, DstIP: testDstIP6}
}

func TestICMPv6EchoChain(t *testing.T) {
	ip := ipv6Layer(layers.IPProtocolICMPv6)
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoRequest, 0)}
	require.NoError(t, icmp.SetNetworkLayerForChecksum(ip))
	frame := serialize(t, ethernet(layers.EthernetTypeIPv6), ip, icmp,
		&layers.ICMPv6Echo{Identifier: 5, SeqNumber: 6}, gopacket.Payload([]byte("abc")))

	root := decodeFrame(t, LinkTypeEthernet, frame)
	assert.Equal(t,
		[]Type{TypeEthernet, TypeIPv6, TypeICMPv6, TypeICMPv6Echo, TypeOpaque},
		chainTypes(t, root))

	common := Find(root, TypeICMPv6).(*ICMPv6)
	assert.Equal(t, "echo request", common.MessageTypeName())
	src, dst, ok := NetworkAddrs(common)
	require.True(t, ok)
	assert.True(t, common.IsValidChecksum(src, dst))

	echo := Find(root, TypeICMPv6Echo).(*ICMPv6Echo)
	assert.Equal(t, uint16(5), echo.Identifier())
	assert.Equal(t, uint16(6), echo.SequenceNumber())
}

func TestICMPv6NeighborSolicitation(t *testing.T) {
	ip := ipv6Layer(layers.IPProtocolICMPv6)
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeNeighborSolicitation, 0)}
	require.NoError(t, icmp.SetNetworkLayerForChecksum(ip))
	ns := &layers.ICMPv6NeighborSolicitation{
		TargetAddress: testDstIP6,
		Options:       layers.ICMPv6Options{{Type: layers.ICMPv6OptSourceAddress, Data: testSrcMAC}},
	}
	root := decodeFrame(t, LinkTypeRaw, serialize(t, ip, icmp, ns))

	assert.Equal(t, []Type{TypeIPv6, TypeICMPv6, TypeICMPv6NeighborSolicitation}, chainTypes(t, root))
	p := Find(root, TypeICMPv6NeighborSolicitation).(*ICMPv6NeighborSolicitation)
	assert.Equal(t, testDstIP6, p.TargetAddress())

	opts, err := p.Options()
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, NDPOptionSourceLinkAddr, opts[0].Type)
	mac, ok := p.LinkAddr(NDPOptionSourceLinkAddr)
	require.True(t, ok)
	assert.Equal(t, testSrcMAC, mac)

	common := Find(root, TypeICMPv6).(*ICMPv6)
	assert.True(t, common.IsValidChecksum(testSrcIP6, testDstIP6))
}

func TestICMPv6NeighborAdvertisementFlags(t *testing.T) {
	ip := ipv6Layer(layers.IPProtocolICMPv6)
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeNeighborAdvertisement, 0)}
	require.NoError(t, icmp.SetNetworkLayerForChecksum(ip))
	na := &layers.ICMPv6NeighborAdvertisement{Flags: 0x60, TargetAddress: testSrcIP6}
	root := decodeFrame(t, LinkTypeRaw, serialize(t, ip, icmp, na))

	p := Find(root, TypeICMPv6NeighborAdvertisement).(*ICMPv6NeighborAdvertisement)
	assert.False(t, p.Router())
	assert.True(t, p.Solicited())
	assert.True(t, p.Override())

	p.SetFlags(NDPFlagRouter)
	assert.True(t, p.Router())
	assert.False(t, p.Solicited())
	assert.Equal(t, testSrcIP6, p.TargetAddress())
}

func TestICMPv6PacketTooBigQuotesPacket(t *testing.T) {
	inner := serialize(t, ipv6Layer(layers.IPProtocolNoNextHeader))
	body := append([]byte{0, 0, 0x05, 0xdc}, inner...)

	ip := ipv6Layer(layers.IPProtocolICMPv6)
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypePacketTooBig, 0)}
	require.NoError(t, icmp.SetNetworkLayerForChecksum(ip))
	root := decodeFrame(t, LinkTypeRaw, serialize(t, ip, icmp, gopacket.Payload(body)))

	assert.Equal(t, []Type{TypeIPv6, TypeICMPv6, TypeICMPv6PacketTooBig, TypeIPv6}, chainTypes(t, root))
	p := Find(root, TypeICMPv6PacketTooBig).(*ICMPv6PacketTooBig)
	assert.Equal(t, uint32(1500), p.MTU())
	assert.NotNil(t, p.Invoking())
}

func TestICMPMessageTypesRegistered(t *testing.T) {
	d := NewDecoder()
	for _, typ := range []uint8{
		ICMPv4TypeEchoReply, ICMPv4TypeDestinationUnreachable, ICMPv4TypeRedirect, ICMPv4TypeEchoRequest,
		ICMPv4TypeTimeExceeded, ICMPv4TypeParameterProblem, ICMPv4TypeTimestampRequest, ICMPv4TypeTimestampReply,
	} {
		_, ok := d.ICMPv4Messages.Lookup(ICMPTypeKey(typ))
		assert.True(t, ok, "icmpv4 type %d", typ)
	}
	for _, typ := range []uint8{
		ICMPv6TypeDestinationUnreachable, ICMPv6TypePacketTooBig, ICMPv6TypeTimeExceeded, ICMPv6TypeParameterProblem,
		ICMPv6TypeEchoRequest, ICMPv6TypeEchoReply, ICMPv6TypeRouterSolicitation, ICMPv6TypeRouterAdvertisement,
		ICMPv6TypeNeighborSolicitation, ICMPv6TypeNeighborAdvertisement,
	} {
		_, ok := d.ICMPv6Messages.Lookup(ICMPTypeKey(typ))
		assert.True(t, ok, "icmpv6 type %d", typ)
	}
}
