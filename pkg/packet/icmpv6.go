package packet

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv6"

	"firestige.xyz/netcodec/pkg/buffer"
)

// ICMPv6 message types with built-in bodies.
const (
	ICMPv6TypeDestinationUnreachable uint8 = 1
	ICMPv6TypePacketTooBig           uint8 = 2
	ICMPv6TypeTimeExceeded           uint8 = 3
	ICMPv6TypeParameterProblem       uint8 = 4
	ICMPv6TypeEchoRequest            uint8 = 128
	ICMPv6TypeEchoReply              uint8 = 129
	ICMPv6TypeRouterSolicitation     uint8 = 133
	ICMPv6TypeRouterAdvertisement    uint8 = 134
	ICMPv6TypeNeighborSolicitation   uint8 = 135
	ICMPv6TypeNeighborAdvertisement  uint8 = 136
)

// Neighbor discovery option types.
const (
	NDPOptionSourceLinkAddr uint8 = 1
	NDPOptionTargetLinkAddr uint8 = 2
	NDPOptionPrefixInfo     uint8 = 3
	NDPOptionRedirected     uint8 = 4
	NDPOptionMTU            uint8 = 5
)

// ICMPv6 is the common ICMPv6 header. The message body follows as its own
// packet, resolved by (type, code).
type ICMPv6 struct {
	base
}

// DecodeICMPv6 wraps buf as the common ICMPv6 header.
func DecodeICMPv6(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapAs(&ICMPv6{}, buf, d, icmpHeaderLen)
}

func (p *ICMPv6) Type() Type   { return TypeICMPv6 }
func (p *ICMPv6) Layer() Layer { return LayerTransport }

func (p *ICMPv6) TypeCode() (uint8, uint8) { return p.u8(0), p.u8(1) }
func (p *ICMPv6) MessageType() uint8       { return p.u8(0) }
func (p *ICMPv6) SetMessageType(v uint8)   { p.setU8(0, v) }
func (p *ICMPv6) Code() uint8              { return p.u8(1) }
func (p *ICMPv6) SetCode(v uint8)          { p.setU8(1, v) }
func (p *ICMPv6) Checksum() uint16         { return p.u16(2) }
func (p *ICMPv6) SetChecksum(v uint16)     { p.setU16(2, v) }

func (p *ICMPv6) MessageTypeName() string { return ipv6.ICMPType(p.MessageType()).String() }

// CalculateChecksum computes the checksum over the IPv6 pseudo-header of
// src and dst and the whole message.
func (p *ICMPv6) CalculateChecksum(src, dst net.IP) (uint16, error) {
	s, d := src.To16(), dst.To16()
	if s == nil || d == nil {
		return 0, fmt.Errorf("packet: invalid pseudo-header addresses %v, %v", src, dst)
	}
	return transportChecksum(s, d, uint8(IPProtocolICMPv6), p.bytes(0, p.Length()), 2), nil
}

func (p *ICMPv6) IsValidChecksum(src, dst net.IP) bool {
	sum, err := p.CalculateChecksum(src, dst)
	return err == nil && sum == p.Checksum()
}

func (p *ICMPv6) NextLayer() (Layer, uint32, bool) {
	return LayerICMPv6, ICMPKey(p.TypeCode()), true
}

func (p *ICMPv6) String() string {
	return fmt.Sprintf("ICMPv6[%s, code %d]", p.MessageTypeName(), p.Code())
}

// ICMPv6Echo is the body of an echo request or reply.
type ICMPv6Echo struct {
	base
}

// DecodeICMPv6Echo wraps buf as an echo request or reply body.
func DecodeICMPv6Echo(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapAs(&ICMPv6Echo{}, buf, d, 4)
}

func (p *ICMPv6Echo) Type() Type                       { return TypeICMPv6Echo }
func (p *ICMPv6Echo) Layer() Layer                     { return LayerICMPv6 }
func (p *ICMPv6Echo) Identifier() uint16               { return p.u16(0) }
func (p *ICMPv6Echo) SetIdentifier(v uint16)           { p.setU16(0, v) }
func (p *ICMPv6Echo) SequenceNumber() uint16           { return p.u16(2) }
func (p *ICMPv6Echo) SetSequenceNumber(v uint16)       { p.setU16(2, v) }
func (p *ICMPv6Echo) NextLayer() (Layer, uint32, bool) { return LayerNone, 0, false }

func (p *ICMPv6Echo) String() string {
	return fmt.Sprintf("ICMPv6Echo[id %d, seq %d]", p.Identifier(), p.SequenceNumber())
}

// icmpv6Error is the body of a message quoting the invoking packet.
type icmpv6Error struct {
	base
}

func (p *icmpv6Error) Layer() Layer { return LayerICMPv6 }

func (p *icmpv6Error) NextLayer() (Layer, uint32, bool) {
	return LayerNetwork, EtherTypeIPv6, true
}

// Invoking returns the quoted IPv6 header, nil when it did not decode.
func (p *icmpv6Error) Invoking() *IPv6 {
	next, err := p.self.Next()
	if err != nil {
		return nil
	}
	ip, _ := next.(*IPv6)
	return ip
}

// ICMPv6DestinationUnreachable is the body of a destination unreachable
// message. Its payload quotes the invoking packet.
type ICMPv6DestinationUnreachable struct {
	icmpv6Error
}

// DecodeICMPv6DestinationUnreachable wraps buf as a destination unreachable body.
func DecodeICMPv6DestinationUnreachable(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapICMPError(&ICMPv6DestinationUnreachable{}, buf, d)
}

func (p *ICMPv6DestinationUnreachable) Type() Type     { return TypeICMPv6DestinationUnreachable }
func (p *ICMPv6DestinationUnreachable) String() string { return "ICMPv6DestinationUnreachable" }

// ICMPv6PacketTooBig carries the MTU of the next hop.
type ICMPv6PacketTooBig struct {
	icmpv6Error
}

// DecodeICMPv6PacketTooBig wraps buf as a packet too big body.
func DecodeICMPv6PacketTooBig(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapICMPError(&ICMPv6PacketTooBig{}, buf, d)
}

func (p *ICMPv6PacketTooBig) Type() Type      { return TypeICMPv6PacketTooBig }
func (p *ICMPv6PacketTooBig) MTU() uint32     { return p.u32(0) }
func (p *ICMPv6PacketTooBig) SetMTU(v uint32) { p.setU32(0, v) }

func (p *ICMPv6PacketTooBig) String() string {
	return fmt.Sprintf("ICMPv6PacketTooBig[mtu %d]", p.MTU())
}

// ICMPv6TimeExceeded is the body of a time exceeded message.
type ICMPv6TimeExceeded struct {
	icmpv6Error
}

// DecodeICMPv6TimeExceeded wraps buf as a time exceeded body.
func DecodeICMPv6TimeExceeded(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapICMPError(&ICMPv6TimeExceeded{}, buf, d)
}

func (p *ICMPv6TimeExceeded) Type() Type     { return TypeICMPv6TimeExceeded }
func (p *ICMPv6TimeExceeded) String() string { return "ICMPv6TimeExceeded" }

// ICMPv6ParameterProblem points at the offending octet of the quoted packet.
type ICMPv6ParameterProblem struct {
	icmpv6Error
}

// DecodeICMPv6ParameterProblem wraps buf as a parameter problem body.
func DecodeICMPv6ParameterProblem(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapICMPError(&ICMPv6ParameterProblem{}, buf, d)
}

func (p *ICMPv6ParameterProblem) Type() Type          { return TypeICMPv6ParameterProblem }
func (p *ICMPv6ParameterProblem) Pointer() uint32     { return p.u32(0) }
func (p *ICMPv6ParameterProblem) SetPointer(v uint32) { p.setU32(0, v) }

func (p *ICMPv6ParameterProblem) String() string {
	return fmt.Sprintf("ICMPv6ParameterProblem[pointer %d]", p.Pointer())
}

// ndp is a neighbor discovery body: a fixed part of fixedLen bytes
// followed by options. The options belong to the header.
type ndp struct {
	base
	fixedLen int
}

func (p *ndp) Layer() Layer                     { return LayerICMPv6 }
func (p *ndp) NextLayer() (Layer, uint32, bool) { return LayerNone, 0, false }

// Options walks the neighbor discovery options. Lengths count 8-octet
// units including the type and length octets.
func (p *ndp) Options() ([]Option, error) {
	data := p.bytes(p.fixedLen, p.hdrLen-p.fixedLen)
	var opts []Option
	for i := 0; i < len(data); {
		if i+2 > len(data) {
			return opts, fmt.Errorf("%w: ndp option truncated at offset %d", ErrMalformedOption, i)
		}
		n := int(data[i+1]) * 8
		if n == 0 || i+n > len(data) {
			return opts, fmt.Errorf("%w: ndp option %d length %d", ErrMalformedOption, data[i], n)
		}
		opts = append(opts, Option{Type: data[i], Data: data[i+2 : i+n : i+n]})
		i += n
	}
	return opts, nil
}

// LinkAddr returns the address carried by the first option of typ, one of
// NDPOptionSourceLinkAddr or NDPOptionTargetLinkAddr.
func (p *ndp) LinkAddr(typ uint8) (net.HardwareAddr, bool) {
	opts, _ := p.Options()
	for _, o := range opts {
		if o.Type == typ && len(o.Data) >= 6 {
			return net.HardwareAddr(o.Data[:6:6]), true
		}
	}
	return nil, false
}

func wrapNDP(p initer, fixed *int, n int, buf *buffer.Buffer, d *Decoder) (Packet, error) {
	*fixed = n
	v, err := wrapFixed(buf, p.Type(), n)
	if err != nil {
		return nil, err
	}
	if err := p.init(p, d, v, v.Capacity(), 0); err != nil {
		return nil, err
	}
	return p, nil
}

// ICMPv6RouterSolicitation is a router solicitation followed by NDP options.
type ICMPv6RouterSolicitation struct {
	ndp
}

// DecodeICMPv6RouterSolicitation wraps buf as a router solicitation.
func DecodeICMPv6RouterSolicitation(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	p := &ICMPv6RouterSolicitation{}
	return wrapNDP(p, &p.fixedLen, 4, buf, d)
}

func (p *ICMPv6RouterSolicitation) Type() Type     { return TypeICMPv6RouterSolicitation }
func (p *ICMPv6RouterSolicitation) String() string { return "ICMPv6RouterSolicitation" }

// ICMPv6RouterAdvertisement is a router advertisement followed by NDP options.
type ICMPv6RouterAdvertisement struct {
	ndp
}

// DecodeICMPv6RouterAdvertisement wraps buf as a router advertisement.
func DecodeICMPv6RouterAdvertisement(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	p := &ICMPv6RouterAdvertisement{}
	return wrapNDP(p, &p.fixedLen, 12, buf, d)
}

func (p *ICMPv6RouterAdvertisement) Type() Type                 { return TypeICMPv6RouterAdvertisement }
func (p *ICMPv6RouterAdvertisement) HopLimit() uint8            { return p.u8(0) }
func (p *ICMPv6RouterAdvertisement) SetHopLimit(v uint8)        { p.setU8(0, v) }
func (p *ICMPv6RouterAdvertisement) Flags() uint8               { return p.u8(1) }
func (p *ICMPv6RouterAdvertisement) SetFlags(v uint8)           { p.setU8(1, v) }
func (p *ICMPv6RouterAdvertisement) ManagedAddressConfig() bool { return p.u8(1)&0x80 != 0 }
func (p *ICMPv6RouterAdvertisement) OtherConfig() bool          { return p.u8(1)&0x40 != 0 }
func (p *ICMPv6RouterAdvertisement) RouterLifetime() uint16     { return p.u16(2) }
func (p *ICMPv6RouterAdvertisement) SetRouterLifetime(v uint16) { p.setU16(2, v) }
func (p *ICMPv6RouterAdvertisement) ReachableTime() uint32      { return p.u32(4) }
func (p *ICMPv6RouterAdvertisement) SetReachableTime(v uint32)  { p.setU32(4, v) }
func (p *ICMPv6RouterAdvertisement) RetransTimer() uint32       { return p.u32(8) }
func (p *ICMPv6RouterAdvertisement) SetRetransTimer(v uint32)   { p.setU32(8, v) }

func (p *ICMPv6RouterAdvertisement) String() string {
	return fmt.Sprintf("ICMPv6RouterAdvertisement[hlim %d, lifetime %d]", p.HopLimit(), p.RouterLifetime())
}

// ICMPv6NeighborSolicitation asks for the link address of a target.
type ICMPv6NeighborSolicitation struct {
	ndp
}

// DecodeICMPv6NeighborSolicitation wraps buf as a neighbor solicitation.
func DecodeICMPv6NeighborSolicitation(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	p := &ICMPv6NeighborSolicitation{}
	return wrapNDP(p, &p.fixedLen, 20, buf, d)
}

func (p *ICMPv6NeighborSolicitation) Type() Type            { return TypeICMPv6NeighborSolicitation }
func (p *ICMPv6NeighborSolicitation) TargetAddress() net.IP { return p.bytes(4, net.IPv6len) }

func (p *ICMPv6NeighborSolicitation) SetTargetAddress(ip net.IP) error {
	return setIP(&p.base, 4, ip.To16(), net.IPv6len)
}

func (p *ICMPv6NeighborSolicitation) String() string {
	return fmt.Sprintf("ICMPv6NeighborSolicitation[target %s]", p.TargetAddress())
}

// Neighbor advertisement flags.
const (
	NDPFlagRouter    uint8 = 0x80
	NDPFlagSolicited uint8 = 0x40
	NDPFlagOverride  uint8 = 0x20
)

// ICMPv6NeighborAdvertisement answers a neighbor solicitation.
type ICMPv6NeighborAdvertisement struct {
	ndp
}

// DecodeICMPv6NeighborAdvertisement wraps buf as a neighbor advertisement.
func DecodeICMPv6NeighborAdvertisement(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	p := &ICMPv6NeighborAdvertisement{}
	return wrapNDP(p, &p.fixedLen, 20, buf, d)
}

func (p *ICMPv6NeighborAdvertisement) Type() Type            { return TypeICMPv6NeighborAdvertisement }
func (p *ICMPv6NeighborAdvertisement) Flags() uint8          { return p.u8(0) & 0xe0 }
func (p *ICMPv6NeighborAdvertisement) SetFlags(v uint8)      { p.setBits8(0, 0xe0, v) }
func (p *ICMPv6NeighborAdvertisement) Router() bool          { return p.u8(0)&NDPFlagRouter != 0 }
func (p *ICMPv6NeighborAdvertisement) Solicited() bool       { return p.u8(0)&NDPFlagSolicited != 0 }
func (p *ICMPv6NeighborAdvertisement) Override() bool        { return p.u8(0)&NDPFlagOverride != 0 }
func (p *ICMPv6NeighborAdvertisement) TargetAddress() net.IP { return p.bytes(4, net.IPv6len) }

func (p *ICMPv6NeighborAdvertisement) SetTargetAddress(ip net.IP) error {
	return setIP(&p.base, 4, ip.To16(), net.IPv6len)
}

func (p *ICMPv6NeighborAdvertisement) String() string {
	return fmt.Sprintf("ICMPv6NeighborAdvertisement[target %s, flags 0x%02x]", p.TargetAddress(), p.Flags())
}
