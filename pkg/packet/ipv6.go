package packet

import (
	"fmt"
	"net"

	"firestige.xyz/netcodec/pkg/buffer"
)

const (
	ipv6HeaderLen         = 40
	ipv6FragmentHeaderLen = 8
	ipv6ExtMinLen         = 8
	ipv6AHMinLen          = 12
)

// IPv6 is the fixed IPv6 header. Extension headers follow as their own
// packets.
type IPv6 struct {
	base
}

// DecodeIPv6 wraps buf as an IPv6 header. A PayloadLength of zero, or one
// beyond the captured bytes, extends the payload to the end of buf.
func DecodeIPv6(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeIPv6, ipv6HeaderLen)
	if err != nil {
		return nil, err
	}
	first, _ := v.GetUint8(0)
	if version := first >> 4; version != 6 {
		return nil, fmt.Errorf("%w: IPv6 header with version %d", ErrInvalidVersion, version)
	}
	payloadLen := v.Capacity() - ipv6HeaderLen
	if n, _ := v.GetUint16(4); n > 0 && int(n) <= payloadLen {
		payloadLen = int(n)
	}
	p := &IPv6{}
	if err := p.init(p, d, v, ipv6HeaderLen, payloadLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *IPv6) Type() Type   { return TypeIPv6 }
func (p *IPv6) Layer() Layer { return LayerNetwork }

func (p *IPv6) Version() uint8            { return p.u8(0) >> 4 }
func (p *IPv6) TrafficClass() uint8       { return uint8(p.u16(0) >> 4) }
func (p *IPv6) SetTrafficClass(v uint8)   { p.setBits16(0, 0x0ff0, uint16(v)<<4) }
func (p *IPv6) FlowLabel() uint32         { return p.u32(0) & 0x000fffff }
func (p *IPv6) SetFlowLabel(v uint32)     { p.setU32(0, p.u32(0)&^0x000fffff|v&0x000fffff) }
func (p *IPv6) PayloadLength() uint16     { return p.u16(4) }
func (p *IPv6) SetPayloadLength(v uint16) { p.setU16(4, v) }
func (p *IPv6) NextHeader() uint8         { return p.u8(6) }
func (p *IPv6) SetNextHeader(v uint8)     { p.setU8(6, v) }
func (p *IPv6) HopLimit() uint8           { return p.u8(7) }
func (p *IPv6) SetHopLimit(v uint8)       { p.setU8(7, v) }
func (p *IPv6) SrcIP() net.IP             { return p.bytes(8, net.IPv6len) }
func (p *IPv6) DstIP() net.IP             { return p.bytes(24, net.IPv6len) }

func (p *IPv6) SetSrcIP(ip net.IP) error { return setIP(&p.base, 8, ip.To16(), net.IPv6len) }
func (p *IPv6) SetDstIP(ip net.IP) error { return setIP(&p.base, 24, ip.To16(), net.IPv6len) }

func (p *IPv6) NextLayer() (Layer, uint32, bool) { return nextHeaderLayer(p.NextHeader()) }

func (p *IPv6) String() string {
	return fmt.Sprintf("IPv6[%s > %s, next %d, hlim %d, len %d]",
		p.SrcIP(), p.DstIP(), p.NextHeader(), p.HopLimit(), p.PayloadLength())
}

func nextHeaderLayer(nh uint8) (Layer, uint32, bool) {
	if uint32(nh) == IPProtocolNoNextHeader {
		return LayerNone, 0, false
	}
	return LayerTransport, uint32(nh), true
}

// ipv6Extension holds the fields every extension header starts with.
type ipv6Extension struct {
	base
}

func (p *ipv6Extension) Layer() Layer          { return LayerNetwork }
func (p *ipv6Extension) NextHeader() uint8     { return p.u8(0) }
func (p *ipv6Extension) SetNextHeader(v uint8) { p.setU8(0, v) }

func (p *ipv6Extension) NextLayer() (Layer, uint32, bool) { return nextHeaderLayer(p.NextHeader()) }

// wrapExtension validates an extension header whose length is
// (HdrExtLen+1)*8 octets.
func wrapExtension(buf *buffer.Buffer, t Type) (*buffer.Buffer, int, error) {
	v, err := wrapFixed(buf, t, ipv6ExtMinLen)
	if err != nil {
		return nil, 0, err
	}
	n, _ := v.GetUint8(1)
	hdrLen := (int(n) + 1) * 8
	if v.Capacity() < hdrLen {
		return nil, 0, insufficient(t, hdrLen, v.Capacity())
	}
	return v, hdrLen, nil
}

// IPv6 option types with special encoding.
const (
	IPv6OptionPad1 uint8 = 0
	IPv6OptionPadN uint8 = 1
)

func ipv6Options(data []byte) ([]Option, error) {
	return parseTLV(data, false, func(t uint8) bool { return t == IPv6OptionPad1 }, nil)
}

// IPv6HopByHop is the Hop-by-Hop Options extension header.
type IPv6HopByHop struct {
	ipv6Extension
}

// DecodeIPv6HopByHop wraps buf as a hop-by-hop options header.
func DecodeIPv6HopByHop(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, n, err := wrapExtension(buf, TypeIPv6HopByHop)
	if err != nil {
		return nil, err
	}
	p := &IPv6HopByHop{}
	if err := p.init(p, d, v, n, v.Capacity()-n); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *IPv6HopByHop) Type() Type { return TypeIPv6HopByHop }

// Options walks the option area, padding included.
func (p *IPv6HopByHop) Options() ([]Option, error) { return ipv6Options(p.bytes(2, p.hdrLen-2)) }

func (p *IPv6HopByHop) String() string {
	return fmt.Sprintf("IPv6HopByHop[next %d, len %d]", p.NextHeader(), p.hdrLen)
}

// IPv6DestinationOptions is the Destination Options extension header.
type IPv6DestinationOptions struct {
	ipv6Extension
}

// DecodeIPv6DestinationOptions wraps buf as a destination options header.
func DecodeIPv6DestinationOptions(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, n, err := wrapExtension(buf, TypeIPv6DestinationOptions)
	if err != nil {
		return nil, err
	}
	p := &IPv6DestinationOptions{}
	if err := p.init(p, d, v, n, v.Capacity()-n); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *IPv6DestinationOptions) Type() Type { return TypeIPv6DestinationOptions }

func (p *IPv6DestinationOptions) Options() ([]Option, error) {
	return ipv6Options(p.bytes(2, p.hdrLen-2))
}

func (p *IPv6DestinationOptions) String() string {
	return fmt.Sprintf("IPv6DestinationOptions[next %d, len %d]", p.NextHeader(), p.hdrLen)
}

// IPv6Routing is the Routing extension header.
type IPv6Routing struct {
	ipv6Extension
}

// DecodeIPv6Routing wraps buf as a routing header.
func DecodeIPv6Routing(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, n, err := wrapExtension(buf, TypeIPv6Routing)
	if err != nil {
		return nil, err
	}
	p := &IPv6Routing{}
	if err := p.init(p, d, v, n, v.Capacity()-n); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *IPv6Routing) Type() Type               { return TypeIPv6Routing }
func (p *IPv6Routing) RoutingType() uint8       { return p.u8(2) }
func (p *IPv6Routing) SetRoutingType(v uint8)   { p.setU8(2, v) }
func (p *IPv6Routing) SegmentsLeft() uint8      { return p.u8(3) }
func (p *IPv6Routing) SetSegmentsLeft(v uint8)  { p.setU8(3, v) }
func (p *IPv6Routing) TypeSpecificData() []byte { return p.bytes(4, p.hdrLen-4) }

// Addresses returns the segment list of a type 0 or segment routing
// (type 4) header. Other types yield nil.
func (p *IPv6Routing) Addresses() []net.IP {
	data := p.TypeSpecificData()
	switch p.RoutingType() {
	case 0, 4:
		data = data[4:]
	default:
		return nil
	}
	addrs := make([]net.IP, 0, len(data)/net.IPv6len)
	for len(data) >= net.IPv6len {
		addrs = append(addrs, net.IP(data[:net.IPv6len:net.IPv6len]))
		data = data[net.IPv6len:]
	}
	return addrs
}

func (p *IPv6Routing) String() string {
	return fmt.Sprintf("IPv6Routing[next %d, type %d, left %d]", p.NextHeader(), p.RoutingType(), p.SegmentsLeft())
}

// IPv6Fragment is the Fragment extension header.
type IPv6Fragment struct {
	ipv6Extension
}

// DecodeIPv6Fragment wraps buf as a fragment header.
func DecodeIPv6Fragment(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeIPv6Fragment, ipv6FragmentHeaderLen)
	if err != nil {
		return nil, err
	}
	p := &IPv6Fragment{}
	if err := p.init(p, d, v, ipv6FragmentHeaderLen, v.Capacity()-ipv6FragmentHeaderLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *IPv6Fragment) Type() Type { return TypeIPv6Fragment }

// FragmentOffset is in 8-byte units.
func (p *IPv6Fragment) FragmentOffset() uint16     { return p.u16(2) >> 3 }
func (p *IPv6Fragment) SetFragmentOffset(v uint16) { p.setBits16(2, 0xfff8, v<<3) }
func (p *IPv6Fragment) MoreFragments() bool        { return p.u16(2)&0x1 != 0 }
func (p *IPv6Fragment) SetMoreFragments(on bool)   { p.setBits16(2, 0x1, boolBit16(on, 0x1)) }
func (p *IPv6Fragment) Identification() uint32     { return p.u32(4) }
func (p *IPv6Fragment) SetIdentification(v uint32) { p.setU32(4, v) }

// NextLayer stops at non-first fragments.
func (p *IPv6Fragment) NextLayer() (Layer, uint32, bool) {
	if p.FragmentOffset() != 0 {
		return LayerNone, 0, false
	}
	return nextHeaderLayer(p.NextHeader())
}

func (p *IPv6Fragment) String() string {
	return fmt.Sprintf("IPv6Fragment[next %d, id %d, offset %d, more %t]",
		p.NextHeader(), p.Identification(), p.FragmentOffset(), p.MoreFragments())
}

// IPv6Authentication is the IP Authentication Header. It appears after
// IPv4 as well as in an IPv6 extension chain.
type IPv6Authentication struct {
	ipv6Extension
}

// DecodeIPv6Authentication wraps buf as an authentication header.
func DecodeIPv6Authentication(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	v, err := wrapFixed(buf, TypeIPv6Authentication, ipv6AHMinLen)
	if err != nil {
		return nil, err
	}
	n, _ := v.GetUint8(1)
	hdrLen := (int(n) + 2) * 4
	if hdrLen < ipv6AHMinLen {
		return nil, invalidHeaderLength(TypeIPv6Authentication, hdrLen, ipv6AHMinLen)
	}
	if v.Capacity() < hdrLen {
		return nil, insufficient(TypeIPv6Authentication, hdrLen, v.Capacity())
	}
	p := &IPv6Authentication{}
	if err := p.init(p, d, v, hdrLen, v.Capacity()-hdrLen); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *IPv6Authentication) Type() Type                 { return TypeIPv6Authentication }
func (p *IPv6Authentication) SPI() uint32                { return p.u32(4) }
func (p *IPv6Authentication) SetSPI(v uint32)            { p.setU32(4, v) }
func (p *IPv6Authentication) SequenceNumber() uint32     { return p.u32(8) }
func (p *IPv6Authentication) SetSequenceNumber(v uint32) { p.setU32(8, v) }
func (p *IPv6Authentication) ICV() []byte                { return p.bytes(ipv6AHMinLen, p.hdrLen-ipv6AHMinLen) }

func (p *IPv6Authentication) String() string {
	return fmt.Sprintf("IPv6Authentication[next %d, spi 0x%08x, seq %d]", p.NextHeader(), p.SPI(), p.SequenceNumber())
}
