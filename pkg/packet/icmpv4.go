package packet

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"

	"firestige.xyz/netcodec/pkg/buffer"
)

const icmpHeaderLen = 4

// ICMPv4 message types with built-in bodies.
const (
	ICMPv4TypeEchoReply              uint8 = 0
	ICMPv4TypeDestinationUnreachable uint8 = 3
	ICMPv4TypeRedirect               uint8 = 5
	ICMPv4TypeEchoRequest            uint8 = 8
	ICMPv4TypeTimeExceeded           uint8 = 11
	ICMPv4TypeParameterProblem       uint8 = 12
	ICMPv4TypeTimestampRequest       uint8 = 13
	ICMPv4TypeTimestampReply         uint8 = 14
)

// initer is a header that can be initialized over a view.
type initer interface {
	Packet
	init(self Packet, d *Decoder, v *buffer.Buffer, hdrLen, payloadLen int) error
	setLenient()
}

// wrapAs initializes p over buf with a fixed header of n bytes.
func wrapAs(p initer, buf *buffer.Buffer, d *Decoder, n int) (Packet, error) {
	v, err := wrapFixed(buf, p.Type(), n)
	if err != nil {
		return nil, err
	}
	if err := p.init(p, d, v, n, v.Capacity()-n); err != nil {
		return nil, err
	}
	return p, nil
}

// ICMPv4 is the common ICMP header: type, code and checksum. The message
// body follows as its own packet, resolved by (type, code).
type ICMPv4 struct {
	base
}

// DecodeICMPv4 wraps buf as the common ICMPv4 header.
func DecodeICMPv4(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapAs(&ICMPv4{}, buf, d, icmpHeaderLen)
}

func (p *ICMPv4) Type() Type   { return TypeICMPv4 }
func (p *ICMPv4) Layer() Layer { return LayerTransport }

func (p *ICMPv4) TypeCode() (uint8, uint8) { return p.u8(0), p.u8(1) }
func (p *ICMPv4) MessageType() uint8       { return p.u8(0) }
func (p *ICMPv4) SetMessageType(v uint8)   { p.setU8(0, v) }
func (p *ICMPv4) Code() uint8              { return p.u8(1) }
func (p *ICMPv4) SetCode(v uint8)          { p.setU8(1, v) }
func (p *ICMPv4) Checksum() uint16         { return p.u16(2) }
func (p *ICMPv4) SetChecksum(v uint16)     { p.setU16(2, v) }

// MessageTypeName is the IANA name of the message type.
func (p *ICMPv4) MessageTypeName() string { return ipv4.ICMPType(p.MessageType()).String() }

// CalculateChecksum computes the checksum over the whole message with the
// stored checksum treated as zero.
func (p *ICMPv4) CalculateChecksum() uint16 { return Checksum(p.bytes(0, p.Length()), 2) }
func (p *ICMPv4) IsValidChecksum() bool     { return p.CalculateChecksum() == p.Checksum() }
func (p *ICMPv4) UpdateChecksum()           { p.SetChecksum(p.CalculateChecksum()) }

func (p *ICMPv4) NextLayer() (Layer, uint32, bool) {
	return LayerICMPv4, ICMPKey(p.TypeCode()), true
}

func (p *ICMPv4) String() string {
	return fmt.Sprintf("ICMPv4[%s, code %d]", p.MessageTypeName(), p.Code())
}

// ICMPv4Echo is the body of an echo request or reply.
type ICMPv4Echo struct {
	base
}

// DecodeICMPv4Echo wraps buf as an echo request or reply body.
func DecodeICMPv4Echo(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapAs(&ICMPv4Echo{}, buf, d, 4)
}

func (p *ICMPv4Echo) Type() Type                       { return TypeICMPv4Echo }
func (p *ICMPv4Echo) Layer() Layer                     { return LayerICMPv4 }
func (p *ICMPv4Echo) Identifier() uint16               { return p.u16(0) }
func (p *ICMPv4Echo) SetIdentifier(v uint16)           { p.setU16(0, v) }
func (p *ICMPv4Echo) SequenceNumber() uint16           { return p.u16(2) }
func (p *ICMPv4Echo) SetSequenceNumber(v uint16)       { p.setU16(2, v) }
func (p *ICMPv4Echo) NextLayer() (Layer, uint32, bool) { return LayerNone, 0, false }

func (p *ICMPv4Echo) String() string {
	return fmt.Sprintf("ICMPv4Echo[id %d, seq %d]", p.Identifier(), p.SequenceNumber())
}

// icmpv4Error is the body of a message quoting the invoking datagram. The
// quote is usually truncated, so failures below it degrade to Opaque.
type icmpv4Error struct {
	base
}

func (p *icmpv4Error) Layer() Layer { return LayerICMPv4 }

func (p *icmpv4Error) NextLayer() (Layer, uint32, bool) {
	return LayerNetwork, EtherTypeIPv4, true
}

// Invoking returns the quoted IPv4 header, nil when it did not decode.
func (p *icmpv4Error) Invoking() *IPv4 {
	next, err := p.self.Next()
	if err != nil {
		return nil
	}
	ip, _ := next.(*IPv4)
	return ip
}

func wrapICMPError(p initer, buf *buffer.Buffer, d *Decoder) (Packet, error) {
	p.setLenient()
	return wrapAs(p, buf, d, 4)
}

// ICMPv4DestinationUnreachable is the body of a destination unreachable
// message.
type ICMPv4DestinationUnreachable struct {
	icmpv4Error
}

// DecodeICMPv4DestinationUnreachable wraps buf as a destination unreachable body.
func DecodeICMPv4DestinationUnreachable(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapICMPError(&ICMPv4DestinationUnreachable{}, buf, d)
}

func (p *ICMPv4DestinationUnreachable) Type() Type { return TypeICMPv4DestinationUnreachable }

// NextHopMTU is set by fragmentation-needed messages (code 4).
func (p *ICMPv4DestinationUnreachable) NextHopMTU() uint16     { return p.u16(2) }
func (p *ICMPv4DestinationUnreachable) SetNextHopMTU(v uint16) { p.setU16(2, v) }

func (p *ICMPv4DestinationUnreachable) String() string {
	return fmt.Sprintf("ICMPv4DestinationUnreachable[mtu %d]", p.NextHopMTU())
}

// ICMPv4TimeExceeded is the body of a time exceeded message.
type ICMPv4TimeExceeded struct {
	icmpv4Error
}

// DecodeICMPv4TimeExceeded wraps buf as a time exceeded body.
func DecodeICMPv4TimeExceeded(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapICMPError(&ICMPv4TimeExceeded{}, buf, d)
}

func (p *ICMPv4TimeExceeded) Type() Type     { return TypeICMPv4TimeExceeded }
func (p *ICMPv4TimeExceeded) String() string { return "ICMPv4TimeExceeded" }

// ICMPv4Redirect is the body of a redirect message.
type ICMPv4Redirect struct {
	icmpv4Error
}

// DecodeICMPv4Redirect wraps buf as a redirect body.
func DecodeICMPv4Redirect(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapICMPError(&ICMPv4Redirect{}, buf, d)
}

func (p *ICMPv4Redirect) Type() Type      { return TypeICMPv4Redirect }
func (p *ICMPv4Redirect) Gateway() net.IP { return p.bytes(0, net.IPv4len) }

func (p *ICMPv4Redirect) SetGateway(ip net.IP) error {
	return setIP(&p.base, 0, ip.To4(), net.IPv4len)
}

func (p *ICMPv4Redirect) String() string {
	return fmt.Sprintf("ICMPv4Redirect[gateway %s]", p.Gateway())
}

// ICMPv4ParameterProblem is the body of a parameter problem message.
type ICMPv4ParameterProblem struct {
	icmpv4Error
}

// DecodeICMPv4ParameterProblem wraps buf as a parameter problem body.
func DecodeICMPv4ParameterProblem(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapICMPError(&ICMPv4ParameterProblem{}, buf, d)
}

func (p *ICMPv4ParameterProblem) Type() Type { return TypeICMPv4ParameterProblem }

// Pointer is the octet offset of the offending field in the quoted header.
func (p *ICMPv4ParameterProblem) Pointer() uint8     { return p.u8(0) }
func (p *ICMPv4ParameterProblem) SetPointer(v uint8) { p.setU8(0, v) }

func (p *ICMPv4ParameterProblem) String() string {
	return fmt.Sprintf("ICMPv4ParameterProblem[pointer %d]", p.Pointer())
}

// ICMPv4Timestamp is the body of a timestamp request or reply. Timestamps
// are milliseconds since midnight UT.
type ICMPv4Timestamp struct {
	base
}

// DecodeICMPv4Timestamp wraps buf as a timestamp request or reply body.
func DecodeICMPv4Timestamp(buf *buffer.Buffer, d *Decoder) (Packet, error) {
	return wrapAs(&ICMPv4Timestamp{}, buf, d, 16)
}

func (p *ICMPv4Timestamp) Type() Type                       { return TypeICMPv4Timestamp }
func (p *ICMPv4Timestamp) Layer() Layer                     { return LayerICMPv4 }
func (p *ICMPv4Timestamp) Identifier() uint16               { return p.u16(0) }
func (p *ICMPv4Timestamp) SetIdentifier(v uint16)           { p.setU16(0, v) }
func (p *ICMPv4Timestamp) SequenceNumber() uint16           { return p.u16(2) }
func (p *ICMPv4Timestamp) SetSequenceNumber(v uint16)       { p.setU16(2, v) }
func (p *ICMPv4Timestamp) Originate() uint32                { return p.u32(4) }
func (p *ICMPv4Timestamp) SetOriginate(v uint32)            { p.setU32(4, v) }
func (p *ICMPv4Timestamp) Receive() uint32                  { return p.u32(8) }
func (p *ICMPv4Timestamp) SetReceive(v uint32)              { p.setU32(8, v) }
func (p *ICMPv4Timestamp) Transmit() uint32                 { return p.u32(12) }
func (p *ICMPv4Timestamp) SetTransmit(v uint32)             { p.setU32(12, v) }
func (p *ICMPv4Timestamp) NextLayer() (Layer, uint32, bool) { return LayerNone, 0, false }

func (p *ICMPv4Timestamp) String() string {
	return fmt.Sprintf("ICMPv4Timestamp[id %d, seq %d, originate %d]", p.Identifier(), p.SequenceNumber(), p.Originate())
}
